package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestProductionDefaultsToJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOutput(&buf, "debug", "", true)
	l.WithField("user_id", 7).Info("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected json line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "hello" || entry["user_id"] != float64(7) {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if l.GetLevel() != logrus.DebugLevel {
		t.Fatalf("level = %v", l.GetLevel())
	}
}

func TestExplicitTextAndBadLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOutput(&buf, "loud", "text", true)
	if l.GetLevel() != logrus.InfoLevel {
		t.Fatalf("expected info fallback, got %v", l.GetLevel())
	}
	l.Info("plain")
	if !strings.Contains(buf.String(), `msg=plain`) {
		t.Fatalf("expected text output, got %q", buf.String())
	}
}
