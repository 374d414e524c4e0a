package telemetry

import (
	"context"
	"testing"

	"github.com/iliyamo/auth-user-service/internal/config"
)

func TestSetup(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.TelemetryConfig
	}{
		{"no endpoint", config.TelemetryConfig{Enabled: true, ServiceName: "test"}},
		{"disabled", config.TelemetryConfig{Enabled: false, Endpoint: "http://localhost:4318", ServiceName: "test"}},
		// Non-routable address; nothing is exported before shutdown.
		{"endpoint set", config.TelemetryConfig{Enabled: true, Endpoint: "http://192.0.2.1:4318", ServiceName: "test"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shutdown, err := Setup(context.Background(), tt.cfg)
			if err != nil {
				t.Fatalf("setup: %v", err)
			}
			if err := shutdown(context.Background()); err != nil {
				t.Fatalf("shutdown: %v", err)
			}
		})
	}
}
