package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/iliyamo/auth-user-service/internal/database"
	"github.com/iliyamo/auth-user-service/internal/model"
	"github.com/iliyamo/auth-user-service/internal/queue"
	"github.com/iliyamo/auth-user-service/internal/repository"
)

func newBridge(t *testing.T, staff ...string) (*IdentityBridge, *repository.UserRepo, *queue.Recorder) {
	t.Helper()
	g, err := database.OpenSQLite(filepath.Join(t.TempDir(), "users.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = g.Close() })
	if err := g.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("schema: %v", err)
	}
	repo := repository.NewUserRepo(g)
	rec := &queue.Recorder{}
	return NewIdentityBridge(repo, rec, nil, staff), repo, rec
}

func TestResolveCreatesOnFirstLogin(t *testing.T) {
	b, repo, rec := newBridge(t)
	ctx := context.Background()
	id := ExternalIdentity{Subject: "g-123", Email: "new@example.edu", GivenName: "New", FamilyName: "Person"}

	u, err := b.Resolve(ctx, id)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if u.GoogleID == nil || *u.GoogleID != "g-123" {
		t.Fatalf("expected google id attached, got %v", u.GoogleID)
	}
	if u.Role != model.RoleStudent || u.Status != model.StatusActive {
		t.Fatalf("unexpected defaults: %s/%s", u.Role, u.Status)
	}

	again, err := b.Resolve(ctx, id)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if again.ID != u.ID {
		t.Fatalf("expected same local id, got %d and %d", u.ID, again.ID)
	}
	if n, _ := repo.Count(ctx, repository.UserFilter{}); n != 1 {
		t.Fatalf("expected one user, got %d", n)
	}
	if got := rec.Types(); len(got) != 1 || got[0] != queue.UserCreated {
		t.Fatalf("expected a single user.created event, got %v", got)
	}
}

func TestResolveAttachesToExistingUser(t *testing.T) {
	b, repo, rec := newBridge(t)
	ctx := context.Background()
	existing, err := repo.Create(ctx, model.NewUser{Email: "old@example.edu", FirstName: "Old", LastName: "Timer", Role: model.RoleFaculty})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	u, err := b.Resolve(ctx, ExternalIdentity{Subject: "g-9", Email: "old@example.edu", DisplayName: "Someone Else"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if u.ID != existing.ID || u.GoogleID == nil || *u.GoogleID != "g-9" {
		t.Fatalf("expected google id attached to existing user, got %+v", u)
	}
	if u.FirstName != "Old" || u.Role != model.RoleFaculty {
		t.Fatalf("existing profile must not change: %+v", u)
	}

	// A later login with another subject leaves the stored id alone.
	u2, err := b.Resolve(ctx, ExternalIdentity{Subject: "g-other", Email: "old@example.edu"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if *u2.GoogleID != "g-9" {
		t.Fatalf("google id overwritten: %s", *u2.GoogleID)
	}
	if len(rec.Types()) != 0 {
		t.Fatalf("no events expected for existing users, got %v", rec.Types())
	}
}

func TestResolveAfterEmailChange(t *testing.T) {
	b, repo, rec := newBridge(t)
	ctx := context.Background()
	id := ExternalIdentity{Subject: "g-7", Email: "before@example.edu", GivenName: "Kay", FamilyName: "Ell"}

	first, err := b.Resolve(ctx, id)
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	changed := "after@example.edu"
	if _, err := repo.Update(ctx, first.ID, model.UserPatch{Email: &changed}); err != nil {
		t.Fatalf("change email: %v", err)
	}

	again, err := b.Resolve(ctx, id)
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if again.ID != first.ID || again.Email != changed {
		t.Fatalf("expected user %d with %s, got %+v", first.ID, changed, again)
	}
	if n, _ := repo.Count(ctx, repository.UserFilter{}); n != 1 {
		t.Fatalf("expected one user, got %d", n)
	}
	if got := rec.Types(); len(got) != 1 {
		t.Fatalf("expected only the first login to publish, got %v", got)
	}
}

func TestResolveSubjectLinkedElsewhere(t *testing.T) {
	b, repo, _ := newBridge(t)
	ctx := context.Background()
	holder, err := b.Resolve(ctx, ExternalIdentity{Subject: "g-1", Email: "holder@example.edu"})
	if err != nil {
		t.Fatal(err)
	}
	plain, err := repo.Create(ctx, model.NewUser{Email: "plain@example.edu", FirstName: "P", LastName: "L"})
	if err != nil {
		t.Fatal(err)
	}

	u, err := b.Resolve(ctx, ExternalIdentity{Subject: "g-1", Email: "plain@example.edu"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if u.ID != plain.ID || u.GoogleID != nil {
		t.Fatalf("expected the email's user unchanged, got %+v", u)
	}
	kept, err := repo.GetByGoogleID(ctx, "g-1")
	if err != nil || kept.ID != holder.ID {
		t.Fatalf("subject moved: %+v %v", kept, err)
	}
}

func TestResolveMissingEmail(t *testing.T) {
	b, _, _ := newBridge(t)
	if _, err := b.Resolve(context.Background(), ExternalIdentity{Subject: "x"}); !errors.Is(err, ErrMissingEmail) {
		t.Fatalf("expected ErrMissingEmail, got %v", err)
	}
}

func TestResolveStaffBootstrap(t *testing.T) {
	b, _, _ := newBridge(t, "Dean@Example.edu")
	u, err := b.Resolve(context.Background(), ExternalIdentity{Subject: "s", Email: "dean@example.edu"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if u.Role != model.RoleStaff {
		t.Fatalf("expected staff role, got %s", u.Role)
	}
}

type failingStore struct{ UserStore }

func (failingStore) GetByEmail(context.Context, string) (*model.User, error) {
	return nil, errors.New("db down")
}

func TestResolvePropagatesStoreErrors(t *testing.T) {
	b := NewIdentityBridge(failingStore{}, nil, nil, nil)
	_, err := b.Resolve(context.Background(), ExternalIdentity{Email: "a@b.c"})
	if err == nil || errors.Is(err, ErrMissingEmail) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestNameParts(t *testing.T) {
	cases := []struct {
		id          ExternalIdentity
		first, last string
	}{
		{ExternalIdentity{GivenName: "Ada", FamilyName: "Lovelace"}, "Ada", "Lovelace"},
		{ExternalIdentity{DisplayName: "Grace Brewster Hopper"}, "Grace", "Brewster Hopper"},
		{ExternalIdentity{GivenName: "Alan", DisplayName: "Alan Turing"}, "Alan", "Turing"},
		{ExternalIdentity{}, "someone", "-"},
	}
	for _, tc := range cases {
		first, last := nameParts("someone@example.edu", tc.id)
		if first != tc.first || last != tc.last {
			t.Fatalf("nameParts(%+v) = %q,%q want %q,%q", tc.id, first, last, tc.first, tc.last)
		}
	}
}
