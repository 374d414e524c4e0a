// Package service holds the logic that sits between the HTTP handlers and
// the repositories.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/auth-user-service/internal/model"
	"github.com/iliyamo/auth-user-service/internal/queue"
	"github.com/iliyamo/auth-user-service/internal/repository"
)

// ErrMissingEmail is returned when the identity provider did not disclose an
// email address.  Such identities cannot be matched to a local user.
var ErrMissingEmail = errors.New("identity has no email")

// ExternalIdentity is a verified assertion from a federated provider.
type ExternalIdentity struct {
	Subject     string // provider user id
	Email       string
	GivenName   string
	FamilyName  string
	DisplayName string
}

// UserStore is the part of the user repository the bridge needs.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*model.User, error)
	Create(ctx context.Context, in model.NewUser) (*model.User, error)
	AttachGoogleID(ctx context.Context, id int64, googleID string) error
}

// IdentityBridge maps a federated login onto a local user, creating the
// user on first sight.
type IdentityBridge struct {
	users       UserStore
	events      queue.Publisher
	log         logrus.FieldLogger
	staffEmails map[string]struct{}
}

// NewIdentityBridge builds a bridge.  Emails in staffEmails (compared
// case-insensitively) get the staff role when their account is created.
func NewIdentityBridge(users UserStore, events queue.Publisher, log logrus.FieldLogger, staffEmails []string) *IdentityBridge {
	if events == nil {
		events = queue.Noop{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	staff := make(map[string]struct{}, len(staffEmails))
	for _, e := range staffEmails {
		staff[strings.ToLower(strings.TrimSpace(e))] = struct{}{}
	}
	return &IdentityBridge{users: users, events: events, log: log, staffEmails: staff}
}

// Resolve returns the local user for id.
//
//   - no email: ErrMissingEmail
//   - known email, no google id stored: attach the subject and re-read
//   - known email, google id stored: returned unchanged
//   - unknown email, subject already linked to a user (whose email has
//     since changed): that user
//   - unknown email: create an active user with the subject attached
//
// Any storage failure is returned as is.
func (b *IdentityBridge) Resolve(ctx context.Context, id ExternalIdentity) (*model.User, error) {
	email := strings.TrimSpace(id.Email)
	if email == "" {
		return nil, ErrMissingEmail
	}

	u, err := b.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if u.GoogleID != nil && *u.GoogleID != "" {
			return u, nil
		}
		if id.Subject == "" {
			return u, nil
		}
		err := b.users.AttachGoogleID(ctx, u.ID, id.Subject)
		if errors.Is(err, repository.ErrGoogleIDTaken) {
			// The verified email decides the account; the subject stays
			// with the user that claimed it first.
			b.log.WithField("user_id", u.ID).Warn("google subject already linked to another user")
			return u, nil
		}
		if err != nil {
			return nil, fmt.Errorf("attach google id: %w", err)
		}
		return b.users.GetByID(ctx, u.ID)
	case errors.Is(err, repository.ErrUserNotFound):
		return b.create(ctx, email, id)
	default:
		return nil, fmt.Errorf("lookup by email: %w", err)
	}
}

func (b *IdentityBridge) create(ctx context.Context, email string, id ExternalIdentity) (*model.User, error) {
	first, last := nameParts(email, id)
	role := model.RoleStudent
	if _, ok := b.staffEmails[strings.ToLower(email)]; ok {
		role = model.RoleStaff
	}
	in := model.NewUser{
		Email:     email,
		FirstName: first,
		LastName:  last,
		Status:    model.StatusActive,
		Role:      role,
	}
	if id.Subject != "" {
		sub := id.Subject
		in.GoogleID = &sub
	}
	u, err := b.users.Create(ctx, in)
	switch {
	case errors.Is(err, repository.ErrEmailExists):
		// A concurrent login for the same email won the insert.
		return b.users.GetByEmail(ctx, email)
	case errors.Is(err, repository.ErrGoogleIDTaken):
		return b.users.GetByGoogleID(ctx, id.Subject)
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	if err := b.events.Publish(ctx, queue.NewUserEvent(queue.UserCreated, u, "google")); err != nil {
		b.log.WithError(err).WithField("user_id", u.ID).Warn("publish user.created failed")
	}
	return u, nil
}

// nameParts prefers the provider's structured names, then the display name,
// then the email local part.  Both results are non-empty.
func nameParts(email string, id ExternalIdentity) (string, string) {
	first := strings.TrimSpace(id.GivenName)
	last := strings.TrimSpace(id.FamilyName)
	if fields := strings.Fields(id.DisplayName); len(fields) > 0 {
		if first == "" {
			first = fields[0]
		}
		if last == "" {
			last = strings.Join(fields[1:], " ")
		}
	}
	if first == "" {
		first, _, _ = strings.Cut(email, "@")
	}
	if last == "" {
		last = "-"
	}
	return first, last
}
