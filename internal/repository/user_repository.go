package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iliyamo/auth-user-service/internal/model"
	"github.com/iliyamo/auth-user-service/internal/utils"
)

// DBTX is the subset of the persistence gateway the repository needs.
// *database.Gateway satisfies it.
type DBTX interface {
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) *sql.Row
}

var tracer = otel.Tracer("github.com/iliyamo/auth-user-service/internal/repository")

// UserRepo encapsulates every query against the users table.
type UserRepo struct {
	db  DBTX
	now func() time.Time
}

// NewUserRepo constructs a UserRepo with the provided gateway.
func NewUserRepo(db DBTX) *UserRepo {
	return &UserRepo{db: db, now: time.Now}
}

// clock returns the current time at the precision DATETIME(6) keeps.
func (r *UserRepo) clock() time.Time {
	return r.now().UTC().Truncate(time.Microsecond)
}

func startSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "UserRepo."+op, trace.WithAttributes(
		attribute.String("db.system", "sql"),
		attribute.String("db.sql.table", "users"),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// List returns one page of users matching q.Filter, ordered by q.SortBy,
// together with the total number of matches.
func (r *UserRepo) List(ctx context.Context, q ListQuery) (res ListResult, err error) {
	ctx, span := startSpan(ctx, "List")
	defer func() { endSpan(span, err) }()

	cond, args, err := q.Filter.where()
	if err != nil {
		return ListResult{}, err
	}
	order, err := orderBy(q.SortBy, q.SortOrder)
	if err != nil {
		return ListResult{}, err
	}
	page, pageSize := ClampPage(q.Page, q.PageSize)

	var total int64
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM users WHERE "+cond, args...).Scan(&total); err != nil {
		return ListResult{}, err
	}

	dataSQL := "SELECT " + userColumns + " FROM users WHERE " + cond +
		" ORDER BY " + order + " LIMIT ? OFFSET ?"
	argsData := append(append([]any{}, args...), pageSize, int64(page-1)*int64(pageSize))

	rows, err := r.db.Query(ctx, dataSQL, argsData...)
	if err != nil {
		return ListResult{}, err
	}
	defer rows.Close()

	out := make([]*model.User, 0, pageSize)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return ListResult{}, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return ListResult{}, err
	}
	span.SetAttributes(attribute.Int64("users.total", total), attribute.Int("users.page", page))
	return ListResult{Users: out, Total: total, Page: page, PageSize: pageSize}, nil
}

// Count returns the number of users matching f.
func (r *UserRepo) Count(ctx context.Context, f UserFilter) (total int64, err error) {
	ctx, span := startSpan(ctx, "Count")
	defer func() { endSpan(span, err) }()

	cond, args, err := f.where()
	if err != nil {
		return 0, err
	}
	err = r.db.QueryRow(ctx, "SELECT COUNT(*) FROM users WHERE "+cond, args...).Scan(&total)
	return total, err
}

// GetByID fetches a user by id.  It returns ErrUserNotFound if no row is found.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (u *model.User, err error) {
	ctx, span := startSpan(ctx, "GetByID")
	defer func() { endSpan(span, err) }()
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
}

// GetByEmail fetches a user by exact email.  It returns ErrUserNotFound if no
// row is found.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (u *model.User, err error) {
	ctx, span := startSpan(ctx, "GetByEmail")
	defer func() { endSpan(span, err) }()
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", email)
}

// GetByGoogleID fetches the user linked to a Google subject.  It returns
// ErrUserNotFound if no row is found.
func (r *UserRepo) GetByGoogleID(ctx context.Context, googleID string) (u *model.User, err error) {
	ctx, span := startSpan(ctx, "GetByGoogleID")
	defer func() { endSpan(span, err) }()
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE google_id = ?", googleID)
}

func (r *UserRepo) getOne(ctx context.Context, q string, arg any) (*model.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, q, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// Create validates and inserts a user, then reads it back so callers get
// the storage-assigned id and timestamps.  An existing email is reported as
// ErrEmailExists and a linked Google subject as ErrGoogleIDTaken, both from
// the explicit checks and from the unique indexes.
func (r *UserRepo) Create(ctx context.Context, in model.NewUser) (u *model.User, err error) {
	ctx, span := startSpan(ctx, "Create")
	defer func() { endSpan(span, err) }()

	in.Email = strings.TrimSpace(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if in.Email == "" || in.FirstName == "" || in.LastName == "" {
		return nil, fmt.Errorf("%w: email, firstName and lastName are required", ErrInvalidUser)
	}
	if in.Status == "" {
		in.Status = model.StatusActive
	}
	if in.Role == "" {
		in.Role = model.RoleStudent
	}
	if !in.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidUser, in.Status)
	}
	if !in.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidUser, in.Role)
	}
	departure, err := normalizeDeparture(in.PreferredDepartureTime)
	if err != nil {
		return nil, err
	}

	if _, err := r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", in.Email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}
	if in.GoogleID != nil {
		if _, err := r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE google_id = ?", *in.GoogleID); err == nil {
			return nil, ErrGoogleIDTaken
		} else if !errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
	}

	now := r.clock()
	const qInsert = `INSERT INTO users (email, first_name, last_name, phone, status, role, home_area,
		preferred_departure_time, google_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.Exec(ctx, qInsert, in.Email, in.FirstName, in.LastName, in.Phone,
		string(in.Status), string(in.Role), in.HomeArea, departure, in.GoogleID, now, now)
	if err != nil {
		if cerr := conflictError(err); cerr != nil {
			return nil, cerr
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("user.id", id))
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
}

// Update applies a partial update.  Only the fields present in p change;
// updated_at always moves forward, even when p is empty.
func (r *UserRepo) Update(ctx context.Context, id int64, p model.UserPatch) (u *model.User, err error) {
	ctx, span := startSpan(ctx, "Update")
	defer func() { endSpan(span, err) }()

	current, err := r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	if err != nil {
		return nil, err
	}

	sets := []string{}
	args := []any{}
	set := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if p.Email != nil {
		email := strings.TrimSpace(*p.Email)
		if email == "" {
			return nil, fmt.Errorf("%w: email cannot be empty", ErrInvalidUser)
		}
		if email != current.Email {
			other, err := r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", email)
			switch {
			case err == nil && other.ID != id:
				return nil, ErrEmailExists
			case err != nil && !errors.Is(err, ErrUserNotFound):
				return nil, err
			}
		}
		set("email", email)
	}
	if p.FirstName != nil {
		v := strings.TrimSpace(*p.FirstName)
		if v == "" {
			return nil, fmt.Errorf("%w: firstName cannot be empty", ErrInvalidUser)
		}
		set("first_name", v)
	}
	if p.LastName != nil {
		v := strings.TrimSpace(*p.LastName)
		if v == "" {
			return nil, fmt.Errorf("%w: lastName cannot be empty", ErrInvalidUser)
		}
		set("last_name", v)
	}
	if p.Phone != nil {
		set("phone", p.Phone.Ptr())
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidUser, *p.Status)
		}
		set("status", string(*p.Status))
	}
	if p.Role != nil {
		if !p.Role.Valid() {
			return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidUser, *p.Role)
		}
		set("role", string(*p.Role))
	}
	if p.HomeArea != nil {
		set("home_area", p.HomeArea.Ptr())
	}
	if p.PreferredDepartureTime != nil {
		departure, err := normalizeDeparture(p.PreferredDepartureTime.Ptr())
		if err != nil {
			return nil, err
		}
		set("preferred_departure_time", departure)
	}

	set("updated_at", r.nextUpdatedAt(current.UpdatedAt))

	args = append(args, id)
	res, err := r.db.Exec(ctx, "UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		if cerr := conflictError(err); cerr != nil {
			return nil, cerr
		}
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrUserNotFound
	}
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
}

// nextUpdatedAt returns the timestamp for a write to a row last written at
// prev.  updated_at must strictly increase even when two writes share a
// clock tick.
func (r *UserRepo) nextUpdatedAt(prev time.Time) time.Time {
	now := r.clock()
	if !now.After(prev) {
		now = prev.Add(time.Microsecond)
	}
	return now
}

// AttachGoogleID records the federated subject on a user that has none yet.
// A user that already carries an id is left unchanged.  A subject linked to
// another user yields ErrGoogleIDTaken.
func (r *UserRepo) AttachGoogleID(ctx context.Context, id int64, googleID string) (err error) {
	ctx, span := startSpan(ctx, "AttachGoogleID")
	defer func() { endSpan(span, err) }()

	current, err := r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	if err != nil {
		return err
	}
	if current.GoogleID != nil {
		return nil
	}

	const q = "UPDATE users SET google_id = ?, updated_at = ? WHERE id = ? AND google_id IS NULL"
	if _, err := r.db.Exec(ctx, q, googleID, r.nextUpdatedAt(current.UpdatedAt), id); err != nil {
		if cerr := conflictError(err); cerr != nil {
			return cerr
		}
		return err
	}
	return nil
}

// Delete removes a user permanently.  It returns ErrUserNotFound when no
// row was removed.
func (r *UserRepo) Delete(ctx context.Context, id int64) (err error) {
	ctx, span := startSpan(ctx, "Delete")
	defer func() { endSpan(span, err) }()

	res, err := r.db.Exec(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// normalizeDeparture returns nil for absent or blank input and the
// HH:mm:ss form otherwise.
func normalizeDeparture(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	v, err := utils.NormalizeTimeOfDay(*raw)
	if err != nil {
		return nil, fmt.Errorf("%w: preferredDepartureTime: %v", ErrInvalidUser, err)
	}
	if v == "" {
		return nil, nil
	}
	return &v, nil
}
