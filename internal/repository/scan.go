package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/auth-user-service/internal/model"
)

const userColumns = `id, email, first_name, last_name, phone, status, role, home_area,
	preferred_departure_time, google_id, created_at, updated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// dbTime scans DATETIME columns.  MySQL with parseTime hands back a
// time.Time while SQLite may return text, so both shapes are accepted.
type dbTime struct{ t time.Time }

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
}

func (d *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		d.t = v.UTC()
		return nil
	case []byte:
		return d.parse(string(v))
	case string:
		return d.parse(v)
	case nil:
		d.t = time.Time{}
		return nil
	}
	return fmt.Errorf("cannot scan %T into timestamp", src)
}

func (d *dbTime) parse(s string) error {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d.t = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

func nullablePtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// scanUser reads one row selected with userColumns.
func scanUser(rs rowScanner) (*model.User, error) {
	var (
		u                                    model.User
		phone, homeArea, departure, googleID sql.NullString
		status, role                         string
		created, updated                     dbTime
	)
	if err := rs.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &phone, &status, &role,
		&homeArea, &departure, &googleID, &created, &updated); err != nil {
		return nil, err
	}
	u.Phone = nullablePtr(phone)
	u.HomeArea = nullablePtr(homeArea)
	u.PreferredDepartureTime = nullablePtr(departure)
	u.GoogleID = nullablePtr(googleID)
	u.Status = model.Status(status)
	u.Role = model.Role(role)
	u.CreatedAt = created.t
	u.UpdatedAt = updated.t
	return &u, nil
}
