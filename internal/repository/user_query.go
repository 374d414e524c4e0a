package repository

import (
	"fmt"
	"math"
	"strings"

	"github.com/iliyamo/auth-user-service/internal/model"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100

	// MaxPage keeps (page-1)*pageSize from overflowing the row offset.
	MaxPage = math.MaxInt32
)

// sortColumns maps every accepted sortBy value to its column.  Both the
// camelCase wire names and the snake_case column names are accepted.
var sortColumns = map[string]string{
	"id":                       "id",
	"email":                    "email",
	"firstName":                "first_name",
	"first_name":               "first_name",
	"lastName":                 "last_name",
	"last_name":                "last_name",
	"status":                   "status",
	"role":                     "role",
	"homeArea":                 "home_area",
	"home_area":                "home_area",
	"preferredDepartureTime":   "preferred_departure_time",
	"preferred_departure_time": "preferred_departure_time",
	"createdAt":                "created_at",
	"created_at":               "created_at",
	"updatedAt":                "updated_at",
	"updated_at":               "updated_at",
}

// UserFilter is a conjunction of exact-match conditions.  Empty fields are
// ignored, so the zero value matches every user.
type UserFilter struct {
	Role     string
	HomeArea string
	Status   string
}

// ListQuery describes one page of the user listing.
type ListQuery struct {
	Filter    UserFilter
	SortBy    string
	SortOrder string
	Page      int
	PageSize  int
}

// ListResult holds one page of users plus the total matching the filter.
type ListResult struct {
	Users    []*model.User
	Total    int64
	Page     int
	PageSize int
}

// TotalPages is never less than one so an empty listing still has a last page.
func (r ListResult) TotalPages() int {
	if r.PageSize <= 0 || r.Total == 0 {
		return 1
	}
	return int((r.Total + int64(r.PageSize) - 1) / int64(r.PageSize))
}

func (r ListResult) HasNext() bool { return r.Page < r.TotalPages() }

func (r ListResult) HasPrev() bool { return r.Page > 1 }

// ClampPage applies the default and bounds used by List.
func ClampPage(page, pageSize int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if page > MaxPage {
		page = MaxPage
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// where renders the filter as a WHERE condition with positional args.
func (f UserFilter) where() (string, []any, error) {
	conds := []string{}
	args := []any{}
	if f.Role != "" {
		r, ok := model.ParseRole(f.Role)
		if !ok {
			return "", nil, fmt.Errorf("%w: role %q", ErrInvalidFilter, f.Role)
		}
		conds = append(conds, "role = ?")
		args = append(args, string(r))
	}
	if f.HomeArea != "" {
		conds = append(conds, "home_area = ?")
		args = append(args, f.HomeArea)
	}
	if f.Status != "" {
		s, ok := model.ParseStatus(f.Status)
		if !ok {
			return "", nil, fmt.Errorf("%w: status %q", ErrInvalidFilter, f.Status)
		}
		conds = append(conds, "status = ?")
		args = append(args, string(s))
	}
	if len(conds) == 0 {
		return "1=1", args, nil
	}
	return strings.Join(conds, " AND "), args, nil
}

// orderBy resolves sortBy and sortOrder into an ORDER BY clause.  Only
// columns from sortColumns are ever interpolated.  id breaks ties so pages
// are stable.
func orderBy(sortBy, sortOrder string) (string, error) {
	col := "created_at"
	if sortBy = strings.TrimSpace(sortBy); sortBy != "" {
		c, ok := sortColumns[sortBy]
		if !ok {
			return "", fmt.Errorf("%w: unknown sort field %q", ErrInvalidSort, sortBy)
		}
		col = c
	}
	dir := "DESC"
	if sortOrder = strings.ToUpper(strings.TrimSpace(sortOrder)); sortOrder != "" {
		if sortOrder != "ASC" && sortOrder != "DESC" {
			return "", fmt.Errorf("%w: sort order must be ASC or DESC", ErrInvalidSort)
		}
		dir = sortOrder
	}
	if col == "id" {
		return "id " + dir, nil
	}
	return col + " " + dir + ", id " + dir, nil
}
