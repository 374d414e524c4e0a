package handler

import (
	"net/url"
	"strconv"

	"github.com/iliyamo/auth-user-service/internal/model"
	"github.com/iliyamo/auth-user-service/internal/repository"
)

type selfLink struct {
	Self string `json:"self"`
}

// userView is the wire form of a user with its hypermedia link.
type userView struct {
	*model.User
	Links selfLink `json:"links"`
}

// linker builds absolute (or, without a base URL, root-relative) links.
type linker struct {
	base string
}

func (l linker) user(id int64) string {
	return l.base + "/api/users/" + strconv.FormatInt(id, 10)
}

// view wraps u for output.  Anonymous callers get contact and federated
// identity fields redacted.
func (l linker) view(u *model.User, anonymous bool) userView {
	cp := *u
	if anonymous {
		cp.Phone = nil
		cp.GoogleID = nil
	}
	return userView{User: &cp, Links: selfLink{Self: l.user(u.ID)}}
}

type pagination struct {
	TotalCount int64 `json:"totalCount"`
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

type listLinks struct {
	Self  string  `json:"self"`
	First string  `json:"first"`
	Last  string  `json:"last"`
	Next  *string `json:"next"`
	Prev  *string `json:"prev"`
}

type listResponse struct {
	Data       []userView `json:"data"`
	Pagination pagination `json:"pagination"`
	Links      listLinks  `json:"links"`
}

// listParams echoes only the filter and sort parameters the caller
// actually supplied.
func listParams(q repository.ListQuery) url.Values {
	v := url.Values{}
	if q.Filter.Role != "" {
		v.Set("role", q.Filter.Role)
	}
	if q.Filter.HomeArea != "" {
		v.Set("home_area", q.Filter.HomeArea)
	}
	if q.Filter.Status != "" {
		v.Set("status", q.Filter.Status)
	}
	if q.SortBy != "" {
		v.Set("sortBy", q.SortBy)
	}
	if q.SortOrder != "" {
		v.Set("sortOrder", q.SortOrder)
	}
	return v
}

func (l linker) listPage(params url.Values, page, pageSize int) string {
	v := url.Values{}
	for k, vals := range params {
		v[k] = vals
	}
	v.Set("page", strconv.Itoa(page))
	v.Set("page_size", strconv.Itoa(pageSize))
	return l.base + "/api/users?" + v.Encode()
}

func (l linker) list(q repository.ListQuery, res repository.ListResult, anonymous bool) listResponse {
	data := make([]userView, 0, len(res.Users))
	for _, u := range res.Users {
		data = append(data, l.view(u, anonymous))
	}
	params := listParams(q)
	last := res.TotalPages()
	out := listResponse{
		Data: data,
		Pagination: pagination{
			TotalCount: res.Total,
			Page:       res.Page,
			PageSize:   res.PageSize,
			TotalPages: last,
			HasNext:    res.HasNext(),
			HasPrev:    res.HasPrev(),
		},
		Links: listLinks{
			Self:  l.listPage(params, res.Page, res.PageSize),
			First: l.listPage(params, 1, res.PageSize),
			Last:  l.listPage(params, last, res.PageSize),
		},
	}
	if res.HasNext() {
		next := l.listPage(params, res.Page+1, res.PageSize)
		out.Links.Next = &next
	}
	if res.HasPrev() {
		prev := l.listPage(params, res.Page-1, res.PageSize)
		out.Links.Prev = &prev
	}
	return out
}
