package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/auth-user-service/internal/middleware"
	"github.com/iliyamo/auth-user-service/internal/model"
	"github.com/iliyamo/auth-user-service/internal/queue"
	"github.com/iliyamo/auth-user-service/internal/repository"
)

// UserStore is the repository surface the user endpoints need.
type UserStore interface {
	List(ctx context.Context, q repository.ListQuery) (repository.ListResult, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
	Create(ctx context.Context, in model.NewUser) (*model.User, error)
	Update(ctx context.Context, id int64, p model.UserPatch) (*model.User, error)
	Delete(ctx context.Context, id int64) error
}

// UserHandler serves CRUD over /api/users.
type UserHandler struct {
	Users  UserStore
	Events queue.Publisher
	Log    logrus.FieldLogger
	links  linker
}

func NewUserHandler(users UserStore, events queue.Publisher, log logrus.FieldLogger, baseURL string) *UserHandler {
	if events == nil {
		events = queue.Noop{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &UserHandler{Users: users, Events: events, Log: log, links: linker{base: strings.TrimRight(baseURL, "/")}}
}

// ----- DTOs -----

type createUserReq struct {
	Email                  string  `json:"email"`
	FirstName              string  `json:"firstName"`
	LastName               string  `json:"lastName"`
	Phone                  *string `json:"phone"`
	Status                 string  `json:"status"`
	Role                   string  `json:"role"`
	HomeArea               *string `json:"homeArea"`
	PreferredDepartureTime *string `json:"preferredDepartureTime"`
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, validationError("invalid user id")
	}
	return id, nil
}

func (h *UserHandler) publish(ctx context.Context, kind string, u *model.User) {
	if err := h.Events.Publish(ctx, queue.NewUserEvent(kind, u, "api")); err != nil {
		h.Log.WithError(err).WithField("user_id", u.ID).Warn("publish " + kind + " failed")
	}
}

// List: GET /api/users?role=&home_area=&status=&sortBy=&sortOrder=&page=&page_size=
func (h *UserHandler) List(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	ps, _ := strconv.Atoi(c.QueryParam("page_size"))
	page, ps = repository.ClampPage(page, ps)

	q := repository.ListQuery{
		Filter: repository.UserFilter{
			Role:     strings.TrimSpace(c.QueryParam("role")),
			HomeArea: strings.TrimSpace(c.QueryParam("home_area")),
			Status:   strings.TrimSpace(c.QueryParam("status")),
		},
		SortBy:    strings.TrimSpace(c.QueryParam("sortBy")),
		SortOrder: strings.ToUpper(strings.TrimSpace(c.QueryParam("sortOrder"))),
		Page:      page,
		PageSize:  ps,
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Users.List(ctx, q)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.links.list(q, res, middleware.CurrentUser(c) == nil))
}

// Get: GET /api/users/:id
func (h *UserHandler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.links.view(u, middleware.CurrentUser(c) == nil))
}

// Create: POST /api/users
func (h *UserHandler) Create(c echo.Context) error {
	var req createUserReq
	if err := c.Bind(&req); err != nil {
		return validationError("invalid JSON body")
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "" {
		return validationError("email, firstName and lastName are required")
	}
	in := model.NewUser{
		Email:                  req.Email,
		FirstName:              req.FirstName,
		LastName:               req.LastName,
		Phone:                  req.Phone,
		HomeArea:               req.HomeArea,
		PreferredDepartureTime: req.PreferredDepartureTime,
	}
	if req.Status != "" {
		st, ok := model.ParseStatus(req.Status)
		if !ok {
			return validationError("status must be one of active, inactive, suspended")
		}
		in.Status = st
	}
	if req.Role != "" {
		r, ok := model.ParseRole(req.Role)
		if !ok {
			return validationError("role must be one of student, staff, faculty, other")
		}
		in.Role = r
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.Create(ctx, in)
	if err != nil {
		return err
	}
	h.publish(ctx, queue.UserCreated, u)
	c.Response().Header().Set(echo.HeaderLocation, h.links.user(u.ID))
	return c.JSON(http.StatusCreated, h.links.view(u, false))
}

// Update: PUT /api/users/:id with a partial body.  Only keys present in the
// body change; null clears phone, homeArea and preferredDepartureTime.
func (h *UserHandler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	patch, err := decodePatch(c.Request().Body)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.Update(ctx, id, patch)
	if err != nil {
		return err
	}
	h.publish(ctx, queue.UserUpdated, u)
	return c.JSON(http.StatusOK, h.links.view(u, false))
}

// Delete: DELETE /api/users/:id
func (h *UserHandler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Users.Delete(ctx, id); err != nil {
		return err
	}
	h.publish(ctx, queue.UserDeleted, &model.User{ID: id})
	return c.JSON(http.StatusOK, echo.Map{"message": "User deleted successfully"})
}

// decodePatch reads a JSON object into a UserPatch, keeping the difference
// between an absent key and an explicit null.  Unknown keys are ignored.
func decodePatch(body io.Reader) (model.UserPatch, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		return model.UserPatch{}, validationError("invalid JSON body")
	}

	var p model.UserPatch
	required := func(key string) (*string, error) {
		msg, ok := raw[key]
		if !ok {
			return nil, nil
		}
		var s *string
		if err := json.Unmarshal(msg, &s); err != nil {
			return nil, validationError(key + " must be a string")
		}
		if s == nil || strings.TrimSpace(*s) == "" {
			return nil, validationError(key + " cannot be empty")
		}
		return s, nil
	}
	optional := func(key string) (*model.Optional, error) {
		msg, ok := raw[key]
		if !ok {
			return nil, nil
		}
		if bytes.Equal(bytes.TrimSpace(msg), []byte("null")) {
			return &model.Optional{Null: true}, nil
		}
		var s string
		if err := json.Unmarshal(msg, &s); err != nil {
			return nil, validationError(key + " must be a string or null")
		}
		return &model.Optional{Value: s}, nil
	}

	var err error
	if p.Email, err = required("email"); err != nil {
		return p, err
	}
	if p.FirstName, err = required("firstName"); err != nil {
		return p, err
	}
	if p.LastName, err = required("lastName"); err != nil {
		return p, err
	}
	if p.Phone, err = optional("phone"); err != nil {
		return p, err
	}
	if p.HomeArea, err = optional("homeArea"); err != nil {
		return p, err
	}
	if p.PreferredDepartureTime, err = optional("preferredDepartureTime"); err != nil {
		return p, err
	}
	if s, err := required("status"); err != nil {
		return p, err
	} else if s != nil {
		st, ok := model.ParseStatus(*s)
		if !ok {
			return p, validationError("status must be one of active, inactive, suspended")
		}
		p.Status = &st
	}
	if s, err := required("role"); err != nil {
		return p, err
	} else if s != nil {
		r, ok := model.ParseRole(*s)
		if !ok {
			return p, validationError("role must be one of student, staff, faculty, other")
		}
		p.Role = &r
	}
	return p, nil
}
