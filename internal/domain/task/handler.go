package task

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/fieldforce/mrtracker/internal/platform/apperr"
	"github.com/fieldforce/mrtracker/internal/platform/auth"
	"github.com/fieldforce/mrtracker/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the task endpoints. Creation is admin-only, but the
// service performs that check itself so self-assignment is reported first.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/tasks/doctor-tasks", auth.RequireRole(auth.RoleAdmin, auth.RoleMR))
	g.GET("", h.ListTasks)
	g.POST("", h.CreateTask)
	g.GET("/:id", h.GetTask)
	g.POST("/:id/complete", h.CompleteTask)
}

func caller(c echo.Context) auth.Principal {
	p, _ := auth.PrincipalFromContext(c.Request().Context())
	return p
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusNotFound, msgNotFound)
	}
	return id, nil
}

func (h *Handler) CreateTask(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		he := echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		he.Internal = err
		return he
	}
	t, err := h.svc.CreateTask(c.Request().Context(), caller(c), in)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) ListTasks(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListTasks(c.Request().Context(), caller(c), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	if items == nil {
		items = []*Task{}
	}
	return c.JSON(http.StatusOK, pagination.Page(c, pg, items, total))
}

func (h *Handler) GetTask(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	t, err := h.svc.GetTask(c.Request().Context(), caller(c), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, t)
}

// CompleteTask accepts an empty body; GPS and notes are optional.
func (h *Handler) CompleteTask(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in CompleteInput
	if err := c.Bind(&in); err != nil {
		he := echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		he.Internal = err
		return he
	}
	res, err := h.svc.CompleteTask(c.Request().Context(), caller(c), id, in)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, res)
}
