package visit

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

// RegisterRoutes mounts the visit endpoints. Both roles may use them; row
// ownership is enforced by the service.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/visits", auth.RequireRole(auth.RoleAdmin, auth.RoleMR))

	g.GET("/doctors", h.ListDoctors)
	g.POST("/doctors", h.CreateDoctor)
	g.GET("/doctors/:id", h.GetDoctor)
	g.PUT("/doctors/:id", h.UpdateDoctor)
	g.PATCH("/doctors/:id", h.PatchDoctor)

	g.GET("/doctor-visits", h.ListDoctorVisits)
	g.POST("/doctor-visits", h.CreateDoctorVisit)
	g.GET("/doctor-visits/:id", h.GetDoctorVisit)
	g.PUT("/doctor-visits/:id", h.UpdateDoctorVisit)
	g.PATCH("/doctor-visits/:id", h.PatchDoctorVisit)

	g.GET("/shop-visits", h.ListShopVisits)
	g.POST("/shop-visits", h.CreateShopVisit)
	g.GET("/shop-visits/:id", h.GetShopVisit)
	g.PUT("/shop-visits/:id", h.UpdateShopVisit)
	g.PATCH("/shop-visits/:id", h.PatchShopVisit)
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

func bindError(err error) error {
	he := echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	he.Internal = err
	return he
}

// -- Doctor --

func (h *Handler) ListDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListDoctors(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	if items == nil {
		items = []*Doctor{}
	}
	return c.JSON(http.StatusOK, pagination.Page(c, pg, items, total))
}

func (h *Handler) CreateDoctor(c echo.Context) error {
	var in DoctorInput
	if err := c.Bind(&in); err != nil {
		return bindError(err)
	}
	d, err := h.svc.CreateDoctor(c.Request().Context(), caller(c), in)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetDoctor(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.GetDoctor(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) UpdateDoctor(c echo.Context) error { return h.updateDoctor(c, false) }
func (h *Handler) PatchDoctor(c echo.Context) error  { return h.updateDoctor(c, true) }

func (h *Handler) updateDoctor(c echo.Context, partial bool) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in DoctorInput
	if err := c.Bind(&in); err != nil {
		return bindError(err)
	}
	d, err := h.svc.UpdateDoctor(c.Request().Context(), id, in, partial)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}

// -- DoctorVisit --

func (h *Handler) ListDoctorVisits(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListDoctorVisits(c.Request().Context(), caller(c), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	if items == nil {
		items = []*DoctorVisit{}
	}
	return c.JSON(http.StatusOK, pagination.Page(c, pg, items, total))
}

func (h *Handler) CreateDoctorVisit(c echo.Context) error {
	var in DoctorVisitInput
	if err := c.Bind(&in); err != nil {
		return bindError(err)
	}
	v, err := h.svc.CreateDoctorVisit(c.Request().Context(), caller(c), in)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) GetDoctorVisit(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	v, err := h.svc.GetDoctorVisit(c.Request().Context(), caller(c), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) UpdateDoctorVisit(c echo.Context) error { return h.updateDoctorVisit(c, false) }
func (h *Handler) PatchDoctorVisit(c echo.Context) error  { return h.updateDoctorVisit(c, true) }

func (h *Handler) updateDoctorVisit(c echo.Context, partial bool) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in DoctorVisitInput
	if err := c.Bind(&in); err != nil {
		return bindError(err)
	}
	v, err := h.svc.UpdateDoctorVisit(c.Request().Context(), caller(c), id, in, partial)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, v)
}

// -- ShopVisit --

func (h *Handler) ListShopVisits(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListShopVisits(c.Request().Context(), caller(c), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	if items == nil {
		items = []*ShopVisit{}
	}
	return c.JSON(http.StatusOK, pagination.Page(c, pg, items, total))
}

func (h *Handler) CreateShopVisit(c echo.Context) error {
	var in ShopVisitInput
	if err := c.Bind(&in); err != nil {
		return bindError(err)
	}
	v, err := h.svc.CreateShopVisit(c.Request().Context(), caller(c), in)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) GetShopVisit(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	v, err := h.svc.GetShopVisit(c.Request().Context(), caller(c), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) UpdateShopVisit(c echo.Context) error { return h.updateShopVisit(c, false) }
func (h *Handler) PatchShopVisit(c echo.Context) error  { return h.updateShopVisit(c, true) }

func (h *Handler) updateShopVisit(c echo.Context, partial bool) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in ShopVisitInput
	if err := c.Bind(&in); err != nil {
		return bindError(err)
	}
	v, err := h.svc.UpdateShopVisit(c.Request().Context(), caller(c), id, in, partial)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, v)
}
