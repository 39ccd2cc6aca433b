package dashboard

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/fieldforce/mrtracker/internal/platform/apperr"
	"github.com/fieldforce/mrtracker/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/dashboard")
	g.GET("/mr", h.MR, auth.RequireRole(auth.RoleMR))

	admin := g.Group("/admin", auth.RequireRole(auth.RoleAdmin))
	admin.GET("", h.Admin)
	admin.GET("/mr/:id", h.MRDetail)
	admin.GET("/mr/:id/export", h.ExportMRDetail)
	admin.GET("/analytics", h.Analytics)
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusNotFound, msgNotFound)
	}
	return id, nil
}

func detailQuery(c echo.Context) DetailQuery {
	return DetailQuery{
		StartDate: c.QueryParam("start_date"),
		EndDate:   c.QueryParam("end_date"),
		VisitType: c.QueryParam("visit_type"),
	}
}

func (h *Handler) MR(c echo.Context) error {
	p, _ := auth.PrincipalFromContext(c.Request().Context())
	out, err := h.svc.MRDashboard(c.Request().Context(), p)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Admin(c echo.Context) error {
	out, err := h.svc.AdminDashboard(c.Request().Context())
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) MRDetail(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	out, err := h.svc.MRDetail(c.Request().Context(), id, detailQuery(c))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) ExportMRDetail(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	f, filename, err := h.svc.ExportMRDetail(c.Request().Context(), id, detailQuery(c))
	if err != nil {
		return apperr.HTTP(err)
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		return apperr.HTTP(fmt.Errorf("write workbook: %w", err))
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	c.Response().Header().Set(echo.HeaderContentLength, strconv.Itoa(buf.Len()))
	return c.Blob(http.StatusOK, XLSXContentType, buf.Bytes())
}

func (h *Handler) Analytics(c echo.Context) error {
	out, err := h.svc.Analytics(c.Request().Context(), ParsePeriod(c.QueryParam("period")))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, out)
}
