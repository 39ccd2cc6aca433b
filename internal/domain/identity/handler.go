package identity

import (
	"net/http"

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

// RegisterRoutes mounts the login endpoints on public and the profile
// endpoints on api, which must already carry auth.Middleware.
func (h *Handler) RegisterRoutes(public *echo.Group, api *echo.Group) {
	pub := public.Group("/auth")
	pub.POST("/mr-login", h.MRLogin)
	pub.POST("/admin-login", h.AdminLogin)
	pub.POST("/logout", h.Logout)
	pub.POST("/token/refresh", h.Refresh)

	authed := api.Group("/auth")
	authed.GET("/me", h.Me)

	admin := api.Group("/auth", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/mrs", h.ListMRs)
}

func (h *Handler) MRLogin(c echo.Context) error {
	return h.login(c, auth.RoleMR)
}

func (h *Handler) AdminLogin(c echo.Context) error {
	return h.login(c, auth.RoleAdmin)
}

func (h *Handler) login(c echo.Context, role auth.Role) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	resp, err := h.svc.Login(c.Request().Context(), role, req)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Logout answers 205 on success. Every failure, including a token that
// cannot be parsed, is a 400.
func (h *Handler) Logout(c echo.Context) error {
	var req RefreshRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.Logout(c.Request().Context(), req.Refresh); err != nil {
		if apperr.Is(err, apperr.KindValidation) {
			return apperr.HTTP(err)
		}
		he := echo.NewHTTPError(http.StatusBadRequest, "Logout failed")
		he.Internal = err
		return he
	}
	return c.NoContent(http.StatusResetContent)
}

func (h *Handler) Refresh(c echo.Context) error {
	var req RefreshRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	resp, err := h.svc.Refresh(c.Request().Context(), req.Refresh)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Me(c echo.Context) error {
	u, err := h.svc.Me(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) ListMRs(c echo.Context) error {
	mrs, err := h.svc.ListMRs(c.Request().Context())
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, mrs)
}
