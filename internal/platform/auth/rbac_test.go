package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func runGuard(t *testing.T, p *Principal, roles ...Role) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if p != nil {
		req = req.WithContext(WithPrincipal(req.Context(), *p))
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}
	return rec, RequireRole(roles...)(handler)(c)
}

func TestRequireRole_Allowed(t *testing.T) {
	rec, err := runGuard(t, &alice, RoleMR)
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestRequireRole_Denied(t *testing.T) {
	_, err := runGuard(t, &alice, RoleAdmin)
	assertStatus(t, err, http.StatusForbidden)
}

func TestRequireRole_AdminIsNotImplicitMR(t *testing.T) {
	admin := Principal{UserID: 1, Username: "root", Role: RoleAdmin}
	_, err := runGuard(t, &admin, RoleMR)
	assertStatus(t, err, http.StatusForbidden)
}

func TestRequireRole_AnyOf(t *testing.T) {
	admin := Principal{UserID: 1, Username: "root", Role: RoleAdmin}
	if _, err := runGuard(t, &admin, RoleMR, RoleAdmin); err != nil {
		t.Errorf("expected admin to pass an MR-or-admin guard, got %v", err)
	}
}

func TestRequireRole_NoPrincipal(t *testing.T) {
	_, err := runGuard(t, nil, RoleAdmin)
	assertStatus(t, err, http.StatusUnauthorized)
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"admin", RoleAdmin, false},
		{"MR", RoleMR, false},
		{"mr", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseRole(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRole(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseRole(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
