package visit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/fieldforce/mrtracker/internal/platform/auth"
)

func newTestHandler() (*Handler, *testEnv, *echo.Echo) {
	env := newTestEnv()
	return NewHandler(env.svc), env, echo.New()
}

func newRequest(method, body string, p auth.Principal) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, "/", nil)
	} else {
		req = httptest.NewRequest(method, "/", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	return req.WithContext(auth.WithPrincipal(req.Context(), p))
}

func httpStatus(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T (%v)", err, err)
	}
	return he.Code
}

// -- Handler Tests --

func TestHandler_CreateDoctorVisit_IgnoresClientOwnerAndClock(t *testing.T) {
	h, env, e := newTestHandler()
	d := env.doctor("Dr. House")

	body := `{"doctor_name":` + strconv.FormatInt(d.ID, 10) +
		`,"mr":42,"visit_date":"1999-01-01","visit_time":"01:02:03","visit_type":"task","notes":"hi"}`
	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodPost, body, alice), rec)
	if err := h.CreateDoctorVisit(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var got map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["mr"] != float64(alice.UserID) {
		t.Errorf("expected mr %d, got %v", alice.UserID, got["mr"])
	}
	if got["visit_date"] != "2026-03-14" || got["visit_time"] != "15:04:05" {
		t.Errorf("expected server date/time, got %v %v", got["visit_date"], got["visit_time"])
	}
	if got["visit_type"] != "self" {
		t.Errorf("expected visit_type self, got %v", got["visit_type"])
	}
	if got["doctor_name"] != float64(d.ID) || got["doctor_name_display"] != "Dr. House" {
		t.Errorf("unexpected doctor fields %v / %v", got["doctor_name"], got["doctor_name_display"])
	}
}

func TestHandler_CreateDoctorVisit_BadDoctor(t *testing.T) {
	h, _, e := newTestHandler()
	c := e.NewContext(newRequest(http.MethodPost, `{"doctor_name":12345}`, alice), httptest.NewRecorder())
	if got := httpStatus(t, h.CreateDoctorVisit(c)); got != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", got)
	}
}

func TestHandler_ListDoctorVisits_Envelope(t *testing.T) {
	h, env, e := newTestHandler()
	d := env.doctor("Dr. House")
	for i := 0; i < 3; i++ {
		_, _ = env.svc.CreateDoctorVisit(newRequest(http.MethodGet, "", alice).Context(), alice, DoctorVisitInput{DoctorID: &d.ID})
	}

	req := httptest.NewRequest(http.MethodGet, "/api/visits/doctor-visits?limit=2", nil)
	req = req.WithContext(auth.WithPrincipal(req.Context(), alice))
	rec := httptest.NewRecorder()
	if err := h.ListDoctorVisits(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var body struct {
		Data    []DoctorVisit `json:"data"`
		Total   int           `json:"total"`
		HasMore bool          `json:"has_more"`
		Next    *string       `json:"next"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 3 || len(body.Data) != 2 || !body.HasMore {
		t.Errorf("unexpected envelope %+v", body)
	}
	if body.Next == nil || !strings.Contains(*body.Next, "offset=2") {
		t.Errorf("expected next link with offset=2, got %v", body.Next)
	}
	if body.Data[0].ID < body.Data[1].ID {
		t.Error("expected newest first")
	}
}

func TestHandler_ListShopVisits_EmptyIsArray(t *testing.T) {
	h, _, e := newTestHandler()
	rec := httptest.NewRecorder()
	if err := h.ListShopVisits(e.NewContext(newRequest(http.MethodGet, "", bob), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"data":[]`) {
		t.Errorf("expected empty array, got %s", rec.Body.String())
	}
}

func TestHandler_GetShopVisit_OtherMR(t *testing.T) {
	h, env, e := newTestHandler()
	v, _ := env.svc.CreateShopVisit(newRequest(http.MethodGet, "", alice).Context(), alice, ShopVisitInput{ShopName: ptr("MedPlus")})

	c := e.NewContext(newRequest(http.MethodGet, "", bob), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(strconv.FormatInt(v.ID, 10))
	if got := httpStatus(t, h.GetShopVisit(c)); got != http.StatusForbidden {
		t.Errorf("expected 403, got %d", got)
	}

	rec := httptest.NewRecorder()
	c = e.NewContext(newRequest(http.MethodGet, "", root), rec)
	c.SetParamNames("id")
	c.SetParamValues(strconv.FormatInt(v.ID, 10))
	if err := h.GetShopVisit(c); err != nil {
		t.Fatalf("admin: unexpected error %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_GetDoctorVisit_BadID(t *testing.T) {
	h, _, e := newTestHandler()
	for _, id := range []string{"abc", "0", "999"} {
		c := e.NewContext(newRequest(http.MethodGet, "", alice), httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues(id)
		if got := httpStatus(t, h.GetDoctorVisit(c)); got != http.StatusNotFound {
			t.Errorf("id %q: expected 404, got %d", id, got)
		}
	}
}

func TestHandler_PatchShopVisit(t *testing.T) {
	h, env, e := newTestHandler()
	v, _ := env.svc.CreateShopVisit(newRequest(http.MethodGet, "", alice).Context(), alice, ShopVisitInput{ShopName: ptr("MedPlus")})

	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodPatch, `{"completed":true}`, alice), rec)
	c.SetParamNames("id")
	c.SetParamValues(strconv.FormatInt(v.ID, 10))
	if err := h.PatchShopVisit(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"completed":true`) || !strings.Contains(rec.Body.String(), `"shop_name":"MedPlus"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_CreateDoctor(t *testing.T) {
	h, _, e := newTestHandler()
	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodPost, `{"name":"Dr. Grey","specialization":"Surgery"}`, root), rec)
	if err := h.CreateDoctor(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
}
