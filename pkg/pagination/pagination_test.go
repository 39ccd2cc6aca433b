package pagination

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/labstack/echo/v4"
)

func ctxFor(target string) echo.Context {
	return echo.New().NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
}

func TestFromContext(t *testing.T) {
	tests := []struct {
		query string
		want  Params
	}{
		{"", Params{Limit: DefaultLimit}},
		{"?limit=50&offset=10", Params{Limit: 50, Offset: 10}},
		{"?limit=1000", Params{Limit: MaxLimit}},
		{"?limit=0", Params{Limit: DefaultLimit}},
		{"?limit=-3&offset=-7", Params{Limit: DefaultLimit}},
		{"?limit=ten&offset=x", Params{Limit: DefaultLimit}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			if got := FromContext(ctxFor("/api/tasks/doctor-tasks" + tt.query)); got != tt.want {
				t.Errorf("FromContext(%q) = %+v, want %+v", tt.query, got, tt.want)
			}
		})
	}
}

func TestPage_Links(t *testing.T) {
	tests := []struct {
		name     string
		params   Params
		total    int
		hasMore  bool
		next     string
		previous string
	}{
		{"first page", Params{Limit: 2}, 5, true, "2", ""},
		{"middle page", Params{Limit: 2, Offset: 2}, 5, true, "4", "0"},
		{"last page", Params{Limit: 2, Offset: 4}, 5, false, "", "2"},
		{"short offset", Params{Limit: 10, Offset: 3}, 5, false, "", "0"},
		{"empty", Params{Limit: 20}, 0, false, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ctxFor("/api/visits/doctor-visits?visit_type=task&limit=2")
			r := Page(c, tt.params, []int{}, tt.total)

			if r.HasMore != tt.hasMore {
				t.Errorf("HasMore = %v, want %v", r.HasMore, tt.hasMore)
			}
			checkLink(t, "next", r.Next, tt.next, tt.params.Limit)
			checkLink(t, "previous", r.Previous, tt.previous, tt.params.Limit)
		})
	}
}

func checkLink(t *testing.T, name string, link *string, wantOffset string, limit int) {
	t.Helper()
	if wantOffset == "" {
		if link != nil {
			t.Errorf("%s = %q, want none", name, *link)
		}
		return
	}
	if link == nil {
		t.Fatalf("%s missing, want offset %s", name, wantOffset)
	}
	u, err := url.Parse(*link)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	q := u.Query()
	if u.Path != "/api/visits/doctor-visits" || q.Get("offset") != wantOffset || q.Get("visit_type") != "task" {
		t.Errorf("%s = %q, want offset %s with filters kept", name, *link, wantOffset)
	}
	if q.Get("limit") != strconv.Itoa(limit) {
		t.Errorf("%s limit = %q, want %d", name, q.Get("limit"), limit)
	}
}

func TestPage_JSON(t *testing.T) {
	c := ctxFor("/api/visits/shop-visits")
	raw, err := json.Marshal(Page(c, Params{Limit: 20}, []string{}, 0))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"data":[],"total":0,"limit":20,"offset":0,"has_more":false,"next":null,"previous":null}`
	if string(raw) != want {
		t.Errorf("got %s\nwant %s", raw, want)
	}
}
