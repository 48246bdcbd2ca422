package nominatim

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL, UserAgent: "photodex-test"}, zap.NewNop())
}

func TestLocality_City(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reverse" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("format") != "jsonv2" || q.Get("accept-language") != "ko" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if q.Get("lat") != "37.5" || q.Get("lon") != "127" {
			t.Errorf("unexpected coordinates %s", r.URL.RawQuery)
		}
		if r.Header.Get("User-Agent") != "photodex-test" {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		_, _ = w.Write([]byte(`{"address":{"city":"서울특별시","state":"서울"}}`))
	})

	if got := c.Locality(context.Background(), 37.5, 127.0, "ko"); got != "서울특별시" {
		t.Errorf("expected city, got %q", got)
	}
}

func TestLocality_Fallback(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"town", `{"address":{"town":"Gapyeong","state":"Gyeonggi"}}`, "Gapyeong"},
		{"village", `{"address":{"village":"Hahoe","state":"Gyeongbuk"}}`, "Hahoe"},
		{"state", `{"address":{"state":"Jeju"}}`, "Jeju"},
		{"nothing", `{"address":{"country":"Korea"}}`, ""},
		{"error body", `{"error":"Unable to geocode"}`, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			})
			if got := c.Locality(context.Background(), 1, 2, "ko"); got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestLocality_ServerErrorSwallowed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	if got := c.Locality(context.Background(), 1, 2, "ko"); got != "" {
		t.Errorf("expected empty locality, got %q", got)
	}
}

func TestLocality_BadJSONSwallowed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	})
	if got := c.Locality(context.Background(), 1, 2, "ko"); got != "" {
		t.Errorf("expected empty locality, got %q", got)
	}
}
