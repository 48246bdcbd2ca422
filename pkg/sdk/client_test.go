package photodex

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// newTestClient starts a server answering with handler and returns a client for it.
func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, opts...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNew_InvalidURL(t *testing.T) {
	for _, u := range []string{"", "localhost:8080", "://bad"} {
		if _, err := New(u); err == nil {
			t.Errorf("New(%q): expected error", u)
		}
	}
}

func TestUpload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/images" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			t.Errorf("unexpected error: %v", err)
			return
		}
		data, _ := io.ReadAll(file)
		if header.Filename != "beach.jpg" || string(data) != "jpeg" {
			t.Errorf("unexpected file %q %q", header.Filename, data)
		}
		if r.FormValue("date") != "2024-07-01" || r.FormValue("tags") != "beach,summer" ||
			r.FormValue("location") != "Busan" {
			t.Errorf("unexpected fields %v", r.MultipartForm.Value)
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"outcome": "created",
			"image":   map[string]any{"id": 7, "status": "pending", "tags": []string{"beach", "summer"}},
		})
	})

	img, err := c.Upload(context.Background(), "beach.jpg", strings.NewReader("jpeg"), UploadOptions{
		Date:     time.Date(2024, 7, 1, 15, 0, 0, 0, time.UTC),
		Location: "Busan",
		Tags:     []string{"beach", "summer"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.ID != 7 || img.Status != StatusPending || len(img.Tags) != 2 {
		t.Errorf("unexpected image %+v", img)
	}
}

func TestUpload_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   string
		want   error
	}{
		{"duplicate", http.StatusConflict, "duplicate_image", ErrDuplicate},
		{"rejected", http.StatusBadRequest, "validation_failed", ErrValidation},
		{"too large", http.StatusRequestEntityTooLarge, "file_too_large", ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, tt.status, map[string]string{"code": tt.code, "message": "nope"})
			})

			_, err := c.Upload(context.Background(), "a.jpg", strings.NewReader("x"), UploadOptions{})
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) || apiErr.Code != tt.code || apiErr.Message != "nope" {
				t.Errorf("unexpected api error %+v", apiErr)
			}
		})
	}
}

func TestSearch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("q") != "red car" || q.Get("tags") != "street,night" || q.Get("location") != "Seoul" ||
			q.Get("date_from") != "2024-01-01" || q.Get("date_to") != "" {
			t.Errorf("unexpected query %v", q)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"mode":  "ranked",
			"count": 1,
			"items": []map[string]any{{"id": 3, "status": "done", "distance": 0.5}},
		})
	})

	res, err := c.Search(context.Background(), SearchParams{
		Query:    "red car",
		Tags:     []string{"street", "night"},
		Location: "Seoul",
		From:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Mode != "ranked" || len(res.Items) != 1 || res.Items[0].ID != 3 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Items[0].Distance == nil || *res.Items[0].Distance != 0.5 {
		t.Errorf("unexpected distance %v", res.Items[0].Distance)
	}
}

func TestSearch_EmbeddingFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"code": "embedding_provider_error", "message": "failed to generate query embedding",
		})
	})

	_, err := c.Search(context.Background(), SearchParams{Query: "cat"})
	if !errors.Is(err, ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
}

func TestSimilar(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/images/4/similar" || r.URL.Query().Get("limit") != "10" {
			t.Errorf("unexpected request %s", r.URL)
		}
		writeJSON(w, http.StatusOK, map[string]any{"mode": "ranked", "items": []any{}, "count": 0})
	})

	res, err := c.Similar(context.Background(), 4, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Count != 0 {
		t.Errorf("expected no hits, got %d", res.Count)
	}
}

func TestGet_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"code": "not_found", "message": "image not found"})
	})

	if _, err := c.Get(context.Background(), 9); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestList(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("status") != "failed" || r.URL.Query().Get("limit") != "5" {
			t.Errorf("unexpected query %v", r.URL.Query())
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": []map[string]any{{"id": 1, "status": "failed", "error": "boom"}},
			"count": 1,
		})
	})

	images, err := c.List(context.Background(), StatusFailed, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(images) != 1 || images[0].Error != "boom" {
		t.Errorf("unexpected images %+v", images)
	}
}

func TestDeleteAndRetry(t *testing.T) {
	var calls []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch r.URL.Path {
		case "/api/v1/images/retry-failed":
			writeJSON(w, http.StatusAccepted, map[string]int{"enqueued": 3})
		case "/api/v1/images/2/retry":
			writeJSON(w, http.StatusAccepted, map[string]int{"enqueued": 1})
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	})
	ctx := context.Background()

	if err := c.Delete(ctx, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Retry(ctx, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n, err := c.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 enqueued, got %d", n)
	}

	want := []string{"DELETE /api/v1/images/2", "POST /api/v1/images/2/retry", "POST /api/v1/images/retry-failed"}
	if len(calls) != len(want) {
		t.Fatalf("unexpected calls %v", calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d: got %q, want %q", i, calls[i], want[i])
		}
	}
}

func TestRetry_QueueFull(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"code": "queue_full", "message": "job queue full"})
	})

	if err := c.Retry(context.Background(), 2); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestClearQueryCache(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Query().Get("q") != "red car" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if err := c.ClearQueryCache(context.Background(), "red car"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUsage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"total_files": 2, "total_bytes": 1024, "total_mb": 0.01, "by_status": map[string]int{"done": 2},
		})
	})

	u, err := c.Usage(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.TotalFiles != 2 || u.ByStatus["done"] != 2 {
		t.Errorf("unexpected usage %+v", u)
	}
}

func TestHealth_Degraded(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "degraded",
			"checks": map[string]string{"database": "ok", "embedding": "error"},
		})
	})

	h, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.Status != "degraded" || h.Checks["embedding"] != "error" {
		t.Errorf("unexpected health %+v", h)
	}
}

func TestHealth_Unreachable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	if _, err := c.Health(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestObserver_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/images/1" {
			writeJSON(w, http.StatusNotFound, map[string]string{"code": "not_found", "message": "image not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"total_files": 0})
	}, WithPrometheus(reg))

	_, _ = c.Usage(context.Background())
	_, _ = c.Get(context.Background(), 1)

	m, err := newSDKMetrics(reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues("usage", "ok")); got != 1 {
		t.Errorf("expected 1 ok usage, got %v", got)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues("get", "not_found")); got != 1 {
		t.Errorf("expected 1 not_found get, got %v", got)
	}
}

func TestOutcomeOf(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{&APIError{StatusCode: 409, Code: "duplicate_image"}, "duplicate_image"},
		{&APIError{StatusCode: 502}, "http_502"},
		{errors.New("connection refused"), "transport_error"},
	}
	for _, tt := range tests {
		if got := outcomeOf(tt.err); got != tt.want {
			t.Errorf("outcomeOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestObserver_NilSafe(t *testing.T) {
	var o *observer
	o.observe("noop", time.Now(), errors.New("ignored"))
}
