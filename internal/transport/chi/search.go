package chi

import (
	"net/http"
	"time"

	"github.com/oapi-codegen/runtime"
	"github.com/oapi-codegen/runtime/types"

	"github.com/kailas-cloud/photodex/internal/domain/search/filter"
	"github.com/kailas-cloud/photodex/internal/domain/search/mode"
	"github.com/kailas-cloud/photodex/internal/domain/search/request"
)

type searchParams struct {
	Query    *string
	Tags     *string
	Location *string
	DateFrom *types.Date
	DateTo   *types.Date
}

func bindSearchParams(r *http.Request) (searchParams, error) {
	var p searchParams
	q := r.URL.Query()
	binds := []struct {
		name string
		dest any
	}{
		{"q", &p.Query},
		{"tags", &p.Tags},
		{"location", &p.Location},
		{"date_from", &p.DateFrom},
		{"date_to", &p.DateTo},
	}
	for _, b := range binds {
		if err := runtime.BindQueryParameter("form", true, false, b.name, q, b.dest); err != nil {
			return searchParams{}, err //nolint:wrapcheck // runtime errors name the parameter
		}
	}
	return p, nil
}

// SearchImages handles GET /api/v1/search?q=&tags=&location=&date_from=&date_to=.
// Without q the filtered images are listed newest first.
func (s *Server) SearchImages(w http.ResponseWriter, r *http.Request) {
	p, err := bindSearchParams(r)
	if err != nil {
		badRequest(w, err)
		return
	}

	f, err := filter.New(derefString(p.Tags), derefString(p.Location),
		dateTime(p.DateFrom), dateTime(p.DateTo), time.Now())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	req, err := request.New(derefString(p.Query), f)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	hits, err := s.Search.Search(r.Context(), &req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := s.hitsToResponse(hits)
	writeJSON(w, http.StatusOK, searchResponse{
		Mode:  string(req.Mode()),
		Items: items,
		Count: len(items),
	})
}

// SimilarImages handles GET /api/v1/images/{id}/similar?limit=.
func (s *Server) SimilarImages(w http.ResponseWriter, r *http.Request) {
	id, ok := imageID(w, r)
	if !ok {
		return
	}
	var limit *int
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
		badRequest(w, err)
		return
	}

	req, err := request.NewSimilar(id, derefInt(limit))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	hits, err := s.Search.Similar(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := s.hitsToResponse(hits)
	writeJSON(w, http.StatusOK, searchResponse{
		Mode:  string(mode.Ranked),
		Items: items,
		Count: len(items),
	})
}

// ClearQueryCache handles DELETE /api/v1/cache/queries?q=.
// Only the fast tier is evicted.
func (s *Server) ClearQueryCache(w http.ResponseWriter, r *http.Request) {
	var text string
	if err := runtime.BindQueryParameter("form", true, true, "q", r.URL.Query(), &text); err != nil {
		badRequest(w, err)
		return
	}
	text = request.NormalizeQuery(text)
	if err := request.ValidateQuery(text); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	if err := s.Cache.Clear(r.Context(), text); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func dateTime(d *types.Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
