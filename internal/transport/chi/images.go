package chi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	gochi "github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/oapi-codegen/runtime/types"
	"go.uber.org/zap"

	domimg "github.com/kailas-cloud/photodex/internal/domain/image"
	ingestuc "github.com/kailas-cloud/photodex/internal/usecase/ingest"
)

const (
	// multipart overhead allowed on top of the file size limit
	uploadSlack = 1 << 20
	// form parts kept in memory before spilling to temp files
	uploadMemory = 4 << 20
)

// UploadImage handles POST /api/v1/images (multipart: image, date, location, tags).
func (s *Server) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, domimg.MaxFileSize+uploadSlack)
	if err := r.ParseMultipartForm(uploadMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, codeFileTooLarge, "file exceeds 10MB")
			return
		}
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "image file is required")
		return
	}
	defer func() { _ = file.Close() }()
	if header.Size > domimg.MaxFileSize {
		writeError(w, http.StatusRequestEntityTooLarge, codeFileTooLarge, "file exceeds 10MB")
		return
	}

	var userDate *time.Time
	if v := strings.TrimSpace(r.FormValue("date")); v != "" {
		var d types.Date
		if err := runtime.BindStringToObject(v, &d); err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, "date must be YYYY-MM-DD")
			return
		}
		userDate = &d.Time
	}

	out, err := s.Ingest.Ingest(r.Context(), ingestuc.Upload{
		Filename:     header.Filename,
		Body:         file,
		Size:         header.Size,
		UserDate:     userDate,
		UserLocation: r.FormValue("location"),
		Tags:         r.FormValue("tags"),
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	switch out.Kind {
	case ingestuc.Created:
		writeJSON(w, http.StatusCreated, uploadResponse{
			Outcome: string(out.Kind),
			Image:   s.imageToResponse(&out.Record),
		})
	case ingestuc.Duplicate:
		writeError(w, http.StatusConflict, codeDuplicate, out.Reason)
	default:
		writeError(w, http.StatusBadRequest, codeValidationFailed, out.Reason)
	}
}

// GetImage handles GET /api/v1/images/{id}.
func (s *Server) GetImage(w http.ResponseWriter, r *http.Request) {
	id, ok := imageID(w, r)
	if !ok {
		return
	}

	info, err := s.Catalog.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp := imageInfoResponse{
		imageResponse: s.imageToResponse(&info.Record),
		Size:          info.Size,
		FileType:      info.FileType,
	}
	resp.URL = info.URL
	writeJSON(w, http.StatusOK, resp)
}

// ListImages handles GET /api/v1/images?status=&limit=.
func (s *Server) ListImages(w http.ResponseWriter, r *http.Request) {
	var (
		status *string
		limit  *int
	)
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "status", q, &status); err != nil {
		badRequest(w, err)
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", q, &limit); err != nil {
		badRequest(w, err)
		return
	}

	var state *domimg.State
	if status != nil && *status != "" {
		st, err := domimg.ParseState(*status)
		if err != nil {
			badRequest(w, err)
			return
		}
		state = &st
	}

	recs, err := s.Catalog.List(r.Context(), state, derefInt(limit))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]imageResponse, 0, len(recs))
	for i := range recs {
		items = append(items, s.imageToResponse(&recs[i]))
	}
	writeJSON(w, http.StatusOK, imageListResponse{Items: items, Count: len(items)})
}

// DeleteImage handles DELETE /api/v1/images/{id}.
func (s *Server) DeleteImage(w http.ResponseWriter, r *http.Request) {
	id, ok := imageID(w, r)
	if !ok {
		return
	}

	if err := s.Catalog.Delete(r.Context(), id); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RetryImage handles POST /api/v1/images/{id}/retry.
func (s *Server) RetryImage(w http.ResponseWriter, r *http.Request) {
	id, ok := imageID(w, r)
	if !ok {
		return
	}

	if err := s.Jobs.Retry(r.Context(), id); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, retryResponse{Enqueued: 1})
}

// RetryFailed handles POST /api/v1/images/retry-failed.
func (s *Server) RetryFailed(w http.ResponseWriter, r *http.Request) {
	n, err := s.Jobs.RetryAllFailed(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.logger.Info("Failed images re-enqueued", zap.Int("enqueued", n))
	writeJSON(w, http.StatusAccepted, retryResponse{Enqueued: n})
}

// GetUsage handles GET /api/v1/usage.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	u, err := s.Catalog.Usage(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	byStatus := make(map[string]int, len(u.ByStatus))
	for st, n := range u.ByStatus {
		byStatus[string(st)] = n
	}
	writeJSON(w, http.StatusOK, usageResponse{
		TotalFiles: u.TotalFiles,
		TotalBytes: u.TotalBytes,
		TotalMB:    u.TotalMB,
		ByStatus:   byStatus,
	})
}

// imageID binds the {id} path parameter, answering 400 when it is malformed.
func imageID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	var id int64
	err := runtime.BindStyledParameterWithOptions("simple", "id", gochi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil {
		badRequest(w, err)
		return 0, false
	}
	if id <= 0 {
		badRequest(w, errors.New("id must be positive"))
		return 0, false
	}
	return id, true
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
