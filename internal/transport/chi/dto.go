package chi

import (
	"time"

	"github.com/oapi-codegen/runtime/types"

	"github.com/kailas-cloud/photodex/internal/domain/geo"
	domimg "github.com/kailas-cloud/photodex/internal/domain/image"
	"github.com/kailas-cloud/photodex/internal/domain/search/result"
	healthuc "github.com/kailas-cloud/photodex/internal/usecase/health"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type healthResponse struct {
	Status string                          `json:"status"`
	Checks map[string]healthuc.CheckResult `json:"checks"`
}

type imageResponse struct {
	ID           int64          `json:"id"`
	Locator      string         `json:"locator"`
	URL          string         `json:"url,omitempty"`
	Status       string         `json:"status"`
	Error        string         `json:"error,omitempty"`
	Model        string         `json:"model,omitempty"`
	GPS          *geo.Point     `json:"gps,omitempty"`
	Locality     string         `json:"locality,omitempty"`
	CaptureTime  *time.Time     `json:"capture_time,omitempty"`
	UserDate     *types.Date    `json:"user_date,omitempty"`
	UserLocation string         `json:"user_location,omitempty"`
	Tags         []string       `json:"tags"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

type imageInfoResponse struct {
	imageResponse
	Size     int64  `json:"size"`
	FileType string `json:"file_type"`
}

type uploadResponse struct {
	Outcome string        `json:"outcome"`
	Image   imageResponse `json:"image"`
}

type imageListResponse struct {
	Items []imageResponse `json:"items"`
	Count int             `json:"count"`
}

type searchHit struct {
	imageResponse
	Distance *float64 `json:"distance,omitempty"`
}

type searchResponse struct {
	Mode  string      `json:"mode"`
	Items []searchHit `json:"items"`
	Count int         `json:"count"`
}

type usageResponse struct {
	TotalFiles int            `json:"total_files"`
	TotalBytes int64          `json:"total_bytes"`
	TotalMB    float64        `json:"total_mb"`
	ByStatus   map[string]int `json:"by_status"`
}

type retryResponse struct {
	Enqueued int `json:"enqueued"`
}

func (s *Server) imageToResponse(rec *domimg.Record) imageResponse {
	resp := imageResponse{
		ID:           rec.ID(),
		Locator:      rec.Locator(),
		Status:       string(rec.Status().State()),
		Error:        rec.Status().Message(),
		Model:        rec.Model(),
		GPS:          rec.GPS(),
		Locality:     rec.Locality(),
		CaptureTime:  rec.CaptureTime(),
		UserLocation: rec.UserLocation(),
		Tags:         rec.Tags(),
		Metadata:     rec.Metadata(),
		CreatedAt:    rec.CreatedAt(),
		UpdatedAt:    rec.UpdatedAt(),
	}
	if resp.Tags == nil {
		resp.Tags = []string{}
	}
	if d := rec.UserDate(); d != nil {
		resp.UserDate = &types.Date{Time: *d}
	}
	if s.Links != nil && rec.Locator() != "" {
		resp.URL = s.Links.URL(rec.Locator())
	}
	return resp
}

func (s *Server) hitsToResponse(hits []result.Hit) []searchHit {
	items := make([]searchHit, 0, len(hits))
	for i := range hits {
		items = append(items, searchHit{
			imageResponse: s.imageToResponse(hits[i].Record()),
			Distance:      hits[i].Distance(),
		})
	}
	return items
}
