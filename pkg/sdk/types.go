package photodex

import "time"

// Status is the embedding status of an image.
type Status string

// Status values.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// Point is a WGS84 coordinate.
type Point struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Image is a stored photo record.
type Image struct {
	ID           int64          `json:"id"`
	Locator      string         `json:"locator"`
	URL          string         `json:"url,omitempty"`
	Status       Status         `json:"status"`
	Error        string         `json:"error,omitempty"`
	Model        string         `json:"model,omitempty"`
	GPS          *Point         `json:"gps,omitempty"`
	Locality     string         `json:"locality,omitempty"`
	CaptureTime  *time.Time     `json:"capture_time,omitempty"`
	UserDate     string         `json:"user_date,omitempty"`
	UserLocation string         `json:"user_location,omitempty"`
	Tags         []string       `json:"tags"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// ImageInfo is an image with its file details.
type ImageInfo struct {
	Image
	Size     int64  `json:"size"`
	FileType string `json:"file_type"`
}

// Hit is one search result. Distance is nil for unranked listings.
type Hit struct {
	Image
	Distance *float64 `json:"distance,omitempty"`
}

// SearchResult is a page of hits.
type SearchResult struct {
	Mode  string `json:"mode"`
	Items []Hit  `json:"items"`
	Count int    `json:"count"`
}

// Usage summarizes storage consumption.
type Usage struct {
	TotalFiles int            `json:"total_files"`
	TotalBytes int64          `json:"total_bytes"`
	TotalMB    float64        `json:"total_mb"`
	ByStatus   map[string]int `json:"by_status"`
}

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            `json:"status"` // "ok", "degraded", "error"
	Checks map[string]string `json:"checks"` // component → "ok"/"error"
}

// UploadOptions carries the optional user metadata of an upload.
type UploadOptions struct {
	Date     time.Time // zero = not set; only the calendar date is sent
	Location string
	Tags     []string
}

// SearchParams filters a search. An empty Query lists matching images newest first.
type SearchParams struct {
	Query    string
	Tags     []string
	Location string
	From     time.Time // zero = open
	To       time.Time // zero = open
}
