package photodex

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Search finds images by text query and filters. With a query the hits are
// ranked by distance; without one the newest matching images are listed.
func (c *Client) Search(ctx context.Context, p SearchParams) (res SearchResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, err) }()

	q := url.Values{}
	if p.Query != "" {
		q.Set("q", p.Query)
	}
	if len(p.Tags) > 0 {
		q.Set("tags", strings.Join(p.Tags, ","))
	}
	if p.Location != "" {
		q.Set("location", p.Location)
	}
	if !p.From.IsZero() {
		q.Set("date_from", p.From.Format(dateLayout))
	}
	if !p.To.IsZero() {
		q.Set("date_to", p.To.Format(dateLayout))
	}

	err = c.do(ctx, http.MethodGet, "/api/v1/search", q, nil, "", &res)
	return res, err
}

// Similar ranks other images by distance to image id. An image without an
// embedding yet has no similar images.
func (c *Client) Similar(ctx context.Context, id int64, limit int) (res SearchResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("similar", start, err) }()

	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	err = c.do(ctx, http.MethodGet, imagePath(id)+"/similar", q, nil, "", &res)
	return res, err
}

// ClearQueryCache evicts the cached embedding of a query from the fast tier.
func (c *Client) ClearQueryCache(ctx context.Context, query string) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("clear_query_cache", start, err) }()

	return c.do(ctx, http.MethodDelete, "/api/v1/cache/queries", url.Values{"q": {query}}, nil, "", nil)
}
