// Package remote implements the client side of the upstream readings
// service's paginated time-range endpoint.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vikstrand/aqhistory/internal/core/model"
	"github.com/vikstrand/aqhistory/internal/core/observability"
)

const dateLayout = "2006-01-02"

// Error is a transport or server failure from the upstream boundary.
// Status 0 means the request never produced an HTTP response.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return "upstream: " + e.Message
	}
	return fmt.Sprintf("upstream status=%d: %s", e.Status, e.Message)
}

type PageRequest struct {
	Location    string
	Start       time.Time
	End         time.Time
	Series      string
	Aggregation model.Aggregation
	PageIndex   int
	PageSize    int
}

type Statistics struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
}

type PageResponse struct {
	Points     []model.DataPoint `json:"points"`
	HasMore    bool              `json:"has_more"`
	Statistics *Statistics       `json:"statistics,omitempty"`
}

// Fetcher is the boundary the assembler drives; satisfied by Client and by
// test doubles.
type Fetcher interface {
	FetchPage(ctx context.Context, req PageRequest) (PageResponse, error)
}

type Client struct {
	base *url.URL
	http *http.Client
}

func New(baseURL string, hc *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse upstream url: %w", err)
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{base: u, http: hc}, nil
}

func (c *Client) FetchPage(ctx context.Context, pr PageRequest) (PageResponse, error) {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/locations/" + url.PathEscape(pr.Location) + "/history"

	q := url.Values{}
	q.Set("start", pr.Start.Format(dateLayout))
	q.Set("end", pr.End.Format(dateLayout))
	if pr.Series != "" {
		q.Set("series", pr.Series)
	}
	if s := pr.Aggregation.String(); s != "" {
		q.Set("aggregation", s)
	}
	q.Set("page", strconv.Itoa(pr.PageIndex))
	q.Set("page_size", strconv.Itoa(pr.PageSize))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return PageResponse{}, &Error{Message: err.Error()}
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	observability.ObserveUpstreamLatency("airdata_history", time.Since(start).Seconds())
	if err != nil {
		return PageResponse{}, &Error{Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return PageResponse{}, &Error{
			Status:  resp.StatusCode,
			Message: strings.TrimSpace(string(b)),
		}
	}

	var out PageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return PageResponse{}, &Error{
			Status:  resp.StatusCode,
			Message: "decode response: " + err.Error(),
		}
	}
	return out, nil
}

var _ Fetcher = (*Client)(nil)
