package api

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

	"github.com/google/uuid"

	"github.com/doctrove/atlas/internal/wire"
)

// Config configures a Client. All defaults are explicit here; nothing is
// read from package-level state.
type Config struct {
	// BaseURL is the root of the point-query API, e.g. "https://api.example.org".
	BaseURL string
	// Timeout bounds each request. Defaults to 30s.
	Timeout time.Duration
	// HTTPClient overrides the underlying transport when set.
	HTTPClient *http.Client
	// Logger receives request diagnostics. Defaults to a no-op logger.
	Logger Logger
}

// DefaultConfig returns a client configuration for the given base URL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL: baseURL,
		Timeout: 30 * time.Second,
	}
}

// Client issues point queries against the backend. Each fetch is exactly
// one request: no retries, no caching, no backoff. Failures propagate to
// the caller, which owns the resulting state transition.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     Logger
}

// NewClient creates a point-query client from config.
func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, wrapError("new_client", fmt.Errorf("%w: base URL cannot be empty", ErrInvalidConfig))
	}
	parsed, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, wrapError("new_client", fmt.Errorf("%w: %v", ErrInvalidConfig, err))
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, wrapError("new_client", fmt.Errorf("%w: base URL scheme must be http or https", ErrInvalidConfig))
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := config.Logger
	if logger == nil {
		logger = NopLogger()
	}

	return &Client{
		baseURL:    strings.TrimSuffix(config.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// pointRecord is the wire shape of one point-query result row.
type pointRecord struct {
	ID       string          `json:"doctrove_id"`
	Title    string          `json:"title"`
	Source   string          `json:"doctrove_source"`
	Date     string          `json:"doctrove_primary_date"`
	Position json.RawMessage `json:"position"`
}

// pointsEnvelope is the wire shape of the /points response.
type pointsEnvelope struct {
	Results    []pointRecord `json:"results"`
	TotalCount *int64        `json:"total_count"`
}

// extentEnvelope is the wire shape of the /max-extent response.
type extentEnvelope struct {
	Extent *Extent `json:"extent"`
}

// FetchPoints issues one request for the given descriptor and maps each
// wire record into a Point. Records whose position cannot be parsed are
// kept with a nil Position rather than dropped.
func (c *Client) FetchPoints(ctx context.Context, req *Request) (*PointSet, error) {
	if req == nil {
		return nil, wrapError("fetch_points", ErrNoRequest)
	}

	params := url.Values{}
	params.Set("bbox", req.Bbox)
	params.Set("limit", strconv.Itoa(req.Limit))
	if len(req.Fields) > 0 {
		params.Set("fields", strings.Join(req.Fields, ","))
	}
	if req.Sort != "" {
		params.Set("sort", req.Sort)
	}
	if req.SQLFilter != "" {
		params.Set("sql_filter", req.SQLFilter)
	}
	if req.SearchText != "" {
		params.Set("search_text", req.SearchText)
		params.Set("similarity_threshold", strconv.FormatFloat(req.SimilarityThreshold, 'g', -1, 64))
	}

	var envelope pointsEnvelope
	if err := c.get(ctx, "/points", params, &envelope); err != nil {
		return nil, wrapError("fetch_points", err)
	}

	set := &PointSet{
		Points: make([]Point, 0, len(envelope.Results)),
		Total:  -1,
	}
	if envelope.TotalCount != nil {
		set.Total = *envelope.TotalCount
	}

	unparsable := 0
	for _, rec := range envelope.Results {
		p := Point{
			ID:     rec.ID,
			Title:  rec.Title,
			Source: rec.Source,
			Date:   rec.Date,
		}
		if x, y, err := wire.DecodePosition(rec.Position); err == nil {
			p.Position = &Position{X: x, Y: y}
		} else {
			unparsable++
		}
		set.Points = append(set.Points, p)
	}
	if unparsable > 0 {
		c.logger.Warn("points without parsable position", "count", unparsable)
	}

	return set, nil
}

// FetchMaxExtent returns the maximal data extent for the given compiled
// predicate (empty string means unfiltered), or nil when the backend
// reports none.
func (c *Client) FetchMaxExtent(ctx context.Context, sqlFilter string) (*Extent, error) {
	params := url.Values{}
	if sqlFilter != "" {
		params.Set("sql_filter", sqlFilter)
	}

	var envelope extentEnvelope
	if err := c.get(ctx, "/max-extent", params, &envelope); err != nil {
		return nil, wrapError("fetch_max_extent", err)
	}
	return envelope.Extent, nil
}

// get performs a single GET request and decodes the JSON response into
// result. There is deliberately no retry loop here: overlapping fetches
// are raced by design and the calling layer discards stale responses.
func (c *Client) get(ctx context.Context, path string, params url.Values, result any) error {
	fullURL := c.baseURL + path
	if encoded := params.Encode(); encoded != "" {
		fullURL += "?" + encoded
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.New().String()
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	c.logger.Debug("point query", "path", path, "status", resp.StatusCode,
		"duration", time.Since(start), "request_id", requestID)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{
			StatusCode: resp.StatusCode,
			RequestID:  requestID,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return nil
}
