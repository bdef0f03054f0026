// Package apiclient talks to the civic feed HTTP API. Every authenticated
// call passes through a session.Guard on the way out and on the way back.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"civicfeed/internal/models"
	"civicfeed/internal/observability"
	"civicfeed/internal/session"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultTimeout = 15 * time.Second

// Client is a guarded feed API client.
type Client struct {
	baseURL string
	http    *http.Client
	guard   *session.Guard
	timeout time.Duration

	lat, lng *float64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the traced default transport, mostly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLocation sends the viewer's position so the server can fill distance_km.
func WithLocation(lat, lng float64) Option {
	return func(c *Client) { c.lat, c.lng = &lat, &lng }
}

// New returns a client for baseURL guarded by guard.
func New(baseURL string, guard *session.Guard, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		guard:   guard,
		timeout: defaultTimeout,
		http:    &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Guard returns the session guard the client reports to.
func (c *Client) Guard() *session.Guard {
	return c.guard
}

type postsResponse struct {
	Posts []models.Post `json:"posts"`
}

// FetchPosts requests one window of the collection.
func (c *Client) FetchPosts(ctx context.Context, limit, offset int) ([]models.Post, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	if c.lat != nil && c.lng != nil {
		q.Set("lat", strconv.FormatFloat(*c.lat, 'f', -1, 64))
		q.Set("lng", strconv.FormatFloat(*c.lng, 'f', -1, 64))
	}

	var out postsResponse
	if err := c.do(ctx, http.MethodGet, "/posts", "/posts?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Posts, nil
}

type engageRequest struct {
	PostID int64 `json:"post_id"`
}

// Engage toggles a like or bookmark on the server.
func (c *Client) Engage(ctx context.Context, kind models.MutationKind, postID int64) (models.EngagementAck, error) {
	route := "/like"
	if kind == models.MutationBookmark {
		route = "/bookmark"
	}
	var ack models.EngagementAck
	if err := c.do(ctx, http.MethodPost, route, route, engageRequest{PostID: postID}, &ack); err != nil {
		return models.EngagementAck{}, err
	}
	if !ack.Success {
		return models.EngagementAck{}, models.NewNetworkFailure("server rejected "+string(kind), nil)
	}
	return ack, nil
}

func (c *Client) do(ctx context.Context, method, route, path string, body, out any) (err error) {
	if c.guard.Expired() {
		return models.ErrSessionExpired
	}

	ctx, cancel := c.guard.Bind(ctx)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, c.timeout)
	defer cancelTimeout()

	status := "error"
	start := time.Now()
	defer func() {
		observability.APIRequestDuration.WithLabelValues(route, status).Observe(time.Since(start).Seconds())
	}()

	req, err := newRequest(ctx, method, c.baseURL+path, body)
	if err != nil {
		return models.NewInternalError(err)
	}
	req, err = c.guard.Guard(req)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return c.guard.Classify(err)
	}
	defer resp.Body.Close()
	status = strconv.Itoa(resp.StatusCode)

	if _, err := c.guard.Observe(resp); err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return models.NewNetworkFailure(models.ErrNetworkFailure.Message, statusError(resp))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return c.guard.Classify(fmt.Errorf("decode %s response: %w", route, err))
	}
	return nil
}

func newRequest(ctx context.Context, method, target string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, r)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func statusError(resp *http.Response) error {
	var e models.ErrorResponse
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if json.Unmarshal(b, &e) == nil && e.Error != "" {
		return fmt.Errorf("status %d: %s", resp.StatusCode, e.Error)
	}
	return fmt.Errorf("status %d", resp.StatusCode)
}
