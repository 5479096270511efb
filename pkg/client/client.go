// Package client talks to the remote search API: the JSON search endpoint and
// the streamed snippet endpoint.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rubiojr/mithril/pkg/core"
	"github.com/rubiojr/mithril/pkg/log"
)

// DefaultMaxResults is the result cap sent with every search.
const DefaultMaxResults = 50

// TransportError reports a failed request to either endpoint: a network
// failure (StatusCode 0) or a non-2xx response.
type TransportError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s request failed with status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%s request failed: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Client is an HTTP client for one search API base URL.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	log        *log.Logger
}

// New returns a client for baseURL (for example "http://localhost:8080").
// A zero timeout leaves requests bounded only by their context.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base URL %q must include scheme and host", baseURL)
	}
	return &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: timeout},
		log:        log.ForService("client"),
	}, nil
}

func (c *Client) endpoint(path string, q url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) get(ctx context.Context, name, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &TransportError{Endpoint: name, Err: err}
	}
	c.log.Debugf("GET %s", target)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &TransportError{Endpoint: name, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &TransportError{Endpoint: name, StatusCode: resp.StatusCode}
	}
	return resp, nil
}

// Search runs GET /api/search?q=<query>&max=<max>.
func (c *Client) Search(ctx context.Context, query string, max int) (*core.ResultSet, error) {
	if max <= 0 {
		max = DefaultMaxResults
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("max", strconv.Itoa(max))

	resp, err := c.get(ctx, "search", c.endpoint("/api/search", params))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var rs core.ResultSet
	if err := json.NewDecoder(resp.Body).Decode(&rs); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &TransportError{Endpoint: "search", Err: fmt.Errorf("decoding response: %w", err)}
	}
	return &rs, nil
}

// Snippets runs GET /api/snippets?ids=<a,b,...>&q=<query> and returns the
// streaming body. The caller must close it.
func (c *Client) Snippets(ctx context.Context, ids []string, query string) (io.ReadCloser, error) {
	if len(ids) == 0 {
		return nil, &TransportError{Endpoint: "snippets", Err: errors.New("no document ids")}
	}
	params := url.Values{}
	params.Set("ids", strings.Join(ids, ","))
	params.Set("q", query)

	resp, err := c.get(ctx, "snippets", c.endpoint("/api/snippets", params))
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
