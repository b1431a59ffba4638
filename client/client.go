// Package client is the HTTP data access layer used by the terminal client
// and the maintenance commands. Catalog documents are always fetched fresh.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eringen/jerseyfolio/catalog"
)

// ErrNotJSON is returned when a response does not declare a JSON body.
var ErrNotJSON = errors.New("client: response is not JSON")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method  string
	URL     string
	Code    int
	Kind    string
	Message string
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Code)
	}
	return fmt.Sprintf("client: %s %s: %d %s", e.Method, e.URL, e.Code, msg)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// Client talks to a jerseyfolio backend.
type Client struct {
	base *url.URL
	http *http.Client
	now  func() time.Time
	log  *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. A cookie jar is added
// when it has none, since admin calls rely on the session cookie.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithClock overrides the cache-busting timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithLogger sets the client logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New returns a client for the backend at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("client: parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("client: base url %q must be absolute", baseURL)
	}
	c := &Client{
		base: u,
		http: &http.Client{Timeout: 30 * time.Second},
		now:  time.Now,
		log:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("client: cookie jar: %w", err)
		}
		c.http.Jar = jar
	}
	return c, nil
}

// BaseURL returns the backend address.
func (c *Client) BaseURL() string { return c.base.String() }

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	if i := strings.IndexByte(path, '?'); i >= 0 {
		u.RawQuery = path[i+1:]
		path = path[:i]
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// fetchDocument GETs a catalog document, bypassing every cache.
func (c *Client) fetchDocument(ctx context.Context, name string, out any) error {
	q := url.Values{"t": {strconv.FormatInt(c.now().UnixMilli(), 10)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/data/"+name, q), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Cache-Control", "no-store")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Accept", "application/json")
	return c.do(req, out)
}

// Jerseys fetches jerseys.json. Elements that are not valid jerseys are
// logged and left out.
func (c *Client) Jerseys(ctx context.Context) ([]catalog.Jersey, error) {
	var data json.RawMessage
	if err := c.fetchDocument(ctx, "jerseys.json", &data); err != nil {
		return nil, err
	}
	items, skipped, err := catalog.DecodeJerseys(data)
	if err != nil {
		return nil, fmt.Errorf("client: jerseys.json: %w", err)
	}
	for _, sk := range skipped {
		c.log.Warn("skipping malformed jersey", zap.Int("index", sk.Index), zap.Error(sk.Err))
	}
	return items, nil
}

// Categories fetches categories.json.
func (c *Client) Categories(ctx context.Context) ([]catalog.Category, error) {
	var defs []catalog.Category
	if err := c.fetchDocument(ctx, "categories.json", &defs); err != nil {
		return nil, err
	}
	return defs, nil
}

// Tags fetches tags.json.
func (c *Client) Tags(ctx context.Context) ([]catalog.Tag, error) {
	var defs []catalog.Tag
	if err := c.fetchDocument(ctx, "tags.json", &defs); err != nil {
		return nil, err
	}
	return defs, nil
}

// Snapshot is one consistent-enough read of the three documents.
type Snapshot struct {
	Jerseys    []catalog.Jersey
	Categories []catalog.Category
	Tags       []catalog.Tag
}

// Snapshot fetches the three documents concurrently. Any failure fails the
// whole load.
func (c *Client) Snapshot(ctx context.Context) (Snapshot, error) {
	var s Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		s.Jerseys, err = c.Jerseys(gctx)
		return err
	})
	g.Go(func() (err error) {
		s.Categories, err = c.Categories(gctx)
		return err
	})
	g.Go(func() (err error) {
		s.Tags, err = c.Tags(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

// PublicConfig fetches the runtime display settings.
func (c *Client) PublicConfig(ctx context.Context) (catalog.PublicConfig, error) {
	var pc catalog.PublicConfig
	err := c.call(ctx, http.MethodGet, "/api/config-public", nil, &pc)
	return pc, err
}

// call sends an optional JSON body and decodes an optional JSON response.
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, nil), rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

type errorEnvelope struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *Client) do(req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	c.log.Debug("request",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Method: req.Method, URL: req.URL.Path, Code: resp.StatusCode}
		if isJSON(resp) {
			var env errorEnvelope
			if json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&env) == nil {
				se.Kind, se.Message = env.Error, env.Message
			}
		}
		return se
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if !isJSON(resp) {
		return fmt.Errorf("%w: %s %s returned %q", ErrNotJSON, req.Method, req.URL.Path, resp.Header.Get("Content-Type"))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode %s: %w", req.URL.Path, err)
	}
	return nil
}

func isJSON(resp *http.Response) bool {
	mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}
