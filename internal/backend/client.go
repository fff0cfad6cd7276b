// Package backend talks to the admin API. Every endpoint answers with the same
// envelope: a JSON object with a boolean "success" plus either a "message" or
// an operation-specific payload.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"

	"github.com/kingrea/rosteradmin/internal/logbook"
)

const (
	pathEmployees    = "/admin/employees"
	pathDelete       = "/admin/employees/delete"
	pathUpload       = "/admin/employees/upload"
	pathProfileAgent = "/admin/api/profile_agent/"
	pathReport       = "/admin/ai_report/"
	pathLogin        = "/login"
	pathLogout       = "/logout"

	requestIDHeader = "X-Request-ID"
)

// envelope is the union of every response shape the admin API produces.
type envelope struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	Employees []Employee      `json:"employees"`
	Data      json.RawMessage `json:"data"`
}

// Client issues admin API calls with a shared session cookie jar.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	log     *logbook.Logbook
}

// Option customizes Client construction.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. A nil jar on the
// supplied client is replaced with a fresh session jar.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithTimeout bounds every request. Zero keeps requests unbounded.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithLogbook routes transport diagnostics to the given logbook.
func WithLogbook(lb *logbook.Logbook) Option {
	return func(c *Client) {
		if lb != nil {
			c.log = lb
		}
	}
}

// New prepares a client rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("backend: invalid base url %q", baseURL)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	c := &Client{
		baseURL: u,
		http:    &http.Client{},
		log:     logbook.Discard(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.http.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, errors.Wrap(err, "backend: cookie jar")
		}
		c.http.Jar = jar
	}
	return c, nil
}

// BaseURL returns the backend root as configured.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// ReportURL is the navigation target of the Roadmap row action.
func (c *Client) ReportURL(id int) string {
	return c.resolve(fmt.Sprintf("%s%d", pathReport, id))
}

func (c *Client) resolve(path string) string {
	u := *c.baseURL
	u.Path = u.Path + path
	return u.String()
}

// call performs one request and returns the decoded envelope. It does not
// interpret the success flag; callers turn success=false into an
// ApplicationError so they can pick their own fallback text.
func (c *Client) call(ctx context.Context, op, method, path string, body io.Reader, contentType string) (envelope, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), body)
	if err != nil {
		return envelope{}, 0, c.transport(op, 0, errors.Wrap(err, "build request"))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, uuid.NewString())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return envelope{}, 0, c.transport(op, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return envelope{}, resp.StatusCode, c.transport(op, resp.StatusCode, errors.Wrap(err, "read body"))
	}
	var env envelope
	decodeErr := json.Unmarshal(raw, &env)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if decodeErr == nil && env.Message != "" {
			return env, resp.StatusCode, c.transport(op, resp.StatusCode, errors.New(env.Message))
		}
		return env, resp.StatusCode, c.transport(op, resp.StatusCode, errors.Errorf("unexpected status %s", resp.Status))
	}
	if decodeErr != nil {
		return envelope{}, resp.StatusCode, c.transport(op, resp.StatusCode, errors.Wrap(decodeErr, "decode envelope"))
	}
	return env, resp.StatusCode, nil
}

func (c *Client) callJSON(ctx context.Context, op, method, path string, payload any) (envelope, int, error) {
	var body io.Reader
	contentType := ""
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return envelope{}, 0, c.transport(op, 0, errors.Wrap(err, "encode request"))
		}
		body = bytes.NewReader(buf)
		contentType = "application/json"
	}
	return c.call(ctx, op, method, path, body, contentType)
}

func (c *Client) transport(op string, status int, err error) error {
	tErr := &TransportError{Op: op, Status: status, Err: err}
	c.log.Logger().Error().
		Str("op", op).
		Int("status", status).
		Err(err).
		Msg("transport failure")
	return tErr
}

func rejected(op string, env envelope) error {
	return &ApplicationError{Op: op, Message: env.Message}
}
