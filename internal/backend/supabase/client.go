// Package supabase implements the backend interfaces over the Supabase HTTP APIs
// (GoTrue auth, PostgREST tables and Storage objects).
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/troubleshooter/internal/backend"
	"github.com/and161185/troubleshooter/internal/errs"
	"github.com/and161185/troubleshooter/internal/model"
	"github.com/and161185/troubleshooter/internal/sessionstore"
)

// Config configures a Client.
type Config struct {
	URL     string // project endpoint, e.g. https://xyz.supabase.co
	AnonKey string // public key sent as apikey

	Store         sessionstore.Store // defaults to an in-memory store
	HTTPClient    *http.Client       // defaults to a client with a 30s timeout
	Logger        *zap.Logger
	RefreshMargin time.Duration // refresh tokens expiring within this window; default 60s
	Now           func() time.Time
}

// Client is the long-lived backend handle. It owns the process-wide session.
type Client struct {
	baseURL string
	anonKey string
	http    *http.Client
	store   sessionstore.Store
	logger  *zap.Logger
	events  *backend.Broadcaster
	margin  time.Duration
	now     func() time.Time

	mu      sync.Mutex
	session *model.Session
	loaded  bool
}

var (
	_ backend.Auth    = (*Client)(nil)
	_ backend.Tables  = (*Client)(nil)
	_ backend.Storage = (*Client)(nil)
)

// New validates cfg and builds a Client.
func New(cfg Config) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(cfg.URL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("supabase: invalid url %q", cfg.URL)
	}
	if cfg.AnonKey == "" {
		return nil, errors.New("supabase: empty anon key")
	}
	c := &Client{
		baseURL: strings.TrimRight(u.String(), "/"),
		anonKey: cfg.AnonKey,
		http:    cfg.HTTPClient,
		store:   cfg.Store,
		logger:  cfg.Logger,
		margin:  cfg.RefreshMargin,
		now:     cfg.Now,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 30 * time.Second}
	}
	if c.store == nil {
		c.store = sessionstore.NewMemory()
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	c.logger = c.logger.With(zap.String("component", "supabase"))
	if c.margin <= 0 {
		c.margin = 60 * time.Second
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.events = backend.NewBroadcaster(c.logger)
	return c, nil
}

// Close releases event subscribers.
func (c *Client) Close() { c.events.Close() }

// request describes one HTTP call.
type request struct {
	method string
	path   string
	query  url.Values
	body   any       // JSON-encoded when set
	raw    io.Reader // sent as is when set
	ctype  string
	header http.Header
	token  string // bearer; anon key when empty
}

// do performs req and decodes a JSON response into out (when non-nil).
// Error responses are returned as *errs.BackendError.
func (c *Client) do(ctx context.Context, req request, out any) error {
	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var body io.Reader
	ctype := req.ctype
	switch {
	case req.raw != nil:
		body = req.raw
	case req.body != nil:
		b, err := json.Marshal(req.body)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
		ctype = "application/json"
	}

	hr, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return err
	}
	for k, vs := range req.header {
		for _, v := range vs {
			hr.Header.Add(k, v)
		}
	}
	if ctype != "" {
		hr.Header.Set("Content-Type", ctype)
	}
	hr.Header.Set("Accept", "application/json")
	hr.Header.Set("apikey", c.anonKey)
	token := req.token
	if token == "" {
		token = c.anonKey
	}
	hr.Header.Set("Authorization", "Bearer "+token)

	start := c.now()
	resp, err := c.http.Do(hr)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	c.logger.Debug("request",
		zap.String("method", req.method),
		zap.String("path", req.path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", c.now().Sub(start)),
	)

	if resp.StatusCode >= 400 {
		return decodeError(resp.StatusCode, payload)
	}
	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", req.method, req.path, err)
	}
	return nil
}

// errorPayload is the union of GoTrue, PostgREST and Storage error bodies.
type errorPayload struct {
	Code             json.RawMessage `json:"code"`
	ErrorCode        string          `json:"error_code"`
	Msg              string          `json:"msg"`
	Message          string          `json:"message"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
	Details          string          `json:"details"`
}

func decodeError(status int, payload []byte) error {
	be := &errs.BackendError{Status: status}
	var p errorPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		be.Message = strings.TrimSpace(string(payload))
		if be.Message == "" {
			be.Message = http.StatusText(status)
		}
		return be
	}

	var code string
	if len(p.Code) > 0 && json.Unmarshal(p.Code, &code) != nil {
		code = "" // numeric GoTrue code duplicates the status
	}
	be.Code = firstNonEmpty(p.ErrorCode, code, p.Error)
	be.Message = firstNonEmpty(p.ErrorDescription, p.Msg, p.Message, p.Error, p.Details, http.StatusText(status))
	if p.Error != "" && p.Error != be.Code {
		be.Name = p.Error
	}
	return be
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}

// isRejected reports whether err is a client-side rejection (4xx) rather than a transport failure.
func isRejected(err error) bool {
	var be *errs.BackendError
	return errors.As(err, &be) && be.Status >= 400 && be.Status < 500
}
