package itunesconnect

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bnema/itcsync/internal/domain"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// response is a fully read vendor response. Bodies are small JSON documents
// or scripts, so they are buffered before the connection is released.
type response struct {
	status int
	header http.Header
	body   []byte
}

func (r *response) ok() bool {
	return r.status >= http.StatusOK && r.status < http.StatusMultipleChoices
}

// guard is the rate limiter and circuit breaker shared by every client a
// Connector hands out.
type guard struct {
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[*response]
}

func newGuard(cfg Config) *guard {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	settings := gobreaker.Settings{
		Name:        "itunesconnect",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Cancellation is the caller giving up, not the vendor failing.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
	}

	return &guard{
		limiter: rate.NewLimiter(limit, burst),
		breaker: gobreaker.NewCircuitBreaker[*response](settings),
	}
}

type call struct {
	op     string
	method string
	url    string
	body   any
	header http.Header
}

// send performs one vendor request. Network failures, 5xx answers and an open
// breaker come back as *domain.TransportError; any other status is returned
// for the caller to judge.
func (c *Client) send(ctx context.Context, req call) (*response, error) {
	var payload []byte
	if req.body != nil {
		encoded, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", req.op, err)
		}
		payload = encoded
	}

	if err := c.guard.limiter.Wait(ctx); err != nil {
		return nil, &domain.TransportError{Op: req.op, Err: err}
	}

	started := c.cfg.Now()
	resp, err := c.guard.breaker.Execute(func() (*response, error) {
		return c.roundTrip(ctx, req, payload)
	})
	c.observe(req.op, resp, err, started)

	if err != nil {
		var transportErr *domain.TransportError
		if errors.As(err, &transportErr) {
			return nil, err
		}
		return nil, &domain.TransportError{Op: req.op, Err: err}
	}

	return resp, nil
}

func (c *Client) roundTrip(ctx context.Context, req call, payload []byte) (*response, error) {
	requestCtx, cancel := c.requestContext(ctx)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(requestCtx, req.method, req.url, body)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", req.op, err)
	}
	for key, values := range req.header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	if payload != nil {
		httpReq.Header.Set("Content-Type", contentTypeJSON)
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &domain.TransportError{Op: req.op, Err: err}
	}
	defer func() { _ = httpResp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, &domain.TransportError{Op: req.op, StatusCode: httpResp.StatusCode, Err: err}
	}

	if httpResp.StatusCode >= http.StatusInternalServerError {
		return nil, &domain.TransportError{Op: req.op, StatusCode: httpResp.StatusCode}
	}

	return &response{status: httpResp.StatusCode, header: httpResp.Header, body: data}, nil
}

func (c *Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < c.cfg.RequestTimeout {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.cfg.RequestTimeout)
}

func (c *Client) observe(op string, resp *response, err error, started time.Time) {
	if c.cfg.Observer == nil {
		return
	}
	status := 0
	var transportErr *domain.TransportError
	switch {
	case resp != nil:
		status = resp.status
	case errors.As(err, &transportErr):
		status = transportErr.StatusCode
	}
	c.cfg.Observer.ObserveVendorRequest(op, status, c.cfg.Now().Sub(started))
}

// getJSON fetches a session-scoped API document and decodes it into out.
func (c *Client) getJSON(ctx context.Context, op string, url string, out any) error {
	resp, err := c.send(ctx, call{op: op, method: http.MethodGet, url: url, header: c.sessionHeaders()})
	if err != nil {
		return err
	}

	return decode(op, resp, out)
}

func decode(op string, resp *response, out any) error {
	if !resp.ok() {
		return &domain.TransportError{Op: op, StatusCode: resp.status}
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return &domain.TransportError{Op: op, StatusCode: resp.status, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) sessionHeaders() http.Header {
	header := http.Header{}
	header.Set("Accept", contentTypeJSON)
	if c.state.ServiceKey != "" {
		header.Set(widgetKeyHeader, c.state.ServiceKey)
	}
	if c.state.SessionID != "" {
		header.Set(sessionIDHeader, c.state.SessionID)
	}
	if c.state.SCNT != "" {
		header.Set(scntHeader, c.state.SCNT)
	}
	return header
}

func (c *Client) authHeaders() http.Header {
	header := c.sessionHeaders()
	header.Set(requestedWithHdr, requestedWithXHR)
	return header
}
