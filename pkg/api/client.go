package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/breeze-rmm/inventory-agent/internal/httputil"
	"github.com/breeze-rmm/inventory-agent/internal/logging"
)

var log = logging.L("api")

// SendTimeout bounds a single delivery attempt.
const SendTimeout = 30 * time.Second

// DeliveryError is returned for every failed delivery: transport errors,
// non-200 replies and unreadable acknowledgements.
type DeliveryError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("delivery %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("delivery %s: %v", e.Op, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// ErrUnexpectedStatus is wrapped when the collector answers with anything
// other than 200.
var ErrUnexpectedStatus = errors.New("unexpected status")

type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default client (30s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  "inventory-agent",
		httpClient: &http.Client{Timeout: SendTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

// SendReport posts report to the collector once. Only a 200 with a
// readable acknowledgement counts as delivered.
func (c *Client) SendReport(ctx context.Context, report any) (*Ack, error) {
	body, err := json.Marshal(report)
	if err != nil {
		return nil, &DeliveryError{Op: "encode", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, SendTimeout)
	defer cancel()

	requestID := uuid.NewString()
	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("User-Agent", c.userAgent)
	headers.Set(HeaderRequestID, requestID)

	url := c.baseURL + DataPath
	start := time.Now()
	resp, err := httputil.Do(ctx, c.httpClient, http.MethodPost, url, body, headers, httputil.NoRetry())
	if err != nil {
		var statusErr *httputil.StatusError
		if errors.As(err, &statusErr) {
			return nil, &DeliveryError{Op: "post", StatusCode: statusErr.StatusCode, Err: fmt.Errorf("%w: %s", ErrUnexpectedStatus, strings.TrimSpace(statusErr.Body))}
		}
		return nil, &DeliveryError{Op: "post", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &DeliveryError{Op: "post", StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: %s", ErrUnexpectedStatus, strings.TrimSpace(string(snippet)))}
	}

	var ack Ack
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return nil, &DeliveryError{Op: "decode ack", StatusCode: resp.StatusCode, Err: err}
	}
	if ack.Status != "success" {
		return nil, &DeliveryError{Op: "decode ack", StatusCode: resp.StatusCode, Err: fmt.Errorf("ack status %q", ack.Status)}
	}
	ack.RequestID = requestID

	logging.WithRequest(log, requestID).Debug("report delivered",
		"bytes", len(body),
		logging.KeyDurationMs, time.Since(start).Milliseconds(),
	)
	return &ack, nil
}

// Health queries the collector's health endpoint, retrying transient
// failures.
func (c *Client) Health(ctx context.Context, retry httputil.RetryConfig) (*HealthResponse, error) {
	headers := http.Header{}
	headers.Set("User-Agent", c.userAgent)

	resp, err := httputil.Do(ctx, c.httpClient, http.MethodGet, c.baseURL+HealthPath, nil, headers, retry)
	if err != nil {
		return nil, fmt.Errorf("health check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("health check: %w %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	var h HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return nil, fmt.Errorf("health check: decode: %w", err)
	}
	return &h, nil
}
