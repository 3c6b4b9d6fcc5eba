package lojack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Transport is the single operation the client core consumes. It returns
// decoded JSON (map, slice, or scalar) for JSON responses and the raw body
// string otherwise, and raises a classified error instead of ever handing
// back an error payload.
type Transport interface {
	Request(ctx context.Context, method, path string, params url.Values, body any, headers http.Header) (any, error)
}

// HTTPTransport implements Transport over net/http against one base URL.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
	log     logrus.FieldLogger
}

// TransportOption configures an HTTPTransport.
type TransportOption func(*HTTPTransport)

// WithHTTPClient supplies an external *http.Client, e.g. with a custom
// TLS config or connection pool.
func WithHTTPClient(client *http.Client) TransportOption {
	return func(t *HTTPTransport) { t.client = client }
}

// WithTransportLogger attaches a logger for per-request debug lines.
func WithTransportLogger(log logrus.FieldLogger) TransportOption {
	return func(t *HTTPTransport) { t.log = log }
}

// WithTimeout sets the request timeout on the internally built client.
func WithTimeout(timeout time.Duration) TransportOption {
	return func(t *HTTPTransport) { t.client.Timeout = timeout }
}

// NewHTTPTransport builds a transport for the given base URL.
func NewHTTPTransport(baseURL string, opts ...TransportOption) *HTTPTransport {
	t := &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: DefaultTimeout},
		log:     discardLogger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Request issues one HTTP call and decodes the response. HTTP 401 maps to
// AuthenticationError, 403 to AuthorizationError, any other non-2xx to
// APIError carrying the status and raw body; timeouts and connection
// failures map to TimeoutError and ConnectionError.
func (t *HTTPTransport) Request(ctx context.Context, method, path string, params url.Values, body any, headers http.Header) (any, error) {
	reqURL := t.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, &ConnectionError{Message: "encode request body", Err: err}
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, &ConnectionError{Message: "build request", Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if req.Header.Get(headerCorrelationID) == "" {
		req.Header.Set(headerCorrelationID, uuid.NewString())
	}

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		observeRequest(method, "error", time.Since(start))
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		observeRequest(method, "error", time.Since(start))
		return nil, &ConnectionError{Message: "read response body", Err: err}
	}

	t.log.WithFields(logrus.Fields{
		"method": method,
		"path":   path,
		"status": resp.StatusCode,
		"took":   time.Since(start).Round(time.Millisecond).String(),
	}).Debug("api request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		observeRequest(method, "error", time.Since(start))
		return nil, mapHTTPError(resp.StatusCode, string(raw))
	}
	observeRequest(method, "success", time.Since(start))

	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err == nil {
			return decoded, nil
		}
		// Servers occasionally lie about the content type; fall back to text.
	}
	return string(raw), nil
}

func mapHTTPError(status int, body string) error {
	switch status {
	case http.StatusUnauthorized:
		return &AuthenticationError{Message: authFailureMessage(body, "authentication failed")}
	case http.StatusForbidden:
		return &AuthorizationError{Message: authFailureMessage(body, "access denied")}
	default:
		return &APIError{
			Message:    fmt.Sprintf("http %d", status),
			StatusCode: status,
			Body:       body,
		}
	}
}

// authFailureMessage pulls a human-readable message out of an error body
// when one is present.
func authFailureMessage(body, fallback string) string {
	var decoded map[string]any
	if err := json.Unmarshal([]byte(body), &decoded); err == nil {
		if msg := optionalString(firstValue(decoded, "message", "error")); msg != nil {
			return *msg
		}
	}
	return fallback
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Message: "request timed out", Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Message: "request timed out", Err: err}
	}
	return &ConnectionError{Message: "request failed", Err: err}
}

func discardLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
