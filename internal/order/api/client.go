// Package api is the HTTP client for the business provisioning API: pricing
// previews, order submission and transaction status reads.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"nathanbeddoewebdev/vpsorder/internal/order/domain"
	"nathanbeddoewebdev/vpsorder/internal/retry"
)

const (
	defaultTimeout = 30 * time.Second

	pathPreview = "/business/instances/preview-pricing"
	pathCreate  = "/business/instances/create"
	pathStatus  = "/business/transactions/%s/status"

	// HeaderIdempotencyKey carries the per-attempt submission token.
	HeaderIdempotencyKey = "Idempotency-Key"
)

// defaultStatusRetry allows one extra attempt for a status read.
var defaultStatusRetry = retry.Config{
	MaxAttempts: 2,
	BaseDelay:   250 * time.Millisecond,
	MaxDelay:    time.Second,
}

// AuthProvider supplies the headers that authenticate a request, typically
// a bearer token. It is consulted on every request.
type AuthProvider interface {
	AuthHeaders(ctx context.Context) (http.Header, error)
}

// Client talks to the business API.
type Client struct {
	baseURL     string
	auth        AuthProvider
	httpClient  *http.Client
	logger      *slog.Logger
	statusRetry retry.Config
	newKey      func() string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithStatusRetry overrides the retry policy of status reads.
func WithStatusRetry(cfg retry.Config) Option {
	return func(c *Client) { c.statusRetry = cfg }
}

// WithKeyGenerator replaces the idempotency key generator.
func WithKeyGenerator(fn func() string) Option {
	return func(c *Client) { c.newKey = fn }
}

// NewClient creates a Client for the API rooted at baseURL.
func NewClient(baseURL string, auth AuthProvider, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		auth:        auth,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		logger:      slog.Default(),
		statusRetry: defaultStatusRetry,
		newKey:      NewIdempotencyKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewIdempotencyKey returns a token unique to one submission attempt. It
// combines the wall clock with a random UUID.
func NewIdempotencyKey() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.NewString())
}

// RequestError is a failed HTTP exchange that never produced a usable
// response: a transport failure or a gateway error from a proxy. Callers
// may retry the specific action.
type RequestError struct {
	Method string
	Path   string
	Status int
	Err    error
}

func (e *RequestError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: HTTP %d: %v", e.Method, e.Path, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// Temporary reports that the request may succeed when repeated.
func (e *RequestError) Temporary() bool { return true }

// Timeout reports whether the request failed by timing out.
func (e *RequestError) Timeout() bool {
	var te interface{ Timeout() bool }
	return errors.As(e.Err, &te) && te.Timeout()
}

// --- HTTP helpers ---

// doJSON sends body as JSON and decodes the response envelope into out. The
// returned status is zero when no response was received.
func (c *Client) doJSON(ctx context.Context, method, path string, header http.Header, body, out any) (int, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to encode request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.auth != nil {
		authHeaders, err := c.auth.AuthHeaders(ctx)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
		}
		for k, vs := range authHeaders {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("api request failed", "method", method, "path", path, "error", err)
		return 0, &RequestError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("api request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	switch resp.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return resp.StatusCode, &RequestError{Method: method, Path: path, Status: resp.StatusCode, Err: domain.ErrRemote}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if resp.StatusCode >= 400 {
			return resp.StatusCode, nil
		}
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}

// envelopeError maps an unsuccessful response to an error. Validation
// failures become *domain.ValidationError with keys translated to the
// local "instances.<i>.<field>" shape.
func envelopeError(success bool, message string, rawErrors json.RawMessage, httpStatus int) error {
	if success && httpStatus < 400 {
		return nil
	}

	fields, list := decodeErrors(rawErrors)
	if message == "" && len(list) > 0 {
		message = strings.Join(list, "; ")
	}
	if message == "" {
		message = http.StatusText(httpStatus)
	}
	if message == "" {
		message = "request was not successful"
	}

	switch httpStatus {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, message)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, message)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, message)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", domain.ErrConflict, message)
	}

	if !fields.Empty() {
		return &domain.ValidationError{Fields: fields, Message: message, Remote: true}
	}
	return fmt.Errorf("%w: %s", domain.ErrRemote, message)
}

// decodeErrors accepts the two error shapes the backend emits: an object
// keyed by field path, or a list of messages.
func decodeErrors(raw json.RawMessage) (domain.FieldErrors, []string) {
	fields := domain.FieldErrors{}
	if len(raw) == 0 {
		return fields, nil
	}

	var keyed map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keyed); err == nil {
		for key, v := range keyed {
			path := RemoteFieldPath(key)
			for _, msg := range decodeMessages(v) {
				fields.Add(path, msg)
			}
		}
		return fields, nil
	}

	return fields, decodeMessages(raw)
}

func decodeMessages(raw json.RawMessage) []string {
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil && one != "" {
		return []string{one}
	}
	var objs []struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &objs); err == nil {
		out := make([]string, 0, len(objs))
		for _, o := range objs {
			if o.Message != "" {
				out = append(out, o.Message)
			}
		}
		return out
	}
	return nil
}

// remoteFieldNames maps wire field names back to the names Validate uses.
var remoteFieldNames = map[string]string{
	"number_of_instances": "count",
}

// RemoteFieldPath translates a backend error key such as
// "pricing_requests.0.number_of_instances" to "instances.0.count". Keys
// outside the bundle list are returned unchanged.
func RemoteFieldPath(key string) string {
	rest, ok := strings.CutPrefix(key, "pricing_requests.")
	if !ok {
		rest, ok = strings.CutPrefix(key, "instances.")
	}
	if !ok {
		return key
	}
	parts := strings.Split(rest, ".")
	if len(parts) >= 2 {
		if local, found := remoteFieldNames[parts[1]]; found {
			parts[1] = local
		}
	}
	return "instances." + strings.Join(parts, ".")
}

// --- Operations ---

// Preview requests a price quote for bundles. It is a single call with no
// retry; on failure the caller keeps whatever preview it already had.
func (c *Client) Preview(ctx context.Context, bundles []domain.ConfigurationBundle, fastTrack bool, assignment domain.OrderAssignment) (*domain.PricingPreview, error) {
	payload, err := BuildPricingPayload(bundles, fastTrack, assignment)
	if err != nil {
		return nil, fmt.Errorf("failed to build pricing request: %w", err)
	}

	var out envelope[wirePricing]
	status, err := c.doJSON(ctx, http.MethodPost, pathPreview, nil, payload, &out)
	if err != nil {
		return nil, fmt.Errorf("failed to preview pricing: %w", err)
	}
	if apiErr := envelopeError(out.Success, out.Message, out.Errors, status); apiErr != nil {
		return nil, fmt.Errorf("failed to preview pricing: %w", apiErr)
	}

	preview := out.Data.toDomain()
	return &preview, nil
}

// SubmitRequest is one order submission attempt.
type SubmitRequest struct {
	Bundles    []domain.ConfigurationBundle
	FastTrack  bool
	Assignment domain.OrderAssignment
	Tags       []string

	// IdempotencyKey identifies this attempt. A fresh key is generated when
	// it is empty; a deliberate resubmission must not reuse a key.
	IdempotencyKey string
}

// Submit sends an order. It is never retried automatically. The result is
// PaymentRequired only when the backend asks for payment and fast-track
// completion has not already happened.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (*domain.SubmissionResult, error) {
	payload, err := BuildSubmissionPayload(req.Bundles, req.FastTrack, req.Assignment, req.Tags)
	if err != nil {
		return nil, fmt.Errorf("failed to build order request: %w", err)
	}

	key := req.IdempotencyKey
	if key == "" {
		key = c.newKey()
	}
	header := http.Header{}
	header.Set(HeaderIdempotencyKey, key)

	c.logger.Info("submitting order", "bundles", len(req.Bundles), "fast_track", req.FastTrack, "idempotency_key", key)

	var out envelope[wireSubmission]
	status, err := c.doJSON(ctx, http.MethodPost, pathCreate, header, payload, &out)
	if err != nil {
		return nil, fmt.Errorf("failed to submit order: %w", err)
	}
	if apiErr := envelopeError(out.Success, out.Message, out.Errors, status); apiErr != nil {
		return nil, fmt.Errorf("failed to submit order: %w", apiErr)
	}

	result := &domain.SubmissionResult{
		Outcome:        domain.OutcomeProvisioningStarted,
		IdempotencyKey: key,
		Message:        out.Message,
		Instances:      out.Data.instances(),
	}
	if out.Data.Payment.Required && !out.Data.FastTrackCompleted {
		tx := out.Data.transaction()
		if tx == nil {
			return nil, fmt.Errorf("failed to submit order: %w: payment required without a transaction", domain.ErrRemote)
		}
		result.Outcome = domain.OutcomePaymentRequired
		result.Transaction = tx
	}
	return result, nil
}

// TransactionStatus reads the current status of a transaction. Transient
// transport failures are retried once since the read has no side effects.
func (c *Client) TransactionStatus(ctx context.Context, id string) (domain.StatusReport, error) {
	path := fmt.Sprintf(pathStatus, url.PathEscape(id))

	cfg := c.statusRetry
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		c.logger.Debug("retrying transaction status read", "transaction_id", id, "attempt", attempt, "delay", delay, "error", err)
	}
	report, err := retry.Value(ctx, cfg, retry.IsRetryable, func() (domain.StatusReport, error) {
		var out envelope[wireStatus]
		status, err := c.doJSON(ctx, http.MethodGet, path, nil, nil, &out)
		if err != nil {
			return domain.StatusReport{}, err
		}
		if apiErr := envelopeError(out.Success, out.Message, out.Errors, status); apiErr != nil {
			return domain.StatusReport{}, apiErr
		}
		return out.Data.toDomain(id), nil
	})
	if err != nil {
		return domain.StatusReport{}, fmt.Errorf("failed to read transaction %s: %w", id, err)
	}
	if report.Status == "" {
		return domain.StatusReport{}, fmt.Errorf("failed to read transaction %s: %w: empty status", id, domain.ErrRemote)
	}
	return report, nil
}
