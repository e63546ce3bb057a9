package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/analysisctl/pkg/models"
)

// Sentinel errors for agent exchanges.
var (
	ErrUnreachable = errors.New("agent unreachable")
	ErrTimeout     = errors.New("agent request timeout")
	ErrDecode      = errors.New("agent returned an undecodable response")
)

// maxErrorBody caps how much of a non-2xx body is kept for diagnostics.
const maxErrorBody = 4096

// Client performs single request/response exchanges with the analysis agent.
// It never retries; wrap calls in a retry.Policy for that.
type Client interface {
	Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error)
	GetJob(ctx context.Context, id string) (*models.Job, error)
	ListJobs(ctx context.Context) (*models.JobList, error)
	Status(ctx context.Context) error
}

// SubmitRequest is the body of POST /analyze.
type SubmitRequest struct {
	Content      string `json:"content"`
	AnalysisType string `json:"analysis_type"`
}

// SubmitResponse is the agent's acknowledgement of a submission.
type SubmitResponse struct {
	ID     string `json:"analysis_id"`
	Status string `json:"status"`
}

// RemoteError is a response that was delivered but carried a non-2xx status.
type RemoteError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: agent returned status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: agent returned status %d: %s", e.Op, e.StatusCode, e.Body)
}

// TransportError is a failure to complete the exchange at all: connection
// refused, DNS failure or timeout. Err wraps ErrUnreachable or ErrTimeout.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// HTTPClient implements Client over the agent's JSON HTTP API.
type HTTPClient struct {
	baseURL       string
	client        *http.Client
	submitTimeout time.Duration
	logger        *slog.Logger
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithSubmitTimeout sets a separate timeout for POST /analyze, which the agent
// answers more slowly than status reads.
func WithSubmitTimeout(d time.Duration) Option {
	return func(c *HTTPClient) { c.submitTimeout = d }
}

// WithLogger sets the logger used for per-exchange debug records.
func WithLogger(l *slog.Logger) Option {
	return func(c *HTTPClient) { c.logger = l }
}

// NewHTTPClient creates a new agent HTTP client. timeout bounds every exchange.
func NewHTTPClient(baseURL string, timeout time.Duration, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the agent root this client talks to.
func (c *HTTPClient) BaseURL() string { return c.baseURL }

func (c *HTTPClient) Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding submit request: %w", err)
	}

	if c.submitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.submitTimeout)
		defer cancel()
	}

	var out SubmitResponse
	if err := c.do(ctx, "submit", http.MethodPost, "/analyze", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) GetJob(ctx context.Context, id string) (*models.Job, error) {
	var rec jobRecord
	if err := c.do(ctx, "get-status", http.MethodGet, "/analysis/"+url.PathEscape(id), nil, &rec); err != nil {
		return nil, err
	}
	job := rec.toJob()
	if job.ID == "" {
		job.ID = id
	}
	return &job, nil
}

func (c *HTTPClient) ListJobs(ctx context.Context) (*models.JobList, error) {
	var list models.JobList
	if err := c.do(ctx, "list-jobs", http.MethodGet, "/jobs", nil, &list); err != nil {
		return nil, err
	}
	if list.Jobs == nil {
		list.Jobs = []models.JobSummary{}
	}
	return &list, nil
}

func (c *HTTPClient) Status(ctx context.Context) error {
	return c.do(ctx, "status", http.MethodGet, "/status", nil, nil)
}

// do performs exactly one exchange. out may be nil when only the status code
// matters.
func (c *HTTPClient) do(ctx context.Context, op, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	reqID := uuid.NewString()
	httpReq.Header.Set("X-Request-ID", reqID)
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.logger.Debug("agent request failed",
			"op", op, "req_id", reqID, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return &TransportError{Op: op, Err: classifyError(err)}
	}
	defer resp.Body.Close()

	c.logger.Debug("agent response",
		"op", op, "req_id", reqID, "status", resp.StatusCode,
		"elapsed_ms", time.Since(start).Milliseconds())

	if resp.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &RemoteError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrDecode, err)
	}
	return nil
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
