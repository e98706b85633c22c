package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// DefaultBaseURL is the backend address used when none is configured
const DefaultBaseURL = "http://localhost:8080"

const (
	uploadPath     = "/upload/pdf"
	processURLPath = "/process/url"
	queryPath      = "/query"
	quizCheckPath  = "/quiz/check"

	uploadField      = "file"
	maxResponseBytes = 1 << 20
	maxErrorBody     = 4096
)

// HTTPStatusError captures a non-2xx backend response
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("api: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// HTTPStatusCode returns the backend status code
func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client issues the backend calls. Every call is a single request: there are
// no retries and no client-side timeout, only the caller's context.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
	meter      metric.Meter

	duration metric.Float64Histogram
	failures metric.Int64Counter
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTracer sets the tracer used for request spans
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = tracer
	}
}

// WithMeter sets the meter used for request metrics
func WithMeter(meter metric.Meter) Option {
	return func(c *Client) {
		c.meter = meter
	}
}

// New creates a Client for the backend at baseURL
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("api: invalid base URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api: base URL %q must use http or https", baseURL)
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer("retrievo/api")
	}
	if c.meter == nil {
		c.meter = otel.Meter("retrievo/api")
	}

	c.duration, err = c.meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("Backend request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		c.logger.Warn("failed to create duration histogram", "error", err)
	}
	c.failures, err = c.meter.Int64Counter(
		"retrievo.api.failures",
		metric.WithDescription("Backend calls that failed in transport or with a non-2xx status"),
	)
	if err != nil {
		c.logger.Warn("failed to create failure counter", "error", err)
	}

	return c, nil
}

// BaseURL returns the backend address
func (c *Client) BaseURL() string {
	return c.baseURL
}

// UploadDocument sends a document as the multipart field "file"
func (c *Client) UploadDocument(ctx context.Context, name, contentType string, body io.Reader) (UploadResponse, error) {
	if body == nil {
		return UploadResponse{}, errors.New("api: upload body must not be nil")
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{
		"name":     uploadField,
		"filename": name,
	}))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return UploadResponse{}, fmt.Errorf("api: create form part: %w", err)
	}
	if _, err := io.Copy(part, body); err != nil {
		return UploadResponse{}, fmt.Errorf("api: read upload body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return UploadResponse{}, fmt.Errorf("api: close multipart writer: %w", err)
	}

	var out UploadResponse
	if err := c.post(ctx, "upload_document", uploadPath, writer.FormDataContentType(), &buf, &out); err != nil {
		return UploadResponse{}, err
	}
	return out, nil
}

// SubmitURL asks the backend to ingest the page at rawURL
func (c *Client) SubmitURL(ctx context.Context, rawURL string) (UploadResponse, error) {
	var out UploadResponse
	if err := c.postJSON(ctx, "submit_url", processURLPath, processURLRequest{URL: rawURL}, &out); err != nil {
		return UploadResponse{}, err
	}
	return out, nil
}

// SubmitQuery asks the backend a question
func (c *Client) SubmitQuery(ctx context.Context, text string) (QueryResponse, error) {
	var out QueryResponse
	if err := c.postJSON(ctx, "submit_query", queryPath, queryRequest{Query: text}, &out); err != nil {
		return QueryResponse{}, err
	}
	return out, nil
}

// CheckAnswer asks the backend to grade an answer to a quiz question
func (c *Client) CheckAnswer(ctx context.Context, question, userAnswer, correctAnswer string) (AnswerFeedback, error) {
	req := checkAnswerRequest{
		Question:      question,
		UserAnswer:    userAnswer,
		CorrectAnswer: correctAnswer,
	}
	var out AnswerFeedback
	if err := c.postJSON(ctx, "check_answer", quizCheckPath, req, &out); err != nil {
		return AnswerFeedback{}, err
	}
	return out, nil
}

func (c *Client) postJSON(ctx context.Context, op, path string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("api: marshal %s request: %w", op, err)
	}
	return c.post(ctx, op, path, "application/json", bytes.NewReader(data), out)
}

func (c *Client) post(ctx context.Context, op, path, contentType string, body io.Reader, out any) (err error) {
	endpoint := c.baseURL + path

	ctx, span := c.tracer.Start(ctx, "backend."+op, trace.WithAttributes(
		attribute.String("http.request.method", http.MethodPost),
		attribute.String("url.full", endpoint),
	))
	defer span.End()

	start := time.Now()
	status := 0
	defer func() {
		attrs := metric.WithAttributes(
			attribute.String("operation", op),
			attribute.Int("http.response.status_code", status),
		)
		if c.duration != nil {
			c.duration.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
		}
		if err != nil {
			if c.failures != nil {
				c.failures.Add(ctx, 1, attrs)
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.logger.Warn("backend call failed", "operation", op, "status", status, "error", err)
			return
		}
		c.logger.Info("backend call completed", "operation", op, "status", status, "duration_ms", time.Since(start).Milliseconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return fmt.Errorf("api: create %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()
	status = resp.StatusCode
	span.SetAttributes(attribute.Int("http.response.status_code", status))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &HTTPStatusError{
			StatusCode: resp.StatusCode,
			URL:        endpoint,
			Body:       strings.TrimSpace(string(buf)),
		}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("api: read %s response: %w", op, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("api: decode %s response: %w", op, err)
	}
	return nil
}
