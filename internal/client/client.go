// Package client holds the HTTP plumbing shared by the submission and
// assistant API clients: request execution, error classification and options.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrEmptyFile is returned before any request when an upload has no content.
var ErrEmptyFile = errors.New("文件为空")

// Doer is the subset of *http.Client the clients need.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option customizes a Base.
type Option func(*Base)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(doer Doer) Option {
	return func(b *Base) {
		if doer != nil {
			b.http = doer
		}
	}
}

// WithTimeout sets a whole-request timeout on the default http.Client.
// Zero keeps the transport's own behaviour.
func WithTimeout(timeout time.Duration) Option {
	return func(b *Base) {
		if timeout > 0 {
			b.http = &http.Client{Timeout: timeout}
		}
	}
}

// WithLogger sets the logger used for per-request debug lines.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Base) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// Base issues single requests against one base URL. It never retries.
type Base struct {
	baseURL string
	http    Doer
	logger  *zap.Logger
}

// NewBase creates a Base for baseURL. A trailing slash is ignored.
func NewBase(baseURL string, opts ...Option) *Base {
	b := &Base{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BaseURL returns the normalized base URL.
func (b *Base) BaseURL() string {
	return b.baseURL
}

// Request describes one call.
type Request struct {
	// Op names the operation in logs and errors.
	Op string
	// FailMessage is the human readable message of the APIError on non-2xx.
	FailMessage string
	Method      string
	Path        string
	Body        io.Reader
	ContentType string
}

// Do executes req and returns the raw response body of a 2xx response.
// Non-2xx responses become *APIError; transport failures are wrapped.
func (b *Base) Do(ctx context.Context, req Request) ([]byte, error) {
	url := b.baseURL + req.Path
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, req.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", req.Op, err)
	}
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := b.http.Do(httpReq)
	if err != nil {
		b.logger.Debug("request failed",
			zap.String("op", req.Op),
			zap.String("method", req.Method),
			zap.String("url", url),
			zap.Error(err))
		return nil, fmt.Errorf("%s: %w", req.Op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", req.Op, err)
	}

	b.logger.Debug("request finished",
		zap.String("op", req.Op),
		zap.String("method", req.Method),
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(req.Op, req.FailMessage, resp.StatusCode, body)
	}
	return body, nil
}

// DoJSON marshals payload as the request body and returns the raw response.
func (b *Base) DoJSON(ctx context.Context, req Request, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", req.Op, err)
	}
	req.Body = bytes.NewReader(data)
	req.ContentType = "application/json"
	return b.Do(ctx, req)
}

// DoMultipart sends the file under field "file" plus extra form fields.
func (b *Base) DoMultipart(ctx context.Context, req Request, filename string, file io.Reader, fields map[string]string) ([]byte, error) {
	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("%s: read file: %w", req.Op, err)
	}
	if len(content) == 0 {
		return nil, ErrEmptyFile
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("%s: create form file: %w", req.Op, err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("%s: write form file: %w", req.Op, err)
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("%s: write field %s: %w", req.Op, key, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("%s: close multipart: %w", req.Op, err)
	}

	req.Body = body
	req.ContentType = writer.FormDataContentType()
	return b.Do(ctx, req)
}

// Decode unmarshals a successful body into v. Only malformed JSON fails, as a
// plain wrapped error rather than an APIError. Fields whose JSON type does not
// match v are left zero and the rest is still decoded.
func Decode(op string, body []byte, v any) error {
	err := json.Unmarshal(body, v)
	var typeErr *json.UnmarshalTypeError
	if err == nil || errors.As(err, &typeErr) {
		return nil
	}
	return fmt.Errorf("%s: decode response: %w", op, err)
}
