// Package api is the HTTP client for the PDF Buddy backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hyperjump/pdfbuddy/internal/models"
	"go.uber.org/zap"
)

// DefaultBaseURL is used when no backend URL is configured.
const DefaultBaseURL = "http://localhost:8080"

// DefaultTopSearches is the retrieval width used when none is given.
const DefaultTopSearches = 5

// Client calls the backend REST endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithTimeout sets the HTTP client timeout. The default is no client-side timeout.
func WithTimeout(d time.Duration) Option {
	return func(client *Client) {
		client.httpClient.Timeout = d
	}
}

// WithLogger sets a logger for request logging.
func WithLogger(l *zap.Logger) Option {
	return func(client *Client) {
		client.logger = l
	}
}

// NewClient creates a backend client. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// IndexPDF uploads the file for indexing and waits for the backend to finish.
// onSent, when non-nil, is called once as soon as the whole request body has been handed to the
// transport, which is the point where uploading ends and server-side indexing begins.
func (c *Client) IndexPDF(ctx context.Context, upload *models.Upload, onSent func()) (*models.IndexResult, error) {
	const op = "upload PDF"
	body, contentType, err := multipartBody(upload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	u, err := c.endpoint("/index-pdf")
	if err != nil {
		return nil, err
	}
	if pr := upload.PageRange; pr != nil {
		q := u.Query()
		q.Set("starting_page", strconv.Itoa(pr.Start))
		q.Set("ending_page", strconv.Itoa(pr.End))
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), &sentNotifier{r: bytes.NewReader(body), onEOF: onSent})
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}
	req.ContentLength = int64(len(body))
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("uploading pdf", zap.String("name", upload.Name), zap.Int("bytes", len(body)), zap.String("url", u.String()))
	var result models.IndexResult
	if err := c.do(req, &result); err != nil {
		return nil, wrapError(err, op)
	}
	return &result, nil
}

// GenerateResponse asks the backend for an answer to the last user message in req.
func (c *Client) GenerateResponse(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResponse, error) {
	const op = "generate response"
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", op, err)
	}
	u, err := c.endpoint("/generate-response")
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Debug("generating response", zap.Int("messages", len(req.Messages)), zap.Int("top_searches", req.TopSearches))
	var resp models.GenerateResponse
	if err := c.do(httpReq, &resp); err != nil {
		return nil, wrapError(err, op)
	}
	return &resp, nil
}

// FindReferences queries the retrieval index directly.
func (c *Client) FindReferences(ctx context.Context, query string, topSearches int) (*models.FindResponse, error) {
	const op = "find references"
	if topSearches <= 0 {
		topSearches = DefaultTopSearches
	}
	u, err := c.endpoint("/find")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("query", query)
	q.Set("top_searches", strconv.Itoa(topSearches))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")

	var resp models.FindResponse
	if err := c.do(req, &resp); err != nil {
		return nil, wrapError(err, op)
	}
	return &resp, nil
}

// PreviewURL returns the URL serving the raw PDF for remoteID.
func (c *Client) PreviewURL(remoteID string) string {
	return c.baseURL + "/preview-pdf/" + url.PathEscape(remoteID)
}

// FetchPreview opens the raw PDF stream for remoteID. The caller closes the returned body.
func (c *Client) FetchPreview(ctx context.Context, remoteID string) (io.ReadCloser, string, error) {
	const op = "preview PDF"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.PreviewURL(remoteID), nil)
	if err != nil {
		return nil, "", fmt.Errorf("%s: create request: %w", op, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%s: do request: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return nil, "", &Error{Op: op, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(b))}
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/pdf"
	}
	return resp.Body, contentType, nil
}

func (c *Client) endpoint(path string) (*url.URL, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u, nil
}

// do sends req and decodes a JSON response into result. Non-2xx responses become *Error.
func (c *Client) do(req *http.Request, result interface{}) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug("backend response",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}
	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func multipartBody(upload *models.Upload) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, upload.Name))
	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(upload.Data); err != nil {
		return nil, "", fmt.Errorf("write form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

// sentNotifier calls onEOF once when the wrapped body has been read to the end.
type sentNotifier struct {
	r     io.Reader
	onEOF func()
	once  sync.Once
}

func (s *sentNotifier) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err == io.EOF && s.onEOF != nil {
		s.once.Do(s.onEOF)
	}
	return n, err
}
