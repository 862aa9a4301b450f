package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/pot-code/go-elearning/internal/infrastructure/logging"
	"go.uber.org/zap"
)

type contextToken string

const tokenKey contextToken = "bearer"

// maximum number of response bytes kept in a NetworkError
const maxErrorBody = 256

// WithToken attach the caller's bearer token, it is forwarded on every backend request made with ctx
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey, token)
}

// TokenFromContext bearer token set by WithToken
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey).(string)
	return token
}

// Config backend client options
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client JSON over HTTP access to the e-learning API
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient create a backend client
func NewClient(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// GetJSON GET path and decode the JSON answer into out
func (c *Client) GetJSON(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, "", out)
}

// PostJSON POST in as JSON to path and decode the answer into out, out may be nil
func (c *Client) PostJSON(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(body), "application/json", out)
}

// FilePart file field of a multipart request
type FilePart struct {
	Field    string
	FileName string
	Content  []byte
}

// PutMultipart PUT a multipart form made of fields and an optional file
func (c *Client) PutMultipart(ctx context.Context, path string, fields map[string]string, file *FilePart, out interface{}) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			return fmt.Errorf("write form field %s: %w", name, err)
		}
	}
	if file != nil {
		fw, err := mw.CreateFormFile(file.Field, file.FileName)
		if err != nil {
			return fmt.Errorf("create form file: %w", err)
		}
		if _, err := fw.Write(file.Content); err != nil {
			return fmt.Errorf("write form file: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart writer: %w", err)
	}
	return c.do(ctx, http.MethodPut, path, &buf, mw.FormDataContentType(), out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out interface{}) error {
	logger := logging.ExtractLoggerFromContext(ctx)
	url := c.baseURL + path
	startTime := time.Now()

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return &NetworkError{Op: method, URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := TokenFromContext(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Op: method, URL: url, Err: err}
	}
	defer res.Body.Close()

	logger.Debug("", zap.String("backend.method", method),
		zap.String("backend.url", url),
		zap.Int("backend.status_code", res.StatusCode),
		zap.Duration("backend.time", time.Since(startTime)),
	)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		msg, _ := ioutil.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return &NetworkError{
			Op:         method,
			URL:        url,
			StatusCode: res.StatusCode,
			Body:       strings.TrimSpace(string(msg)),
			Err:        fmt.Errorf("unexpected status %s", res.Status),
		}
	}
	if out == nil {
		return nil
	}
	// an empty 2xx body leaves out untouched
	if err := json.NewDecoder(res.Body).Decode(out); err != nil && err != io.EOF {
		return &NetworkError{Op: method, URL: url, StatusCode: res.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
