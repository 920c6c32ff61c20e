// Package httpclient fetches manifests, lyric files and media bodies. A
// location may be an http(s) URL, a local path, a file:// URL or a data:
// URI; relative locations resolve against the configured base.
package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"karolbroda.com/lyreplay/internal/logger"
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultUserAgent = "lyreplay/1.0"
	maxBodyBytes     = 8 << 20
)

type Options struct {
	BaseURL   string
	Timeout   time.Duration
	Retries   int
	RateLimit float64
	Burst     int
	UserAgent string
}

type Client struct {
	base      *url.URL
	baseDir   string
	http      *retryablehttp.Client
	limiter   *rate.Limiter
	userAgent string
}

type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d", e.URL, e.Code)
}

func IsNotFound(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusNotFound
	}
	return errors.Is(err, os.ErrNotExist)
}

// Body is an open response or file.
type Body struct {
	io.ReadCloser
	ContentType string
	Location    string
}

func New(opts Options) (*Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.Retries
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.HTTPClient.Timeout = opts.Timeout
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = retryLogger{}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	c := &Client{
		http:      retryClient,
		limiter:   rate.NewLimiter(limit, burst),
		userAgent: opts.UserAgent,
	}

	if opts.BaseURL != "" {
		if isRemote(opts.BaseURL) {
			u, err := url.Parse(opts.BaseURL)
			if err != nil {
				return nil, fmt.Errorf("invalid base url %q: %w", opts.BaseURL, err)
			}
			if !strings.HasSuffix(u.Path, "/") {
				u.Path += "/"
			}
			c.base = u
		} else {
			c.baseDir = strings.TrimPrefix(opts.BaseURL, "file://")
		}
	}

	return c, nil
}

func isRemote(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Resolve turns a manifest location into an absolute URL or file path.
// Site-rooted paths such as /audio/1.mp3 hang off the base.
func (c *Client) Resolve(location string) (string, error) {
	location = strings.TrimSpace(location)
	switch {
	case location == "":
		return "", errors.New("empty location")
	case strings.HasPrefix(location, "data:"), isRemote(location):
		return location, nil
	case strings.HasPrefix(location, "file://"):
		return strings.TrimPrefix(location, "file://"), nil
	case c.base != nil:
		ref, err := url.Parse(location)
		if err != nil {
			return "", fmt.Errorf("invalid location %q: %w", location, err)
		}
		if strings.HasPrefix(location, "/") {
			ref.Path = strings.TrimPrefix(ref.Path, "/")
		}
		return c.base.ResolveReference(ref).String(), nil
	case c.baseDir != "":
		if filepath.IsAbs(location) {
			if _, err := os.Stat(location); err == nil {
				return location, nil
			}
		}
		return filepath.Join(c.baseDir, filepath.FromSlash(location)), nil
	default:
		return location, nil
	}
}

// GetBytes reads a whole body, retrying transient http failures.
func (c *Client) GetBytes(ctx context.Context, location string) ([]byte, error) {
	target, err := c.Resolve(location)
	if err != nil {
		return nil, err
	}

	if !isRemote(target) {
		open := c.openLocal
		if strings.HasPrefix(target, "data:") {
			open = openDataURI
		}
		body, err := open(target)
		if err != nil {
			return nil, err
		}
		defer body.Close()
		return io.ReadAll(io.LimitReader(body, maxBodyBytes))
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", target, err)
	}
	defer resp.Body.Close()

	logger.Debug("http get",
		logger.String("url", target),
		logger.Int("status", resp.StatusCode),
		logger.Duration("elapsed", time.Since(start)))

	if resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 512))
		return nil, &StatusError{URL: target, Code: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return data, nil
}

func (c *Client) GetText(ctx context.Context, location string) (string, error) {
	data, err := c.GetBytes(ctx, location)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (c *Client) GetJSON(ctx context.Context, location string, v any) error {
	data, err := c.GetBytes(ctx, location)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", location, err)
	}
	return nil
}

// Open starts a single streaming request. Probes use it to read just enough
// of a body to judge it, so it does not retry.
func (c *Client) Open(ctx context.Context, location string, header http.Header) (*Body, error) {
	target, err := c.Resolve(location)
	if err != nil {
		return nil, err
	}

	if strings.HasPrefix(target, "data:") {
		return openDataURI(target)
	}
	if !isRemote(target) {
		return c.openLocal(target)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", target, err)
	}

	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, &StatusError{URL: target, Code: resp.StatusCode}
	}

	return &Body{
		ReadCloser:  resp.Body,
		ContentType: resp.Header.Get("Content-Type"),
		Location:    resp.Request.URL.String(),
	}, nil
}

func (c *Client) openLocal(path string) (*Body, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%s is a directory", path)
	}

	return &Body{
		ReadCloser:  f,
		ContentType: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
		Location:    path,
	}, nil
}

type retryLogger struct{}

func fields(kv []interface{}) []logger.Field {
	out := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		out = append(out, logger.Any(key, kv[i+1]))
	}
	return out
}

func (retryLogger) Error(msg string, kv ...interface{}) { logger.Warn(msg, fields(kv)...) }
func (retryLogger) Info(msg string, kv ...interface{})  { logger.Debug(msg, fields(kv)...) }
func (retryLogger) Debug(msg string, kv ...interface{}) { logger.Debug(msg, fields(kv)...) }
func (retryLogger) Warn(msg string, kv ...interface{})  { logger.Warn(msg, fields(kv)...) }
