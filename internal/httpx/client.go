package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"
)

const maxErrorBody = 4096

// ErrDecode wraps payloads that arrived but could not be decoded.
var ErrDecode = errors.New("decode failed")

// Client is a plain HTTP client shared by API-style adapters. It applies a per-host
// rate limit and turns 4xx/5xx answers into *FetchError.
type Client struct {
	client   *http.Client
	ua       string
	every    time.Duration
	burst    int
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
}

func NewClient(userAgent string) *Client {
	if userAgent == "" {
		userAgent = "job-aggregator-bot/1.0"
	}
	return &Client{
		client:   &http.Client{Timeout: 30 * time.Second},
		ua:       userAgent,
		every:    time.Second,
		burst:    2,
		limiters: map[string]*rate.Limiter{},
	}
}

// SetHostRate replaces the default 1 req/s, burst 2 policy for hosts created afterwards.
func (c *Client) SetHostRate(every time.Duration, burst int) {
	if every < 0 || burst <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.every = every
	c.burst = burst
}

func (c *Client) limiterFor(host string) *rate.Limiter {
	key := normalizeHost(host)
	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.limiters[key]; ok {
		return l
	}
	limit := rate.Inf
	if c.every > 0 {
		limit = rate.Every(c.every)
	}
	l := rate.NewLimiter(limit, c.burst)
	c.limiters[key] = l
	return l
}

// NewRequest builds an HTTP GET request with context and a safe URL defaulting to https.
func NewRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	target, err := normalizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	return http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
}

// Do executes req after waiting for the host's limiter. The caller closes the body.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.ua)
	}

	if err := c.limiterFor(req.URL.Hostname()).Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, redactError(err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()
		fe := &FetchError{Status: resp.StatusCode, URL: redactURL(req.URL.String())}
		if msg := strings.TrimSpace(string(body)); msg != "" {
			fe.Err = errors.New(truncate(msg, 200))
		}
		return nil, fe
	}
	return resp, nil
}

// Get fetches rawURL with the given extra headers.
func (c *Client) Get(ctx context.Context, rawURL string, headers map[string]string) (*http.Response, error) {
	req, err := NewRequest(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.Do(ctx, req)
}

// GetBytes fetches rawURL and returns the whole body.
func (c *Client) GetBytes(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := c.Get(ctx, rawURL, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// GetJSON fetches rawURL and decodes the JSON body into dst.
func (c *Client) GetJSON(ctx context.Context, rawURL string, dst any) error {
	resp, err := c.Get(ctx, rawURL, map[string]string{"Accept": "application/json"})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

func normalizeURL(rawURL string) (string, error) {
	if strings.TrimSpace(rawURL) == "" {
		return "", errors.New("empty url")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	return u.String(), nil
}

func normalizeHost(host string) string {
	host = strings.ToLower(host)
	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return "default"
	}
	return host
}

func hostKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "default"
	}
	return normalizeHost(u.Hostname())
}

// truncate keeps at most n bytes of s without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := 0
	for cut < len(s) {
		_, size := utf8.DecodeRuneInString(s[cut:])
		if cut+size > n {
			break
		}
		cut += size
	}
	return s[:cut] + "..."
}
