package httpx

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"
)

// CollyFetcher wraps Colly for HTML fetching and CSS-based parsing. Each host gets its own
// limiter; a 429 or 5xx pushes the host's next allowed request into the future so the
// engine's retries do not hammer a struggling source.
type CollyFetcher struct {
	userAgent    string
	timeout      time.Duration
	mu           sync.Mutex
	defaultRate  rate.Limit
	defaultBurst int
	hosts        map[string]*hostPolicy
}

type hostPolicy struct {
	limiter     *rate.Limiter
	nextAllowed time.Time
	strikes     int
	mu          sync.Mutex
}

func NewCollyFetcher(userAgent string) *CollyFetcher {
	if userAgent == "" {
		userAgent = "job-aggregator-bot/1.0"
	}
	return &CollyFetcher{
		userAgent:    userAgent,
		timeout:      20 * time.Second,
		defaultRate:  rate.Every(time.Second),
		defaultBurst: 2,
		hosts:        make(map[string]*hostPolicy),
	}
}

// SetHostRate replaces the default 1 req/s, burst 2 policy for hosts seen afterwards.
func (f *CollyFetcher) SetHostRate(every time.Duration, burst int) {
	if every < 0 || burst <= 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.defaultRate = rate.Inf
	if every > 0 {
		f.defaultRate = rate.Every(every)
	}
	f.defaultBurst = burst
}

// Fetch requests rawURL once; register attaches the caller's OnHTML/OnResponse callbacks.
func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string, register func(*colly.Collector)) error {
	target, err := normalizeURL(rawURL)
	if err != nil {
		return err
	}
	host := hostKey(target)

	if err := f.waitForHost(ctx, host); err != nil {
		return err
	}

	status, err := f.fetchOnce(ctx, target, register)
	if err == nil {
		f.hostPolicy(host).clearStrikes()
		return nil
	}
	if shouldBackoff(status) {
		f.applyBackoff(host)
	}
	return &FetchError{Status: status, URL: redactURL(target), Err: redactError(err)}
}

func (f *CollyFetcher) fetchOnce(ctx context.Context, target string, register func(*colly.Collector)) (int, error) {
	c := f.newCollector(ctx)
	if register != nil {
		register(c)
	}

	status := 0
	var reqErr error
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		reqErr = err
	})

	collyCtx := colly.NewContext()
	collyCtx.Put("ctx", ctx)

	err := c.Request(http.MethodGet, target, nil, collyCtx, nil)
	if ctx.Err() != nil {
		return status, ctx.Err()
	}
	if err != nil {
		return status, err
	}
	if reqErr != nil {
		return status, reqErr
	}
	if status >= 400 {
		return status, fmt.Errorf("status %d", status)
	}
	if status == 0 {
		status = http.StatusOK
	}
	return status, nil
}

// newCollector binds the collector to ctx so in-flight requests stop when it ends.
func (f *CollyFetcher) newCollector(ctx context.Context) *colly.Collector {
	c := colly.NewCollector(colly.UserAgent(f.userAgent), colly.StdlibContext(ctx))
	c.SetRequestTimeout(f.timeout)

	c.OnRequest(func(r *colly.Request) {
		if v := r.Ctx.GetAny("ctx"); v != nil {
			if reqCtx, ok := v.(context.Context); ok && reqCtx.Err() != nil {
				r.Abort()
			}
		}
	})

	return c
}

func (f *CollyFetcher) waitForHost(ctx context.Context, host string) error {
	policy := f.hostPolicy(host)
	if err := policy.waitBackoff(ctx); err != nil {
		return err
	}
	return policy.limiter.Wait(ctx)
}

func (f *CollyFetcher) hostPolicy(host string) *hostPolicy {
	key := normalizeHost(host)
	f.mu.Lock()
	defer f.mu.Unlock()
	if policy, ok := f.hosts[key]; ok {
		return policy
	}
	policy := &hostPolicy{
		limiter: rate.NewLimiter(f.defaultRate, f.defaultBurst),
	}
	f.hosts[key] = policy
	return policy
}

func (f *CollyFetcher) applyBackoff(host string) {
	policy := f.hostPolicy(host)
	policy.mu.Lock()
	defer policy.mu.Unlock()

	if policy.strikes < 6 {
		policy.strikes++
	}
	delay := time.Duration(500*(1<<(policy.strikes-1))) * time.Millisecond
	next := time.Now().Add(delay)
	if next.After(policy.nextAllowed) {
		policy.nextAllowed = next
	}
}

func (p *hostPolicy) clearStrikes() {
	p.mu.Lock()
	p.strikes = 0
	p.mu.Unlock()
}

func (p *hostPolicy) waitBackoff(ctx context.Context) error {
	for {
		p.mu.Lock()
		next := p.nextAllowed
		p.mu.Unlock()
		now := time.Now()
		if !now.Before(next) {
			return nil
		}
		if err := sleepWithContext(ctx, next.Sub(now)); err != nil {
			return err
		}
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
