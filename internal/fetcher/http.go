package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/biomap-cli/internal/resilience"
)

// hostRates are the published or polite request rates of the bioinformatics
// hosts datasets are usually pulled from. Other hosts get defaultHostRate.
var hostRates = map[string]rate.Limit{
	"rest.uniprot.org":         10,
	"ftp.uniprot.org":          5,
	"www.ebi.ac.uk":            10,
	"ftp.ebi.ac.uk":            5,
	"hmdb.ca":                  2,
	"pubchem.ncbi.nlm.nih.gov": 5,
}

const defaultHostRate rate.Limit = 20

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent string
	Timeout   time.Duration
	Retry     resilience.RetryConfig
	HostRates map[string]rate.Limit // overrides hostRates per host
}

// AdaptiveLimiter is a rate.Limiter that speeds up on success and backs off
// when a host answers 429. The rate stays within [initial/4, initial*2].
type AdaptiveLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	current rate.Limit
	min     rate.Limit
	max     rate.Limit
}

// NewAdaptiveLimiter creates an AdaptiveLimiter starting at initial.
func NewAdaptiveLimiter(initial rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		limiter: rate.NewLimiter(initial, max(burst, 1)),
		current: initial,
		min:     initial / 4,
		max:     initial * 2,
	}
}

// Wait blocks until a request may be sent.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error { return a.limiter.Wait(ctx) }

// OnSuccess raises the rate by 20%.
func (a *AdaptiveLimiter) OnSuccess() { a.scale(1.2) }

// OnRateLimit halves the rate.
func (a *AdaptiveLimiter) OnRateLimit() { a.scale(0.5) }

// Limit returns the current rate.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

func (a *AdaptiveLimiter) scale(f float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = min(max(a.current*rate.Limit(f), a.min), a.max)
	a.limiter.SetLimit(a.current)
}

// HTTPFetcher downloads dataset files over HTTP(S) with per-host adaptive
// rate limiting and retries on transient failures.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions

	mu       sync.Mutex
	limiters map[string]*AdaptiveLimiter
}

// NewHTTPFetcher creates an HTTPFetcher.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "biomap-cli/1.0"
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = resilience.DefaultRetryConfig()
	}
	if opts.Retry.OnRetry == nil {
		opts.Retry.OnRetry = resilience.RetryLogger("http", "download")
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:     opts,
		limiters: make(map[string]*AdaptiveLimiter),
	}
}

// limiter returns the shared limiter for host, creating it on first use.
func (f *HTTPFetcher) limiter(host string) *AdaptiveLimiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l, ok := f.limiters[host]; ok {
		return l
	}
	r, ok := f.opts.HostRates[host]
	if !ok {
		if r, ok = hostRates[host]; !ok {
			r = defaultHostRate
		}
	}
	l := NewAdaptiveLimiter(r, int(r))
	f.limiters[host] = l
	return l
}

// Fetch downloads rawURL to dst.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL, dst string) (int64, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, eris.Wrap(err, "http: parse url")
	}
	lim := f.limiter(u.Host)

	return resilience.DoVal(ctx, f.opts.Retry, func(ctx context.Context) (int64, error) {
		if err := lim.Wait(ctx); err != nil {
			return 0, eris.Wrap(err, "http: rate limit")
		}
		return f.fetchOnce(ctx, rawURL, dst, lim)
	})
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, rawURL, dst string, lim *AdaptiveLimiter) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, eris.Wrap(err, "http: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, resilience.NewTransientError(eris.Wrap(err, "http: request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		err := resilience.StatusError("http", resp.StatusCode, rawURL, string(detail))
		if resp.StatusCode == http.StatusTooManyRequests {
			lim.OnRateLimit()
			zap.L().Warn("http: rate limited",
				zap.String("host", req.URL.Host),
				zap.Float64("new_rate", float64(lim.Limit())),
			)
		}
		if te, ok := err.(*resilience.TransientError); ok {
			te.RetryAfter = resilience.ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		}
		return 0, err
	}
	lim.OnSuccess()

	n, err := copyToFile(dst, resp.Body)
	if err != nil {
		// A body cut short is worth another attempt.
		return n, resilience.NewTransientError(err, 0)
	}
	return n, nil
}
