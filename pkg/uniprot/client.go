// Package uniprot resolves secondary, merged and demerged UniProtKB
// accessions to their current primary accession via the UniProt REST API.
package uniprot

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/biomap-cli/internal/resilience"
	"github.com/sells-group/biomap-cli/internal/resolve"
)

// DefaultBaseURL is the public UniProt REST endpoint.
const DefaultBaseURL = "https://rest.uniprot.org"

// Mapping is what UniProt reports for one accession.
type Mapping struct {
	Accession string   `json:"accession"`
	Primary   []string `json:"primary"` // current accessions, sorted
	Status    string   `json:"status"`  // active, secondary, merged, demerged, deleted, unknown
}

// Statuses reported in Mapping.Status.
const (
	StatusActive    = "active"
	StatusSecondary = "secondary"
	StatusMerged    = "merged"
	StatusDemerged  = "demerged"
	StatusDeleted   = "deleted"
	StatusUnknown   = "unknown"
)

// Option configures the client.
type Option func(*Client)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRateLimit sets the requests-per-second limit.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRetry sets the retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

// WithCircuitBreaker sets the circuit breaker guarding every request.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *Client) { c.breaker = cb }
}

// Client talks to the UniProt REST API. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
	log     *zap.Logger
}

// NewClient creates a client with UniProt's published limits.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(10, 10),
		retry:   resilience.DefaultRetryConfig(),
		log:     zap.L().With(zap.String("component", "uniprot")),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		cfg := resilience.DefaultCircuitBreakerConfig()
		cfg.Name = "uniprot"
		cfg.ShouldTrip = resilience.IsTransient
		c.breaker = resilience.NewCircuitBreaker(cfg)
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = resilience.RetryLogger("uniprot", "lookup")
	}
	return c
}

type searchResponse struct {
	Results []struct {
		PrimaryAccession string `json:"primaryAccession"`
	} `json:"results"`
}

type entryResponse struct {
	PrimaryAccession string `json:"primaryAccession"`
	EntryType        string `json:"entryType"`
	InactiveReason   *struct {
		InactiveReasonType string   `json:"inactiveReasonType"`
		MergeDemergeTo     []string `json:"mergeDemergeTo"`
	} `json:"inactiveReason"`
}

// Lookup reports the current primary accessions for acc. Secondary
// accessions are found through a sec_acc search; inactive entries through
// the entry endpoint.
func (c *Client) Lookup(ctx context.Context, acc string) (*Mapping, error) {
	acc = strings.ToUpper(strings.TrimSpace(acc))
	if acc == "" {
		return nil, eris.New("uniprot: empty accession")
	}

	q := url.Values{}
	q.Set("query", "sec_acc:"+acc)
	q.Set("fields", "accession")
	q.Set("format", "json")
	var sr searchResponse
	found, err := c.getJSON(ctx, "/uniprotkb/search?"+q.Encode(), &sr)
	if err != nil {
		return nil, err
	}
	if found && len(sr.Results) > 0 {
		m := &Mapping{Accession: acc, Status: StatusSecondary}
		for _, r := range sr.Results {
			m.Primary = append(m.Primary, r.PrimaryAccession)
		}
		sort.Strings(m.Primary)
		return m, nil
	}

	var er entryResponse
	found, err = c.getJSON(ctx, "/uniprotkb/"+url.PathEscape(acc)+"?format=json&fields=accession", &er)
	if err != nil {
		return nil, err
	}
	m := &Mapping{Accession: acc, Status: StatusUnknown}
	if !found {
		return m, nil
	}
	if er.InactiveReason == nil {
		m.Status = StatusActive
		m.Primary = []string{er.PrimaryAccession}
		return m, nil
	}
	switch strings.ToUpper(er.InactiveReason.InactiveReasonType) {
	case "MERGED":
		m.Status = StatusMerged
	case "DEMERGED":
		m.Status = StatusDemerged
	default:
		m.Status = StatusDeleted
	}
	m.Primary = append(m.Primary, er.InactiveReason.MergeDemergeTo...)
	sort.Strings(m.Primary)
	return m, nil
}

// Resolve implements resolve.Resolver. A single successor scores 1; a
// demerged accession resolves to its smallest successor scored 1/n. Active,
// deleted and unknown accessions resolve to nothing.
func (c *Client) Resolve(ctx context.Context, id string) (*resolve.Resolution, error) {
	m, err := c.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Status == StatusActive || len(m.Primary) == 0 {
		return nil, nil
	}
	return &resolve.Resolution{
		CanonicalID: m.Primary[0],
		Score:       1 / float64(len(m.Primary)),
	}, nil
}

// getJSON GETs path and decodes the body into out. It reports false for
// 404 and 400 (UniProt answers malformed accessions with 400).
func (c *Client) getJSON(ctx context.Context, path string, out any) (bool, error) {
	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (bool, error) {
		return resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) (bool, error) {
			return c.do(ctx, path, out)
		})
	})
}

func (c *Client) do(ctx context.Context, path string, out any) (bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return false, eris.Wrap(err, "uniprot: rate limit")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false, eris.Wrap(err, "uniprot: create request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "biomap-cli/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, resilience.NewTransientError(eris.Wrap(err, "uniprot: request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest:
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, nil
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := resilience.StatusError("uniprot", resp.StatusCode, path, string(body))
		var te *resilience.TransientError
		if errors.As(err, &te) {
			te.RetryAfter = resilience.ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		}
		return false, err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, eris.Wrap(err, "uniprot: decode response")
	}
	c.log.Debug("uniprot: fetched", zap.String("path", path))
	return true, nil
}
