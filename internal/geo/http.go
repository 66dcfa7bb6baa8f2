package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	addressPlaceholder = "{ip}"

	// DefaultHTTPURL is a free lookup endpoint answering with a JSON object
	// carrying "status" and "country".
	DefaultHTTPURL = "http://ip-api.com/json/{ip}?fields=status,country"

	probeAddress = "8.8.8.8"
)

// HTTPResolver queries a web lookup service. Requests are rate limited to
// stay within the free tiers of such services.
type HTTPResolver struct {
	template string
	client   *http.Client
	limiter  *rate.Limiter
}

type HTTPResolverOpt func(*HTTPResolver)

func WithHTTPClient(c *http.Client) HTTPResolverOpt {
	return func(r *HTTPResolver) {
		r.client = c
	}
}

// WithRateLimit sets the number of requests allowed per minute.
func WithRateLimit(perMinute int) HTTPResolverOpt {
	return func(r *HTTPResolver) {
		r.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	}
}

func NewHTTPResolver(template string, opts ...HTTPResolverOpt) *HTTPResolver {
	r := &HTTPResolver{
		template: template,
		client:   &http.Client{Timeout: 5 * time.Second},
		limiter:  rate.NewLimiter(rate.Every(time.Minute/40), 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *HTTPResolver) Name() string {
	return "http"
}

// Prepare checks the URL template and probes the service once.
func (r *HTTPResolver) Prepare(ctx context.Context) error {
	if !strings.Contains(r.template, addressPlaceholder) {
		return fmt.Errorf("url %q has no %s placeholder", r.template, addressPlaceholder)
	}
	if _, err := url.Parse(strings.ReplaceAll(r.template, addressPlaceholder, probeAddress)); err != nil {
		return fmt.Errorf("parsing url: %w", err)
	}

	if _, err := r.Resolve(ctx, netip.MustParseAddr(probeAddress)); err != nil {
		return fmt.Errorf("probing service: %w", err)
	}
	return nil
}

type httpAnswer struct {
	Status  string `json:"status"`
	Country string `json:"country"`
}

func (r *HTTPResolver) Resolve(ctx context.Context, addr netip.Addr) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}

	u := strings.ReplaceAll(r.template, addressPlaceholder, url.PathEscape(addr.String()))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}

	var a httpAnswer
	if err := json.NewDecoder(resp.Body).Decode(&a); err != nil {
		return "", fmt.Errorf("decoding answer: %w", err)
	}
	if a.Status != "" && a.Status != "success" {
		return "", ErrUnresolved
	}
	if a.Country == "" {
		return "", ErrUnresolved
	}
	return a.Country, nil
}
