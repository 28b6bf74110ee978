package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/samse/lottiekit/internal/shared"
	"golang.org/x/time/rate"
)

// HTTPOpener performs rate-limited GET requests.
type HTTPOpener struct {
	client    *http.Client
	userAgent string
	limiter   *rate.Limiter
}

// HTTPOpenerOpts configures an [HTTPOpener].
type HTTPOpenerOpts struct {
	Client    *http.Client
	UserAgent string
	RateLimit float64 // requests per second; 0 disables limiting
	Burst     int
}

// NewHTTPOpener creates an HTTP opener.
func NewHTTPOpener(opts HTTPOpenerOpts) *HTTPOpener {
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		burst := max(opts.Burst, 1)
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &HTTPOpener{client: opts.Client, userAgent: opts.UserAgent, limiter: limiter}
}

// Open implements [Opener]. Only 200 OK yields a body.
func (h *HTTPOpener) Open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, shared.WrapLoadError(err, "fetch", rawURL, shared.ErrNetwork)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", shared.ErrInvalidArgument, err)
	}
	if h.userAgent != "" {
		req.Header.Set("User-Agent", h.userAgent)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, shared.WrapLoadError(fmt.Errorf("request failed: %w", err), "fetch", rawURL, shared.ErrNetwork)
	}

	if resp.StatusCode != http.StatusOK {
		shared.DiscardClose(resp.Body)
		return nil, shared.NewLoadError(shared.ErrNetwork, "fetch", rawURL, &StatusError{URL: rawURL, StatusCode: resp.StatusCode})
	}
	return resp.Body, nil
}
