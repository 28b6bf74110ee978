// Package remote opens byte streams for composition URLs over HTTP(S) and S3.
package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samse/lottiekit/internal/shared"
	"golang.org/x/oauth2"
)

// Opener streams the resource at rawURL. Callers must close the returned body.
//
// Implementations only return a body for a successful response; anything else is an error.
type Opener interface {
	Open(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// StatusError reports a non-success HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Router dispatches to an [Opener] by URL scheme.
type Router struct {
	openers map[string]Opener
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{openers: make(map[string]Opener)}
}

// Handle registers o for the given schemes.
func (r *Router) Handle(o Opener, schemes ...string) *Router {
	for _, s := range schemes {
		r.openers[strings.ToLower(s)] = o
	}
	return r
}

// Open implements [Opener].
func (r *Router) Open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: bad url %q: %v", shared.ErrInvalidArgument, rawURL, err)
	}

	o, ok := r.openers[strings.ToLower(u.Scheme)]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported scheme %q", shared.ErrInvalidArgument, u.Scheme)
	}
	return o.Open(ctx, rawURL)
}

// NewHTTPClient builds the client used for remote compositions.
//
// A configured bearer token is attached to every request through a static oauth2 token source.
func NewHTTPClient(ctx context.Context, cfg shared.RemoteConfig) *http.Client {
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	if cfg.BearerToken == "" {
		return &http.Client{Timeout: timeout}
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.BearerToken, TokenType: "Bearer"})
	client := oauth2.NewClient(ctx, src)
	client.Timeout = timeout
	return client
}

// NewDefaultRouter wires HTTP(S) and, when an S3 client can be built, s3:// handling.
func NewDefaultRouter(ctx context.Context, cfg shared.RemoteConfig, client *http.Client) (*Router, error) {
	if client == nil {
		client = NewHTTPClient(ctx, cfg)
	}

	r := NewRouter().Handle(NewHTTPOpener(HTTPOpenerOpts{
		Client:    client,
		UserAgent: cfg.UserAgent,
		RateLimit: cfg.RateLimit,
		Burst:     cfg.Burst,
	}), "http", "https")

	s3Opener, err := NewS3Opener(ctx, cfg.S3)
	if err != nil {
		return r, err
	}
	r.Handle(s3Opener, "s3")
	return r, nil
}
