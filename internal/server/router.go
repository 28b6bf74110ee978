package server

import (
	"net/http"
	"slices"
)

// BasicRouter routes requests through an [http.ServeMux] using method patterns
// ("GET /compositions/{name}"), so a known path with the wrong method gets 405 and an Allow header.
type BasicRouter struct {
	mux      *http.ServeMux
	chain    []Middleware
	patterns []string
}

func NewBasicRouter() *BasicRouter {
	return &BasicRouter{mux: http.NewServeMux()}
}

// Use appends middleware. The first middleware added is the outermost, and only handlers
// registered afterwards are wrapped.
func (r *BasicRouter) Use(middleware ...Middleware) {
	r.chain = append(r.chain, middleware...)
}

// Handle registers h for method and path. An empty method matches every method.
func (r *BasicRouter) Handle(method, path string, h http.Handler) {
	if method != "" {
		path = method + " " + path
	}
	r.register(path, h)
}

// Handler registers h under each of its routes with a single middleware chain.
func (r *BasicRouter) Handler(h Handler) {
	wrapped := r.wrap(h)
	for _, pattern := range h.Routes() {
		r.patterns = append(r.patterns, pattern)
		r.mux.Handle(pattern, wrapped)
	}
}

// Patterns returns the registered mux patterns, sorted.
func (r *BasicRouter) Patterns() []string {
	out := slices.Clone(r.patterns)
	slices.Sort(out)
	return out
}

func (r *BasicRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *BasicRouter) register(pattern string, h http.Handler) {
	r.patterns = append(r.patterns, pattern)
	r.mux.Handle(pattern, r.wrap(h))
}

func (r *BasicRouter) wrap(h http.Handler) http.Handler {
	for i := len(r.chain) - 1; i >= 0; i-- {
		h = r.chain[i](h)
	}
	return h
}
