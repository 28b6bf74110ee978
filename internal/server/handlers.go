package server

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"slices"
	"strings"

	"github.com/samse/lottiekit/internal/formatter"
	"github.com/samse/lottiekit/internal/render"
	"github.com/samse/lottiekit/internal/shared"
	"github.com/samse/lottiekit/internal/source"
)

// CompositionHandler serves composition files by name from a list of file systems.
// Earlier file systems win.
type CompositionHandler struct {
	roots []fs.FS
}

// NewCompositionHandler creates a handler over roots, e.g. the bundled assets and the cache directory.
func NewCompositionHandler(roots ...fs.FS) *CompositionHandler {
	return &CompositionHandler{roots: roots}
}

// Routes returns the HTTP routes this handler serves.
func (h *CompositionHandler) Routes() []string {
	return []string{"GET /compositions", "GET /compositions/{name}"}
}

func (h *CompositionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		h.list(w)
		return
	}

	if name == "." || !fs.ValidPath(name) || strings.ContainsAny(name, `/\`) {
		writeError(w, http.StatusBadRequest, "invalid composition name")
		return
	}

	for _, root := range h.roots {
		data, err := fs.ReadFile(root, name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
		return
	}
	writeError(w, http.StatusNotFound, "composition not found: "+name)
}

func (h *CompositionHandler) list(w http.ResponseWriter) {
	names := []string{}
	for _, root := range h.roots {
		matches, _ := fs.Glob(root, "*.json")
		for _, m := range matches {
			if !slices.Contains(names, m) {
				names = append(names, m)
			}
		}
	}
	slices.Sort(names)
	writeJSON(w, http.StatusOK, map[string][]string{"compositions": names})
}

// Resolver turns a source string into a composition task. [source.Resolver] implements it.
type Resolver interface {
	Resolve(src string) (*source.Task, error)
}

// InspectHandler answers GET /inspect?source=... with a JSON report.
type InspectHandler struct {
	resolver Resolver
	platform render.Platform
	mode     render.Mode
}

// NewInspectHandler creates a handler reporting render modes for platform and the requested mode.
func NewInspectHandler(resolver Resolver, platform render.Platform, mode render.Mode) *InspectHandler {
	return &InspectHandler{resolver: resolver, platform: platform, mode: mode}
}

// Routes returns the HTTP routes this handler serves.
func (h *InspectHandler) Routes() []string {
	return []string{"GET /inspect"}
}

func (h *InspectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	src := r.URL.Query().Get("source")
	if src == "" {
		writeError(w, http.StatusBadRequest, "source query parameter is required")
		return
	}

	t, err := h.resolver.Resolve(src)
	if err != nil {
		writeError(w, StatusFor(err), err.Error())
		return
	}
	comp, err := t.Wait(r.Context())
	if err != nil {
		writeError(w, StatusFor(err), err.Error())
		return
	}

	data, err := formatter.ExportToJSON(&formatter.Report{
		Source:      src,
		Composition: comp,
		RenderMode:  render.Select(h.mode, render.CharacteristicsOf(comp), h.platform),
		APILevel:    h.platform.APILevel,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// StatusFor maps a load error kind to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrMissingArgument), errors.Is(err, shared.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrMalformedData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, shared.ErrNetwork):
		return http.StatusBadGateway
	case errors.Is(err, shared.ErrCancelled), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
