// Package overrides attaches dynamic property values to layers addressed by key path.
//
// A key path is a list of layer names from the root. "*" matches exactly one layer and "**"
// matches any number of layers, including none.
package overrides

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/samse/lottiekit/internal/composition"
	"github.com/samse/lottiekit/internal/shared"
)

const (
	wildcard  = "*"
	globstar  = "**"
	separator = "."
)

// KeyPath addresses one or more layers.
type KeyPath []string

// ParseKeyPath splits a dotted key path such as "heart.**.badge".
func ParseKeyPath(s string) (KeyPath, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty key path", shared.ErrInvalidArgument)
	}
	parts := strings.Split(s, separator)
	if slices.Contains(parts, "") {
		return nil, fmt.Errorf("%w: key path %q has an empty segment", shared.ErrInvalidArgument, s)
	}
	return KeyPath(parts), nil
}

func (k KeyPath) String() string { return strings.Join(k, separator) }

// Matches reports whether k addresses the layer at path.
func (k KeyPath) Matches(path []string) bool {
	if len(k) == 0 {
		return len(path) == 0
	}
	switch k[0] {
	case globstar:
		for i := 0; i <= len(path); i++ {
			if k[1:].Matches(path[i:]) {
				return true
			}
		}
		return false
	case wildcard:
		return len(path) > 0 && k[1:].Matches(path[1:])
	default:
		return len(path) > 0 && k[0] == path[0] && k[1:].Matches(path[1:])
	}
}

// Resolve lists the concrete key paths in c that k addresses, depth first.
func (k KeyPath) Resolve(c *composition.Composition) []KeyPath {
	if c == nil {
		return nil
	}
	var out []KeyPath
	for _, p := range c.LayerPaths() {
		if k.Matches(p) {
			out = append(out, KeyPath(p))
		}
	}
	return out
}

// Property names an animatable layer property.
type Property string

const (
	Color       Property = "color"
	StrokeColor Property = "stroke_color"
	Opacity     Property = "opacity"
	StrokeWidth Property = "stroke_width"
	Position    Property = "position"
	Scale       Property = "scale"
	Rotation    Property = "rotation"
	ColorFilter Property = "color_filter"
)

// Callback computes a property value for a frame.
type Callback func(frame float64) any

// ID identifies a registered override.
type ID uint64

type entry struct {
	id       ID
	path     KeyPath
	property Property
	callback Callback
}

// Registry holds value overrides. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries []entry
	nextID  ID
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers cb for property on every layer path addresses.
func (r *Registry) Add(path KeyPath, property Property, cb Callback) (ID, error) {
	if len(path) == 0 {
		return 0, fmt.Errorf("%w: empty key path", shared.ErrInvalidArgument)
	}
	if cb == nil {
		return 0, fmt.Errorf("%w: nil callback for %s", shared.ErrMissingArgument, property)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.entries = append(r.entries, entry{id: r.nextID, path: slices.Clone(path), property: property, callback: cb})
	return r.nextID, nil
}

// AddValue registers a constant value.
func (r *Registry) AddValue(path KeyPath, property Property, value any) (ID, error) {
	return r.Add(path, property, func(float64) any { return value })
}

// Remove drops an override; it reports whether id was registered.
func (r *Registry) Remove(id ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.id == id {
			r.entries = slices.Delete(r.entries, i, i+1)
			return true
		}
	}
	return false
}

// Len is the number of registered overrides.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Values evaluates every override against c at frame. The result is keyed by the dotted
// layer path; later registrations win for the same layer and property.
func (r *Registry) Values(c *composition.Composition, frame float64) map[string]map[Property]any {
	if c == nil {
		return nil
	}

	r.mu.RLock()
	entries := slices.Clone(r.entries)
	r.mu.RUnlock()

	out := make(map[string]map[Property]any)
	paths := c.LayerPaths()
	for _, e := range entries {
		for _, p := range paths {
			if !e.path.Matches(p) {
				continue
			}
			key := KeyPath(p).String()
			if out[key] == nil {
				out[key] = make(map[Property]any)
			}
			out[key][e.property] = e.callback(frame)
		}
	}
	return out
}

// ParseColor reads "#rrggbb" or "#rgb" into a color.
func ParseColor(s string) (colorful.Color, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return colorful.Color{}, fmt.Errorf("%w: color %q: %v", shared.ErrInvalidArgument, s, err)
	}
	return c, nil
}

// Tint is a color filter that blends layer colors toward a target.
type Tint struct {
	Color    colorful.Color
	Strength float64
}

// NewTint parses hex and clamps strength to [0,1].
func NewTint(hex string, strength float64) (Tint, error) {
	c, err := ParseColor(hex)
	if err != nil {
		return Tint{}, err
	}
	return Tint{Color: c, Strength: min(max(strength, 0), 1)}, nil
}

// Apply blends src toward the tint in Lab space.
func (t Tint) Apply(src colorful.Color) colorful.Color {
	return src.BlendLab(t.Color, t.Strength).Clamped()
}

// TintCallback cycles hue over the frames of c, for demos and previews.
func TintCallback(c *composition.Composition, saturation, lightness float64) Callback {
	return func(frame float64) any {
		return colorful.Hsl(c.ProgressForFrame(frame)*360, saturation, lightness)
	}
}
