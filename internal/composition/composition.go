// Package composition holds the immutable animation document delivered to playback
// and the parser that produces it.
package composition

import (
	"strings"
	"time"
)

// Composition is a parsed animation document. It is never mutated after parsing.
type Composition struct {
	Name       string
	Version    string
	Width      int
	Height     int
	StartFrame float64
	EndFrame   float64
	FrameRate  float64
	Markers    []Marker
	Layers     []Layer
	ImageCount int

	// MaskAndMatteCount counts every mask and matte across all layers, precomps included.
	MaskAndMatteCount int
	HasDashPattern    bool
}

// Marker is a named frame range inside a composition.
type Marker struct {
	Name           string
	StartFrame     float64
	DurationFrames float64
}

// EndFrame is the last frame covered by the marker.
func (m Marker) EndFrame() float64 {
	return m.StartFrame + m.DurationFrames
}

// Matches compares names the way authoring tools export them: case-insensitive,
// ignoring a trailing carriage return.
func (m Marker) Matches(name string) bool {
	return strings.EqualFold(strings.TrimSuffix(m.Name, "\r"), strings.TrimSuffix(name, "\r"))
}

// Layer is the subset of a layer needed for key-path resolution and render decisions.
type Layer struct {
	Name     string
	Type     LayerType
	Masks    int
	HasMatte bool
	Children []Layer
}

// LayerType mirrors the numeric layer types of the document format.
type LayerType int

const (
	LayerPrecomp LayerType = iota
	LayerSolid
	LayerImage
	LayerNull
	LayerShape
	LayerText
)

func (t LayerType) String() string {
	switch t {
	case LayerPrecomp:
		return "precomp"
	case LayerSolid:
		return "solid"
	case LayerImage:
		return "image"
	case LayerNull:
		return "null"
	case LayerShape:
		return "shape"
	case LayerText:
		return "text"
	default:
		return "unknown"
	}
}

// DurationFrames is the number of frames between start and end.
func (c *Composition) DurationFrames() float64 {
	return c.EndFrame - c.StartFrame
}

// Duration is the wall-clock length at normal speed.
func (c *Composition) Duration() time.Duration {
	if c.FrameRate <= 0 {
		return 0
	}
	return time.Duration(c.DurationFrames() / c.FrameRate * float64(time.Second))
}

// Marker looks a marker up by name.
func (c *Composition) Marker(name string) (Marker, bool) {
	for _, m := range c.Markers {
		if m.Matches(name) {
			return m, true
		}
	}
	return Marker{}, false
}

// FrameForProgress maps progress in [0,1] onto the composition's frame range.
func (c *Composition) FrameForProgress(progress float64) float64 {
	return c.StartFrame + clamp01(progress)*c.DurationFrames()
}

// ProgressForFrame maps a frame onto [0,1].
func (c *Composition) ProgressForFrame(frame float64) float64 {
	d := c.DurationFrames()
	if d <= 0 {
		return 0
	}
	return clamp01((frame - c.StartFrame) / d)
}

// LayerPaths returns the name path of every layer, depth first.
func (c *Composition) LayerPaths() [][]string {
	var paths [][]string
	var walk func(prefix []string, layers []Layer)
	walk = func(prefix []string, layers []Layer) {
		for _, l := range layers {
			p := append(append([]string{}, prefix...), l.Name)
			paths = append(paths, p)
			walk(p, l.Children)
		}
	}
	walk(nil, c.Layers)
	return paths
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
