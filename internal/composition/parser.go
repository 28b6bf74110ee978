package composition

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/samse/lottiekit/internal/shared"
)

// Parser turns an animation document into a [Composition].
//
// cacheKey identifies the document in errors and logs; it may be empty.
type Parser interface {
	Parse(r io.Reader, cacheKey string) (*Composition, error)
}

// ParserFunc adapts a function to [Parser].
type ParserFunc func(r io.Reader, cacheKey string) (*Composition, error)

func (f ParserFunc) Parse(r io.Reader, cacheKey string) (*Composition, error) {
	return f(r, cacheKey)
}

// maxPrecompDepth bounds precomp nesting while building the layer tree.
const maxPrecompDepth = 16

// JSONParser reads the metadata of a JSON animation document: timing, markers, layer names,
// masks, mattes and dash usage. Shapes, keyframes and text are not interpreted.
type JSONParser struct{}

type rawComposition struct {
	Version   string      `json:"v"`
	Name      string      `json:"nm"`
	FrameRate float64     `json:"fr"`
	InPoint   float64     `json:"ip"`
	OutPoint  float64     `json:"op"`
	Width     float64     `json:"w"`
	Height    float64     `json:"h"`
	Layers    []rawLayer  `json:"layers"`
	Assets    []rawAsset  `json:"assets"`
	Markers   []rawMarker `json:"markers"`
}

type rawLayer struct {
	Name      string            `json:"nm"`
	Type      int               `json:"ty"`
	RefID     string            `json:"refId"`
	MatteType int               `json:"tt"`
	Masks     []json.RawMessage `json:"masksProperties"`
	Shapes    []rawShape        `json:"shapes"`
}

type rawShape struct {
	Type  string          `json:"ty"`
	Dash  json.RawMessage `json:"d"`
	Items []rawShape      `json:"it"`
}

type rawAsset struct {
	ID     string     `json:"id"`
	Path   string     `json:"p"`
	Layers []rawLayer `json:"layers"`
}

type rawMarker struct {
	Comment  string  `json:"cm"`
	Time     float64 `json:"tm"`
	Duration float64 `json:"dr"`
}

// Parse implements [Parser].
func (JSONParser) Parse(r io.Reader, cacheKey string) (*Composition, error) {
	var raw rawComposition
	dec := json.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, shared.NewLoadError(shared.ErrMalformedData, "parse", cacheKey, err)
	}

	if raw.FrameRate <= 0 {
		return nil, shared.NewLoadError(shared.ErrMalformedData, "parse", cacheKey, fmt.Errorf("frame rate must be positive, got %v", raw.FrameRate))
	}
	if raw.OutPoint < raw.InPoint {
		return nil, shared.NewLoadError(shared.ErrMalformedData, "parse", cacheKey, fmt.Errorf("out point %v before in point %v", raw.OutPoint, raw.InPoint))
	}

	c := &Composition{
		Name:       raw.Name,
		Version:    raw.Version,
		Width:      int(raw.Width),
		Height:     int(raw.Height),
		StartFrame: raw.InPoint,
		EndFrame:   raw.OutPoint,
		FrameRate:  raw.FrameRate,
	}

	precomps := make(map[string][]rawLayer)
	for _, a := range raw.Assets {
		if a.Layers != nil {
			precomps[a.ID] = a.Layers
			c.countLayers(a.Layers)
			continue
		}
		if a.Path != "" {
			c.ImageCount++
		}
	}
	c.countLayers(raw.Layers)
	c.Layers = buildLayers(raw.Layers, precomps, map[string]bool{}, 0)

	for _, m := range raw.Markers {
		c.Markers = append(c.Markers, Marker{Name: m.Comment, StartFrame: m.Time, DurationFrames: m.Duration})
	}
	return c, nil
}

// ParseBytes is a convenience wrapper around [JSONParser].
func ParseBytes(data []byte, cacheKey string) (*Composition, error) {
	return JSONParser{}.Parse(bytes.NewReader(data), cacheKey)
}

// countLayers accumulates mask, matte and dash statistics. Each layer definition counts once,
// however many times a precomp references it.
func (c *Composition) countLayers(layers []rawLayer) {
	for _, l := range layers {
		c.MaskAndMatteCount += len(l.Masks)
		if l.MatteType != 0 {
			c.MaskAndMatteCount++
		}
		if hasDash(l.Shapes) {
			c.HasDashPattern = true
		}
	}
}

// hasDash reports a stroke or gradient stroke carrying a dash array. Other shapes reuse
// the "d" key for direction, so only strokes are checked.
func hasDash(shapes []rawShape) bool {
	for _, s := range shapes {
		switch s.Type {
		case "st", "gs":
			if d := bytes.TrimSpace(s.Dash); len(d) > 1 && d[0] == '[' && !bytes.Equal(d, []byte("[]")) {
				return true
			}
		case "gr":
			if hasDash(s.Items) {
				return true
			}
		}
	}
	return false
}

func buildLayers(raw []rawLayer, precomps map[string][]rawLayer, active map[string]bool, depth int) []Layer {
	layers := make([]Layer, 0, len(raw))
	for _, l := range raw {
		layer := Layer{
			Name:     l.Name,
			Type:     LayerType(l.Type),
			Masks:    len(l.Masks),
			HasMatte: l.MatteType != 0,
		}
		if children, ok := precomps[l.RefID]; ok && layer.Type == LayerPrecomp && !active[l.RefID] && depth < maxPrecompDepth {
			active[l.RefID] = true
			layer.Children = buildLayers(children, precomps, active, depth+1)
			delete(active, l.RefID)
		}
		layers = append(layers, layer)
	}
	return layers
}
