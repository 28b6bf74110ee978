package ui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/list"
	"github.com/samse/lottiekit/internal/composition"
)

var _ list.Item = markerItem{}

// markerItem wraps [composition.Marker] to implement [list.Item].
type markerItem struct {
	marker composition.Marker
}

func (i markerItem) FilterValue() string { return i.marker.Name }
func (i markerItem) Title() string       { return i.marker.Name }
func (i markerItem) Description() string {
	return fmt.Sprintf("frames %s-%s", frame(i.marker.StartFrame), frame(i.marker.EndFrame()))
}

func markerItems(c *composition.Composition) []list.Item {
	if c == nil {
		return nil
	}
	items := make([]list.Item, len(c.Markers))
	for i, m := range c.Markers {
		items[i] = markerItem{marker: m}
	}
	return items
}

func frame(f float64) string {
	return strconv.FormatFloat(f, 'f', 1, 64)
}
