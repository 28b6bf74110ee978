// Package render chooses between hardware and software rendering for a composition.
package render

import (
	"fmt"
	"image"
	"strings"

	"github.com/samse/lottiekit/internal/composition"
	"github.com/samse/lottiekit/internal/shared"
)

// Mode is a rendering strategy.
type Mode int

const (
	Automatic Mode = iota
	Hardware
	Software
)

const (
	// BaselineAPILevel is the lowest platform level with usable GPU rendering.
	BaselineAPILevel = 21
	// ModernPathAPILevel is the first level whose GPU path ops handle dashes and many masks.
	ModernPathAPILevel = 28
	// MaxMasksForHardware is the mask and matte count above which old GPU paths fall over.
	MaxMasksForHardware = 4
)

func (m Mode) String() string {
	switch m {
	case Automatic:
		return "automatic"
	case Hardware:
		return "hardware"
	case Software:
		return "software"
	default:
		return "unknown"
	}
}

// ParseMode reads a mode name. An empty string is [Automatic].
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "automatic", "auto":
		return Automatic, nil
	case "hardware", "hw":
		return Hardware, nil
	case "software", "sw":
		return Software, nil
	default:
		return Automatic, fmt.Errorf("%w: render mode %q", shared.ErrInvalidArgument, s)
	}
}

// Platform describes the host's graphics capabilities.
type Platform struct {
	APILevel int
}

func (p Platform) modernPaths() bool { return p.APILevel >= ModernPathAPILevel }

// Characteristics are the composition features that affect the choice.
type Characteristics struct {
	HasDashPattern    bool
	MaskAndMatteCount int
}

// CharacteristicsOf extracts the features of c; a nil composition has none.
func CharacteristicsOf(c *composition.Composition) Characteristics {
	if c == nil {
		return Characteristics{}
	}
	return Characteristics{HasDashPattern: c.HasDashPattern, MaskAndMatteCount: c.MaskAndMatteCount}
}

// Select returns the strategy to use. An explicit override always wins.
func Select(override Mode, c Characteristics, p Platform) Mode {
	switch override {
	case Hardware, Software:
		return override
	}

	switch {
	case c.HasDashPattern && !p.modernPaths():
		return Software
	case c.MaskAndMatteCount > MaxMasksForHardware && !p.modernPaths():
		return Software
	case p.APILevel < BaselineAPILevel:
		return Software
	default:
		return Hardware
	}
}

// Surface is the host drawing surface that applies a mode.
type Surface interface {
	SetMode(Mode)
}

// SurfaceFunc adapts a function to [Surface].
type SurfaceFunc func(Mode)

func (f SurfaceFunc) SetMode(m Mode) { f(m) }

// Renderer draws one frame of a composition.
type Renderer interface {
	RenderFrame(c *composition.Composition, frame float64) (image.Image, error)
}
