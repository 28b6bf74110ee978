// package formatter renders composition reports as plain text, Markdown, CSV or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/samse/lottiekit/internal/composition"
	"github.com/samse/lottiekit/internal/render"
	"github.com/samse/lottiekit/internal/shared"
)

// Format names an output format.
type Format string

const (
	Text     Format = "text"
	Markdown Format = "markdown"
	CSV      Format = "csv"
	JSON     Format = "json"
)

// Formats lists every supported format.
var Formats = []Format{Text, Markdown, CSV, JSON}

// Extension returns the file extension used for f, without the dot.
func (f Format) Extension() string {
	switch f {
	case Text:
		return "txt"
	case Markdown:
		return "md"
	default:
		return string(f)
	}
}

// ParseFormat reads a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", Text:
		return Text, nil
	case "md":
		return Markdown, nil
	case Markdown, CSV, JSON:
		return f, nil
	default:
		return "", fmt.Errorf("%w: format %q", shared.ErrInvalidFlag, s)
	}
}

// Report is what `inspect` prints about a composition.
type Report struct {
	Source      string
	Composition *composition.Composition
	RenderMode  render.Mode
	APILevel    int
}

// Export renders r in format f.
func Export(r *Report, f Format) ([]byte, error) {
	if r == nil || r.Composition == nil {
		return nil, fmt.Errorf("%w: empty report", shared.ErrMissingArgument)
	}
	switch f {
	case Text:
		return ExportToText(r)
	case Markdown:
		return ExportToMarkdown(r)
	case CSV:
		return ExportToCSV(r)
	case JSON:
		return ExportToJSON(r)
	default:
		return nil, fmt.Errorf("%w: format %q", shared.ErrInvalidFlag, f)
	}
}

// WriteExport renders r and writes it to path.
func WriteExport(r *Report, f Format, path string) error {
	data, err := Export(r, f)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s export: %w", f, err)
	}
	return nil
}

// ExportToText lists the composition's timing, features, markers and layer tree
func ExportToText(r *Report) ([]byte, error) {
	c := r.Composition
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Composition: %s\n", c.Name)
	fmt.Fprintf(&buf, "Source: %s\n", r.Source)
	fmt.Fprintf(&buf, "Version: %s\n", c.Version)
	fmt.Fprintf(&buf, "Size: %dx%d\n", c.Width, c.Height)
	fmt.Fprintf(&buf, "Frames: %s-%s @ %s fps\n", frame(c.StartFrame), frame(c.EndFrame), frame(c.FrameRate))
	fmt.Fprintf(&buf, "Duration: %s\n", FormatDuration(c))
	fmt.Fprintf(&buf, "Images: %d\n", c.ImageCount)
	fmt.Fprintf(&buf, "Masks and mattes: %d\n", c.MaskAndMatteCount)
	fmt.Fprintf(&buf, "Dash pattern: %s\n", yesNo(c.HasDashPattern))
	fmt.Fprintf(&buf, "Render mode: %s (api %d)\n", r.RenderMode, r.APILevel)

	if len(c.Markers) > 0 {
		buf.WriteString("\nMarkers:\n")
		for i, m := range c.Markers {
			fmt.Fprintf(&buf, "%d. %s [%s-%s]\n", i+1, m.Name, frame(m.StartFrame), frame(m.EndFrame()))
		}
	}

	if len(c.Layers) > 0 {
		buf.WriteString("\nLayers:\n")
		writeTree(&buf, c.Layers, "", "  ")
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders a heading, a summary, a marker table and the layer tree
func ExportToMarkdown(r *Report) ([]byte, error) {
	c := r.Composition
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", c.Name)
	fmt.Fprintf(&buf, "**Source**: `%s`\n", r.Source)
	fmt.Fprintf(&buf, "**Version**: %s\n", c.Version)
	fmt.Fprintf(&buf, "**Size**: %dx%d\n", c.Width, c.Height)
	fmt.Fprintf(&buf, "**Frames**: %s-%s @ %s fps (%s)\n", frame(c.StartFrame), frame(c.EndFrame), frame(c.FrameRate), FormatDuration(c))
	fmt.Fprintf(&buf, "**Images**: %d\n", c.ImageCount)
	fmt.Fprintf(&buf, "**Masks and mattes**: %d\n", c.MaskAndMatteCount)
	fmt.Fprintf(&buf, "**Dash pattern**: %s\n", yesNo(c.HasDashPattern))
	fmt.Fprintf(&buf, "**Render mode**: %s (api %d)\n", r.RenderMode, r.APILevel)

	if len(c.Markers) > 0 {
		buf.WriteString("\n## Markers\n\n")
		buf.WriteString("| # | Name | Start | End | Frames |\n")
		buf.WriteString("|---|------|-------|-----|--------|\n")
		for i, m := range c.Markers {
			fmt.Fprintf(&buf, "| %d | %s | %s | %s | %s |\n", i+1, m.Name, frame(m.StartFrame), frame(m.EndFrame()), frame(m.DurationFrames))
		}
	}

	if len(c.Layers) > 0 {
		buf.WriteString("\n## Layers\n\n")
		writeTree(&buf, c.Layers, "- ", "  ")
	}

	return buf.Bytes(), nil
}

// ExportToCSV writes one row per marker with columns: Name, Start, End, Frames
func ExportToCSV(r *Report) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"Name", "Start", "End", "Frames"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, m := range r.Composition.Markers {
		record := []string{m.Name, frame(m.StartFrame), frame(m.EndFrame()), frame(m.DurationFrames)}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

type jsonMarker struct {
	Name  string  `json:"name"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type jsonReport struct {
	Source            string       `json:"source"`
	Name              string       `json:"name"`
	Version           string       `json:"version"`
	Width             int          `json:"width"`
	Height            int          `json:"height"`
	StartFrame        float64      `json:"start_frame"`
	EndFrame          float64      `json:"end_frame"`
	FrameRate         float64      `json:"frame_rate"`
	DurationSeconds   float64      `json:"duration_seconds"`
	ImageCount        int          `json:"image_count"`
	MaskAndMatteCount int          `json:"mask_and_matte_count"`
	HasDashPattern    bool         `json:"has_dash_pattern"`
	RenderMode        string       `json:"render_mode"`
	APILevel          int          `json:"api_level"`
	Markers           []jsonMarker `json:"markers"`
	Layers            []string     `json:"layers"`
}

// ExportToJSON renders the report as indented JSON; layers are listed as dotted paths
func ExportToJSON(r *Report) ([]byte, error) {
	c := r.Composition
	out := jsonReport{
		Source:            r.Source,
		Name:              c.Name,
		Version:           c.Version,
		Width:             c.Width,
		Height:            c.Height,
		StartFrame:        c.StartFrame,
		EndFrame:          c.EndFrame,
		FrameRate:         c.FrameRate,
		DurationSeconds:   c.Duration().Seconds(),
		ImageCount:        c.ImageCount,
		MaskAndMatteCount: c.MaskAndMatteCount,
		HasDashPattern:    c.HasDashPattern,
		RenderMode:        r.RenderMode.String(),
		APILevel:          r.APILevel,
		Markers:           []jsonMarker{},
		Layers:            []string{},
	}
	for _, m := range c.Markers {
		out.Markers = append(out.Markers, jsonMarker{Name: m.Name, Start: m.StartFrame, End: m.EndFrame()})
	}
	for _, p := range c.LayerPaths() {
		out.Layers = append(out.Layers, strings.Join(p, "."))
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return append(data, '\n'), nil
}

// FormatDuration prints the composition length in seconds with millisecond precision.
func FormatDuration(c *composition.Composition) string {
	return fmt.Sprintf("%.3fs", c.Duration().Seconds())
}

func writeTree(buf *bytes.Buffer, layers []composition.Layer, bullet, indent string) {
	var walk func(ls []composition.Layer, depth int)
	walk = func(ls []composition.Layer, depth int) {
		for _, l := range ls {
			fmt.Fprintf(buf, "%s%s%s\n", strings.Repeat(indent, depth), bullet, l.Name)
			walk(l.Children, depth+1)
		}
	}
	walk(layers, 0)
}

func frame(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
