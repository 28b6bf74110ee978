// Package assets bundles the sample compositions shipped with lottiekit.
package assets

import (
	"embed"
	"fmt"
	"io"
	"io/fs"
)

// FS exposes the bundled compositions by file name.
//
//go:embed *.json
var FS embed.FS

// Resource identifiers for the bundled compositions.
const (
	Loading = iota + 1
	Pulse
)

var resources = map[int]string{
	Loading: "loading.json",
	Pulse:   "pulse.json",
}

// Bundle resolves numeric resource identifiers against [FS].
type Bundle struct{}

// OpenResource opens the composition registered under id.
func (Bundle) OpenResource(id int) (io.ReadCloser, error) {
	name, ok := resources[id]
	if !ok {
		return nil, fmt.Errorf("resource %d: %w", id, fs.ErrNotExist)
	}
	return FS.Open(name)
}

// ResourceName returns the file backing id.
func (Bundle) ResourceName(id int) (string, bool) {
	name, ok := resources[id]
	return name, ok
}
