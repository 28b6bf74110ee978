package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/samse/lottiekit/internal/composition"
)

// MsgKind enumerates all message types in the player.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgLoad MsgKind = iota
	MsgTick
	MsgLoaded
	MsgFailed
)

// loadMsg is the constructor for [MsgLoad]
func loadMsg(src string) Msg {
	return Msg{kind: MsgLoad, data: src}
}

// tickMsg is the constructor for [MsgTick]
func tickMsg(at time.Time) Msg {
	return Msg{kind: MsgTick, data: at}
}

// loadedMsg is the constructor for [MsgLoaded]
func loadedMsg(c *composition.Composition) Msg {
	return Msg{kind: MsgLoaded, data: c}
}

// failedMsg is the constructor for [MsgFailed]
func failedMsg(err error) Msg {
	return Msg{kind: MsgFailed, data: err}
}
