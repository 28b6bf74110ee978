// Package ui implements a terminal animation player using bubbletea's Elm architecture.
//
// The player has three views:
//  1. [LoadingView] : waiting for the first composition
//  2. [PlayerView] : playback state, progress and render mode
//  3. [MarkerView] : pick a marker to limit playback to its range
//
// The bubbletea Update goroutine is the presentation context. Every tick drains the
// [dispatch.Loop] that resolver results are posted to, then advances the frame clock, so
// playback state is only ever touched from Update.
//
// Keyboard bindings are listed in the footer via charmbracelet/bubbles/help. The visibility
// and attach toggles simulate a host being hidden or detached.
package ui
