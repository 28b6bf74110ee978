package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
}

// Operation phase enumeration
type Phase int

const (
	Resolve Phase = iota
	Export
	Manifest
)

func (p Phase) String() string {
	switch p {
	case Resolve:
		return "resolve"
	case Export:
		return "export"
	case Manifest:
		return "manifest"
	default:
		return "unknown"
	}
}

func resolvingUpdate(step, total int, src string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Resolve,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Resolving: %s...", step, total, src),
	}
}

func exportCompletedUpdate(step, total int, name, file string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Export,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s → %s", step, total, name, file),
	}
}

func exportFailedUpdate(step, total int, src string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Export,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, src, err),
	}
}

func manifestUpdate(path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Manifest,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Manifest written to %s", path),
	}
}
