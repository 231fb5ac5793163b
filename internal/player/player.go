// Package player defines the controller capability the transport layer
// drives: transport actions, two volume targets, and playback snapshots.
// The protocol core only ever talks to the Controller interface, so a test
// double can stand in for the real Music app.
package player

import (
	"errors"
	"fmt"
)

// Action is a named transport-control operation.
type Action string

const (
	ActionPlay     Action = "play"
	ActionPause    Action = "pause"
	ActionToggle   Action = "toggle"
	ActionNext     Action = "next"
	ActionPrevious Action = "previous"
)

// Valid reports whether a names a known transport action.
func (a Action) Valid() bool {
	switch a {
	case ActionPlay, ActionPause, ActionToggle, ActionNext, ActionPrevious:
		return true
	}
	return false
}

// VolumeTarget selects which volume a set/get addresses.
type VolumeTarget string

const (
	// TargetMusic is the player's own volume.
	TargetMusic VolumeTarget = "music"
	// TargetSystem is the OS output volume.
	TargetSystem VolumeTarget = "system"
)

// Valid reports whether t names a known volume target.
func (t VolumeTarget) Valid() bool {
	return t == TargetMusic || t == TargetSystem
}

// ErrUnknownAction is returned by Do for actions outside the known set.
var ErrUnknownAction = errors.New("unknown action")

// ErrVolumeRange is returned when a volume value falls outside 0-100.
var ErrVolumeRange = errors.New("volume must be between 0 and 100")

// Snapshot is the latest known playback state. The transport layer treats
// it as an opaque payload: it stores and forwards the most recent instance
// without inspecting fields.
type Snapshot struct {
	State        string  `json:"state"` // playing, paused or stopped
	Title        string  `json:"title,omitempty"`
	Artist       string  `json:"artist,omitempty"`
	Album        string  `json:"album,omitempty"`
	Position     float64 `json:"position"` // seconds into the track
	Duration     float64 `json:"duration"` // track length in seconds
	Volume       int     `json:"volume"`
	SystemVolume int     `json:"systemVolume"`
}

// Controller is the capability the remote drives. Every operation is
// fallible; implementations may block (they shell out to the OS), so the
// connection manager never calls them on its serialization context for
// mutating operations.
type Controller interface {
	Play() error
	Pause() error
	Toggle() error
	Next() error
	Previous() error
	Volume() (int, error)
	SetVolume(v int) error
	SystemVolume() (int, error)
	SetSystemVolume(v int) error
	CurrentSnapshot() (Snapshot, error)
}

// Do executes a named transport action against c.
func Do(c Controller, action Action) error {
	switch action {
	case ActionPlay:
		return c.Play()
	case ActionPause:
		return c.Pause()
	case ActionToggle:
		return c.Toggle()
	case ActionNext:
		return c.Next()
	case ActionPrevious:
		return c.Previous()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

// SetTargetVolume routes a volume write to the selected target after range
// checking the value.
func SetTargetVolume(c Controller, target VolumeTarget, v int) error {
	if v < 0 || v > 100 {
		return fmt.Errorf("%w (got %d)", ErrVolumeRange, v)
	}
	switch target {
	case TargetMusic:
		return c.SetVolume(v)
	case TargetSystem:
		return c.SetSystemVolume(v)
	default:
		return fmt.Errorf("unknown volume target %q", target)
	}
}

// TargetVolume routes a volume read to the selected target.
func TargetVolume(c Controller, target VolumeTarget) (int, error) {
	switch target {
	case TargetMusic:
		return c.Volume()
	case TargetSystem:
		return c.SystemVolume()
	default:
		return 0, fmt.Errorf("unknown volume target %q", target)
	}
}
