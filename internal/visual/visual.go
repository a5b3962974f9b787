// Package visual is the playback side channel: the input-blocking overlay
// and the synthetic cursor. It never affects dispatch.
package visual

import "sync"

// Visual receives playback feedback. Implementations must not call back
// into the player.
type Visual interface {
	SetOverlay(visible bool)
	SetCursorVisible(visible bool)
	MoveCursor(x, y float64)
	SetCursorPressed(pressed bool)
}

// Nop discards every update.
type Nop struct{}

func (Nop) SetOverlay(bool)             {}
func (Nop) SetCursorVisible(bool)       {}
func (Nop) MoveCursor(float64, float64) {}
func (Nop) SetCursorPressed(bool)       {}

// Snapshot is the state last reported to a State.
type Snapshot struct {
	Overlay       bool    `json:"overlay"`
	CursorVisible bool    `json:"cursor_visible"`
	CursorX       float64 `json:"cursor_x"`
	CursorY       float64 `json:"cursor_y"`
	CursorPressed bool    `json:"cursor_pressed"`
	Moves         int     `json:"moves"`
}

// State tracks the side channel so it can be inspected, and forwards every
// update to an optional next Visual.
type State struct {
	mu   sync.Mutex
	snap Snapshot
	next Visual
}

// NewState returns a State forwarding to next, which may be nil.
func NewState(next Visual) *State {
	return &State{next: next}
}

func (s *State) SetOverlay(visible bool) {
	s.mu.Lock()
	s.snap.Overlay = visible
	s.mu.Unlock()
	if s.next != nil {
		s.next.SetOverlay(visible)
	}
}

func (s *State) SetCursorVisible(visible bool) {
	s.mu.Lock()
	s.snap.CursorVisible = visible
	if !visible {
		s.snap.CursorPressed = false
	}
	s.mu.Unlock()
	if s.next != nil {
		s.next.SetCursorVisible(visible)
	}
}

func (s *State) MoveCursor(x, y float64) {
	s.mu.Lock()
	s.snap.CursorX, s.snap.CursorY = x, y
	s.snap.Moves++
	s.mu.Unlock()
	if s.next != nil {
		s.next.MoveCursor(x, y)
	}
}

func (s *State) SetCursorPressed(pressed bool) {
	s.mu.Lock()
	s.snap.CursorPressed = pressed
	s.mu.Unlock()
	if s.next != nil {
		s.next.SetCursorPressed(pressed)
	}
}

// Snapshot returns the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}
