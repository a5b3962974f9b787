// Package mimic reproduces side effects that dispatching a raw event does
// not restore on its own: input values, focus and the cursor press state.
package mimic

import (
	"github.com/vincentbai/browsetrace-replay/internal/dom"
	"github.com/vincentbai/browsetrace-replay/internal/models"
)

// Cursor is the part of the visual side channel hooks drive.
type Cursor interface {
	SetCursorPressed(pressed bool)
}

// Hook captures extra state when an event is recorded and re-applies it
// before the rebuilt event is dispatched.
type Hook interface {
	Capture(ev *dom.Event)
	Dispatch(target dom.Element, ev *dom.SyntheticEvent, cursor Cursor) error
}

// For returns the hook for t. Types without mimicable state get a hook
// that does nothing.
func For(t models.EventType) Hook {
	switch t {
	case models.Change:
		return valueHook{}
	case models.Focus:
		return focusHook{}
	case models.Blur:
		return blurHook{}
	case models.MouseDown:
		return pressHook{pressed: true}
	case models.MouseUp:
		return pressHook{pressed: false}
	}
	return none{}
}

type none struct{}

func (none) Capture(*dom.Event) {}

func (none) Dispatch(dom.Element, *dom.SyntheticEvent, Cursor) error { return nil }

// valueHook carries an input's value through a change event.
type valueHook struct{}

func (valueHook) Capture(ev *dom.Event) {
	if ev.Target == nil {
		return
	}
	v := ev.Target.Value()
	ev.Value = &v
}

func (valueHook) Dispatch(target dom.Element, ev *dom.SyntheticEvent, _ Cursor) error {
	if ev.Value == nil {
		return nil
	}
	return target.SetValue(*ev.Value)
}

type focusHook struct{}

func (focusHook) Capture(*dom.Event) {}

func (focusHook) Dispatch(target dom.Element, _ *dom.SyntheticEvent, _ Cursor) error {
	return target.Focus()
}

type blurHook struct{}

func (blurHook) Capture(*dom.Event) {}

func (blurHook) Dispatch(target dom.Element, _ *dom.SyntheticEvent, _ Cursor) error {
	return target.Blur()
}

// pressHook toggles the synthetic cursor's pressed indicator.
type pressHook struct {
	pressed bool
}

func (pressHook) Capture(*dom.Event) {}

func (h pressHook) Dispatch(_ dom.Element, _ *dom.SyntheticEvent, cursor Cursor) error {
	if cursor != nil {
		cursor.SetCursorPressed(h.pressed)
	}
	return nil
}
