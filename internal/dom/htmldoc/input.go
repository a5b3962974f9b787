package htmldoc

import (
	"fmt"

	"github.com/vincentbai/browsetrace-replay/internal/dom"
	"github.com/vincentbai/browsetrace-replay/internal/models"
)

// Inject replays an ingested user event as trusted input. The target
// selector must match; change events update the element value first, as a
// user typing would.
func (d *Document) Inject(rec models.PortableRecord) error {
	target := d.find(rec.Target)
	if target == nil {
		return fmt.Errorf("htmldoc: inject %s: no element matches %q", rec.Type, rec.Target)
	}
	if rec.Type == models.Change && rec.Value != nil {
		if err := target.SetValue(*rec.Value); err != nil {
			return err
		}
	}
	ev := &dom.Event{
		Type:      rec.Type,
		TimeStamp: rec.TimeStamp,
		Target:    target,
		Payload:   rec.Payload,
		Bubbles:   bubbles(rec.Type),
	}
	if rel := d.find(rec.RelatedTarget); rel != nil {
		ev.RelatedTarget = rel
	}
	switch rec.Type {
	case models.Focus:
		_ = target.Focus()
	case models.Blur:
		_ = target.Blur()
	}
	d.Emit(ev)
	return nil
}

// Click emits a trusted click on target at page coordinates (x, y).
func (d *Document) Click(target dom.Element, x, y float64) {
	d.Emit(&dom.Event{
		Type:       models.Click,
		Target:     target,
		Payload:    &models.MousePayload{ClientX: x, ClientY: y, PageX: x, PageY: y, ScreenX: x, ScreenY: y},
		Bubbles:    true,
		Cancelable: true,
	})
}

// Type sets target's value and emits a change event.
func (d *Document) Type(target *Element, value string) {
	_ = target.SetValue(value)
	d.Emit(&dom.Event{Type: models.Change, Target: target, Bubbles: true})
}

// bubbles mirrors the platform: focus and blur do not bubble.
func bubbles(t models.EventType) bool {
	switch t {
	case models.Focus, models.Blur, models.MouseEnter, models.MouseLeave:
		return false
	}
	return true
}
