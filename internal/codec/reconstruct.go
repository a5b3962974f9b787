package codec

import (
	"github.com/vincentbai/browsetrace-replay/internal/dom"
	"github.com/vincentbai/browsetrace-replay/internal/models"
)

// Dispatchable is a rebuilt event whose targets are still selectors. They
// are resolved by Bind against whatever document is live at dispatch time.
type Dispatchable struct {
	Event         dom.SyntheticEvent
	Target        models.Selector
	RelatedTarget models.Selector
}

// Reconstruct rebuilds the dispatchable event for rec. Mouse events bubble,
// are not cancelable and have every modifier released. Other families take
// bubbles/cancelable from the record, defaulting to true/false.
func Reconstruct(rec models.PortableRecord) Dispatchable {
	category := rec.Category()
	ev := dom.SyntheticEvent{
		Type:     rec.Type,
		Category: category,
		Value:    copyString(rec.Value),
	}

	switch category {
	case models.MouseEvents:
		ev.Bubbles = true
		ev.Cancelable = false
		m := models.MousePayload{}
		if p := rec.Mouse(); p != nil {
			m = *p
		}
		ev.Mouse = &m
	default:
		ev.Bubbles = true
		if rec.Bubbles != nil {
			ev.Bubbles = *rec.Bubbles
		}
		if rec.Cancelable != nil {
			ev.Cancelable = *rec.Cancelable
		}
		switch category {
		case models.KeyboardEvents:
			k := models.KeyboardPayload{}
			if p := rec.Keyboard(); p != nil {
				k = *p
			}
			ev.Keyboard = &k
		case models.TouchEvents:
			tp := models.TouchPayload{}
			if p := rec.Touch(); p != nil {
				tp = *p
			}
			ev.Touch = &tp
		}
	}

	return Dispatchable{Event: ev, Target: rec.Target, RelatedTarget: rec.RelatedTarget}
}

// Bind resolves the deferred targets against doc. An unresolvable target
// falls back to the document root; resolved reports whether it matched.
func (d Dispatchable) Bind(doc dom.Document) (target dom.Element, ev *dom.SyntheticEvent, resolved bool) {
	target, resolved = dom.Resolve(doc, d.Target)
	bound := d.Event
	if rel := doc.Query(d.RelatedTarget); rel != nil {
		bound.RelatedTarget = rel
	}
	return target, &bound, resolved
}
