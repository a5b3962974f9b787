package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidRecord is returned when a serialized record is not well formed.
var ErrInvalidRecord = errors.New("models: invalid portable record")

// PortableRecord is the JSON-safe projection of one log entry. Element
// references are held as selectors; the payload matches the category of
// Type.
type PortableRecord struct {
	Type      EventType
	TimeStamp float64       // capture-time clock, milliseconds
	Delay     time.Duration // time since the previous entry

	Target        Selector
	CurrentTarget Selector
	RelatedTarget Selector
	SrcElement    Selector
	FromElement   Selector

	// Value is the captured input value for events with mimicable state.
	Value *string

	// Bubbles and Cancelable are never produced by normalization but are
	// honoured when an imported record carries them.
	Bubbles    *bool
	Cancelable *bool

	Payload Payload
}

// Category returns the record's category, derived from its type.
func (r PortableRecord) Category() Category { return CategoryOf(r.Type) }

// Mouse returns the mouse payload, or nil for other categories.
func (r PortableRecord) Mouse() *MousePayload {
	p, _ := r.Payload.(*MousePayload)
	return p
}

// Keyboard returns the keyboard payload, or nil for other categories.
func (r PortableRecord) Keyboard() *KeyboardPayload {
	p, _ := r.Payload.(*KeyboardPayload)
	return p
}

// Touch returns the touch payload, or nil for other categories.
func (r PortableRecord) Touch() *TouchPayload {
	p, _ := r.Payload.(*TouchPayload)
	return p
}

type recordWire struct {
	Type          EventType `json:"type"`
	TimeStamp     float64   `json:"timeStamp"`
	Delay         float64   `json:"delay"`
	Target        Selector  `json:"target"`
	CurrentTarget Selector  `json:"currentTarget"`
	RelatedTarget Selector  `json:"relatedTarget"`
	SrcElement    Selector  `json:"srcElement"`
	FromElement   Selector  `json:"fromElement"`
	Value         *string   `json:"value,omitempty"`
	Bubbles       *bool     `json:"bubbles,omitempty"`
	Cancelable    *bool     `json:"cancelable,omitempty"`

	*MousePayload
	*TouchPayload
	*KeyboardPayload
}

func (r PortableRecord) MarshalJSON() ([]byte, error) {
	w := recordWire{
		Type:          r.Type,
		TimeStamp:     r.TimeStamp,
		Delay:         DurationMillis(r.Delay),
		Target:        r.Target,
		CurrentTarget: r.CurrentTarget,
		RelatedTarget: r.RelatedTarget,
		SrcElement:    r.SrcElement,
		FromElement:   r.FromElement,
		Value:         r.Value,
		Bubbles:       r.Bubbles,
		Cancelable:    r.Cancelable,
	}
	switch p := r.Payload.(type) {
	case *MousePayload:
		w.MousePayload = p
	case *TouchPayload:
		w.TouchPayload = p
	case *KeyboardPayload:
		w.KeyboardPayload = p
	}
	return json.Marshal(w)
}

func (r *PortableRecord) UnmarshalJSON(data []byte) error {
	var w recordWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if w.Type == "" {
		return fmt.Errorf("%w: missing type", ErrInvalidRecord)
	}
	if w.Delay < 0 {
		return fmt.Errorf("%w: negative delay %v", ErrInvalidRecord, w.Delay)
	}
	if w.Delay > MaxDelayMillis {
		return fmt.Errorf("%w: delay %v out of range", ErrInvalidRecord, w.Delay)
	}

	*r = PortableRecord{
		Type:          w.Type,
		TimeStamp:     w.TimeStamp,
		Delay:         MillisDuration(w.Delay),
		Target:        w.Target,
		CurrentTarget: w.CurrentTarget,
		RelatedTarget: w.RelatedTarget,
		SrcElement:    w.SrcElement,
		FromElement:   w.FromElement,
		Value:         w.Value,
		Bubbles:       w.Bubbles,
		Cancelable:    w.Cancelable,
	}

	switch CategoryOf(w.Type) {
	case MouseEvents:
		if w.MousePayload != nil {
			r.Payload = w.MousePayload
		}
	case TouchEvents:
		if w.TouchPayload != nil {
			r.Payload = w.TouchPayload
		}
	case KeyboardEvents:
		if w.KeyboardPayload != nil {
			r.Payload = w.KeyboardPayload
		}
	}
	if r.Payload == nil {
		r.Payload = NewPayload(CategoryOf(w.Type))
	}
	return nil
}

// DurationMillis converts d to fractional milliseconds.
func DurationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// MaxDelayMillis is the largest delay a Duration can hold, in milliseconds.
const MaxDelayMillis = float64(math.MaxInt64) / float64(time.Millisecond)

// MillisDuration converts fractional milliseconds to a Duration,
// saturating at the Duration range.
func MillisDuration(ms float64) time.Duration {
	switch {
	case ms >= MaxDelayMillis:
		return time.Duration(math.MaxInt64)
	case ms <= -MaxDelayMillis:
		return time.Duration(math.MinInt64)
	}
	return time.Duration(ms * float64(time.Millisecond))
}
