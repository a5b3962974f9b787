package dom

import "github.com/vincentbai/browsetrace-replay/internal/models"

// Event is a live event as produced by the platform.
type Event struct {
	Type      models.EventType
	TimeStamp float64 // milliseconds on the document's clock

	Target        Element
	CurrentTarget Element
	RelatedTarget Element
	SrcElement    Element
	FromElement   Element
	ToElement     Element

	Payload models.Payload

	// Value is attached by a capture hook for events whose replay needs the
	// input state at capture time.
	Value *string

	Bubbles    bool
	Cancelable bool
	IsTrusted  bool
}

// Category returns the event's category.
func (e *Event) Category() models.Category { return models.CategoryOf(e.Type) }

// SyntheticEvent is an event rebuilt for dispatch. Its targets are bound
// at dispatch time.
type SyntheticEvent struct {
	Type       models.EventType
	Category   models.Category
	Bubbles    bool
	Cancelable bool

	// Mouse events are initialised with modifier keys released; the
	// payload carries coordinates and the button.
	Mouse    *models.MousePayload
	Keyboard *models.KeyboardPayload
	Touch    *models.TouchPayload

	RelatedTarget Element
	Value         *string
}
