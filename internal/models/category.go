package models

import "sort"

// EventType is a DOM event type name such as "click" or "keydown".
type EventType string

const (
	Click      EventType = "click"
	DblClick   EventType = "dblclick"
	MouseDown  EventType = "mousedown"
	MouseMove  EventType = "mousemove"
	MouseOver  EventType = "mouseover"
	MouseOut   EventType = "mouseout"
	MouseLeave EventType = "mouseleave"
	MouseEnter EventType = "mouseenter"
	MouseUp    EventType = "mouseup"

	TouchStart EventType = "touchstart"
	TouchMove  EventType = "touchmove"
	TouchEnd   EventType = "touchend"

	KeyDown  EventType = "keydown"
	KeyUp    EventType = "keyup"
	KeyPress EventType = "keypress"

	Change   EventType = "change"
	Focus    EventType = "focus"
	Blur     EventType = "blur"
	FocusIn  EventType = "focusin"
	FocusOut EventType = "focusout"
	Select   EventType = "select"
)

// Category is the event family an event type belongs to. It decides which
// payload a record carries and how the event is rebuilt for dispatch.
type Category string

const (
	MouseEvents    Category = "MouseEvents"
	TouchEvents    Category = "TouchEvents"
	KeyboardEvents Category = "KeyboardEvents"
	GenericEvents  Category = "GenericEvents"
)

// captureTable lists every event type the recorder listens for.
var captureTable = map[EventType]Category{
	Click:      MouseEvents,
	DblClick:   MouseEvents,
	MouseDown:  MouseEvents,
	MouseMove:  MouseEvents,
	MouseOver:  MouseEvents,
	MouseOut:   MouseEvents,
	MouseLeave: MouseEvents,
	MouseEnter: MouseEvents,
	MouseUp:    MouseEvents,

	TouchStart: TouchEvents,
	TouchMove:  TouchEvents,
	TouchEnd:   TouchEvents,

	KeyDown:  KeyboardEvents,
	KeyUp:    KeyboardEvents,
	KeyPress: KeyboardEvents,

	Change:   GenericEvents,
	Focus:    GenericEvents,
	Blur:     GenericEvents,
	FocusIn:  GenericEvents,
	FocusOut: GenericEvents,
	Select:   GenericEvents,
}

// CategoryOf returns the category of t. Unknown types are GenericEvents.
func CategoryOf(t EventType) Category {
	if c, ok := captureTable[t]; ok {
		return c
	}
	return GenericEvents
}

// Category returns the category of t.
func (t EventType) Category() Category { return CategoryOf(t) }

// Captured reports whether t is in the capture table.
func Captured(t EventType) bool {
	_, ok := captureTable[t]
	return ok
}

// CaptureTypes returns the capture table's event types in a stable order.
func CaptureTypes() []EventType {
	types := make([]EventType, 0, len(captureTable))
	for t := range captureTable {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Valid reports whether c is one of the four known categories.
func (c Category) Valid() bool {
	switch c {
	case MouseEvents, TouchEvents, KeyboardEvents, GenericEvents:
		return true
	}
	return false
}
