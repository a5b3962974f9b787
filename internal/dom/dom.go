// Package dom defines the platform surface the engine records from and
// replays into: documents, elements and events. Implementations live in
// htmldoc (in-memory) and browser (Chrome through rod).
package dom

import (
	"github.com/vincentbai/browsetrace-replay/internal/models"
)

// Element is a live element reference. Implementations must be comparable
// so that two references to the same element are ==.
type Element interface {
	// ID returns the element's id attribute, or "".
	ID() string
	// Parent returns the parent element, or nil at the document root.
	Parent() Element
	Value() string
	SetValue(v string) error
	Focus() error
	Blur() error
	Dispatch(ev *SyntheticEvent) error
}

// Listener receives live events. It runs on the document's event thread.
type Listener func(ev *Event)

// Document is the page events are captured from and dispatched into.
type Document interface {
	// Root is the document itself; it is the dispatch fallback target.
	Root() Element
	Body() Element
	// Query resolves a selector against the current document. It returns
	// nil when nothing matches.
	Query(sel models.Selector) Element
	// Listen registers fn for every type in types and returns a func that
	// removes the registration.
	Listen(types []models.EventType, fn Listener) (remove func())
}

// Scroller is implemented by documents that can scroll their viewport.
type Scroller interface {
	ScrollTo(x, y float64) error
}

// SelectorOf addresses el as "#id", "body" or the null selector.
func SelectorOf(doc Document, el Element) models.Selector {
	if el == nil {
		return models.NoSelector
	}
	if id := el.ID(); id != "" {
		return models.IDSelector(id)
	}
	if doc != nil && el == doc.Body() {
		return models.BodySelector
	}
	return models.NoSelector
}

// Resolve queries sel and falls back to the document root. The boolean
// reports whether sel matched an element.
func Resolve(doc Document, sel models.Selector) (Element, bool) {
	if el := doc.Query(sel); el != nil {
		return el, true
	}
	return doc.Root(), false
}

// Injector is implemented by documents that accept externally reported
// user input.
type Injector interface {
	Inject(rec models.PortableRecord) error
}
