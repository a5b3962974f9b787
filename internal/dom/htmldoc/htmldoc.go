// Package htmldoc is an in-memory dom.Document parsed from HTML. It keeps
// listeners, input values, focus and scroll position so that recordings
// can be captured and replayed without a browser.
package htmldoc

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"k8s.io/utils/clock"

	"github.com/vincentbai/browsetrace-replay/internal/dom"
	"github.com/vincentbai/browsetrace-replay/internal/models"
)

// Document implements dom.Document and dom.Scroller.
type Document struct {
	mu      sync.Mutex
	doc     *goquery.Document
	elems   map[*html.Node]*Element
	clock   clock.PassiveClock
	origin  time.Time
	focused *Element
	scrollX float64
	scrollY float64
	nextID  int
}

// Option configures a Document.
type Option func(*Document)

// WithClock sets the clock event timestamps are read from.
func WithClock(c clock.PassiveClock) Option {
	return func(d *Document) { d.clock = c }
}

// New parses r into a Document.
func New(r io.Reader, opts ...Option) (*Document, error) {
	gq, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("htmldoc: parse: %w", err)
	}
	d := &Document{
		doc:   gq,
		elems: make(map[*html.Node]*Element),
		clock: clock.RealClock{},
	}
	for _, opt := range opts {
		opt(d)
	}
	d.origin = d.clock.Now()
	return d, nil
}

// Parse is New over a string.
func Parse(src string, opts ...Option) (*Document, error) {
	return New(strings.NewReader(src), opts...)
}

// Empty returns a document with an empty body.
func Empty(opts ...Option) *Document {
	d, err := Parse("<html><head></head><body></body></html>", opts...)
	if err != nil {
		panic(err)
	}
	return d
}

func (d *Document) Root() dom.Element { return d.root() }

func (d *Document) root() *Element {
	return d.wrap(d.doc.Selection.Nodes[0])
}

func (d *Document) Body() dom.Element {
	if n := d.doc.Find("body").Get(0); n != nil {
		return d.wrap(n)
	}
	return nil
}

// Query resolves "body", "#id" and, as a fallback, any CSS selector
// goquery accepts. Unknown or invalid selectors match nothing.
func (d *Document) Query(sel models.Selector) dom.Element {
	if el := d.find(sel); el != nil {
		return el
	}
	return nil
}

func (d *Document) find(sel models.Selector) *Element {
	switch {
	case sel.IsNull():
		return nil
	case sel.IsBody():
		if n := d.doc.Find("body").Get(0); n != nil {
			return d.wrap(n)
		}
		return nil
	}
	if id, ok := sel.ID(); ok {
		match := d.doc.Find("[id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
			v, _ := s.Attr("id")
			return v == id
		})
		if n := match.Get(0); n != nil {
			return d.wrap(n)
		}
		return nil
	}
	if n := d.doc.Find(string(sel)).Get(0); n != nil {
		return d.wrap(n)
	}
	return nil
}

// MustQuery is Query for tests and fixtures; it panics on a miss.
func (d *Document) MustQuery(sel models.Selector) *Element {
	el := d.find(sel)
	if el == nil {
		panic(fmt.Sprintf("htmldoc: no element matches %q", sel))
	}
	return el
}

// Listen registers capture-phase listeners on the document root: they see
// every event, including ones that do not bubble.
func (d *Document) Listen(types []models.EventType, fn dom.Listener) func() {
	root := d.root()
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	for _, t := range types {
		root.capture[t] = append(root.capture[t], listener{id: id, fn: fn})
	}
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		for _, t := range types {
			root.capture[t] = removeListener(root.capture[t], id)
		}
	}
}

// ScrollTo records the viewport scroll offset.
func (d *Document) ScrollTo(x, y float64) error {
	d.mu.Lock()
	d.scrollX, d.scrollY = x, y
	d.mu.Unlock()
	return nil
}

// Scroll returns the current scroll offset.
func (d *Document) Scroll() (x, y float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scrollX, d.scrollY
}

// Focused returns the focused element, or nil.
func (d *Document) Focused() *Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.focused
}

// Now returns the document clock in milliseconds since the document was
// created.
func (d *Document) Now() float64 {
	return models.DurationMillis(d.clock.Since(d.origin))
}

func (d *Document) wrap(n *html.Node) *Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	if el, ok := d.elems[n]; ok {
		return el
	}
	el := &Element{
		doc:       d,
		node:      n,
		capture:   make(map[models.EventType][]listener),
		listeners: make(map[models.EventType][]listener),
	}
	d.elems[n] = el
	return el
}

// Emit delivers a user-originated event. A zero TimeStamp is filled from
// the document clock.
func (d *Document) Emit(ev *dom.Event) {
	if ev.TimeStamp == 0 {
		ev.TimeStamp = d.Now()
	}
	ev.IsTrusted = true
	if ev.Payload == nil {
		ev.Payload = models.NewPayload(ev.Category())
	}
	target, _ := ev.Target.(*Element)
	if target == nil {
		target = d.root()
		ev.Target = target
	}
	d.propagate(target, ev)
}

// propagate runs capture listeners on the root, then target and bubbling
// listeners up to the root. Listeners are invoked without holding d.mu.
func (d *Document) propagate(target *Element, ev *dom.Event) {
	root := d.root()

	d.mu.Lock()
	captures := append([]listener(nil), root.capture[ev.Type]...)
	d.mu.Unlock()
	ev.CurrentTarget = root
	for _, l := range captures {
		l.fn(ev)
	}

	for el := target; el != nil; el = el.parent() {
		d.mu.Lock()
		ls := append([]listener(nil), el.listeners[ev.Type]...)
		d.mu.Unlock()
		ev.CurrentTarget = el
		for _, l := range ls {
			l.fn(ev)
		}
		if !ev.Bubbles {
			break
		}
	}
}

type listener struct {
	id int
	fn dom.Listener
}

func removeListener(ls []listener, id int) []listener {
	out := ls[:0]
	for _, l := range ls {
		if l.id != id {
			out = append(out, l)
		}
	}
	return out
}
