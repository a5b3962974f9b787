package htmldoc

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/vincentbai/browsetrace-replay/internal/dom"
	"github.com/vincentbai/browsetrace-replay/internal/models"
)

// Element is a node of a Document. One *Element exists per node, so
// references compare equal with ==.
type Element struct {
	doc       *Document
	node      *html.Node
	value     *string
	capture   map[models.EventType][]listener
	listeners map[models.EventType][]listener
}

func (e *Element) ID() string {
	return e.attr("id")
}

// Tag returns the lower-case tag name, or "#document" for the root.
func (e *Element) Tag() string {
	if e.node.Type == html.DocumentNode {
		return "#document"
	}
	return strings.ToLower(e.node.Data)
}

func (e *Element) Parent() dom.Element {
	if p := e.parent(); p != nil {
		return p
	}
	return nil
}

func (e *Element) parent() *Element {
	if e.node.Parent == nil {
		return nil
	}
	return e.doc.wrap(e.node.Parent)
}

// Value returns the live value, falling back to the value attribute and
// then the text of a textarea.
func (e *Element) Value() string {
	e.doc.mu.Lock()
	v := e.value
	e.doc.mu.Unlock()
	if v != nil {
		return *v
	}
	if attr, ok := e.lookupAttr("value"); ok {
		return attr
	}
	if e.node.Type == html.ElementNode && e.node.Data == "textarea" {
		return text(e.node)
	}
	return ""
}

func (e *Element) SetValue(v string) error {
	e.doc.mu.Lock()
	e.value = &v
	e.doc.mu.Unlock()
	return nil
}

func (e *Element) Focus() error {
	e.doc.mu.Lock()
	e.doc.focused = e
	e.doc.mu.Unlock()
	return nil
}

func (e *Element) Blur() error {
	e.doc.mu.Lock()
	if e.doc.focused == e {
		e.doc.focused = nil
	}
	e.doc.mu.Unlock()
	return nil
}

// AddEventListener registers a bubble-phase listener on e.
func (e *Element) AddEventListener(t models.EventType, fn dom.Listener) func() {
	e.doc.mu.Lock()
	e.doc.nextID++
	id := e.doc.nextID
	e.listeners[t] = append(e.listeners[t], listener{id: id, fn: fn})
	e.doc.mu.Unlock()

	return func() {
		e.doc.mu.Lock()
		defer e.doc.mu.Unlock()
		e.listeners[t] = removeListener(e.listeners[t], id)
	}
}

// Dispatch delivers a synthetic event with e as its target.
func (e *Element) Dispatch(sev *dom.SyntheticEvent) error {
	ev := &dom.Event{
		Type:          sev.Type,
		TimeStamp:     e.doc.Now(),
		Target:        e,
		SrcElement:    e,
		RelatedTarget: sev.RelatedTarget,
		Value:         sev.Value,
		Bubbles:       sev.Bubbles,
		Cancelable:    sev.Cancelable,
	}
	switch {
	case sev.Mouse != nil:
		ev.Payload = sev.Mouse
	case sev.Keyboard != nil:
		ev.Payload = sev.Keyboard
	case sev.Touch != nil:
		ev.Payload = sev.Touch
	default:
		ev.Payload = models.NewPayload(sev.Category)
	}
	e.doc.propagate(e, ev)
	return nil
}

func (e *Element) attr(name string) string {
	v, _ := e.lookupAttr(name)
	return v
}

func (e *Element) lookupAttr(name string) (string, bool) {
	if e.node.Type != html.ElementNode {
		return "", false
	}
	for _, a := range e.node.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
