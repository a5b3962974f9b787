package browser

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vincentbai/browsetrace-replay/internal/dom"
	"github.com/vincentbai/browsetrace-replay/internal/models"
)

var errDetached = errors.New("browser: element has no id and cannot be addressed")

// findJS resolves a ref selector in page scripts.
const findJS = `const find = (s) => s === null ? null : s === '' ? document : s === 'body' ? document.body : document.getElementById(s.slice(1));`

type kind uint8

const (
	kindNone kind = iota
	kindRoot
	kindBody
	kindID
	kindAnon
)

// ref addresses an element in the page.
type ref struct {
	kind kind
	id   string
}

// selector is the argument the page scripts resolve a target from: ""
// for the document, "body", or "#id".
func (r ref) selector() (string, error) {
	switch r.kind {
	case kindRoot:
		return "", nil
	case kindBody:
		return string(models.BodySelector), nil
	case kindID:
		return string(models.IDSelector(r.id)), nil
	}
	return "", errDetached
}

// Element is a comparable reference to a page element. Elements with an
// id are compared by id; anonymous elements carry their parent as
// reported at capture time.
type Element struct {
	page   *Page
	ref    ref
	parent ref
}

func (e Element) ID() string { return e.ref.id }

// Parent returns the parent element. The body's parent is reported as
// the document root.
func (e Element) Parent() dom.Element {
	switch e.ref.kind {
	case kindRoot, kindNone:
		return nil
	case kindBody:
		return e.page.Root()
	case kindAnon:
		if e.parent.kind == kindNone {
			return nil
		}
		return e.page.element(e.parent, ref{})
	}
	parent, ok := e.page.cachedParent(e.ref.id)
	if !ok {
		var err error
		if parent, err = e.lookupParent(); err != nil {
			e.page.logger.Debug("browser: parent lookup failed", "id", e.ref.id, "error", err)
			return nil
		}
		e.page.rememberParent(e.ref.id, parent)
	}
	if parent.kind == kindNone {
		return nil
	}
	return e.page.element(parent, ref{})
}

func (e Element) lookupParent() (ref, error) {
	res, err := e.page.eval(`(id) => {
		const el = document.getElementById(id);
		if (!el) return 'null';
		const p = el.parentElement;
		if (!p) return JSON.stringify({kind: 'root'});
		if (p === document.body) return JSON.stringify({kind: 'body'});
		return JSON.stringify(p.id ? {kind: 'id', id: p.id} : {kind: 'anon'});
	}`, e.ref.id)
	if err != nil {
		return ref{}, err
	}
	var w *wireRef
	if err := json.Unmarshal([]byte(res.Value.Str()), &w); err != nil {
		return ref{}, err
	}
	return w.ref(), nil
}

func (e Element) Value() string {
	sel, err := e.ref.selector()
	if err != nil {
		return ""
	}
	res, err := e.page.eval(`(sel) => {
		`+findJS+`
		const el = find(sel);
		return el && typeof el.value === 'string' ? el.value : '';
	}`, sel)
	if err != nil {
		e.page.logger.Debug("browser: read value failed", "selector", sel, "error", err)
		return ""
	}
	return res.Value.Str()
}

func (e Element) SetValue(v string) error {
	return e.call(`(sel, v) => { `+findJS+` const el = find(sel); if (el) el.value = v; }`, v)
}

func (e Element) Focus() error {
	return e.call(`(sel) => { ` + findJS + ` const el = find(sel); if (el && el.focus) el.focus(); }`)
}

func (e Element) Blur() error {
	return e.call(`(sel) => { ` + findJS + ` const el = find(sel); if (el && el.blur) el.blur(); }`)
}

const dispatchJS = `(sel, type, family, init, extra, related) => {
	` + findJS + `
	const target = find(sel) || document;
	if (related !== null) {
		init.relatedTarget = find(related);
	}
	let ev;
	if (family === 'mouse') {
		ev = new MouseEvent(type, init);
	} else {
		ev = new Event(type, init);
		Object.assign(ev, extra);
	}
	target.dispatchEvent(ev);
}`

// Dispatch rebuilds sev in the page and dispatches it on e. Mouse events
// use the MouseEvent constructor; other families are plain events
// carrying their payload as extra properties.
func (e Element) Dispatch(sev *dom.SyntheticEvent) error {
	sel, err := e.ref.selector()
	if err != nil {
		return err
	}
	family, init, extra := dispatchArgs(sev)
	var related any
	if rel, ok := sev.RelatedTarget.(Element); ok {
		if s, err := rel.ref.selector(); err == nil {
			related = s
		}
	}
	if _, err := e.page.eval(dispatchJS, sel, string(sev.Type), family, init, extra, related); err != nil {
		return fmt.Errorf("browser: dispatch %s on %q: %w", sev.Type, sel, err)
	}
	return nil
}

// call evaluates js with the element selector as first argument. The
// document root and anonymous elements cannot be addressed this way.
func (e Element) call(js string, args ...any) error {
	sel, err := e.ref.selector()
	if err != nil {
		return err
	}
	if sel == "" {
		return nil
	}
	_, err = e.page.eval(js, append([]any{sel}, args...)...)
	return err
}

// dispatchArgs builds the event family, the constructor init dictionary
// and the extra properties for a synthetic event.
func dispatchArgs(sev *dom.SyntheticEvent) (family string, init map[string]any, extra map[string]any) {
	init = map[string]any{
		"bubbles":    sev.Bubbles,
		"cancelable": sev.Cancelable,
	}
	extra = map[string]any{}
	switch {
	case sev.Mouse != nil:
		m := sev.Mouse
		init["screenX"], init["screenY"] = m.ScreenX, m.ScreenY
		init["clientX"], init["clientY"] = m.ClientX, m.ClientY
		init["button"], init["buttons"] = m.Button, m.Buttons
		for _, k := range []string{"ctrlKey", "shiftKey", "altKey", "metaKey"} {
			init[k] = false
		}
		return "mouse", init, extra
	case sev.Keyboard != nil:
		k := sev.Keyboard
		extra["key"], extra["code"] = k.Key, k.Code
		extra["keyCode"], extra["charCode"], extra["which"] = k.KeyCode, k.CharCode, k.Which
		extra["location"], extra["repeat"] = k.Location, k.Repeat
	case sev.Touch != nil:
		extra["touches"] = sev.Touch.Touches
		extra["changedTouches"] = sev.Touch.ChangedTouches
	}
	if sev.Value != nil {
		extra["value"] = *sev.Value
	}
	return "generic", init, extra
}

type wireRef struct {
	Kind   string   `json:"kind"`
	ID     string   `json:"id"`
	Parent *wireRef `json:"parent"`
}

func (w *wireRef) ref() ref {
	if w == nil {
		return ref{}
	}
	switch w.Kind {
	case "root":
		return ref{kind: kindRoot}
	case "body":
		return ref{kind: kindBody}
	case "id":
		if w.ID != "" {
			return ref{kind: kindID, id: w.ID}
		}
	}
	return ref{kind: kindAnon}
}

// wireEvent is the message the capture script sends over the binding.
type wireEvent struct {
	Type          models.EventType `json:"type"`
	TimeStamp     float64          `json:"timeStamp"`
	IsTrusted     bool             `json:"isTrusted"`
	Bubbles       bool             `json:"bubbles"`
	Cancelable    bool             `json:"cancelable"`
	Target        *wireRef         `json:"target"`
	CurrentTarget *wireRef         `json:"currentTarget"`
	RelatedTarget *wireRef         `json:"relatedTarget"`
	SrcElement    *wireRef         `json:"srcElement"`
	FromElement   *wireRef         `json:"fromElement"`
	ToElement     *wireRef         `json:"toElement"`
	Value         *string          `json:"value"`

	models.MousePayload
	models.KeyboardPayload
	models.TouchPayload
}

func (w *wireEvent) event(p *Page) *dom.Event {
	ev := &dom.Event{
		Type:          w.Type,
		TimeStamp:     w.TimeStamp,
		Target:        w.element(p, w.Target),
		CurrentTarget: w.element(p, w.CurrentTarget),
		RelatedTarget: w.element(p, w.RelatedTarget),
		SrcElement:    w.element(p, w.SrcElement),
		FromElement:   w.element(p, w.FromElement),
		ToElement:     w.element(p, w.ToElement),
		Value:         w.Value,
		Bubbles:       w.Bubbles,
		Cancelable:    w.Cancelable,
		IsTrusted:     w.IsTrusted,
	}
	switch ev.Category() {
	case models.MouseEvents:
		m := w.MousePayload
		ev.Payload = &m
	case models.KeyboardEvents:
		k := w.KeyboardPayload
		ev.Payload = &k
	case models.TouchEvents:
		t := w.TouchPayload
		ev.Payload = &t
	default:
		ev.Payload = &models.GenericPayload{}
	}
	return ev
}

func (w *wireEvent) element(p *Page, r *wireRef) dom.Element {
	if r == nil {
		return nil
	}
	self := r.ref()
	parent := r.Parent.ref()
	if self.kind == kindID && r.Parent != nil {
		p.rememberParent(self.id, parent)
	}
	return p.element(self, parent)
}
