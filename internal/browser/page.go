package browser

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/vincentbai/browsetrace-replay/internal/dom"
	"github.com/vincentbai/browsetrace-replay/internal/models"
)

//go:embed capture.js
var captureJS string

const bindingName = "__browsetrace_binding"

// Page is a dom.Document backed by a Chrome tab.
type Page struct {
	page   *rod.Page
	url    string
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	rawCh  chan string

	mu        sync.Mutex
	listeners map[models.EventType][]listener
	nextID    int
	parents   map[string]ref
}

type listener struct {
	id int
	fn dom.Listener
}

func newPage(rp *rod.Page, pageURL string, logger *slog.Logger) *Page {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Page{
		page:      rp,
		url:       pageURL,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		rawCh:     make(chan string, 1024),
		listeners: make(map[models.EventType][]listener),
		parents:   make(map[string]ref),
	}
}

// OpenPage creates a tab, navigates to pageURL and installs the capture
// script for every captured event type.
func OpenPage(ctx context.Context, mgr *Manager, pageURL string) (*Page, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, ErrNoBrowser
	}

	rp, err := b.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	// Navigate with timeout.
	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := rp.Context(navCtx).Navigate(pageURL); err != nil {
		rp.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := rp.Context(navCtx).WaitLoad(); err != nil {
		mgr.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}

	p := newPage(rp, pageURL, mgr.cfg.Logger)
	if err := p.install(); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

func (p *Page) install() error {
	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(p.page); err != nil {
		p.logger.Warn("browser: addBinding failed (may already exist)", "error", err)
	}

	wait := p.page.Context(p.ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != bindingName {
			return
		}
		select {
		case p.rawCh <- e.Payload:
		default:
			p.logger.Warn("browser: capture buffer full, event dropped")
		}
	})
	go wait()
	go p.loop()

	if _, err := p.page.Eval(captureJS, bindingName, models.CaptureTypes()); err != nil {
		return fmt.Errorf("browser: inject capture script: %w", err)
	}
	p.logger.Debug("browser: capture script injected", "url", p.url)
	return nil
}

// loop delivers binding payloads outside rod's event goroutine, so that
// listeners may evaluate script in the page.
func (p *Page) loop() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case raw := <-p.rawCh:
			p.handleBinding(raw)
		}
	}
}

func (p *Page) handleBinding(raw string) {
	var w wireEvent
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		p.logger.Warn("browser: parse binding payload", "error", err)
		return
	}
	ev := w.event(p)

	p.mu.Lock()
	ls := append([]listener(nil), p.listeners[ev.Type]...)
	p.mu.Unlock()
	for _, l := range ls {
		l.fn(ev)
	}
}

// Close stops event delivery and closes the tab.
func (p *Page) Close() error {
	p.cancel()
	if p.page != nil {
		return p.page.Close()
	}
	return nil
}

func (p *Page) URL() string { return p.url }

func (p *Page) Root() dom.Element { return p.element(ref{kind: kindRoot}, ref{}) }

func (p *Page) Body() dom.Element { return p.element(ref{kind: kindBody}, ref{}) }

// Query resolves the null, body and "#id" selectors against the live page.
func (p *Page) Query(sel models.Selector) dom.Element {
	switch {
	case sel.IsNull():
		return nil
	case sel.IsBody():
		return p.Body()
	}
	id, ok := sel.ID()
	if !ok {
		return nil
	}
	res, err := p.eval(`(id) => document.getElementById(id) !== null`, id)
	if err != nil {
		p.logger.Debug("browser: query failed", "selector", sel, "error", err)
		return nil
	}
	if !res.Value.Bool() {
		return nil
	}
	return p.element(ref{kind: kindID, id: id}, ref{})
}

// Listen registers fn for the given types. The capture script reports
// every captured type; fn only sees the ones it asked for.
func (p *Page) Listen(types []models.EventType, fn dom.Listener) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := p.nextID
	for _, t := range types {
		p.listeners[t] = append(p.listeners[t], listener{id: id, fn: fn})
	}
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for _, t := range types {
			ls := p.listeners[t][:0]
			for _, l := range p.listeners[t] {
				if l.id != id {
					ls = append(ls, l)
				}
			}
			p.listeners[t] = ls
		}
	}
}

func (p *Page) ScrollTo(x, y float64) error {
	_, err := p.eval(`(x, y) => window.scrollTo(x, y)`, x, y)
	return err
}

func (p *Page) eval(js string, args ...any) (*proto.RuntimeRemoteObject, error) {
	if p.page == nil {
		return nil, ErrNoBrowser
	}
	return p.page.Context(p.ctx).Eval(js, args...)
}

func (p *Page) element(r, parent ref) Element {
	if r.kind != kindAnon {
		parent = ref{}
	}
	return Element{page: p, ref: r, parent: parent}
}

func (p *Page) rememberParent(id string, parent ref) {
	p.mu.Lock()
	p.parents[id] = parent
	p.mu.Unlock()
}

func (p *Page) cachedParent(id string) (ref, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.parents[id]
	return r, ok
}
