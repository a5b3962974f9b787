package session

import (
	"log/slog"
	"time"

	"github.com/vincentbai/browsetrace-replay/internal/dom"
	"github.com/vincentbai/browsetrace-replay/internal/models"
	"github.com/vincentbai/browsetrace-replay/internal/playback"
	"github.com/vincentbai/browsetrace-replay/internal/visual"
)

type options struct {
	logger      *slog.Logger
	clock       playback.Clock
	visual      visual.Visual
	excluded    []dom.Element
	excludeIDs  []string
	speed       float64
	delay       time.Duration
	mode        playback.Mode
	scrollToTop bool
	logEvents   []string
	onDispatch  func(index int, rec models.PortableRecord)
	onFinish    func()
}

// Option configures a Session.
type Option func(*options)

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock sets the clock playback steps are scheduled on.
func WithClock(c playback.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithVisual forwards the playback side channel to v.
func WithVisual(v visual.Visual) Option {
	return func(o *options) { o.visual = v }
}

// WithExcludedRoots marks control-surface elements whose direct children
// are never recorded.
func WithExcludedRoots(roots ...dom.Element) Option {
	return func(o *options) { o.excluded = append(o.excluded, roots...) }
}

// WithExcludedIDs is WithExcludedRoots by element id. Ids that match
// nothing are ignored.
func WithExcludedIDs(ids ...string) Option {
	return func(o *options) { o.excludeIDs = append(o.excludeIDs, ids...) }
}

func WithSpeed(scale float64) Option {
	return func(o *options) { o.speed = scale }
}

// WithDelay sets the interval-mode tick.
func WithDelay(d time.Duration) Option {
	return func(o *options) { o.delay = d }
}

func WithMode(m playback.Mode) Option {
	return func(o *options) { o.mode = m }
}

func WithScrollToTop(on bool) Option {
	return func(o *options) { o.scrollToTop = on }
}

// WithLogEvents logs dispatches of the named types or categories.
func WithLogEvents(names ...string) Option {
	return func(o *options) { o.logEvents = append(o.logEvents, names...) }
}

// WithDispatchHook runs fn after every replayed event.
func WithDispatchHook(fn func(index int, rec models.PortableRecord)) Option {
	return func(o *options) { o.onDispatch = fn }
}

// WithFinishHook runs fn when playback dispatches its last entry.
func WithFinishHook(fn func()) Option {
	return func(o *options) { o.onFinish = fn }
}
