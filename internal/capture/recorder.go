package capture

import (
	"log/slog"
	"sync"

	"github.com/vincentbai/browsetrace-replay/internal/dom"
	"github.com/vincentbai/browsetrace-replay/internal/eventlog"
	"github.com/vincentbai/browsetrace-replay/internal/metrics"
	"github.com/vincentbai/browsetrace-replay/internal/mimic"
	"github.com/vincentbai/browsetrace-replay/internal/models"
)

// Recorder listens on a document and appends kept events to a log.
type Recorder struct {
	mu     sync.Mutex
	doc    dom.Document
	log    *eventlog.Log
	filter *Filter
	logger *slog.Logger
	remove func()
}

// NewRecorder creates a detached recorder.
func NewRecorder(doc dom.Document, log *eventlog.Log, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{doc: doc, log: log, filter: NewFilter(), logger: logger}
}

// Attach resets the log and starts listening for every captured type
// with filter. It is a no-op when already attached.
func (r *Recorder) Attach(filter *Filter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.remove != nil {
		return
	}
	if filter == nil {
		filter = NewFilter()
	}
	r.filter = filter
	r.log.Reset()
	r.remove = r.doc.Listen(models.CaptureTypes(), r.handle)
	r.logger.Debug("capture: attached", "types", len(models.CaptureTypes()))
}

// Detach stops listening. Safe to call when detached.
func (r *Recorder) Detach() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.remove == nil {
		return
	}
	r.remove()
	r.remove = nil
	r.logger.Debug("capture: detached", "events", r.log.Len())
}

// Active reports whether the recorder is attached.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remove != nil
}

func (r *Recorder) handle(ev *dom.Event) {
	r.mu.Lock()
	active, filter := r.remove != nil, r.filter
	r.mu.Unlock()
	if !active {
		return
	}

	keep, category := filter.Decide(ev)
	if !keep {
		metrics.EventsExcluded.Inc()
		return
	}

	// Propagation keeps mutating CurrentTarget; the log owns a copy.
	captured := *ev
	mimic.For(captured.Type).Capture(&captured)
	r.log.Append(&captured)
	metrics.EventsCaptured.WithLabelValues(string(category)).Inc()
}
