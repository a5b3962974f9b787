// Package session is the control surface of the record/replay engine. A
// Session owns one document binding, one event log and one player, and
// keeps recording and playback mutually exclusive.
package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vincentbai/browsetrace-replay/internal/capture"
	"github.com/vincentbai/browsetrace-replay/internal/codec"
	"github.com/vincentbai/browsetrace-replay/internal/dom"
	"github.com/vincentbai/browsetrace-replay/internal/eventlog"
	"github.com/vincentbai/browsetrace-replay/internal/metrics"
	"github.com/vincentbai/browsetrace-replay/internal/models"
	"github.com/vincentbai/browsetrace-replay/internal/playback"
	"github.com/vincentbai/browsetrace-replay/internal/visual"
)

var (
	ErrInvalidSpeed = playback.ErrInvalidSpeed
	ErrInvalidDelay = playback.ErrInvalidInterval
)

// State is the session state machine.
type State int

const (
	Idle State = iota
	Recording
	Playing
	Paused
)

var states = []State{Idle, Recording, Playing, Paused}

func (s State) String() string {
	switch s {
	case Recording:
		return "recording"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	}
	return "idle"
}

// Session records user events on a document and replays them.
type Session struct {
	doc      dom.Document
	logger   *slog.Logger
	visual   *visual.State
	log      *eventlog.Log
	recorder *capture.Recorder
	filter   *capture.Filter
	player   *playback.Player

	mu sync.Mutex
	// imported is set when the current log came from JSONToEvents rather
	// than from a recording.
	imported bool
	records  []models.PortableRecord
	json     string
	hasJSON  bool
}

// New binds a Session to doc. It starts Idle with an empty log.
func New(doc dom.Document, opts ...Option) *Session {
	o := options{speed: 1}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	roots := append([]dom.Element(nil), o.excluded...)
	for _, id := range o.excludeIDs {
		if el, ok := dom.Resolve(doc, models.IDSelector(id)); ok {
			roots = append(roots, el)
		} else {
			o.logger.Debug("session: excluded id not found", "id", id)
		}
	}

	s := &Session{
		doc:    doc,
		logger: o.logger,
		visual: visual.NewState(o.visual),
		log:    eventlog.New(),
		filter: capture.NewFilter(roots...),
	}
	s.recorder = capture.NewRecorder(doc, s.log, o.logger)
	s.player = playback.New(playback.Config{
		Document:    doc,
		Visual:      s.visual,
		Clock:       o.clock,
		Logger:      o.logger,
		Speed:       o.speed,
		Interval:    o.delay,
		Mode:        o.mode,
		ScrollToTop: o.scrollToTop,
		LogEvents:   o.logEvents,
		OnDispatch:  o.onDispatch,
		OnFinish: func() {
			s.logger.Info("session: playback finished")
			s.reportState()
			if o.onFinish != nil {
				o.onFinish()
			}
		},
	})
	s.reportState()
	return s
}

// Start begins a new recording, discarding the previous log. It is a
// no-op while recording.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recorder.Active() {
		return
	}
	s.player.Stop()
	s.recorder.Attach(s.filter)
	s.imported = false
	s.records = nil
	s.logger.Info("session: recording started")
	s.reportState()
}

// Stop ends recording or playback and rewinds the player. It is
// idempotent.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.reportState()
}

func (s *Session) stopLocked() {
	if s.recorder.Active() {
		s.recorder.Detach()
		s.logger.Info("session: recording stopped", "events", s.log.Len())
	}
	s.player.Stop()
}

// Play replays the current log from its first entry. Recording or a
// running playback is stopped first. Playing an empty log does nothing.
func (s *Session) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.currentLocked()
	if len(records) == 0 {
		s.logger.Debug("session: play ignored, log is empty")
		return
	}
	s.stopLocked()
	s.player.Load(records)
	s.player.Play()
	s.logger.Info("session: playback started", "events", len(records), "speed", s.player.Speed())
	s.reportState()
}

// Pause freezes playback at the current index.
func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.player.Pause()
	s.reportState()
}

// Resume continues a paused playback from the frozen index. Play after
// Pause restarts from the first entry instead.
func (s *Session) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.player.Resume()
	s.reportState()
}

// currentLocked returns the log as portable records: the imported
// records, or the live recording normalized against the document.
func (s *Session) currentLocked() []models.PortableRecord {
	if s.imported {
		return s.records
	}
	return codec.NormalizeLog(s.doc, s.log.Entries())
}

// EventsToJSON serializes the current log and remembers the result for
// JSONToEvents.
func (s *Session) EventsToJSON() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exportLocked()
}

func (s *Session) exportLocked() (string, error) {
	records := s.currentLocked()
	out, err := codec.EventsToJSON(records)
	if err != nil {
		return "", fmt.Errorf("session: export: %w", err)
	}
	s.records = records
	s.json = out
	s.hasJSON = true
	return out, nil
}

// JSONToEvents installs a serialized log as the current log. An empty
// string falls back to the last exported JSON, and exports the current
// log if there is none. A malformed log is rejected whole.
func (s *Session) JSONToEvents(src string) ([]models.PortableRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if src == "" {
		if !s.hasJSON {
			if _, err := s.exportLocked(); err != nil {
				return nil, err
			}
		}
		src = s.json
	}
	records, err := codec.ParseRecords(src)
	if err != nil {
		return nil, fmt.Errorf("session: import: %w", err)
	}

	s.stopLocked()
	s.log.Reset()
	s.imported = true
	s.records = records
	s.json = src
	s.hasJSON = true
	s.player.Load(records)
	s.logger.Info("session: log imported", "events", len(records))
	s.reportState()
	return append([]models.PortableRecord(nil), records...), nil
}

// Delay is the interval-mode tick.
func (s *Session) Delay() time.Duration { return s.player.Interval() }

func (s *Session) SetDelay(d time.Duration) (time.Duration, error) {
	return s.player.SetInterval(d)
}

// PlaybackSpeed is the multiplier applied to every relative delay.
func (s *Session) PlaybackSpeed() float64 { return s.player.Speed() }

func (s *Session) SetPlaybackSpeed(scale float64) (float64, error) {
	return s.player.SetSpeed(scale)
}

func (s *Session) IsRecording() bool { return s.recorder.Active() }

func (s *Session) IsPlaying() bool { return s.player.State() == playback.Playing }

// State reports the session state.
func (s *Session) State() State {
	if s.recorder.Active() {
		return Recording
	}
	switch s.player.State() {
	case playback.Playing:
		return Playing
	case playback.Paused:
		return Paused
	}
	return Idle
}

// Events returns the live log.
func (s *Session) Events() []eventlog.Entry { return s.log.Entries() }

// EventObjects returns the records of the last export or import.
func (s *Session) EventObjects() []models.PortableRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.PortableRecord(nil), s.records...)
}

// Len is the number of entries in the current log.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.imported {
		return len(s.records)
	}
	return s.log.Len()
}

// Index is the position of the next entry to replay.
func (s *Session) Index() int { return s.player.Index() }

// Visual returns the playback side channel as last reported.
func (s *Session) Visual() visual.Snapshot { return s.visual.Snapshot() }

// Document is the document the session records and replays on.
func (s *Session) Document() dom.Document { return s.doc }

func (s *Session) reportState() {
	current := s.State()
	for _, st := range states {
		v := 0.0
		if st == current {
			v = 1
		}
		metrics.SessionState.WithLabelValues(st.String()).Set(v)
	}
}
