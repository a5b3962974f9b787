// Package playback replays a portable event log against a document, one
// timer-driven step at a time.
package playback

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/vincentbai/browsetrace-replay/internal/dom"
	"github.com/vincentbai/browsetrace-replay/internal/models"
	"github.com/vincentbai/browsetrace-replay/internal/visual"
)

var (
	ErrInvalidSpeed    = errors.New("playback: speed must be a positive number")
	ErrInvalidInterval = errors.New("playback: interval must be positive")
)

// Clock schedules step callbacks. clock.RealClock satisfies it.
type Clock interface {
	AfterFunc(d time.Duration, f func()) clock.Timer
}

// Mode selects how steps are scheduled.
type Mode int

const (
	// PerEvent waits each entry's own scaled delay before dispatching it.
	PerEvent Mode = iota
	// Interval ticks at a fixed granularity and dispatches every entry
	// whose cumulative scaled offset has elapsed.
	Interval
)

// ParseMode maps "per_event" and "interval" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "per_event":
		return PerEvent, nil
	case "interval":
		return Interval, nil
	}
	return PerEvent, fmt.Errorf("playback: unknown mode %q", s)
}

func (m Mode) String() string {
	if m == Interval {
		return "interval"
	}
	return "per_event"
}

// State is the player's own state; recording is tracked by the session.
type State int

const (
	Idle State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	}
	return "idle"
}

// Config configures a Player.
type Config struct {
	Document dom.Document
	Visual   visual.Visual
	Clock    Clock
	Logger   *slog.Logger

	// Speed multiplies every relative delay. Default 1.
	Speed float64
	// Interval is the tick of the Interval mode. Default 25ms.
	Interval time.Duration
	Mode     Mode

	// ScrollToTop scrolls documents implementing dom.Scroller to the
	// origin when playback starts and before each dispatch.
	ScrollToTop bool
	// LogEvents lists event types or categories whose dispatches are
	// logged at Info level.
	LogEvents []string

	// OnDispatch runs after each dispatch, outside the player lock.
	OnDispatch func(index int, rec models.PortableRecord)
	// OnFinish runs when the last entry has been dispatched.
	OnFinish func()
}

func (c *Config) defaults() {
	if c.Visual == nil {
		c.Visual = visual.Nop{}
	}
	if c.Clock == nil {
		c.Clock = clock.RealClock{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Speed <= 0 || math.IsNaN(c.Speed) || math.IsInf(c.Speed, 0) {
		c.Speed = 1
	}
	if c.Interval <= 0 {
		c.Interval = 25 * time.Millisecond
	}
}

// Player walks a record list. Dispatch happens without holding the lock,
// so handlers may call back into the player; a generation counter
// invalidates steps that were scheduled before a Stop.
type Player struct {
	cfg Config

	mu       sync.Mutex
	records  []models.PortableRecord
	index    int
	state    State
	gen      uint64
	timer    clock.Timer
	inflight bool
	elapsed  time.Duration // Interval mode: time since play
	due      time.Duration // Interval mode: offset of records[index]
	logSet   map[string]bool
}

// New creates an idle Player.
func New(cfg Config) *Player {
	cfg.defaults()
	p := &Player{cfg: cfg}
	p.logSet = make(map[string]bool, len(cfg.LogEvents))
	for _, e := range cfg.LogEvents {
		p.logSet[e] = true
	}
	return p
}

// Load stops playback and installs records.
func (p *Player) Load(records []models.PortableRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	p.records = append([]models.PortableRecord(nil), records...)
}

// Records returns the loaded records.
func (p *Player) Records() []models.PortableRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.PortableRecord(nil), p.records...)
}

// Play restarts playback from the first record. It is a no-op when no
// records are loaded.
func (p *Player) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.records) == 0 {
		return
	}
	p.stopLocked()
	p.state = Playing
	p.cfg.Visual.SetOverlay(true)
	p.cfg.Visual.SetCursorVisible(true)
	p.scrollToTop()
	playbackStarted()

	p.due = p.scaled(p.records[0].Delay)
	switch p.cfg.Mode {
	case Interval:
		p.scheduleTickLocked(0)
	default:
		p.scheduleStepLocked(p.due)
	}
}

// Pause cancels the pending step and keeps the cursor position.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Playing {
		return
	}
	p.cancelTimerLocked()
	p.state = Paused
}

// Resume continues a paused playback from the frozen index. The pending
// entry waits its full scaled delay again.
func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Paused {
		return
	}
	p.state = Playing
	if p.inflight {
		// The running step schedules the next one when it returns.
		return
	}
	switch p.cfg.Mode {
	case Interval:
		p.scheduleTickLocked(p.cfg.Interval)
	default:
		p.scheduleStepLocked(p.scaled(p.records[p.index].Delay))
	}
}

// Stop cancels any pending step, rewinds to the first record and hides
// the visual side channel. It is idempotent.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Index returns the position of the next record to dispatch.
func (p *Player) Index() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.index
}

func (p *Player) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.records)
}

func (p *Player) Speed() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.Speed
}

// SetSpeed changes the delay multiplier. It applies from the next
// scheduled step.
func (p *Player) SetSpeed(scale float64) (float64, error) {
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidSpeed, scale)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg.Speed = scale
	return scale, nil
}

func (p *Player) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.Interval
}

// SetInterval changes the Interval mode tick.
func (p *Player) SetInterval(d time.Duration) (time.Duration, error) {
	if d <= 0 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidInterval, d)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg.Interval = d
	return d, nil
}

// scaled applies the speed to d, saturating at the Duration range.
func (p *Player) scaled(d time.Duration) time.Duration {
	v := float64(d) * p.cfg.Speed
	if v >= math.MaxInt64 {
		return math.MaxInt64
	}
	return time.Duration(v)
}

func (p *Player) stopLocked() {
	p.cancelTimerLocked()
	if p.state != Idle {
		playbackStopped()
	}
	p.gen++
	p.state = Idle
	p.index = 0
	p.inflight = false
	p.elapsed = 0
	p.due = 0
	p.cfg.Visual.SetOverlay(false)
	p.cfg.Visual.SetCursorVisible(false)
}

func (p *Player) finishLocked() {
	p.cancelTimerLocked()
	p.gen++
	p.state = Idle
	p.index = 0
	p.inflight = false
	p.elapsed = 0
	p.due = 0
	p.cfg.Visual.SetOverlay(false)
	p.cfg.Visual.SetCursorVisible(false)
	playbackFinished()
}

func (p *Player) cancelTimerLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *Player) scrollToTop() {
	if !p.cfg.ScrollToTop {
		return
	}
	if s, ok := p.cfg.Document.(dom.Scroller); ok {
		if err := s.ScrollTo(0, 0); err != nil {
			p.cfg.Logger.Debug("playback: scroll to top failed", "error", err)
		}
	}
}
