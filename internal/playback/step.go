package playback

import (
	"math"
	"time"

	"github.com/vincentbai/browsetrace-replay/internal/codec"
	"github.com/vincentbai/browsetrace-replay/internal/metrics"
	"github.com/vincentbai/browsetrace-replay/internal/mimic"
	"github.com/vincentbai/browsetrace-replay/internal/models"
)

func (p *Player) scheduleStepLocked(d time.Duration) {
	gen := p.gen
	p.timer = p.cfg.Clock.AfterFunc(d, func() { p.step(gen) })
}

// step dispatches records[index] and schedules the next record after its
// own scaled delay. The last step stops the player.
func (p *Player) step(gen uint64) {
	p.mu.Lock()
	if gen != p.gen || p.state != Playing || p.index >= len(p.records) {
		p.mu.Unlock()
		return
	}
	index, rec := p.index, p.records[p.index]
	p.timer = nil
	p.inflight = true
	p.mu.Unlock()

	p.dispatch(index, rec)

	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		return
	}
	p.inflight = false
	p.index++
	if p.index >= len(p.records) {
		p.finishLocked()
		p.mu.Unlock()
		p.finished()
		return
	}
	if p.state == Playing {
		p.scheduleStepLocked(p.scaled(p.records[p.index].Delay))
	}
	p.mu.Unlock()
}

func (p *Player) scheduleTickLocked(d time.Duration) {
	gen := p.gen
	p.timer = p.cfg.Clock.AfterFunc(d, func() { p.tick(gen, d) })
}

// tick advances the Interval mode clock by advance and dispatches, in
// order, every record whose offset has elapsed.
func (p *Player) tick(gen uint64, advance time.Duration) {
	p.mu.Lock()
	if gen != p.gen || p.state != Playing {
		p.mu.Unlock()
		return
	}
	p.timer = nil
	p.elapsed += advance

	for p.index < len(p.records) && p.due <= p.elapsed {
		index, rec := p.index, p.records[p.index]
		p.inflight = true
		p.mu.Unlock()

		p.dispatch(index, rec)

		p.mu.Lock()
		if gen != p.gen {
			p.mu.Unlock()
			return
		}
		p.inflight = false
		p.index++
		if p.index < len(p.records) {
			p.due = addSat(p.due, p.scaled(p.records[p.index].Delay))
		}
		if p.state != Playing {
			break
		}
	}

	if p.index >= len(p.records) {
		p.finishLocked()
		p.mu.Unlock()
		p.finished()
		return
	}
	if p.state == Playing {
		p.scheduleTickLocked(p.cfg.Interval)
	}
	p.mu.Unlock()
}

// dispatch rebuilds rec, resolves its targets against the live document,
// applies the mimic hook and dispatches. Failures are logged and counted;
// playback always continues.
func (p *Player) dispatch(index int, rec models.PortableRecord) {
	log := p.cfg.Logger
	d := codec.Reconstruct(rec)
	target, ev, resolved := d.Bind(p.cfg.Document)
	if !resolved {
		metrics.UnresolvedTargets.Inc()
		log.Debug("playback: target unresolved, dispatching on document",
			"index", index, "type", rec.Type, "target", rec.Target)
	}

	p.scrollToTop()

	if err := mimic.For(rec.Type).Dispatch(target, ev, p.cfg.Visual); err != nil {
		metrics.DispatchErrors.Inc()
		log.Warn("playback: mimic hook failed", "index", index, "type", rec.Type, "error", err)
	}

	p.logEvent(index, rec)

	if ev.Mouse != nil {
		p.cfg.Visual.MoveCursor(ev.Mouse.PageX, ev.Mouse.PageY)
	}

	if err := target.Dispatch(ev); err != nil {
		metrics.DispatchErrors.Inc()
		log.Warn("playback: dispatch failed", "index", index, "type", rec.Type, "error", err)
	}
	metrics.EventsDispatched.WithLabelValues(string(ev.Category)).Inc()

	if p.cfg.OnDispatch != nil {
		p.cfg.OnDispatch(index, rec)
	}
}

func (p *Player) logEvent(index int, rec models.PortableRecord) {
	category := rec.Category()
	if !p.logSet[string(rec.Type)] && !p.logSet[string(category)] {
		return
	}
	attrs := []any{"index", index, "type", rec.Type, "target", rec.Target}
	if !rec.RelatedTarget.IsNull() {
		attrs = append(attrs, "related_target", rec.RelatedTarget)
	}
	switch category {
	case models.MouseEvents:
		if m := rec.Mouse(); m != nil {
			attrs = append(attrs, "page_x", m.PageX, "page_y", m.PageY, "screen_x", m.ScreenX, "screen_y", m.ScreenY)
		}
	case models.TouchEvents:
		if t := rec.Touch(); t != nil {
			attrs = append(attrs, "touches", len(t.Touches))
		}
	case models.KeyboardEvents:
		if k := rec.Keyboard(); k != nil {
			attrs = append(attrs, "key", k.Key, "key_code", k.KeyCode)
		}
	}
	if rec.Value != nil {
		attrs = append(attrs, "value", *rec.Value)
	}
	p.cfg.Logger.Info("playback: event", attrs...)
}

func (p *Player) finished() {
	if p.cfg.OnFinish != nil {
		p.cfg.OnFinish()
	}
}

func playbackStarted()  { metrics.PlaybackRuns.WithLabelValues("started").Inc() }
func playbackStopped()  { metrics.PlaybackRuns.WithLabelValues("stopped").Inc() }
func playbackFinished() { metrics.PlaybackRuns.WithLabelValues("finished").Inc() }

func addSat(a, b time.Duration) time.Duration {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}
