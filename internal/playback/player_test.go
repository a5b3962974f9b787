package playback

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vincentbai/browsetrace-replay/internal/dom"
	"github.com/vincentbai/browsetrace-replay/internal/dom/htmldoc"
	"github.com/vincentbai/browsetrace-replay/internal/models"
	"github.com/vincentbai/browsetrace-replay/internal/playback/playbacktest"
	"github.com/vincentbai/browsetrace-replay/internal/visual"
)

const page = `<html><body>
<button id="a">A</button>
<button id="b">B</button>
<input id="name" value="before">
</body></html>`

type dispatched struct {
	typ    models.EventType
	target dom.Element
	at     time.Duration
}

type harness struct {
	doc    *htmldoc.Document
	clock  *playbacktest.Clock
	visual *visual.State
	seen   []dispatched
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	doc, err := htmldoc.Parse(page)
	require.NoError(t, err)
	h := &harness{doc: doc, clock: &playbacktest.Clock{}, visual: visual.NewState(nil)}
	remove := doc.Listen(models.CaptureTypes(), func(ev *dom.Event) {
		h.seen = append(h.seen, dispatched{typ: ev.Type, target: ev.Target, at: h.clock.Now()})
	})
	t.Cleanup(remove)
	return h
}

func (h *harness) player(cfg Config) *Player {
	cfg.Document = h.doc
	cfg.Clock = h.clock
	cfg.Visual = h.visual
	return New(cfg)
}

func (h *harness) types() []models.EventType {
	out := make([]models.EventType, len(h.seen))
	for i, d := range h.seen {
		out[i] = d.typ
	}
	return out
}

func clicks() []models.PortableRecord {
	return []models.PortableRecord{
		{Type: models.Click, Target: "#a", Payload: &models.MousePayload{PageX: 10, PageY: 20}},
		{Type: models.Click, Target: "#b", Delay: 100 * time.Millisecond, Payload: &models.MousePayload{PageX: 30, PageY: 40}},
		{Type: models.KeyDown, Target: "#name", Delay: 50 * time.Millisecond, Payload: &models.KeyboardPayload{Key: "x"}},
	}
}

func TestPlayDispatchesInOrderWithScaledDelays(t *testing.T) {
	h := newHarness(t)
	finished := 0
	p := h.player(Config{Speed: 2, OnFinish: func() { finished++ }})
	p.Load(clicks())

	p.Play()
	assert.Equal(t, Playing, p.State())
	assert.True(t, h.visual.Snapshot().Overlay)
	assert.True(t, h.visual.Snapshot().CursorVisible)

	h.clock.Advance(0)
	require.Len(t, h.seen, 1)
	assert.Equal(t, h.doc.MustQuery("#a"), h.seen[0].target)

	h.clock.Advance(199 * time.Millisecond)
	require.Len(t, h.seen, 1)
	h.clock.Advance(time.Millisecond)
	require.Len(t, h.seen, 2)
	assert.Equal(t, 200*time.Millisecond, h.seen[1].at)
	assert.Equal(t, h.doc.MustQuery("#b"), h.seen[1].target)

	h.clock.Advance(100 * time.Millisecond)
	require.Len(t, h.seen, 3)
	assert.Equal(t, 300*time.Millisecond, h.seen[2].at)

	assert.Equal(t, []models.EventType{models.Click, models.Click, models.KeyDown}, h.types())
	assert.Equal(t, Idle, p.State())
	assert.Equal(t, 0, p.Index())
	assert.Equal(t, 1, finished)
	assert.False(t, h.visual.Snapshot().Overlay)
	assert.False(t, h.visual.Snapshot().CursorVisible)
	assert.Equal(t, 0, h.clock.Pending())
}

func TestPlayEmptyIsNoop(t *testing.T) {
	h := newHarness(t)
	p := h.player(Config{})
	p.Play()
	assert.Equal(t, Idle, p.State())
	assert.Equal(t, 0, h.clock.Pending())
	assert.False(t, h.visual.Snapshot().Overlay)
}

func TestPauseFreezesAndPlayRestartsFromZero(t *testing.T) {
	h := newHarness(t)
	p := h.player(Config{})
	p.Load(clicks())
	p.Play()
	h.clock.Advance(0)

	p.Pause()
	assert.Equal(t, Paused, p.State())
	assert.Equal(t, 1, p.Index())
	h.clock.Advance(time.Second)
	assert.Len(t, h.seen, 1, "nothing dispatches while paused")

	p.Play()
	assert.Equal(t, 0, p.Index())
	h.clock.Advance(0)
	require.Len(t, h.seen, 2)
	assert.Equal(t, h.doc.MustQuery("#a"), h.seen[1].target, "play after pause restarts at the first entry")
}

func TestResumeContinuesFromFrozenIndex(t *testing.T) {
	h := newHarness(t)
	p := h.player(Config{})
	p.Load(clicks())
	p.Play()
	h.clock.Advance(0)
	h.clock.Advance(40 * time.Millisecond)
	p.Pause()

	p.Resume()
	assert.Equal(t, Playing, p.State())
	h.clock.Advance(99 * time.Millisecond)
	require.Len(t, h.seen, 1, "the pending entry waits its full delay again")
	h.clock.Advance(time.Millisecond)
	require.Len(t, h.seen, 2)
	assert.Equal(t, h.doc.MustQuery("#b"), h.seen[1].target)
}

func TestResumeWhenNotPausedIsNoop(t *testing.T) {
	h := newHarness(t)
	p := h.player(Config{})
	p.Load(clicks())
	p.Resume()
	assert.Equal(t, Idle, p.State())
	assert.Equal(t, 0, h.clock.Pending())
}

func TestStopIsIdempotent(t *testing.T) {
	h := newHarness(t)
	p := h.player(Config{})
	p.Stop()
	p.Stop()
	assert.Equal(t, 0, p.Index())

	p.Load(clicks())
	p.Play()
	h.clock.Advance(0)
	assert.Equal(t, 1, h.clock.Pending())

	p.Stop()
	p.Stop()
	assert.Equal(t, Idle, p.State())
	assert.Equal(t, 0, p.Index())
	assert.Equal(t, 0, h.clock.Pending())
	h.clock.Advance(time.Hour)
	assert.Len(t, h.seen, 1)
}

func TestUnresolvedTargetDispatchesOnDocument(t *testing.T) {
	h := newHarness(t)
	p := h.player(Config{})
	p.Load([]models.PortableRecord{
		{Type: models.Click, Target: "#missing", Payload: &models.MousePayload{}},
		{Type: models.Click, Target: "#a", Delay: time.Millisecond, Payload: &models.MousePayload{}},
	})

	require.NotPanics(t, func() {
		p.Play()
		h.clock.Advance(time.Second)
	})
	require.Len(t, h.seen, 2)
	assert.Equal(t, h.doc.Root(), h.seen[0].target)
	assert.Equal(t, h.doc.MustQuery("#a"), h.seen[1].target, "playback continues after a fallback")
}

func TestMimicHooksAndCursor(t *testing.T) {
	h := newHarness(t)
	typed := "after"
	var pressedAtDown, pressedAtUp bool
	remove := h.doc.Listen([]models.EventType{models.MouseDown, models.MouseUp}, func(ev *dom.Event) {
		if ev.Type == models.MouseDown {
			pressedAtDown = h.visual.Snapshot().CursorPressed
		} else {
			pressedAtUp = h.visual.Snapshot().CursorPressed
		}
	})
	defer remove()

	p := h.player(Config{})
	p.Load([]models.PortableRecord{
		{Type: models.MouseDown, Target: "#a", Payload: &models.MousePayload{PageX: 5, PageY: 6}},
		{Type: models.MouseUp, Target: "#a", Payload: &models.MousePayload{PageX: 7, PageY: 8}},
		{Type: models.Focus, Target: "#name"},
		{Type: models.Change, Target: "#name", Value: &typed},
	})
	p.Play()
	h.clock.Advance(time.Millisecond)
	h.clock.Advance(time.Millisecond)

	assert.True(t, pressedAtDown)
	assert.False(t, pressedAtUp)
	snap := h.visual.Snapshot()
	assert.Equal(t, float64(7), snap.CursorX)
	assert.Equal(t, float64(8), snap.CursorY)
	assert.Equal(t, 2, snap.Moves, "only mouse events move the cursor")
	assert.Same(t, h.doc.MustQuery("#name"), h.doc.Focused())
	assert.Equal(t, "after", h.doc.MustQuery("#name").Value())
}

func TestHandlerCanStopPlayer(t *testing.T) {
	h := newHarness(t)
	var p *Player
	p = h.player(Config{OnDispatch: func(index int, _ models.PortableRecord) {
		if index == 0 {
			p.Stop()
		}
	}})
	p.Load(clicks())
	p.Play()
	h.clock.Advance(time.Second)

	assert.Len(t, h.seen, 1)
	assert.Equal(t, Idle, p.State())
	assert.Equal(t, 0, p.Index())
}

func TestIntervalMode(t *testing.T) {
	h := newHarness(t)
	p := h.player(Config{Mode: Interval, Interval: 25 * time.Millisecond})
	p.Load([]models.PortableRecord{
		{Type: models.Click, Target: "#a", Payload: &models.MousePayload{}},
		{Type: models.Click, Target: "#b", Delay: 60 * time.Millisecond, Payload: &models.MousePayload{}},
		{Type: models.Click, Target: "#a", Payload: &models.MousePayload{}},
	})
	p.Play()

	h.clock.Advance(0)
	require.Len(t, h.seen, 1)
	h.clock.Advance(50 * time.Millisecond)
	require.Len(t, h.seen, 1)
	h.clock.Advance(25 * time.Millisecond)
	require.Len(t, h.seen, 3, "entries due at the same tick dispatch together, in order")
	assert.Equal(t, 75*time.Millisecond, h.seen[1].at)
	assert.Equal(t, h.doc.MustQuery("#b"), h.seen[1].target)
	assert.Equal(t, Idle, p.State())
}

func TestSetSpeedAndInterval(t *testing.T) {
	p := New(Config{})
	assert.Equal(t, float64(1), p.Speed())
	for _, bad := range []float64{0, -1} {
		_, err := p.SetSpeed(bad)
		assert.ErrorIs(t, err, ErrInvalidSpeed)
	}
	got, err := p.SetSpeed(0.5)
	require.NoError(t, err)
	assert.Equal(t, 0.5, got)
	assert.Equal(t, 0.5, p.Speed())

	assert.Equal(t, 25*time.Millisecond, p.Interval())
	_, err = p.SetInterval(0)
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

func TestHugeSpeedSaturatesWaits(t *testing.T) {
	for _, mode := range []Mode{PerEvent, Interval} {
		t.Run(mode.String(), func(t *testing.T) {
			h := newHarness(t)
			p := h.player(Config{Mode: mode})
			_, err := p.SetSpeed(1e300)
			require.NoError(t, err)
			p.Load([]models.PortableRecord{
				{Type: models.Click, Target: "#a", Payload: &models.MousePayload{}},
				{Type: models.Click, Target: "#b", Delay: 100 * time.Millisecond, Payload: &models.MousePayload{}},
				{Type: models.Click, Target: "#a", Payload: &models.MousePayload{}},
			})
			p.Play()

			h.clock.Advance(0)
			require.Len(t, h.seen, 1)
			h.clock.Advance(time.Second)
			assert.Len(t, h.seen, 1)
			assert.Equal(t, Playing, p.State())
			assert.Equal(t, 1, p.Index())
			p.Stop()
		})
	}
}

func TestLogEventsByTypeAndCategory(t *testing.T) {
	h := newHarness(t)
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	p := h.player(Config{Logger: logger, LogEvents: []string{"click", "KeyboardEvents", "TouchEvents"}})

	typed := "after"
	touch := models.TouchPoint{Identifier: 1, PageX: 5, PageY: 6}
	p.Load([]models.PortableRecord{
		{Type: models.Click, Target: "#a", Payload: &models.MousePayload{PageX: 10, PageY: 20, ScreenX: 11, ScreenY: 21}},
		{Type: models.MouseDown, Target: "#a", Payload: &models.MousePayload{}},
		{Type: models.KeyDown, Target: "#name", Payload: &models.KeyboardPayload{Key: "x", KeyCode: 88}},
		{Type: models.TouchStart, Target: "#b", Payload: &models.TouchPayload{Touches: []models.TouchPoint{touch, touch}, ChangedTouches: []models.TouchPoint{touch}}},
		{Type: models.Change, Target: "#name", Value: &typed},
	})
	p.Play()
	h.clock.Advance(0)
	require.Len(t, h.seen, 5)

	var lines []map[string]any
	dec := json.NewDecoder(&buf)
	for dec.More() {
		var line map[string]any
		require.NoError(t, dec.Decode(&line))
		if line["msg"] == "playback: event" {
			lines = append(lines, line)
		}
	}
	require.Len(t, lines, 3)

	assert.Equal(t, "INFO", lines[0]["level"])
	assert.Equal(t, "click", lines[0]["type"])
	assert.Equal(t, "#a", lines[0]["target"])
	assert.Equal(t, 10.0, lines[0]["page_x"])
	assert.Equal(t, 20.0, lines[0]["page_y"])
	assert.Equal(t, 11.0, lines[0]["screen_x"])

	assert.Equal(t, "keydown", lines[1]["type"])
	assert.Equal(t, "x", lines[1]["key"])
	assert.Equal(t, 88.0, lines[1]["key_code"])
	assert.NotContains(t, lines[1], "page_x")

	assert.Equal(t, "touchstart", lines[2]["type"])
	assert.Equal(t, 2.0, lines[2]["touches"])
}

func TestScrollToTop(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.doc.ScrollTo(100, 400))
	p := h.player(Config{ScrollToTop: true})
	p.Load(clicks())
	p.Play()
	x, y := h.doc.Scroll()
	assert.Zero(t, x)
	assert.Zero(t, y)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("interval")
	require.NoError(t, err)
	assert.Equal(t, Interval, m)
	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, PerEvent, m)
	_, err = ParseMode("burst")
	assert.Error(t, err)
}
