package codec

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vincentbai/browsetrace-replay/internal/dom"
	"github.com/vincentbai/browsetrace-replay/internal/dom/htmldoc"
	"github.com/vincentbai/browsetrace-replay/internal/eventlog"
	"github.com/vincentbai/browsetrace-replay/internal/models"
)

const page = `<html><body>
<button id="foo">Foo</button>
<p class="anon">no id</p>
<input id="name">
</body></html>`

func parse(t *testing.T) *htmldoc.Document {
	t.Helper()
	doc, err := htmldoc.Parse(page)
	require.NoError(t, err)
	return doc
}

func TestSelectorResolution(t *testing.T) {
	doc := parse(t)
	entry := eventlog.Entry{Event: &dom.Event{
		Type:          models.MouseOver,
		Target:        doc.MustQuery("#foo"),
		CurrentTarget: doc.Body(),
		RelatedTarget: doc.MustQuery("p.anon"),
		Payload:       &models.MousePayload{},
	}}

	rec := Normalize(doc, entry)
	assert.Equal(t, models.Selector("#foo"), rec.Target)
	assert.Equal(t, models.BodySelector, rec.CurrentTarget)
	assert.True(t, rec.RelatedTarget.IsNull())
	assert.True(t, rec.SrcElement.IsNull())
}

func TestNormalizeDropsExcludedState(t *testing.T) {
	doc := parse(t)
	entry := eventlog.Entry{Event: &dom.Event{
		Type:       models.KeyDown,
		Target:     doc.MustQuery("#name"),
		Payload:    &models.KeyboardPayload{Key: "a", KeyCode: 65},
		Bubbles:    true,
		Cancelable: true,
		IsTrusted:  true,
	}, Delay: 30 * time.Millisecond}

	data, err := json.Marshal(Normalize(doc, entry))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"bubbles", "cancelable", "isTrusted", "view", "altKey", "ctrlKey", "toElement"} {
		assert.NotContains(t, raw, key)
	}
	assert.Equal(t, "a", raw["key"])
	assert.Equal(t, float64(30), raw["delay"])
}

func TestNormalizeMismatchedPayload(t *testing.T) {
	doc := parse(t)
	rec := Normalize(doc, eventlog.Entry{Event: &dom.Event{Type: models.Click, Payload: &models.KeyboardPayload{Key: "x"}}})
	require.NotNil(t, rec.Mouse())
	assert.Equal(t, models.MousePayload{}, *rec.Mouse())
}

func TestRoundTripPreservesPayload(t *testing.T) {
	doc := parse(t)
	value := "typed"
	entries := []eventlog.Entry{
		{Event: &dom.Event{Type: models.Click, Target: doc.MustQuery("#foo"), Payload: &models.MousePayload{ScreenX: 1, ScreenY: 2, ClientX: 3, ClientY: 4, PageX: 5, PageY: 6, Button: 1}}},
		{Event: &dom.Event{Type: models.KeyUp, Target: doc.MustQuery("#name"), Payload: &models.KeyboardPayload{Key: "Enter", Code: "Enter", KeyCode: 13}}, Delay: 5 * time.Millisecond},
		{Event: &dom.Event{Type: models.TouchStart, Target: doc.Body(), Payload: &models.TouchPayload{Touches: []models.TouchPoint{{Identifier: 1, PageX: 9, PageY: 8}}}}},
		{Event: &dom.Event{Type: models.Change, Target: doc.MustQuery("#name"), Value: &value}},
	}

	s, err := EventsToJSON(NormalizeLog(doc, entries))
	require.NoError(t, err)
	records, err := ParseRecords(s)
	require.NoError(t, err)
	require.Len(t, records, len(entries))

	click := Reconstruct(records[0])
	target, ev, resolved := click.Bind(doc)
	assert.True(t, resolved)
	assert.Equal(t, doc.MustQuery("#foo"), target)
	assert.Equal(t, models.MousePayload{ScreenX: 1, ScreenY: 2, ClientX: 3, ClientY: 4, PageX: 5, PageY: 6, Button: 1}, *ev.Mouse)
	assert.True(t, ev.Bubbles)
	assert.False(t, ev.Cancelable)

	key := Reconstruct(records[1])
	assert.Equal(t, "Enter", key.Event.Keyboard.Key)
	assert.Equal(t, 13, key.Event.Keyboard.KeyCode)
	assert.Equal(t, 5*time.Millisecond, records[1].Delay)

	touch := Reconstruct(records[2])
	require.Len(t, touch.Event.Touch.Touches, 1)
	assert.Equal(t, float64(9), touch.Event.Touch.Touches[0].PageX)
	assert.Equal(t, models.BodySelector, touch.Target)

	change := Reconstruct(records[3])
	require.NotNil(t, change.Event.Value)
	assert.Equal(t, "typed", *change.Event.Value)
}

func TestReconstructGenericDefaults(t *testing.T) {
	ev := Reconstruct(models.PortableRecord{Type: models.Focus}).Event
	assert.True(t, ev.Bubbles)
	assert.False(t, ev.Cancelable)

	no, yes := false, true
	ev = Reconstruct(models.PortableRecord{Type: models.Select, Bubbles: &no, Cancelable: &yes}).Event
	assert.False(t, ev.Bubbles)
	assert.True(t, ev.Cancelable)

	ev = Reconstruct(models.PortableRecord{Type: models.Click, Bubbles: &no, Cancelable: &yes}).Event
	assert.True(t, ev.Bubbles, "mouse events always bubble")
	assert.False(t, ev.Cancelable)
}

func TestBindUnresolvedFallsBackToRoot(t *testing.T) {
	doc := parse(t)
	target, _, resolved := Reconstruct(models.PortableRecord{Type: models.Click, Target: "#missing"}).Bind(doc)
	assert.False(t, resolved)
	assert.Equal(t, doc.Root(), target)

	target, _, resolved = Reconstruct(models.PortableRecord{Type: models.Click}).Bind(doc)
	assert.False(t, resolved)
	assert.Equal(t, doc.Root(), target)
}

func TestEventsToJSONScenario(t *testing.T) {
	doc, err := htmldoc.Parse(`<html><body><button id="a"></button><button id="b"></button></body></html>`)
	require.NoError(t, err)
	log := eventlog.New()
	log.Append(&dom.Event{Type: models.Click, TimeStamp: 1000, Target: doc.MustQuery("#a"), Payload: &models.MousePayload{}})
	log.Append(&dom.Event{Type: models.Click, TimeStamp: 1100, Target: doc.MustQuery("#b"), Payload: &models.MousePayload{}})

	s, err := EventsToJSON(NormalizeLog(doc, log.Entries()))
	require.NoError(t, err)

	var raw []map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &raw))
	require.Len(t, raw, 2)
	assert.Equal(t, "click", raw[0]["type"])
	assert.Equal(t, "#a", raw[0]["target"])
	assert.Equal(t, "#b", raw[1]["target"])
	assert.Equal(t, float64(100), raw[1]["delay"])
	assert.NotContains(t, raw[0], "key", "mouse records carry mouse fields only")
}

func TestEventsToJSONEmpty(t *testing.T) {
	s, err := EventsToJSON(nil)
	require.NoError(t, err)
	records, err := ParseRecords(s)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestParseRecordsMalformed(t *testing.T) {
	for _, input := range []string{
		"",
		"not json",
		"null",
		" null ",
		`{"type":"click"}`,
		`[{"type":"click"}, {"target":"#a"}]`,
		`[{"type":"click"}, 3]`,
	} {
		records, err := ParseRecords(input)
		assert.Nil(t, records, input)
		assert.True(t, errors.Is(err, ErrMalformed), "input %q: %v", input, err)
	}
}
