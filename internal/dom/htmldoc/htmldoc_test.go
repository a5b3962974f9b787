package htmldoc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/vincentbai/browsetrace-replay/internal/dom"
	"github.com/vincentbai/browsetrace-replay/internal/models"
)

const page = `<html><body>
<div id="panel" class="controls"><button id="go">Go</button><span>plain</span></div>
<input id="name" value="initial">
<textarea id="notes">some text</textarea>
</body></html>`

func parse(t *testing.T) *Document {
	t.Helper()
	d, err := Parse(page)
	require.NoError(t, err)
	return d
}

func TestQuery(t *testing.T) {
	d := parse(t)

	assert.Nil(t, d.Query(models.NoSelector))
	assert.Equal(t, d.Body(), d.Query(models.BodySelector))
	assert.Nil(t, d.Query("#missing"))

	goBtn := d.Query("#go")
	require.NotNil(t, goBtn)
	assert.Equal(t, "go", goBtn.ID())
	assert.Same(t, d.MustQuery("#go"), goBtn, "one wrapper per node")
	assert.Equal(t, d.MustQuery("#panel"), goBtn.Parent())

	span := d.Query("div.controls span")
	require.NotNil(t, span)
	assert.Empty(t, span.ID())
	assert.Equal(t, "span", d.MustQuery("div.controls span").Tag())

	assert.Nil(t, d.Root().Parent())
	assert.Equal(t, "#document", d.root().Tag())
	assert.Panics(t, func() { d.MustQuery("#missing") })
}

func TestSelectorOf(t *testing.T) {
	d := parse(t)
	assert.Equal(t, models.Selector("#go"), dom.SelectorOf(d, d.MustQuery("#go")))
	assert.Equal(t, models.BodySelector, dom.SelectorOf(d, d.Body()))
	assert.Equal(t, models.NoSelector, dom.SelectorOf(d, d.MustQuery("span")))
	assert.Equal(t, models.NoSelector, dom.SelectorOf(d, nil))

	el, ok := dom.Resolve(d, "#nope")
	assert.False(t, ok)
	assert.Equal(t, d.Root(), el)
}

func TestValueAndFocus(t *testing.T) {
	d := parse(t)
	name := d.MustQuery("#name")
	assert.Equal(t, "initial", name.Value())
	assert.Equal(t, "some text", d.MustQuery("#notes").Value())
	assert.Equal(t, "", d.MustQuery("#go").Value())

	require.NoError(t, name.SetValue("typed"))
	assert.Equal(t, "typed", name.Value())

	assert.Nil(t, d.Focused())
	require.NoError(t, name.Focus())
	assert.Same(t, name, d.Focused())
	require.NoError(t, d.MustQuery("#go").Blur())
	assert.Same(t, name, d.Focused(), "blurring another element keeps focus")
	require.NoError(t, name.Blur())
	assert.Nil(t, d.Focused())
}

func TestPropagation(t *testing.T) {
	d := parse(t)
	var order []string
	removeCapture := d.Listen([]models.EventType{models.Click, models.Focus}, func(ev *dom.Event) {
		order = append(order, "capture:"+string(ev.Type))
	})
	d.MustQuery("#panel").AddEventListener(models.Click, func(ev *dom.Event) {
		order = append(order, "panel")
		assert.Equal(t, d.MustQuery("#go"), ev.Target)
		assert.Equal(t, d.MustQuery("#panel"), ev.CurrentTarget)
	})
	d.MustQuery("#panel").AddEventListener(models.Focus, func(*dom.Event) {
		order = append(order, "panel focus")
	})
	d.MustQuery("#go").AddEventListener(models.Click, func(*dom.Event) {
		order = append(order, "go")
	})

	d.Click(d.MustQuery("#go"), 5, 6)
	assert.Equal(t, []string{"capture:click", "go", "panel"}, order)

	order = nil
	require.NoError(t, d.Inject(models.PortableRecord{Type: models.Focus, Target: "#go"}))
	assert.Equal(t, []string{"capture:focus"}, order, "focus does not bubble")

	order = nil
	removeCapture()
	d.Click(d.MustQuery("#go"), 5, 6)
	assert.Equal(t, []string{"go", "panel"}, order)
}

func TestEmitDefaults(t *testing.T) {
	clk := testingclock.NewFakePassiveClock(time.Unix(100, 0))
	d, err := Parse(page, WithClock(clk))
	require.NoError(t, err)

	var got *dom.Event
	d.Listen([]models.EventType{models.KeyDown}, func(ev *dom.Event) { got = ev })

	clk.SetTime(time.Unix(100, 0).Add(250 * time.Millisecond))
	d.Emit(&dom.Event{Type: models.KeyDown})
	require.NotNil(t, got)
	assert.Equal(t, 250.0, got.TimeStamp)
	assert.True(t, got.IsTrusted)
	assert.Equal(t, d.Root(), got.Target)
	assert.IsType(t, &models.KeyboardPayload{}, got.Payload)
}

func TestDispatchIsUntrusted(t *testing.T) {
	d := parse(t)
	var got *dom.Event
	d.Listen([]models.EventType{models.Click}, func(ev *dom.Event) { got = ev })

	value := "v"
	require.NoError(t, d.MustQuery("#go").Dispatch(&dom.SyntheticEvent{
		Type:     models.Click,
		Category: models.MouseEvents,
		Bubbles:  true,
		Mouse:    &models.MousePayload{PageX: 7},
		Value:    &value,
	}))
	require.NotNil(t, got)
	assert.False(t, got.IsTrusted)
	assert.Equal(t, d.MustQuery("#go"), got.Target)
	assert.Equal(t, 7.0, got.Payload.(*models.MousePayload).PageX)
	assert.Equal(t, "v", *got.Value)
}

func TestInject(t *testing.T) {
	d := parse(t)
	var got []*dom.Event
	d.Listen(models.CaptureTypes(), func(ev *dom.Event) { got = append(got, ev) })

	typed := "hello"
	require.NoError(t, d.Inject(models.PortableRecord{Type: models.Change, TimeStamp: 10, Target: "#name", Value: &typed}))
	assert.Equal(t, "hello", d.MustQuery("#name").Value())

	require.NoError(t, d.Inject(models.PortableRecord{Type: models.MouseOver, TimeStamp: 11, Target: "#go", RelatedTarget: "#panel"}))
	require.Len(t, got, 2)
	assert.Equal(t, 10.0, got[0].TimeStamp)
	assert.Equal(t, d.MustQuery("#panel"), got[1].RelatedTarget)

	require.NoError(t, d.Inject(models.PortableRecord{Type: models.Blur, TimeStamp: 12, Target: "body"}))
	assert.Len(t, got, 3)

	assert.Error(t, d.Inject(models.PortableRecord{Type: models.Click, TimeStamp: 13, Target: "#missing"}))
	assert.Len(t, got, 3)
}

func TestScroll(t *testing.T) {
	d := Empty()
	require.NoError(t, d.ScrollTo(10, 250))
	x, y := d.Scroll()
	assert.Equal(t, 10.0, x)
	assert.Equal(t, 250.0, y)
}
