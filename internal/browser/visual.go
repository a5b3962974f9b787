package browser

// Visual draws the playback overlay and cursor in the page. Failures are
// logged; they never affect dispatch.
type Visual struct {
	page *Page
}

// NewVisual returns the side channel of p.
func NewVisual(p *Page) *Visual {
	return &Visual{page: p}
}

func (v *Visual) SetOverlay(visible bool) { v.update(map[string]any{"overlay": visible}) }

func (v *Visual) SetCursorVisible(visible bool) { v.update(map[string]any{"cursor": visible}) }

func (v *Visual) MoveCursor(x, y float64) { v.update(map[string]any{"x": x, "y": y}) }

func (v *Visual) SetCursorPressed(pressed bool) { v.update(map[string]any{"pressed": pressed}) }

func (v *Visual) update(state map[string]any) {
	_, err := v.page.eval(`(s) => window.__browsetrace && window.__browsetrace.visual(s)`, state)
	if err != nil {
		v.page.logger.Debug("browser: visual update failed", "error", err)
	}
}
