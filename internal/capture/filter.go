// Package capture decides which live events belong in the log and
// records them.
package capture

import (
	"github.com/vincentbai/browsetrace-replay/internal/dom"
	"github.com/vincentbai/browsetrace-replay/internal/models"
)

// Filter excludes events aimed at the control surface.
type Filter struct {
	excluded []dom.Element
}

// NewFilter returns a filter that drops events whose target or current
// target is a direct child of one of roots.
func NewFilter(roots ...dom.Element) *Filter {
	f := &Filter{}
	for _, r := range roots {
		if r != nil {
			f.excluded = append(f.excluded, r)
		}
	}
	return f
}

// Decide reports whether ev is kept and, if so, its category.
func (f *Filter) Decide(ev *dom.Event) (bool, models.Category) {
	if f.excludes(ev.Target) || f.excludes(ev.CurrentTarget) {
		return false, ""
	}
	return true, models.CategoryOf(ev.Type)
}

func (f *Filter) excludes(el dom.Element) bool {
	if el == nil {
		return false
	}
	parent := el.Parent()
	if parent == nil {
		return false
	}
	for _, root := range f.excluded {
		if parent == root {
			return true
		}
	}
	return false
}
