package models

import (
	"encoding/json"
	"strings"
)

// Selector is the portable form of an element reference: "#id", "body",
// or empty when the element could not be addressed. The empty selector
// is encoded as JSON null.
type Selector string

const (
	// NoSelector marks an unresolvable element reference.
	NoSelector Selector = ""
	// BodySelector addresses the document body.
	BodySelector Selector = "body"
)

// IDSelector returns the selector for an element id.
func IDSelector(id string) Selector {
	if id == "" {
		return NoSelector
	}
	return Selector("#" + id)
}

// ID returns the element id addressed by s, if s is an id selector.
func (s Selector) ID() (string, bool) {
	if !strings.HasPrefix(string(s), "#") || len(s) < 2 {
		return "", false
	}
	return string(s[1:]), true
}

// IsBody reports whether s addresses the document body.
func (s Selector) IsBody() bool { return s == BodySelector }

// IsNull reports whether s holds no element reference.
func (s Selector) IsNull() bool { return s == NoSelector }

func (s Selector) MarshalJSON() ([]byte, error) {
	if s == NoSelector {
		return []byte("null"), nil
	}
	return json.Marshal(string(s))
}

func (s *Selector) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = NoSelector
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = Selector(str)
	return nil
}
