package models

// Payload is the category-specific part of an event. Exactly one concrete
// type exists per Category; none of them holds an element reference, those
// live on the record itself.
type Payload interface {
	Category() Category
}

// MousePayload carries pointer coordinates and the pressed button.
type MousePayload struct {
	ScreenX float64 `json:"screenX"`
	ScreenY float64 `json:"screenY"`
	ClientX float64 `json:"clientX"`
	ClientY float64 `json:"clientY"`
	PageX   float64 `json:"pageX"`
	PageY   float64 `json:"pageY"`
	Button  int     `json:"button"`
	Buttons int     `json:"buttons"`
}

func (*MousePayload) Category() Category { return MouseEvents }

// TouchPoint is one contact of a touch event. Touch targets are not kept.
type TouchPoint struct {
	Identifier int     `json:"identifier"`
	ScreenX    float64 `json:"screenX"`
	ScreenY    float64 `json:"screenY"`
	ClientX    float64 `json:"clientX"`
	ClientY    float64 `json:"clientY"`
	PageX      float64 `json:"pageX"`
	PageY      float64 `json:"pageY"`
}

// TouchPayload carries the active and changed touch lists.
type TouchPayload struct {
	Touches        []TouchPoint `json:"touches"`
	ChangedTouches []TouchPoint `json:"changedTouches"`
}

func (*TouchPayload) Category() Category { return TouchEvents }

// KeyboardPayload carries key identification.
type KeyboardPayload struct {
	Key      string `json:"key"`
	Code     string `json:"code"`
	KeyCode  int    `json:"keyCode"`
	CharCode int    `json:"charCode"`
	Which    int    `json:"which"`
	Location int    `json:"location"`
	Repeat   bool   `json:"repeat"`
}

func (*KeyboardPayload) Category() Category { return KeyboardEvents }

// GenericPayload is the empty payload of GenericEvents. Mimicable state such
// as an input value is carried on the record.
type GenericPayload struct{}

func (*GenericPayload) Category() Category { return GenericEvents }

// NewPayload returns an empty payload for c.
func NewPayload(c Category) Payload {
	switch c {
	case MouseEvents:
		return &MousePayload{}
	case TouchEvents:
		return &TouchPayload{}
	case KeyboardEvents:
		return &KeyboardPayload{}
	default:
		return &GenericPayload{}
	}
}
