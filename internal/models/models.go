package models

import "fmt"

// Batch is the ingest envelope for raw user events posted by a page.
// Each event uses the PortableRecord shape; Delay is ignored on ingest.
type Batch struct {
	Events []PortableRecord `json:"events"`
}

// ValidateEvent checks an ingested event before it is injected into a
// document.
func ValidateEvent(event PortableRecord) error {
	if event.Type == "" {
		return fmt.Errorf("%w: type cannot be empty", ErrInvalidRecord)
	}
	if !Captured(event.Type) {
		return fmt.Errorf("%w: invalid event type: %s", ErrInvalidRecord, event.Type)
	}
	if event.TimeStamp <= 0 {
		return fmt.Errorf("%w: timestamp must be positive", ErrInvalidRecord)
	}
	if event.Target.IsNull() {
		return fmt.Errorf("%w: target cannot be null", ErrInvalidRecord)
	}
	return nil
}
