// Package codec converts between live log entries, portable records and
// dispatchable events.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vincentbai/browsetrace-replay/internal/dom"
	"github.com/vincentbai/browsetrace-replay/internal/eventlog"
	"github.com/vincentbai/browsetrace-replay/internal/models"
)

// ErrMalformed is returned when an import is not a JSON array of records.
var ErrMalformed = errors.New("codec: malformed event log")

// Normalize projects a log entry into a portable record. Element
// references become selectors; bubbling, trust and modifier state are
// dropped. It never fails.
func Normalize(doc dom.Document, entry eventlog.Entry) models.PortableRecord {
	ev := entry.Event
	rec := models.PortableRecord{
		Type:          ev.Type,
		TimeStamp:     ev.TimeStamp,
		Delay:         entry.Delay,
		Target:        dom.SelectorOf(doc, ev.Target),
		CurrentTarget: dom.SelectorOf(doc, ev.CurrentTarget),
		RelatedTarget: dom.SelectorOf(doc, ev.RelatedTarget),
		SrcElement:    dom.SelectorOf(doc, ev.SrcElement),
		FromElement:   dom.SelectorOf(doc, ev.FromElement),
		Value:         copyString(ev.Value),
		Payload:       copyPayload(ev.Payload, ev.Category()),
	}
	return rec
}

// NormalizeLog normalizes every entry in order.
func NormalizeLog(doc dom.Document, entries []eventlog.Entry) []models.PortableRecord {
	records := make([]models.PortableRecord, len(entries))
	for i, e := range entries {
		records[i] = Normalize(doc, e)
	}
	return records
}

// EventsToJSON serializes records as one JSON array, one record per line,
// in log order.
func EventsToJSON(records []models.PortableRecord) (string, error) {
	var buf bytes.Buffer
	buf.WriteString("[ ")
	for i, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return "", fmt.Errorf("codec: marshal record %d: %w", i, err)
		}
		buf.Write(data)
		if i < len(records)-1 {
			buf.WriteString(",\n")
		}
	}
	buf.WriteString(" ]")
	return buf.String(), nil
}

// ParseRecords parses a serialized log. It fails on the first malformed
// record and returns nothing in that case.
func ParseRecords(s string) ([]models.PortableRecord, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: not an array", ErrMalformed)
	}
	records := make([]models.PortableRecord, len(raw))
	for i, r := range raw {
		if err := json.Unmarshal(r, &records[i]); err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrMalformed, i, err)
		}
	}
	return records, nil
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// copyPayload returns a payload of the category's variant. A live event
// carrying a mismatched or missing payload gets an empty one.
func copyPayload(p models.Payload, c models.Category) models.Payload {
	switch v := p.(type) {
	case *models.MousePayload:
		if c == models.MouseEvents {
			cp := *v
			return &cp
		}
	case *models.KeyboardPayload:
		if c == models.KeyboardEvents {
			cp := *v
			return &cp
		}
	case *models.TouchPayload:
		if c == models.TouchEvents {
			cp := models.TouchPayload{
				Touches:        append([]models.TouchPoint(nil), v.Touches...),
				ChangedTouches: append([]models.TouchPoint(nil), v.ChangedTouches...),
			}
			return &cp
		}
	}
	return models.NewPayload(c)
}
