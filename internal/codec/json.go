package codec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"daycounter/internal/model"
)

// ExportJSON writes events as a two-space indented JSON array. A nil slice
// exports as [].
func ExportJSON(events []model.Event) ([]byte, error) {
	if events == nil {
		events = []model.Event{}
	}
	return json.MarshalIndent(events, "", "  ")
}

// ImportJSON decodes a JSON array of events. Anything other than an array
// is a *FormatError. Records are not validated.
func ImportJSON(data []byte) ([]model.Event, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, &FormatError{Format: KindJSON, Msg: "empty document"}
	}
	if trimmed[0] != '[' {
		if !json.Valid(trimmed) {
			return nil, &FormatError{Format: KindJSON, Msg: "malformed document"}
		}
		return nil, &FormatError{Format: KindJSON, Msg: "top-level value is not an array"}
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, &FormatError{Format: KindJSON, Msg: "malformed document", Err: err}
	}

	events := make([]model.Event, 0, len(raw))
	for i, r := range raw {
		var ev model.Event
		if err := json.Unmarshal(r, &ev); err != nil {
			return nil, &FormatError{Format: KindJSON, Msg: fmt.Sprintf("element %d", i), Err: err}
		}
		events = append(events, ev)
	}
	return events, nil
}
