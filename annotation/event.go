package annotation

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// Shape is one drawn shape as reported by the plotting front end.
type Shape struct {
	Type string   `json:"type"`
	Path string   `json:"path,omitempty"`
	X0   *float64 `json:"x0,omitempty"`
	X1   *float64 `json:"x1,omitempty"`
	Y0   *float64 `json:"y0,omitempty"`
	Y1   *float64 `json:"y1,omitempty"`
}

// Event is a relayout notification from one of the two slice views. It either
// carries the complete current shape list, or a geometry edit to a single
// shape that was dragged.
type Event struct {
	// HasShapes is true when Shapes is the full list, which may be empty when
	// the user erased everything.
	HasShapes bool
	Shapes    []Shape

	PathEdit *string
	Y0Edit   *float64
	Y1Edit   *float64
}

var editKey = regexp.MustCompile(`^shapes\[\d+\]\.(path|y0|y1)$`)

// ParseRelayout decodes a relayout payload such as {"shapes": [...]} or
// {"shapes[2].path": "M..Z"}. Keys that do not concern shapes (zoom, pan,
// autosize) are ignored; an event with nothing relevant is not an error.
func ParseRelayout(data []byte) (Event, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Event{}, fmt.Errorf("relayout payload: %w", err)
	}

	var ev Event

	if shapes, ok := raw["shapes"]; ok {
		ev.HasShapes = true
		if err := json.Unmarshal(shapes, &ev.Shapes); err != nil {
			return Event{}, fmt.Errorf("relayout shapes: %w", err)
		}
		return ev, nil
	}

	for k, v := range raw {
		m := editKey.FindStringSubmatch(k)
		if m == nil {
			continue
		}

		switch m[1] {
		case "path":
			var p string
			if err := json.Unmarshal(v, &p); err != nil {
				return Event{}, fmt.Errorf("%s: %w", k, err)
			}
			ev.PathEdit = &p
		case "y0":
			var f float64
			if err := json.Unmarshal(v, &f); err != nil {
				return Event{}, fmt.Errorf("%s: %w", k, err)
			}
			ev.Y0Edit = &f
		case "y1":
			var f float64
			if err := json.Unmarshal(v, &f); err != nil {
				return Event{}, fmt.Errorf("%s: %w", k, err)
			}
			ev.Y1Edit = &f
		}
	}

	return ev, nil
}

// Empty reports whether the event carries nothing the store acts on.
func (e Event) Empty() bool {
	return !e.HasShapes && e.PathEdit == nil && e.Y0Edit == nil && e.Y1Edit == nil
}
