package script

import (
	"encoding/json"
	"fmt"
	"math"
)

// ValidationError reports why an imported script was rejected.
// Index is the zero-based record index, or -1 for whole-document problems.
type ValidationError struct {
	Index  int
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return "invalid script: " + e.Reason
	}
	return fmt.Sprintf("invalid script: event %d: %s", e.Index, e.Reason)
}

// decodeRecord turns one generic record into an Event. A non-empty reason
// means the record is invalid.
func decodeRecord(item any) (Event, string) {
	rec, ok := item.(map[string]any)
	if !ok {
		return nil, "Non-dict event"
	}

	rawKind, ok := rec["event_type"]
	if !ok {
		rawKind, ok = rec["kind"]
	}
	if !ok {
		return nil, "Missing event type"
	}
	kind, ok := rawKind.(string)
	if !ok {
		return nil, fmt.Sprintf("Unknown event type: %v", rawKind)
	}

	payload, ok := rec["event"].(map[string]any)
	if !ok {
		return nil, "Non-dict event payload"
	}

	switch Kind(kind) {
	case KindDelay:
		millis, ok := asInt(payload["millis"])
		if !ok {
			return nil, "Non-integer delay"
		}
		if millis < 0 {
			return nil, "Negative delay"
		}
		return Delay{Millis: millis}, ""

	case KindPrint:
		text, ok := payload["text"].(string)
		if !ok {
			return nil, "Non-string print text"
		}
		return Print{Text: text}, ""

	case KindKey:
		key, ok := payload["key"].(string)
		if !ok {
			return nil, "Non-string key code"
		}
		state, ok := payload["state"].(bool)
		if !ok {
			return nil, "Non-bool key state"
		}
		return Key{Key: key, State: state}, ""

	case KindMouseButton:
		button, ok := payload["button"].(string)
		if !ok {
			return nil, "Non-string mouse button code"
		}
		state, ok := payload["state"].(bool)
		if !ok {
			return nil, "Non-bool mouse button state"
		}
		return MouseButton{Button: button, State: state}, ""

	case KindMouseMove:
		to, reason := decodePoint(payload["to"], "Non-object mouse move target", "Non-int mouse move X", "Non-int mouse move Y")
		if reason != "" {
			return nil, reason
		}
		return MouseMove{To: to}, ""

	case KindMouseWheel:
		delta, reason := decodePoint(payload["delta"], "Non-object mouse wheel delta", "Non-int mouse delta X", "Non-int mouse delta Y")
		if reason != "" {
			return nil, reason
		}
		return MouseWheel{Delta: delta}, ""

	case KindATXButton:
		button, ok := payload["button"].(string)
		if !ok {
			return nil, "Non-string ATX button"
		}
		return ATXButton{Button: button}, ""

	case KindGPIOSwitch:
		channel, ok := payload["channel"].(string)
		if !ok {
			return nil, "Non-string GPIO channel"
		}
		state, ok := payload["state"].(bool)
		if !ok {
			return nil, "Non-bool GPIO state"
		}
		return GPIOSwitch{Channel: channel, State: state}, ""

	case KindGPIOPulse:
		channel, ok := payload["channel"].(string)
		if !ok {
			return nil, "Non-string GPIO channel"
		}
		return GPIOPulse{Channel: channel}, ""

	default:
		return nil, fmt.Sprintf("Unknown event type: %s", kind)
	}
}

func decodePoint(v any, objMsg, xMsg, yMsg string) (Point, string) {
	obj, ok := v.(map[string]any)
	if !ok {
		return Point{}, objMsg
	}
	x, ok := asInt(obj["x"])
	if !ok || x < math.MinInt32 || x > math.MaxInt32 {
		return Point{}, xMsg
	}
	y, ok := asInt(obj["y"])
	if !ok || y < math.MinInt32 || y > math.MaxInt32 {
		return Point{}, yMsg
	}
	return Point{X: int(x), Y: int(y)}, ""
}

// asInt accepts any decoded number with an integral value.
func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return floatToInt(f)
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		return floatToInt(n)
	default:
		return 0, false
	}
}

func floatToInt(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}
