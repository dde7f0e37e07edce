package script

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format selects the text rendering of a script.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat maps a user-supplied name to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "json", "":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("invalid format %q: valid values are json, yaml", name)
	}
}

// FormatFromPath picks a format from the file extension. Anything that is
// not .yaml or .yml is treated as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// record is the exported shape of one event.
type record struct {
	EventType Kind  `json:"event_type" yaml:"event_type"`
	Event     Event `json:"event" yaml:"event"`
}

// MarshalEvent encodes a single event as a compact JSON record, the form
// the live transport expects.
func MarshalEvent(ev Event) ([]byte, error) {
	if ev == nil {
		return nil, errors.New("event cannot be nil")
	}
	return json.Marshal(record{EventType: ev.Kind(), Event: ev})
}

// Export renders the script in the given format.
func Export(s *Script, f Format) ([]byte, error) {
	if s == nil {
		return nil, errors.New("script cannot be nil")
	}

	records := make([]record, 0, len(s.Events))
	for i, ev := range s.Events {
		if ev == nil {
			return nil, fmt.Errorf("event %d is nil", i)
		}
		records = append(records, record{EventType: ev.Kind(), Event: ev})
	}

	switch f {
	case FormatJSON, "":
		data, err := json.MarshalIndent(records, "", "    ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal script to JSON: %w", err)
		}
		return append(data, '\n'), nil
	case FormatYAML:
		data, err := yaml.Marshal(records)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal script to YAML: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported format %q", f)
	}
}

// Import parses and validates a script. Validation stops at the first bad
// record; nothing from a failed import is returned.
func Import(data []byte, f Format) (*Script, error) {
	raw, err := decodeRaw(data, f)
	if err != nil {
		return nil, err
	}

	list, ok := raw.([]any)
	if !ok {
		return nil, &ValidationError{Index: -1, Reason: "Base of script is not an objects list"}
	}

	s := &Script{Events: make([]Event, 0, len(list))}
	for i, item := range list {
		ev, reason := decodeRecord(item)
		if reason != "" {
			return nil, &ValidationError{Index: i, Reason: reason}
		}
		s.Events = append(s.Events, ev)
	}
	return s, nil
}

// Load reads an entire script from r.
func Load(r io.Reader, f Format) (*Script, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return Import(data, f)
}

// DecodeEvent parses a single JSON event record.
func DecodeEvent(data []byte) (Event, error) {
	raw, err := decodeRaw(data, FormatJSON)
	if err != nil {
		return nil, err
	}
	ev, reason := decodeRecord(raw)
	if reason != "" {
		return nil, &ValidationError{Index: -1, Reason: reason}
	}
	return ev, nil
}

func decodeRaw(data []byte, f Format) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ValidationError{Index: -1, Reason: "empty script"}
	}

	var raw any
	switch f {
	case FormatJSON, "":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, &ValidationError{Index: -1, Reason: fmt.Sprintf("malformed JSON: %v", err)}
		}
		if dec.More() {
			return nil, &ValidationError{Index: -1, Reason: "malformed JSON: trailing data after script"}
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, &ValidationError{Index: -1, Reason: fmt.Sprintf("malformed YAML: %v", err)}
		}
	default:
		return nil, fmt.Errorf("unsupported format %q", f)
	}
	return raw, nil
}
