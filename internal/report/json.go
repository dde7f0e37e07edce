package report

import (
	"encoding/json"
	"io"
)

// FormatJSON writes the PlaybackResult as compact JSON to the given writer.
func FormatJSON(w io.Writer, result *PlaybackResult) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(result)
}
