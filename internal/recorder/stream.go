package recorder

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/hid-macro/hid-macro/internal/script"
)

// maxLineBytes bounds a single JSON-lines record; print events can carry
// large pastes.
const maxLineBytes = 4 << 20

// ReadEventStream parses a JSON-lines event stream, one
// {"event_type": ..., "event": ...} record per line, and calls fn for each
// event in order. Blank lines are skipped. Reading stops at the first
// invalid line or the first error returned by fn.
func ReadEventStream(r io.Reader, fn func(script.Event) error) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	lineNum := 0
	count := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		ev, err := script.DecodeEvent(line)
		if err != nil {
			return count, fmt.Errorf("line %d: %w", lineNum, err)
		}
		if err := fn(ev); err != nil {
			return count, fmt.Errorf("line %d: %w", lineNum, err)
		}
		count++
	}

	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("error reading event stream: %w", err)
	}
	return count, nil
}
