package engine

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrBatchParse marks a response that could not be mapped back to the
// expected number of answers. It is retryable, same as a transport error:
// the fix in both cases is to ask again.
var ErrBatchParse = errors.New("batch response does not match expected item count")

// numberedMarker matches "  3) rest" or "3. rest"; the digits open a new
// answer block and the remainder, if any, is its first content line.
var numberedMarker = regexp.MustCompile(`^\s*\d+[).]\s*(.*)$`)

type parseStrategy func(raw string, want int) ([]string, bool)

// parseBatchResponse maps a model's free-text reply to exactly want
// answers. Strategies run in order and the first match wins: numbered
// blocks, then a bare line-count match, then single-item passthrough.
func parseBatchResponse(raw string, want int) ([]string, error) {
	for _, strategy := range []parseStrategy{numberedBlocks, bareLines, singleItem} {
		if out, ok := strategy(raw, want); ok {
			return out, nil
		}
	}
	return nil, fmt.Errorf("%w: want %d", ErrBatchParse, want)
}

// numberedBlocks scans for "N)" / "N." markers. Unnumbered lines continue
// the open block, which tolerates multi-line answers but also swallows any
// unnumbered aside the model inserts between items.
func numberedBlocks(raw string, want int) ([]string, bool) {
	var blocks []string
	var current []string
	open := false

	flush := func() {
		blocks = append(blocks, strings.TrimSpace(strings.Join(current, "\n")))
		current = current[:0]
	}

	for _, line := range strings.Split(raw, "\n") {
		if m := numberedMarker.FindStringSubmatch(line); m != nil {
			if open {
				flush()
			}
			open = true
			if rest := strings.TrimSpace(m[1]); rest != "" {
				current = append(current, rest)
			}
			continue
		}
		if open {
			current = append(current, strings.TrimSpace(line))
		}
	}
	if open {
		flush()
	}

	if len(blocks) != want {
		return nil, false
	}
	return blocks, true
}

// bareLines accepts the response when its non-empty lines happen to count
// out exactly, which salvages models that drop the requested numbering.
func bareLines(raw string, want int) ([]string, bool) {
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	if len(lines) != want {
		return nil, false
	}
	return lines, true
}

// singleItem treats the whole response as the one expected answer.
func singleItem(raw string, want int) ([]string, bool) {
	if want != 1 {
		return nil, false
	}
	return []string{strings.TrimSpace(raw)}, true
}
