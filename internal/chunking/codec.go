// Package chunking splits ordered text segments into size-bounded
// batches joined by a sentinel marker, and reassembles engine output
// back into the original segment count. Remote engines occasionally
// mangle the marker; decoding normalizes the known corrupted variants
// and reports residual misalignment as a warning instead of failing.
package chunking

import (
	"fmt"
	"regexp"
	"strings"
)

// Marker separates segments inside a chunk payload. Chosen to survive
// translation untouched: no natural-language words that an engine would
// translate, no punctuation runs that one would collapse.
const Marker = "___SEGMENT_BREAK_XYZ789___"

// DefaultBatchSize is the number of segments grouped into one chunk
// when the caller does not pick a size.
const DefaultBatchSize = 15

// Chunk is one engine-call payload: a contiguous slice of source
// segments and their marker-joined form. Constructed immediately before
// a call and discarded after it returns.
type Chunk struct {
	Segments []string
	Payload  string
}

// DesyncWarning records that decoded output did not line up with the
// chunk's segment count and padding or truncation was applied. It is
// attached to results, never returned as an error.
type DesyncWarning struct {
	Expected int
	Got      int
}

func (w *DesyncWarning) String() string {
	action := "truncated"
	if w.Got < w.Expected {
		action = "padded"
	}
	return fmt.Sprintf("chunk desync: engine returned %d of %d segments, %s", w.Got, w.Expected, action)
}

// Encode groups segments into contiguous batches of at most maxBatch
// segments, preserving order. maxBatch <= 0 uses DefaultBatchSize.
func Encode(segments []string, maxBatch int) []Chunk {
	if maxBatch <= 0 {
		maxBatch = DefaultBatchSize
	}
	chunks := make([]Chunk, 0, (len(segments)+maxBatch-1)/maxBatch)
	for start := 0; start < len(segments); start += maxBatch {
		end := min(start+maxBatch, len(segments))
		batch := segments[start:end]
		chunks = append(chunks, Chunk{
			Segments: batch,
			Payload:  strings.Join(batch, Marker),
		})
	}
	return chunks
}

// Known marker corruptions seen in the wild: engines that collapse the
// marker into a run of pipes, that "translate" it to |||SEGMENT|||, or
// that squeeze or space out the underscore runs.
var (
	pipeRunPattern     = regexp.MustCompile(`\|{3,}`)
	pipeSegmentPattern = regexp.MustCompile(`\|+\s*SEGMENT\s*\|+`)
	looseMarkerPattern = regexp.MustCompile(`_{2,}\s*SEGMENT[_\s]*BREAK[_\s]*XYZ789\s*_{2,}`)
)

// Normalize rewrites known corrupted marker variants in raw back to the
// canonical Marker. Best-effort recovery, not a guarantee.
func Normalize(raw string) string {
	if raw == "" {
		return raw
	}
	out := looseMarkerPattern.ReplaceAllString(raw, Marker)
	out = pipeSegmentPattern.ReplaceAllString(out, Marker)
	out = pipeRunPattern.ReplaceAllString(out, Marker)
	return out
}

// Decode splits rawOutput back into exactly len(chunk.Segments) texts.
// Missing segments are padded with empty strings and surplus segments
// are truncated; either case yields a DesyncWarning (nil when counts
// matched).
func Decode(chunk Chunk, rawOutput string) ([]string, *DesyncWarning) {
	expected := len(chunk.Segments)
	if expected == 0 {
		return nil, nil
	}

	parts := strings.Split(Normalize(rawOutput), Marker)
	got := len(parts)
	if got == expected {
		return parts, nil
	}

	warning := &DesyncWarning{Expected: expected, Got: got}
	if got < expected {
		for len(parts) < expected {
			parts = append(parts, "")
		}
		return parts, warning
	}
	return parts[:expected], warning
}
