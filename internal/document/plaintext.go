package document

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Extractor turns a source document into translatable segments.
type Extractor interface {
	Extract(r io.Reader) ([]string, error)
}

// Writer reassembles translated segments into an output document.
type Writer interface {
	Write(w io.Writer, segments []string) error
}

var blankLinePattern = regexp.MustCompile(`\n\s*\n`)

// PlainText treats a document as paragraphs separated by blank lines.
// Each paragraph becomes one segment; interior newlines are collapsed
// so a wrapped paragraph translates as one unit.
type PlainText struct{}

func (PlainText) Extract(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var raw strings.Builder
	for scanner.Scan() {
		raw.WriteString(scanner.Text())
		raw.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	return SplitParagraphs(raw.String()), nil
}

func (PlainText) Write(w io.Writer, segments []string) error {
	for i, segment := range segments {
		if i > 0 {
			if _, err := io.WriteString(w, "\n\n"); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, segment); err != nil {
			return err
		}
	}
	if len(segments) > 0 {
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	return nil
}

// SplitParagraphs splits text on blank lines and collapses the line
// breaks inside each paragraph to single spaces. Blank-only input
// yields no segments.
func SplitParagraphs(text string) []string {
	segments := make([]string, 0)
	for _, block := range blankLinePattern.Split(text, -1) {
		paragraph := strings.TrimSpace(block)
		if paragraph == "" {
			continue
		}
		lines := strings.Split(paragraph, "\n")
		for i, line := range lines {
			lines[i] = strings.TrimSpace(line)
		}
		segments = append(segments, strings.Join(lines, " "))
	}
	return segments
}
