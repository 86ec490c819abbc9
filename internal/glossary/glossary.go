// Package glossary loads a table of mandatory domain term translations
// and applies them deterministically over engine output. Longer source
// phrases always win over shorter ones, matching is case-insensitive
// and bounded by word boundaries on both sides, and applying the table
// repeatedly converges to a fixed point.
package glossary

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/vaakya-labs/anuvadam/pkg/log"
)

// DefaultMaxPasses bounds repeated application in ApplyFixpoint when
// the caller does not care to pick a bound.
const DefaultMaxPasses = 5

// LoadError reports a malformed glossary source. A missing source is
// not a LoadError: it yields an empty, valid table.
type LoadError struct {
	Path  string
	Cause error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load glossary %s: %v", e.Path, e.Cause)
}

func (e *LoadError) Unwrap() error { return e.Cause }

// Load reads (source, target) pairs from a CSV file. Blank and
// single-column rows are skipped, as are rows that fail to parse; only
// a hard read failure fails the whole load. A missing file returns an
// empty table.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("Glossary file not found at %s, using empty table", path)
			return &Table{}, nil
		}
		return nil, &LoadError{Path: path, Cause: err}
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	pairs := make([][2]string, 0)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				log.Warn("Skipping malformed glossary row %d: %v", parseErr.Line, err)
				continue
			}
			return nil, &LoadError{Path: path, Cause: err}
		}
		if len(row) < 2 {
			continue
		}
		source := strings.TrimSpace(row[0])
		target := strings.TrimSpace(row[1])
		if source == "" || target == "" {
			continue
		}
		pairs = append(pairs, [2]string{source, target})
	}

	table := NewTable(pairs)
	log.Info("Loaded %d glossary entries from %s", table.Len(), path)
	return table, nil
}

// NewTable builds a table from ordered (source, target) pairs. Case
// variants (UPPER, lower) of each source are stored alongside the
// original; duplicate sources are overwritten last-load-wins. Entries
// with an empty source or target are dropped.
func NewTable(pairs [][2]string) *Table {
	type slot struct {
		order  int
		target string
	}
	byKey := make(map[string]slot)
	order := 0

	add := func(source, target string) {
		existing, ok := byKey[source]
		if ok {
			// Keep the original position, take the newest target.
			byKey[source] = slot{order: existing.order, target: target}
			return
		}
		byKey[source] = slot{order: order, target: target}
		order++
	}

	for _, p := range pairs {
		source, target := p[0], p[1]
		if source == "" || target == "" {
			continue
		}
		add(source, target)
		if upper := strings.ToUpper(source); upper != source {
			add(upper, target)
		}
		if lower := strings.ToLower(source); lower != source {
			add(lower, target)
		}
	}

	entries := make([]Entry, 0, len(byKey))
	for source, s := range byKey {
		entries = append(entries, Entry{Source: source, Target: s.target})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if len(a.Source) != len(b.Source) {
			return len(a.Source) > len(b.Source)
		}
		return byKey[a.Source].order < byKey[b.Source].order
	})

	for i := range entries {
		entries[i].pattern = boundaryPattern(entries[i].Source)
	}
	return &Table{entries: entries}
}

// boundaryPattern compiles a case-insensitive whole-phrase matcher for
// the term. Word boundaries on both sides prevent replacement inside a
// larger token ("Order" never matches inside "Reordering").
func boundaryPattern(term string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
}

// Apply performs one substitution pass over text. The pass is literal:
// inserted target text is not re-matched within the same pass. Pure
// function, safe for concurrent callers.
func (t *Table) Apply(text string) string {
	if t == nil || len(t.entries) == 0 || text == "" {
		return text
	}
	result := text
	for _, entry := range t.entries {
		if entry.Target == "" {
			continue
		}
		result = entry.pattern.ReplaceAllLiteralString(result, entry.Target)
	}
	return result
}

// ApplyFixpoint applies the table repeatedly until the text stops
// changing or maxPasses is reached. The second return reports whether a
// fixed point was reached within the bound; callers treat false as a
// quality warning, not a failure. maxPasses <= 0 uses DefaultMaxPasses.
func (t *Table) ApplyFixpoint(text string, maxPasses int) (string, bool) {
	if maxPasses <= 0 {
		maxPasses = DefaultMaxPasses
	}
	result := text
	for pass := 0; pass < maxPasses; pass++ {
		next := t.Apply(result)
		if next == result {
			return result, true
		}
		result = next
	}
	return result, t.Apply(result) == result
}
