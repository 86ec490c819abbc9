package glossary

import "regexp"

// Entry is one mandatory source → target substitution. Case variants of
// the source term are expanded into separate entries at load time.
type Entry struct {
	Source string
	Target string

	pattern *regexp.Regexp
}

// Table is an ordered, read-only collection of entries sorted by
// descending source length (ties keep load order). Safe for concurrent
// use after construction.
type Table struct {
	entries []Entry
}

// Len returns the number of entries after case-variant expansion.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Entries returns a copy of the table's entries in application order.
func (t *Table) Entries() []Entry {
	if t == nil {
		return nil
	}
	ret := make([]Entry, len(t.entries))
	copy(ret, t.entries)
	return ret
}
