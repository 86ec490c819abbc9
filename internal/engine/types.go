package engine

import (
	"context"
	"strings"

	"github.com/vaakya-labs/anuvadam/internal/glossary"
)

// Quality reports whether a result carries real engine output or a
// glossary-only substitution that stood in for it.
type Quality string

const (
	// QualityFull means the engine translated the text.
	QualityFull Quality = "full"
	// QualityDegraded means translation was unavailable and the result
	// is the source text with the glossary applied. Not an error:
	// callers distinguish it from full success for quality reporting.
	QualityDegraded Quality = "degraded"
)

// Result is the outcome of a single-text translation.
type Result struct {
	Text     string
	Quality  Quality
	Warnings []string
}

// BatchResult is the outcome of a batch translation. Texts always has
// the same length and order as the input segments. Quality is degraded
// when any segment fell back to glossary-only output.
type BatchResult struct {
	Texts    []string
	Quality  Quality
	Warnings []string
}

// Adapter wraps one concrete translation backend. Implementations must
// return input-length output, apply the glossary to their own output
// before returning, and never partially mutate caller-owned slices.
type Adapter interface {
	Name() string
	TranslateOne(ctx context.Context, text string, table *glossary.Table) (Result, error)
	TranslateBatch(ctx context.Context, segments []string, table *glossary.Table) (BatchResult, error)
}

// degradedBatch builds a glossary-only fallback for all segments.
func degradedBatch(segments []string, table *glossary.Table, warnings ...string) BatchResult {
	texts := make([]string, len(segments))
	for i, s := range segments {
		texts[i] = table.Apply(s)
	}
	return BatchResult{Texts: texts, Quality: QualityDegraded, Warnings: warnings}
}

// allBlank reports whether every segment is empty or whitespace-only.
func allBlank(segments []string) bool {
	for _, s := range segments {
		if strings.TrimSpace(s) != "" {
			return false
		}
	}
	return true
}
