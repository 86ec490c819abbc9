package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaakya-labs/anuvadam/internal/glossary"
)

type stubAdapter struct {
	name string
}

func (s stubAdapter) Name() string { return s.name }

func (s stubAdapter) TranslateOne(_ context.Context, text string, table *glossary.Table) (Result, error) {
	return Result{Text: table.Apply(text), Quality: QualityFull}, nil
}

func (s stubAdapter) TranslateBatch(_ context.Context, segments []string, table *glossary.Table) (BatchResult, error) {
	texts := make([]string, len(segments))
	for i, segment := range segments {
		texts[i] = table.Apply(segment)
	}
	return BatchResult{Texts: texts, Quality: QualityFull}, nil
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(stubAdapter{name: "google-standard"}))
	require.NoError(t, r.Register(stubAdapter{name: "gemini-flash"}))

	adapter, ok := r.Lookup("gemini-flash")
	require.True(t, ok)
	assert.Equal(t, "gemini-flash", adapter.Name())

	_, ok = r.Lookup("nonexistent")
	assert.False(t, ok)
	assert.Equal(t, 2, r.Count())
}

func TestRegistry_DuplicateNameRejected(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(stubAdapter{name: "indictrans2"}))
	err := r.Register(stubAdapter{name: "indictrans2"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "indictrans2")
}

func TestRegistry_NamesKeepRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"gemini-flash", "google-standard", "indictrans2"} {
		require.NoError(t, r.Register(stubAdapter{name: name}))
	}
	assert.Equal(t, []string{"gemini-flash", "google-standard", "indictrans2"}, r.Names())
}

func TestRegistry_Empty(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, 0, r.Count())
	assert.Empty(t, r.Names())
}
