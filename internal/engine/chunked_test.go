package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/vaakya-labs/anuvadam/internal/chunking"
	"github.com/vaakya-labs/anuvadam/internal/glossary"
)

// payloadFromPrompt extracts the joined segment payload a test server
// received inside the full prompt.
func payloadFromPrompt(t *testing.T, r *http.Request) string {
	t.Helper()
	var req generateRequest
	require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
	require.NotEmpty(t, req.Contents)
	require.NotEmpty(t, req.Contents[0].Parts)

	prompt := req.Contents[0].Parts[0].Text
	idx := strings.LastIndex(prompt, "Text to translate:\n")
	require.GreaterOrEqual(t, idx, 0)
	return prompt[idx+len("Text to translate:\n"):]
}

func respondWith(t *testing.T, w http.ResponseWriter, text, finishReason string) {
	t.Helper()
	resp := generateResponse{
		Candidates: []generateCandidate{{
			Content:      generateContent{Parts: []generatePart{{Text: text}}},
			FinishReason: finishReason,
		}},
	}
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(resp))
}

func testChunkedEngine(url string) *ChunkedRemoteEngine {
	return NewChunkedRemoteEngine(ChunkedConfig{
		Name:   "gemini-flash",
		APIURL: url,
		APIKey: "test-key",
		Source: language.English,
		Target: language.Telugu,
	})
}

func TestChunkedEngine_RoundTripPreservesSegmentCount(t *testing.T) {
	var batches []int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := payloadFromPrompt(t, r)
		parts := strings.Split(payload, chunking.Marker)
		batches = append(batches, len(parts))
		// Identity "translation": hand the payload straight back.
		respondWith(t, w, payload, "STOP")
	}))
	defer server.Close()

	segments := make([]string, 0, 23)
	for i := 0; i < 23; i++ {
		segments = append(segments, "The Collector shall report.")
	}

	e := testChunkedEngine(server.URL)
	result, err := e.TranslateBatch(context.Background(), segments, glossary.NewTable([][2]string{{"Collector", "కలెక్టర్"}}))
	require.NoError(t, err)
	require.Len(t, result.Texts, 23)
	for _, text := range result.Texts {
		assert.Equal(t, "The కలెక్టర్ shall report.", text)
	}
	// Batch size 15: one full chunk plus the 8-segment remainder.
	assert.Equal(t, []int{15, 8}, batches)
	assert.Equal(t, QualityFull, result.Quality)
}

func TestChunkedEngine_RecoversCorruptedMarkers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := payloadFromPrompt(t, r)
		// Backend collapses every marker into a pipe run.
		respondWith(t, w, strings.ReplaceAll(payload, chunking.Marker, "||||||"), "STOP")
	}))
	defer server.Close()

	e := testChunkedEngine(server.URL)
	result, err := e.TranslateBatch(context.Background(), []string{"one", "two", "three"}, glossary.NewTable(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, result.Texts)
	assert.Empty(t, result.Warnings)
}

func TestChunkedEngine_DesyncPadsAndWarns(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Backend swallowed the markers entirely.
		respondWith(t, w, "మొత్తం ఒకే వాక్యంగా", "STOP")
	}))
	defer server.Close()

	e := testChunkedEngine(server.URL)
	result, err := e.TranslateBatch(context.Background(), []string{"one", "two", "three"}, glossary.NewTable(nil))
	require.NoError(t, err)
	require.Len(t, result.Texts, 3)
	assert.Equal(t, "", result.Texts[1])
	assert.Equal(t, "", result.Texts[2])
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "chunk desync")
	// Desync degrades alignment, not translation quality.
	assert.Equal(t, QualityFull, result.Quality)
}

func TestChunkedEngine_SafetyBlockIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := generateResponse{Candidates: []generateCandidate{{FinishReason: "SAFETY"}}}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	e := testChunkedEngine(server.URL)
	_, err := e.TranslateBatch(context.Background(), []string{"blocked text"}, glossary.NewTable(nil))
	require.Error(t, err)
	assert.True(t, IsKind(err, KindContentBlocked))
	assert.Contains(t, err.Error(), "SAFETY")
}

func TestChunkedEngine_AuthErrorIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"API key not valid"}}`, http.StatusForbidden)
	}))
	defer server.Close()

	e := testChunkedEngine(server.URL)
	_, err := e.TranslateBatch(context.Background(), []string{"text"}, glossary.NewTable(nil))
	require.Error(t, err)
	assert.True(t, IsKind(err, KindAuthentication))
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}

func TestChunkedEngine_ServerErrorFallsBackToGlossaryOnly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer server.Close()

	e := testChunkedEngine(server.URL)
	table := glossary.NewTable([][2]string{{"Order", "ఆదేశం"}})
	result, err := e.TranslateBatch(context.Background(), []string{"Order No. 5"}, table)
	require.NoError(t, err)
	assert.Equal(t, []string{"ఆదేశం No. 5"}, result.Texts)
	assert.Equal(t, QualityDegraded, result.Quality)
}

func TestChunkedEngine_MissingAPIKey(t *testing.T) {
	e := NewChunkedRemoteEngine(ChunkedConfig{Name: "gemini-flash", APIURL: "http://unused"})
	_, err := e.TranslateBatch(context.Background(), []string{"text"}, glossary.NewTable(nil))
	require.Error(t, err)
	assert.True(t, IsKind(err, KindUnavailable))
}

func TestChunkedEngine_PromptCarriesMarkerInstruction(t *testing.T) {
	var sawInstruction bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		prompt := req.Contents[0].Parts[0].Text
		sawInstruction = strings.Contains(prompt, "STRUCTURE MARKERS") &&
			strings.Contains(prompt, chunking.Marker) &&
			strings.Contains(prompt, "MANDATORY GLOSSARY")
		idx := strings.LastIndex(prompt, "Text to translate:\n")
		respondWith(t, w, prompt[idx+len("Text to translate:\n"):], "STOP")
	}))
	defer server.Close()

	e := testChunkedEngine(server.URL)
	_, err := e.TranslateBatch(context.Background(), []string{"one", "two"}, glossary.NewTable([][2]string{{"Order", "ఆదేశం"}}))
	require.NoError(t, err)
	assert.True(t, sawInstruction)
}

func TestCleanModelOutput(t *testing.T) {
	assert.Equal(t, "తెలుగు పాఠం", cleanModelOutput(`  "తెలుగు పాఠం"  `))
	assert.Equal(t, "ఫలితం", cleanModelOutput("Here is ఫలితం ==="))
	assert.Equal(t, "ఒకటి రెండు", cleanModelOutput("ఒకటి    \n  రెండు"))
}

func TestTruncateUTF8(t *testing.T) {
	// 3-byte runes; 200 is not a multiple of 3, so a byte cut would
	// split a rune.
	long := strings.Repeat("తెలుగు", 100)
	out := truncateUTF8(long, 200)
	assert.True(t, utf8.ValidString(out))
	assert.LessOrEqual(t, len(out), 200)
	assert.NotEmpty(t, out)

	assert.Equal(t, "short", truncateUTF8("short", 200))
	assert.Equal(t, "ab", truncateUTF8("abcd", 2))
}

func TestLanguageName(t *testing.T) {
	assert.Equal(t, "English", languageName(language.English))
	assert.Equal(t, "Telugu", languageName(language.Telugu))
	assert.Equal(t, "Hindi", languageName(language.Hindi))
	assert.Equal(t, "Tamil", languageName(language.Tamil))
}
