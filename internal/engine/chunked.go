package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/vaakya-labs/anuvadam/internal/chunking"
	"github.com/vaakya-labs/anuvadam/internal/glossary"
	"github.com/vaakya-labs/anuvadam/pkg/log"
)

const (
	// maxPromptGlossaryEntries caps how much of the glossary is inlined
	// into the prompt; enforcement after the call covers the rest.
	maxPromptGlossaryEntries = 500

	defaultChunkedTimeout = 120 * time.Second

	defaultGenerateURL = "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash:generateContent"
)

// ChunkedRemoteEngine drives a generative text endpoint that is
// sensitive to payload size and needs explicit instruction to leave the
// sentinel marker alone. Every request carries a bounded batch of
// segments joined by the marker plus the mandatory glossary excerpt.
type ChunkedRemoteEngine struct {
	name       string
	apiURL     string
	apiKey     string
	source     language.Tag
	target     language.Tag
	batchSize  int
	httpClient *http.Client
}

// ChunkedConfig configures a ChunkedRemoteEngine.
type ChunkedConfig struct {
	Name      string
	APIURL    string
	APIKey    string
	Source    language.Tag
	Target    language.Tag
	BatchSize int
	Timeout   time.Duration
}

func NewChunkedRemoteEngine(cfg ChunkedConfig) *ChunkedRemoteEngine {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = chunking.DefaultBatchSize
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultChunkedTimeout
	}
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = defaultGenerateURL
	}
	return &ChunkedRemoteEngine{
		name:       cfg.Name,
		apiURL:     apiURL,
		apiKey:     cfg.APIKey,
		source:     cfg.Source,
		target:     cfg.Target,
		batchSize:  batchSize,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (e *ChunkedRemoteEngine) Name() string { return e.name }

func (e *ChunkedRemoteEngine) TranslateOne(ctx context.Context, text string, table *glossary.Table) (Result, error) {
	batch, err := e.TranslateBatch(ctx, []string{text}, table)
	if err != nil {
		return Result{}, err
	}
	return Result{Text: batch.Texts[0], Quality: batch.Quality, Warnings: batch.Warnings}, nil
}

func (e *ChunkedRemoteEngine) TranslateBatch(ctx context.Context, segments []string, table *glossary.Table) (BatchResult, error) {
	if len(segments) == 0 {
		return BatchResult{Texts: []string{}, Quality: QualityFull}, nil
	}
	if e.apiKey == "" {
		return BatchResult{}, NewError(KindUnavailable, e.name, "API key not configured: set GEMINI_API_KEY")
	}
	if allBlank(segments) {
		texts := make([]string, len(segments))
		copy(texts, segments)
		return BatchResult{Texts: texts, Quality: QualityFull}, nil
	}

	chunks := chunking.Encode(segments, e.batchSize)
	result := BatchResult{Texts: make([]string, 0, len(segments)), Quality: QualityFull}

	for i, chunk := range chunks {
		texts, warnings, degraded, err := e.translateChunk(ctx, chunk, table)
		if err != nil {
			return BatchResult{}, err
		}
		result.Texts = append(result.Texts, texts...)
		result.Warnings = append(result.Warnings, warnings...)
		if degraded {
			result.Quality = QualityDegraded
		}
		log.Debug("%s: translated chunk %d/%d (%d segments)", e.name, i+1, len(chunks), len(chunk.Segments))
	}
	return result, nil
}

func (e *ChunkedRemoteEngine) translateChunk(ctx context.Context, chunk chunking.Chunk, table *glossary.Table) ([]string, []string, bool, error) {
	raw, err := e.generate(ctx, e.buildPrompt(chunk.Payload, table))
	if err != nil {
		classified := e.classify(err)
		if isFatal(classified.Kind) {
			return nil, nil, false, classified
		}
		log.Warn("%s: chunk call failed, substituting glossary-only output: %v", e.name, err)
		fallback := degradedBatch(chunk.Segments, table)
		return fallback.Texts, []string{classified.Message + ", glossary-only output substituted"}, true, nil
	}

	decoded, desync := chunking.Decode(chunk, raw)
	warnings := make([]string, 0)
	if desync != nil {
		warnings = append(warnings, desync.String())
	}

	texts := make([]string, len(decoded))
	for i, segment := range decoded {
		cleaned := cleanModelOutput(segment)
		enforced, converged := table.ApplyFixpoint(cleaned, glossary.DefaultMaxPasses)
		texts[i] = enforced
		if !converged {
			warnings = append(warnings, fmt.Sprintf("glossary did not reach a fixed point on segment %d", i))
		}
	}
	return texts, warnings, false, nil
}

// buildPrompt assembles the translation instruction: glossary terms are
// mandatory, document structure is preserved, and the sentinel marker
// is structural content that must survive verbatim.
func (e *ChunkedRemoteEngine) buildPrompt(payload string, table *glossary.Table) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are an expert %s translator specializing in official government documents and legal texts. ", languageName(e.target))
	fmt.Fprintf(&b, "Translate the text from %s to %s with maximum accuracy.\n\n", languageName(e.source), languageName(e.target))

	b.WriteString("RULES:\n")
	b.WriteString("1. Glossary terms are MANDATORY: use the exact target translation for every glossary term.\n")
	b.WriteString("2. Preserve structure completely: line breaks, numbers, dates, codes and abbreviations stay exactly as written.\n")
	b.WriteString("3. Use formal, official language. No additions, explanations or commentary.\n")

	if strings.Contains(payload, chunking.Marker) {
		fmt.Fprintf(&b, "4. The text contains '%s' markers. They are STRUCTURE MARKERS, not content. ", chunking.Marker)
		b.WriteString("Do not translate, change, remove or modify them in any way; they must appear in the output exactly as given. ")
		b.WriteString("Translate only the text between the markers, each piece separately.\n")
	}

	entries := table.Entries()
	if len(entries) > maxPromptGlossaryEntries {
		entries = entries[:maxPromptGlossaryEntries]
	}
	if len(entries) > 0 {
		b.WriteString("\nMANDATORY GLOSSARY:\n")
		for _, entry := range entries {
			fmt.Fprintf(&b, "%q -> %q\n", entry.Source, entry.Target)
		}
	}

	b.WriteString("\nText to translate:\n")
	b.WriteString(payload)
	return b.String()
}

type generatePart struct {
	Text string `json:"text"`
}

type generateContent struct {
	Parts []generatePart `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateRequest struct {
	Contents         []generateContent `json:"contents"`
	GenerationConfig generationConfig  `json:"generationConfig"`
}

type generateCandidate struct {
	Content      generateContent `json:"content"`
	FinishReason string          `json:"finishReason"`
}

type generateError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

type generateResponse struct {
	Candidates []generateCandidate `json:"candidates"`
	Error      *generateError      `json:"error"`
}

// statusError carries a non-200 HTTP response for classification.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("remote returned status %d: %s", e.code, e.body)
}

// blockedError marks a safety/policy rejection.
type blockedError struct{ reason string }

func (e *blockedError) Error() string {
	return "response blocked by remote policy filter: " + e.reason
}

func (e *ChunkedRemoteEngine) generate(ctx context.Context, prompt string) (string, error) {
	req := generateRequest{
		Contents: []generateContent{{Parts: []generatePart{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     0.0,
			TopK:            1,
			TopP:            0.95,
			MaxOutputTokens: 8192,
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.apiURL+"?key="+e.apiKey, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &statusError{code: resp.StatusCode, body: truncateUTF8(string(respBody), 200)}
	}

	var parsed generateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", &statusError{code: parsed.Error.Code, body: parsed.Error.Message}
	}
	if len(parsed.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := parsed.Candidates[0]
	if len(candidate.Content.Parts) == 0 || strings.TrimSpace(candidate.Content.Parts[0].Text) == "" {
		reason := candidate.FinishReason
		if reason == "SAFETY" || reason == "RECITATION" {
			return "", &blockedError{reason: reason}
		}
		return "", fmt.Errorf("empty response, finish reason: %s", reason)
	}
	return candidate.Content.Parts[0].Text, nil
}

func (e *ChunkedRemoteEngine) classify(err error) *Error {
	var blocked *blockedError
	if errors.As(err, &blocked) {
		return NewErrorWithCause(KindContentBlocked, e.name, blocked.Error(), err)
	}

	var status *statusError
	if errors.As(err, &status) {
		switch {
		case status.code == 401 || status.code == 403:
			return NewErrorWithCause(KindAuthentication, e.name,
				"API key rejected: update GEMINI_API_KEY", err)
		case status.code == 429 || status.code >= 500:
			return NewErrorWithCause(KindTransientNetwork, e.name,
				fmt.Sprintf("remote returned status %d", status.code), err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewErrorWithCause(KindTransientNetwork, e.name, "request timed out", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewErrorWithCause(KindTransientNetwork, e.name, "request deadline exceeded", err)
	}
	return NewErrorWithCause(KindTransientNetwork, e.name, "remote call failed", err)
}

// Phrases a generative backend sometimes wraps around its answer.
var outputBlocklist = []string{
	"Please provide", "You have indicated", "appears to be", "Here is",
	"Note:", "NOTE:", "Important:", "As an AI",
	"Text to translate", "Source text",
}

var (
	artifactRunPattern = regexp.MustCompile(`[@#\-\*=]{2,}`)
	spaceRunPattern    = regexp.MustCompile(`\s+`)
)

// cleanModelOutput strips wrapper phrases and formatting artifacts from
// one decoded segment.
func cleanModelOutput(text string) string {
	out := strings.TrimSpace(text)
	out = strings.Trim(out, `"'`)
	for _, phrase := range outputBlocklist {
		out = strings.ReplaceAll(out, phrase, "")
	}
	out = artifactRunPattern.ReplaceAllString(out, "")
	out = spaceRunPattern.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// truncateUTF8 caps s at n bytes, backing up to a rune boundary so
// the result stays valid UTF-8.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// languageName renders a tag as a readable language name for prompts.
func languageName(tag language.Tag) string {
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return tag.String()
}
