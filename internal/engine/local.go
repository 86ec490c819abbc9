package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/text/language"

	"github.com/vaakya-labs/anuvadam/internal/glossary"
	"github.com/vaakya-labs/anuvadam/pkg/log"
)

const defaultLocalTimeout = 60 * time.Second

// LocalModelEngine drives a co-located inference service. The model
// behind it cannot serve concurrent requests safely, so every call
// passes through a single weighted-semaphore slot; concurrent callers
// queue in arrival order instead of corrupting shared state.
type LocalModelEngine struct {
	name       string
	baseURL    string
	source     language.Tag
	target     language.Tag
	httpClient *http.Client

	// slot is the one inference permit shared by all callers.
	slot *semaphore.Weighted

	langOnce  sync.Once
	supported map[string]string
}

// LocalConfig configures a LocalModelEngine.
type LocalConfig struct {
	Name    string
	BaseURL string
	Source  language.Tag
	Target  language.Tag
	Timeout time.Duration
}

func NewLocalModelEngine(cfg LocalConfig) *LocalModelEngine {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultLocalTimeout
	}
	return &LocalModelEngine{
		name:       cfg.Name,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		source:     cfg.Source,
		target:     cfg.Target,
		httpClient: &http.Client{Timeout: timeout},
		slot:       semaphore.NewWeighted(1),
	}
}

func (e *LocalModelEngine) Name() string { return e.name }

// supportedLanguages fetches the service's language table once and
// caches it for the engine's lifetime. A fetch failure leaves the set
// unknown rather than failing translation.
func (e *LocalModelEngine) supportedLanguages(ctx context.Context) map[string]string {
	e.langOnce.Do(func() {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/languages", nil)
		if err != nil {
			return
		}
		resp, err := e.httpClient.Do(req)
		if err != nil {
			log.Warn("%s: could not load language table: %v", e.name, err)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			log.Warn("%s: language table request returned status %d", e.name, resp.StatusCode)
			return
		}
		var mappings map[string]string
		if err := json.NewDecoder(resp.Body).Decode(&mappings); err != nil {
			log.Warn("%s: could not decode language table: %v", e.name, err)
			return
		}
		e.supported = mappings
		log.Info("%s: language table loaded, %d languages", e.name, len(mappings))
	})
	return e.supported
}

// checkPair rejects an unsupported language pair before any translate
// call is issued. An unknown language table allows everything through.
func (e *LocalModelEngine) checkPair(ctx context.Context) error {
	supported := e.supportedLanguages(ctx)
	if len(supported) == 0 {
		return nil
	}
	for _, name := range []string{languageName(e.source), languageName(e.target)} {
		if _, ok := supported[name]; !ok {
			return NewError(KindUnsupportedLanguage, e.name,
				fmt.Sprintf("language %q is not in the service's supported set", name))
		}
	}
	return nil
}

func (e *LocalModelEngine) TranslateOne(ctx context.Context, text string, table *glossary.Table) (Result, error) {
	batch, err := e.TranslateBatch(ctx, []string{text}, table)
	if err != nil {
		return Result{}, err
	}
	return Result{Text: batch.Texts[0], Quality: batch.Quality, Warnings: batch.Warnings}, nil
}

func (e *LocalModelEngine) TranslateBatch(ctx context.Context, segments []string, table *glossary.Table) (BatchResult, error) {
	if len(segments) == 0 {
		return BatchResult{Texts: []string{}, Quality: QualityFull}, nil
	}
	if e.baseURL == "" {
		return BatchResult{}, NewError(KindUnavailable, e.name, "inference service URL not configured: set INDICTRANS2_BASE_URL")
	}
	if allBlank(segments) {
		texts := make([]string, len(segments))
		copy(texts, segments)
		return BatchResult{Texts: texts, Quality: QualityFull}, nil
	}
	if err := e.checkPair(ctx); err != nil {
		return BatchResult{}, err
	}

	result := BatchResult{Texts: make([]string, len(segments)), Quality: QualityFull}
	for i, segment := range segments {
		if strings.TrimSpace(segment) == "" {
			result.Texts[i] = segment
			continue
		}

		translated, err := e.translateSegment(ctx, segment)
		if err != nil {
			if ctx.Err() != nil {
				return BatchResult{}, NewErrorWithCause(KindTransientNetwork, e.name, "translation cancelled", ctx.Err())
			}
			// The service is degraded, not gone: keep the text with the
			// glossary enforced and carry on with the next segment.
			log.Warn("%s: segment %d failed, substituting glossary-only output: %v", e.name, i, err)
			result.Texts[i] = table.Apply(segment)
			result.Quality = QualityDegraded
			result.Warnings = append(result.Warnings, fmt.Sprintf("segment %d: %v, glossary-only output substituted", i, err))
			continue
		}

		enforced, converged := table.ApplyFixpoint(translated, glossary.DefaultMaxPasses)
		result.Texts[i] = enforced
		if !converged {
			result.Warnings = append(result.Warnings, fmt.Sprintf("glossary did not reach a fixed point on segment %d", i))
		}
	}
	return result, nil
}

type localTranslateRequest struct {
	Text    string `json:"text"`
	SrcLang string `json:"src_lang"`
	TgtLang string `json:"tgt_lang"`
}

// localTranslateResponse tolerates the response shapes different builds
// of the inference service have used.
type localTranslateResponse struct {
	Translations   []string `json:"translations"`
	TranslatedText string   `json:"translated_text"`
	Translation    string   `json:"translation"`
	Text           string   `json:"text"`
}

func (r localTranslateResponse) first() (string, bool) {
	switch {
	case len(r.Translations) > 0:
		return r.Translations[0], true
	case r.TranslatedText != "":
		return r.TranslatedText, true
	case r.Translation != "":
		return r.Translation, true
	case r.Text != "":
		return r.Text, true
	default:
		return "", false
	}
}

func (e *LocalModelEngine) translateSegment(ctx context.Context, text string) (string, error) {
	// One inference slot: queue here until it is ours.
	if err := e.slot.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer e.slot.Release(1)

	body, err := json.Marshal(localTranslateRequest{
		Text:    text,
		SrcLang: languageName(e.source),
		TgtLang: languageName(e.target),
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/translate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("inference service returned status %d: %s", resp.StatusCode, truncateUTF8(string(respBody), 200))
	}

	var parsed localTranslateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	translated, ok := parsed.first()
	if !ok {
		log.Warn("%s: unexpected response shape, keeping source text", e.name)
		return text, nil
	}
	return translated, nil
}
