package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"cloud.google.com/go/translate"
	"golang.org/x/text/language"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/vaakya-labs/anuvadam/internal/chunking"
	"github.com/vaakya-labs/anuvadam/internal/glossary"
	"github.com/vaakya-labs/anuvadam/pkg/log"
)

// defaultDirectPayloadLimit is the joined-text size above which a
// DirectEngine splits the request into batches instead of issuing one
// call for the whole document.
const defaultDirectPayloadLimit = 8000

// translateClient is the slice of the Cloud Translation client the
// engine needs. Satisfied by *translate.Client; tests substitute fakes.
type translateClient interface {
	Translate(ctx context.Context, inputs []string, target language.Tag, opts *translate.Options) ([]translate.Translation, error)
}

// DirectEngine calls a stateless hosted translation endpoint. The
// backing API accepts multiple inputs per request and returns one
// translation per input, so segment alignment is structural and no
// sentinel marker is needed; chunk grouping only bounds payload size.
type DirectEngine struct {
	name         string
	client       translateClient
	source       language.Tag
	target       language.Tag
	batchSize    int
	payloadLimit int
}

// DirectConfig configures a DirectEngine.
type DirectConfig struct {
	Name            string
	CredentialsFile string
	APIKey          string
	Source          language.Tag
	Target          language.Tag
	BatchSize       int
	PayloadLimit    int
}

// NewDirectEngine builds the engine and its API client. Returns an
// unavailable-kind error when no credentials are configured.
func NewDirectEngine(ctx context.Context, cfg DirectConfig) (*DirectEngine, error) {
	var opts []option.ClientOption
	switch {
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	default:
		return nil, NewError(KindUnavailable, cfg.Name,
			"no credentials configured: set GOOGLE_TRANSLATE_CREDENTIALS or GOOGLE_TRANSLATE_API_KEY")
	}

	client, err := translate.NewClient(ctx, opts...)
	if err != nil {
		return nil, NewErrorWithCause(KindUnavailable, cfg.Name, "create translation client", err)
	}
	return newDirectEngine(cfg, client), nil
}

func newDirectEngine(cfg DirectConfig, client translateClient) *DirectEngine {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = chunking.DefaultBatchSize
	}
	payloadLimit := cfg.PayloadLimit
	if payloadLimit <= 0 {
		payloadLimit = defaultDirectPayloadLimit
	}
	return &DirectEngine{
		name:         cfg.Name,
		client:       client,
		source:       cfg.Source,
		target:       cfg.Target,
		batchSize:    batchSize,
		payloadLimit: payloadLimit,
	}
}

func (e *DirectEngine) Name() string { return e.name }

func (e *DirectEngine) TranslateOne(ctx context.Context, text string, table *glossary.Table) (Result, error) {
	batch, err := e.TranslateBatch(ctx, []string{text}, table)
	if err != nil {
		return Result{}, err
	}
	return Result{Text: batch.Texts[0], Quality: batch.Quality, Warnings: batch.Warnings}, nil
}

func (e *DirectEngine) TranslateBatch(ctx context.Context, segments []string, table *glossary.Table) (BatchResult, error) {
	if len(segments) == 0 {
		return BatchResult{Texts: []string{}, Quality: QualityFull}, nil
	}
	if allBlank(segments) {
		texts := make([]string, len(segments))
		copy(texts, segments)
		return BatchResult{Texts: texts, Quality: QualityFull}, nil
	}

	groups := e.group(segments)
	result := BatchResult{Texts: make([]string, 0, len(segments)), Quality: QualityFull}

	for _, group := range groups {
		texts, warnings, degraded, err := e.translateGroup(ctx, group, table)
		if err != nil {
			return BatchResult{}, err
		}
		result.Texts = append(result.Texts, texts...)
		result.Warnings = append(result.Warnings, warnings...)
		if degraded {
			result.Quality = QualityDegraded
		}
	}
	return result, nil
}

// group keeps the whole document as one request while it fits under the
// payload limit, and falls back to bounded batches above it.
func (e *DirectEngine) group(segments []string) []chunking.Chunk {
	total := 0
	for _, s := range segments {
		total += len(s)
	}
	if total <= e.payloadLimit {
		return chunking.Encode(segments, len(segments))
	}
	return chunking.Encode(segments, e.batchSize)
}

func (e *DirectEngine) translateGroup(ctx context.Context, group chunking.Chunk, table *glossary.Table) ([]string, []string, bool, error) {
	translations, err := e.client.Translate(ctx, group.Segments, e.target, &translate.Options{
		Source: e.source,
		Format: translate.Text,
	})
	if err != nil {
		classified := e.classify(err)
		if isFatal(classified.Kind) {
			return nil, nil, false, classified
		}
		// Degraded fallback: hand back the source text with the
		// glossary enforced instead of failing the run.
		log.Warn("%s: remote call failed, substituting glossary-only output: %v", e.name, err)
		fallback := degradedBatch(group.Segments, table)
		return fallback.Texts, []string{classified.Message + ", glossary-only output substituted"}, true, nil
	}

	if len(translations) != len(group.Segments) {
		log.Warn("%s: expected %d translations, got %d", e.name, len(group.Segments), len(translations))
	}

	degraded := false
	warnings := make([]string, 0)
	texts := make([]string, len(group.Segments))
	for i := range group.Segments {
		if i >= len(translations) {
			texts[i] = table.Apply(group.Segments[i])
			warnings = append(warnings, fmt.Sprintf("missing translation for segment %d, glossary-only output substituted", i))
			degraded = true
			continue
		}
		enforced, converged := table.ApplyFixpoint(translations[i].Text, glossary.DefaultMaxPasses)
		texts[i] = enforced
		if !converged {
			warnings = append(warnings, fmt.Sprintf("glossary did not reach a fixed point on segment %d", i))
		}
	}
	return texts, warnings, degraded, nil
}

// classify maps a remote error onto the engine error taxonomy.
func (e *DirectEngine) classify(err error) *Error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 401 || apiErr.Code == 403:
			return NewErrorWithCause(KindAuthentication, e.name,
				"credentials rejected: check GOOGLE_TRANSLATE_CREDENTIALS / GOOGLE_TRANSLATE_API_KEY", err)
		case apiErr.Code == 400 && strings.Contains(strings.ToLower(apiErr.Message), "language"):
			return NewErrorWithCause(KindUnsupportedLanguage, e.name,
				fmt.Sprintf("language pair %s->%s rejected", e.source, e.target), err)
		case apiErr.Code == 429 || apiErr.Code >= 500:
			return NewErrorWithCause(KindTransientNetwork, e.name,
				fmt.Sprintf("remote returned status %d", apiErr.Code), err)
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

func isFatal(kind ErrorKind) bool {
	switch kind {
	case KindAuthentication, KindContentBlocked, KindUnsupportedLanguage, KindUnavailable:
		return true
	default:
		return false
	}
}
