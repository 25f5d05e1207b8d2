// Package compiler derives question/answer facts from a crawled page
// corpus via the external generation capability.
package compiler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sitechat/engine/internal/ai"
	"github.com/sitechat/engine/internal/kb"
)

// Confidence stamped on facts whose generation response omits one.
const (
	defaultBatchConfidence   = 0.8
	defaultGeneralConfidence = 0.85
)

// How many leading pages feed the cross-page "general overview" pass.
const generalPassPages = 3

// Compiler partitions a page corpus into bounded batches and compiles
// each into validated QA facts. Batches are processed sequentially with
// a pacing delay to respect caller-side rate limits.
type Compiler struct {
	completer  ai.Completer
	batchSize  int
	batchDelay time.Duration
}

func New(completer ai.Completer, batchSize int, batchDelay time.Duration) *Compiler {
	if batchSize <= 0 {
		batchSize = 2
	}
	return &Compiler{
		completer:  completer,
		batchSize:  batchSize,
		batchDelay: batchDelay,
	}
}

// Compile derives facts from pages. A malformed response for one batch
// contributes zero facts without aborting the rest; callers treat an
// empty total result as kb.ErrQAGenerationFailed.
func (c *Compiler) Compile(ctx context.Context, pages []kb.Page, botType string) ([]kb.QAFact, error) {
	if len(pages) == 0 {
		return nil, kb.ErrQAGenerationFailed
	}

	botType = kb.NormalizeBotType(botType)
	slog.Info("compiling qa facts", "pages", len(pages), "bot_type", botType)

	var facts []kb.QAFact

	numBatches := (len(pages) + c.batchSize - 1) / c.batchSize
	for i := 0; i < len(pages); i += c.batchSize {
		if err := ctx.Err(); err != nil {
			return facts, err
		}

		end := i + c.batchSize
		if end > len(pages) {
			end = len(pages)
		}
		batch := pages[i:end]
		slog.Debug("processing batch", "batch", i/c.batchSize+1, "total", numBatches)

		batchFacts := c.compileBatch(ctx, batch, botType)
		facts = append(facts, batchFacts...)

		if end < len(pages) && c.batchDelay > 0 {
			if err := sleepCtx(ctx, c.batchDelay); err != nil {
				return facts, err
			}
		}
	}

	facts = append(facts, c.compileGeneral(ctx, pages)...)

	slog.Info("qa compilation finished", "facts", len(facts))
	return facts, nil
}

// compileBatch derives facts for one batch of pages. Failures yield
// zero facts for the batch and compilation continues.
func (c *Compiler) compileBatch(ctx context.Context, batch []kb.Page, botType string) []kb.QAFact {
	raw, err := c.completer.Complete(ctx, ai.SystemPrompt(botType), ai.BatchPrompt(batch, botType))
	if err != nil {
		slog.Error("batch generation failed", "err", err)
		return nil
	}

	parsed, err := ParseFactList(raw)
	if err != nil {
		slog.Error("batch response malformed", "err", err)
		return nil
	}

	sources := make([]string, len(batch))
	for i, p := range batch {
		sources[i] = p.URL
	}
	return stampFacts(parsed, sources, defaultBatchConfidence)
}

// compileGeneral derives what-is-this-site style facts from the first
// few pages of the corpus.
func (c *Compiler) compileGeneral(ctx context.Context, pages []kb.Page) []kb.QAFact {
	head := pages
	if len(head) > generalPassPages {
		head = head[:generalPassPages]
	}

	raw, err := c.completer.Complete(ctx, "", ai.GeneralPrompt(head))
	if err != nil {
		slog.Error("general qa generation failed", "err", err)
		return nil
	}

	parsed, err := ParseFactList(raw)
	if err != nil {
		slog.Error("general qa response malformed", "err", err)
		return nil
	}

	sources := make([]string, len(head))
	for i, p := range head {
		sources[i] = p.URL
	}
	return stampFacts(parsed, sources, defaultGeneralConfidence)
}

type rawFact struct {
	Question   string   `json:"question"`
	Answer     string   `json:"answer"`
	Category   string   `json:"category"`
	Keywords   []string `json:"keywords"`
	Confidence *float64 `json:"confidence"`
}

type factListPayload struct {
	QAPairs []rawFact `json:"qa_pairs"`
}

// ParseFactList parses the generation capability's structured response.
// The external text is never trusted blindly: markdown fences are
// stripped, the JSON shape is checked, and a missing or empty qa_pairs
// list is an error.
func ParseFactList(raw string) ([]rawFact, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.ReplaceAll(cleaned, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	var payload factListPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, fmt.Errorf("parse qa response: %w", err)
	}
	if len(payload.QAPairs) == 0 {
		return nil, fmt.Errorf("qa response has no qa_pairs list")
	}
	return payload.QAPairs, nil
}

// stampFacts validates parsed facts and stamps source pages, timestamps
// and default confidence. Facts with an empty question or answer are
// dropped.
func stampFacts(parsed []rawFact, sources []string, defaultConfidence float64) []kb.QAFact {
	now := time.Now().UTC()
	facts := make([]kb.QAFact, 0, len(parsed))
	for _, f := range parsed {
		question := strings.TrimSpace(f.Question)
		answer := strings.TrimSpace(f.Answer)
		if question == "" || answer == "" {
			continue
		}

		confidence := defaultConfidence
		if f.Confidence != nil {
			confidence = clamp01(*f.Confidence)
		}

		facts = append(facts, kb.QAFact{
			Question:    question,
			Answer:      answer,
			Category:    kb.NormalizeCategory(f.Category),
			Keywords:    f.Keywords,
			Confidence:  confidence,
			SourcePages: sources,
			GeneratedAt: now,
		})
	}
	return facts
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
