package engine

import (
	"context"
	"log/slog"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/sitechat/engine/internal/ai"
	"github.com/sitechat/engine/internal/kb"
	"github.com/sitechat/engine/internal/store"
)

// Embedding input from a page body is bounded before the title and
// description are prepended.
const pageEmbedBodyLen = 2000

// Indexer embeds pages and facts and persists them with their vectors.
// Embedding calls are paced to respect the external capability's rate
// limits; a failure on one item skips that item only.
type Indexer struct {
	embedder ai.Embedder
	store    store.Store
	limiter  *rate.Limiter
}

func NewIndexer(embedder ai.Embedder, st store.Store, embedsPerSec float64) *Indexer {
	if embedsPerSec <= 0 {
		embedsPerSec = 5.0
	}
	return &Indexer{
		embedder: embedder,
		store:    st,
		limiter:  rate.NewLimiter(rate.Limit(embedsPerSec), 1),
	}
}

// Index persists pages and facts with embeddings for one knowledge
// base. Returns how many of each were stored; only context cancellation
// is an error.
func (ix *Indexer) Index(ctx context.Context, jobID string, pages []kb.Page, facts []kb.QAFact) (int, int, error) {
	pagesStored := 0
	for _, page := range pages {
		if err := ix.limiter.Wait(ctx); err != nil {
			return pagesStored, 0, err
		}

		input := page.Title + " " + page.Description + " " + truncate(page.BodyText, pageEmbedBodyLen)
		vec, err := ix.embedder.Embed(ctx, input)
		if err != nil {
			slog.Warn("page embedding failed, skipping", "url", page.URL, "err", err)
			continue
		}
		if err := ix.store.InsertPage(ctx, jobID, page, vec); err != nil {
			slog.Warn("page insert failed, skipping", "url", page.URL, "err", err)
			continue
		}
		pagesStored++
	}

	factsStored := 0
	for _, fact := range facts {
		if err := ix.limiter.Wait(ctx); err != nil {
			return pagesStored, factsStored, err
		}

		vec, err := ix.embedder.Embed(ctx, fact.Question+" "+fact.Answer)
		if err != nil {
			slog.Warn("fact embedding failed, skipping", "question", fact.Question, "err", err)
			continue
		}
		if err := ix.store.InsertFact(ctx, jobID, fact, vec); err != nil {
			slog.Warn("fact insert failed, skipping", "question", fact.Question, "err", err)
			continue
		}
		factsStored++
	}

	slog.Info("knowledge base indexed", "job", jobID, "pages", pagesStored, "facts", factsStored)
	return pagesStored, factsStored, nil
}

// truncate cuts s to at most n bytes without splitting a multibyte
// rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
