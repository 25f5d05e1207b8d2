package rag

import (
	"context"
	"fmt"
	"sort"

	"github.com/sitechat/engine/internal/ai"
	"github.com/sitechat/engine/internal/kb"
)

// FactRecord is a stored fact together with its embedding, as returned
// by a candidate source.
type FactRecord struct {
	Fact      kb.QAFact
	Embedding []float32
}

// PageRecord is a stored page together with its embedding.
type PageRecord struct {
	Page      kb.Page
	Embedding []float32
}

// CandidateSource supplies nearest-neighbor candidates scoped to one
// knowledge base. The source's own ordering is only pre-selection; the
// retriever recomputes canonical cosine similarity in-process.
type CandidateSource interface {
	SearchFacts(ctx context.Context, jobID string, query []float32, limit int) ([]FactRecord, error)
	SearchPages(ctx context.Context, jobID string, query []float32, limit int) ([]PageRecord, error)
}

// FactMatch is a retrieved fact with its canonical similarity score.
type FactMatch struct {
	Fact       kb.QAFact
	Similarity float64
}

// PageMatch is a retrieved page with its canonical similarity score.
type PageMatch struct {
	Page       kb.Page
	Similarity float64
}

// SearchResults holds the threshold-filtered, similarity-ordered
// matches for one query.
type SearchResults struct {
	QAMatches   []FactMatch
	PageMatches []PageMatch
}

// Retriever embeds live queries and scores stored candidates against
// them.
type Retriever struct {
	embedder  ai.Embedder
	source    CandidateSource
	threshold float64
}

func NewRetriever(embedder ai.Embedder, source CandidateSource, threshold float64) *Retriever {
	return &Retriever{
		embedder:  embedder,
		source:    source,
		threshold: threshold,
	}
}

// Search embeds query and returns the top-limit nearest facts and pages
// in the knowledge base, excluding results at or below the similarity
// threshold.
func (r *Retriever) Search(ctx context.Context, jobID, query string, limit int) (SearchResults, error) {
	if limit <= 0 {
		limit = 5
	}

	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return SearchResults{}, fmt.Errorf("embed query: %w", err)
	}

	factRecords, err := r.source.SearchFacts(ctx, jobID, queryVec, limit)
	if err != nil {
		return SearchResults{}, fmt.Errorf("search facts: %w", err)
	}
	pageRecords, err := r.source.SearchPages(ctx, jobID, queryVec, limit)
	if err != nil {
		return SearchResults{}, fmt.Errorf("search pages: %w", err)
	}

	var results SearchResults
	for _, rec := range factRecords {
		sim := CosineSimilarity(queryVec, rec.Embedding)
		if sim > r.threshold {
			results.QAMatches = append(results.QAMatches, FactMatch{Fact: rec.Fact, Similarity: sim})
		}
	}
	for _, rec := range pageRecords {
		sim := CosineSimilarity(queryVec, rec.Embedding)
		if sim > r.threshold {
			results.PageMatches = append(results.PageMatches, PageMatch{Page: rec.Page, Similarity: sim})
		}
	}

	sort.SliceStable(results.QAMatches, func(i, j int) bool {
		return results.QAMatches[i].Similarity > results.QAMatches[j].Similarity
	})
	sort.SliceStable(results.PageMatches, func(i, j int) bool {
		return results.PageMatches[i].Similarity > results.PageMatches[j].Similarity
	})

	if len(results.QAMatches) > limit {
		results.QAMatches = results.QAMatches[:limit]
	}
	if len(results.PageMatches) > limit {
		results.PageMatches = results.PageMatches[:limit]
	}
	return results, nil
}
