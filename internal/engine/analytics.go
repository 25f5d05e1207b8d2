package engine

import (
	"context"
	"sort"
	"strings"
	"time"
)

// Queries answered below this confidence are surfaced for review.
const lowConfidenceThreshold = 0.5

// QueryCount is one entry of the top-queries ranking.
type QueryCount struct {
	Query string `json:"query"`
	Count int    `json:"count"`
}

// Analytics summarizes the interaction history of one knowledge base.
type Analytics struct {
	TotalInteractions    int          `json:"totalInteractions"`
	AverageConfidence    float64      `json:"averageConfidence"`
	TopQueries           []QueryCount `json:"topQueries"`
	LowConfidenceQueries []string     `json:"lowConfidenceQueries"`
}

// Analytics aggregates the job's interactions recorded since the given
// time (zero means all).
func (e *Engine) Analytics(ctx context.Context, jobID string, since time.Time) (Analytics, error) {
	if _, err := e.store.GetJob(ctx, jobID); err != nil {
		return Analytics{}, err
	}

	interactions, err := e.store.ListInteractions(ctx, jobID, since)
	if err != nil {
		return Analytics{}, err
	}

	out := Analytics{TotalInteractions: len(interactions)}
	if len(interactions) == 0 {
		return out, nil
	}

	counts := map[string]int{}
	var confidenceSum float64
	for _, in := range interactions {
		confidenceSum += in.Confidence
		counts[strings.ToLower(in.UserQuery)]++
		if in.Confidence < lowConfidenceThreshold {
			out.LowConfidenceQueries = append(out.LowConfidenceQueries, in.UserQuery)
		}
	}
	out.AverageConfidence = confidenceSum / float64(len(interactions))

	for q, n := range counts {
		out.TopQueries = append(out.TopQueries, QueryCount{Query: q, Count: n})
	}
	sort.Slice(out.TopQueries, func(i, j int) bool {
		if out.TopQueries[i].Count != out.TopQueries[j].Count {
			return out.TopQueries[i].Count > out.TopQueries[j].Count
		}
		return out.TopQueries[i].Query < out.TopQueries[j].Query
	})
	if len(out.TopQueries) > 10 {
		out.TopQueries = out.TopQueries[:10]
	}
	return out, nil
}
