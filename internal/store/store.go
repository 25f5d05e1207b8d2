// Package store persists jobs, pages, facts and interactions and
// supplies nearest-neighbor candidates for retrieval.
package store

import (
	"context"
	"time"

	"github.com/sitechat/engine/internal/kb"
	"github.com/sitechat/engine/internal/rag"
)

// Store is the engine's record store. One knowledge base is the set of
// pages, facts and interactions scoped to one job id; it is deleted as
// a unit.
type Store interface {
	rag.CandidateSource

	CreateJob(ctx context.Context, job *kb.GenerationJob) error
	UpdateJob(ctx context.Context, job *kb.GenerationJob) error
	GetJob(ctx context.Context, id string) (*kb.GenerationJob, error)
	ListJobs(ctx context.Context) ([]kb.GenerationJob, error)

	// DeleteKnowledgeBase removes the job and cascades to its pages,
	// facts and interactions.
	DeleteKnowledgeBase(ctx context.Context, jobID string) error

	InsertPage(ctx context.Context, jobID string, page kb.Page, embedding []float32) error
	InsertFact(ctx context.Context, jobID string, fact kb.QAFact, embedding []float32) error

	// LogInteraction is best-effort from the caller's perspective;
	// failures never fail the query that produced the interaction.
	LogInteraction(ctx context.Context, in kb.Interaction) error
	ListInteractions(ctx context.Context, jobID string, since time.Time) ([]kb.Interaction, error)
}
