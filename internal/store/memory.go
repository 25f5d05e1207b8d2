package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sitechat/engine/internal/kb"
	"github.com/sitechat/engine/internal/rag"
)

var _ Store = (*Memory)(nil)

// Memory is an in-memory Store using brute-force cosine ranking for
// candidate selection. It backs tests and single-process deployments
// without a database.
type Memory struct {
	mu           sync.RWMutex
	jobs         map[string]kb.GenerationJob
	pages        map[string][]rag.PageRecord
	facts        map[string][]rag.FactRecord
	interactions map[string][]kb.Interaction
}

func NewMemory() *Memory {
	return &Memory{
		jobs:         make(map[string]kb.GenerationJob),
		pages:        make(map[string][]rag.PageRecord),
		facts:        make(map[string][]rag.FactRecord),
		interactions: make(map[string][]kb.Interaction),
	}
}

func (m *Memory) CreateJob(_ context.Context, job *kb.GenerationJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = *job
	return nil
}

func (m *Memory) UpdateJob(_ context.Context, job *kb.GenerationJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; !ok {
		return kb.ErrJobNotFound
	}
	m.jobs[job.ID] = *job
	return nil
}

func (m *Memory) GetJob(_ context.Context, id string) (*kb.GenerationJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, kb.ErrJobNotFound
	}
	return &job, nil
}

func (m *Memory) ListJobs(_ context.Context) ([]kb.GenerationJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	jobs := make([]kb.GenerationJob, 0, len(m.jobs))
	for _, j := range m.jobs {
		jobs = append(jobs, j)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs, nil
}

func (m *Memory) DeleteKnowledgeBase(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[jobID]; !ok {
		return kb.ErrJobNotFound
	}
	delete(m.jobs, jobID)
	delete(m.pages, jobID)
	delete(m.facts, jobID)
	delete(m.interactions, jobID)
	return nil
}

func (m *Memory) InsertPage(_ context.Context, jobID string, page kb.Page, embedding []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[jobID] = append(m.pages[jobID], rag.PageRecord{Page: page, Embedding: embedding})
	return nil
}

func (m *Memory) InsertFact(_ context.Context, jobID string, fact kb.QAFact, embedding []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.facts[jobID] = append(m.facts[jobID], rag.FactRecord{Fact: fact, Embedding: embedding})
	return nil
}

func (m *Memory) SearchFacts(_ context.Context, jobID string, query []float32, limit int) ([]rag.FactRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records := append([]rag.FactRecord(nil), m.facts[jobID]...)
	sort.SliceStable(records, func(i, j int) bool {
		return rag.CosineSimilarity(query, records[i].Embedding) > rag.CosineSimilarity(query, records[j].Embedding)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (m *Memory) SearchPages(_ context.Context, jobID string, query []float32, limit int) ([]rag.PageRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records := append([]rag.PageRecord(nil), m.pages[jobID]...)
	sort.SliceStable(records, func(i, j int) bool {
		return rag.CosineSimilarity(query, records[i].Embedding) > rag.CosineSimilarity(query, records[j].Embedding)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (m *Memory) LogInteraction(_ context.Context, in kb.Interaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[in.JobID]; !ok {
		return kb.ErrJobNotFound
	}
	m.interactions[in.JobID] = append(m.interactions[in.JobID], in)
	return nil
}

func (m *Memory) ListInteractions(_ context.Context, jobID string, since time.Time) ([]kb.Interaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []kb.Interaction
	for _, in := range m.interactions[jobID] {
		if since.IsZero() || !in.CreatedAt.Before(since) {
			out = append(out, in)
		}
	}
	return out, nil
}
