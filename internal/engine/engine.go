// Package engine exposes the core operations consumed by the routing
// layer: starting a generation job, polling its status, answering
// queries against a completed knowledge base, and deleting one.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/sitechat/engine/internal/ai"
	"github.com/sitechat/engine/internal/compiler"
	"github.com/sitechat/engine/internal/config"
	"github.com/sitechat/engine/internal/crawler"
	"github.com/sitechat/engine/internal/kb"
	"github.com/sitechat/engine/internal/rag"
	"github.com/sitechat/engine/internal/store"
)

const fallbackResponse = "I'm sorry, I wasn't able to find an answer to that right now. Please try rephrasing your question."

// StartOptions bound one generation request.
type StartOptions struct {
	BotType           string
	MaxPages          int
	IncludeSubdomains bool
	ExcludePatterns   []string
}

// Engine wires the crawl, compile, index and retrieval components
// behind the exposed operations. Each generation job runs as an
// independent background task owning its own knowledge base.
type Engine struct {
	cfg       config.Config
	store     store.Store
	ai        ai.Service
	crawler   *crawler.Crawler
	compiler  *compiler.Compiler
	indexer   *Indexer
	retriever *rag.Retriever
	assembler *rag.Assembler
	registry  *Registry
}

func New(cfg config.Config, st store.Store, aiSvc ai.Service) *Engine {
	fetcher := crawler.NewFetcher(cfg.UserAgent, cfg.FetchTimeout)
	extractor := crawler.NewExtractor(cfg.MinWordCount)

	return &Engine{
		cfg:       cfg,
		store:     st,
		ai:        aiSvc,
		crawler:   crawler.New(fetcher, extractor, cfg.CrawlRate),
		compiler:  compiler.New(aiSvc, cfg.QABatchSize, cfg.QABatchDelay),
		indexer:   NewIndexer(aiSvc, st, cfg.EmbedRate),
		retriever: rag.NewRetriever(aiSvc, st, cfg.SimilarityThreshold),
		assembler: rag.NewAssembler(cfg.MaxContextLength, cfg.MaxSources),
		registry:  NewRegistry(),
	}
}

// StartGeneration creates a generation job for websiteURL and spawns
// its pipeline in the background, returning the new job id immediately.
func (e *Engine) StartGeneration(ctx context.Context, websiteURL string, opts StartOptions) (string, error) {
	parsed, err := url.Parse(websiteURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", fmt.Errorf("invalid website URL %q", websiteURL)
	}

	if opts.MaxPages <= 0 {
		opts.MaxPages = e.cfg.MaxPages
	}
	if opts.MaxPages > e.cfg.MaxPagesCap {
		opts.MaxPages = e.cfg.MaxPagesCap
	}

	now := time.Now().UTC()
	job := &kb.GenerationJob{
		ID:          uuid.NewString(),
		WebsiteURL:  websiteURL,
		WebsiteName: parsed.Hostname(),
		BotType:     kb.NormalizeBotType(opts.BotType),
		Status:      kb.StatusCreated,
		Progress:    0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := e.store.CreateJob(ctx, job); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}

	// The pipeline outlives the request context; its lifetime is owned
	// by the registry.
	jobCtx := e.registry.Register(context.Background(), job.ID)
	go e.runPipeline(jobCtx, job, opts)

	slog.Info("generation started", "job", job.ID, "url", websiteURL, "bot_type", job.BotType)
	return job.ID, nil
}

// GetJobStatus returns the current view of one job.
func (e *Engine) GetJobStatus(ctx context.Context, jobID string) (*kb.GenerationJob, error) {
	return e.store.GetJob(ctx, jobID)
}

// ListJobs returns all jobs, newest first.
func (e *Engine) ListJobs(ctx context.Context) ([]kb.GenerationJob, error) {
	return e.store.ListJobs(ctx)
}

// AnswerQuery resolves one user query against a completed knowledge
// base. Retrieval or generation failures degrade to a low-confidence
// fallback answer; only an unready knowledge base is surfaced as an
// error, carrying the job's current status and progress.
func (e *Engine) AnswerQuery(ctx context.Context, jobID, query string) (kb.Answer, error) {
	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return kb.Answer{}, err
	}
	if job.Status != kb.StatusCompleted {
		return kb.Answer{}, &kb.NotReadyError{Status: job.Status, Progress: job.Progress}
	}

	results, err := e.retriever.Search(ctx, jobID, query, e.cfg.RetrieveLimit)
	if err != nil {
		slog.Error("retrieval failed", "job", jobID, "err", err)
		return kb.Answer{Response: fallbackResponse, Confidence: 0.1}, nil
	}

	context := e.assembler.BuildContext(results, job.WebsiteName)
	confidence := e.assembler.Confidence(results)
	sources := e.assembler.Sources(results)

	response, err := e.ai.Complete(ctx,
		ai.ResponsePrompt(job.WebsiteName, job.BotType, job.Summary, context), query)
	if err != nil {
		slog.Error("response generation failed", "job", jobID, "err", err)
		response = fallbackResponse
	}

	answer := kb.Answer{Response: response, Confidence: confidence, Sources: sources}

	// Best-effort audit trail; a logging failure never fails the query.
	if err := e.store.LogInteraction(ctx, kb.Interaction{
		JobID:       jobID,
		UserQuery:   query,
		BotResponse: answer.Response,
		Confidence:  answer.Confidence,
		Sources:     answer.Sources,
		CreatedAt:   time.Now().UTC(),
	}); err != nil {
		slog.Warn("interaction log failed", "job", jobID, "err", err)
	}

	return answer, nil
}

// DeleteKnowledgeBase abandons any in-flight pipeline for jobID and
// removes the knowledge base with its interaction history.
func (e *Engine) DeleteKnowledgeBase(ctx context.Context, jobID string) error {
	e.registry.Cancel(jobID)
	return e.store.DeleteKnowledgeBase(ctx, jobID)
}
