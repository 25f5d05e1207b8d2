package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sitechat/engine/internal/ai"
	"github.com/sitechat/engine/internal/crawler"
	"github.com/sitechat/engine/internal/kb"
)

// Reported by status writes once a job has been cancelled or deleted;
// it aborts the pipeline without touching the store again.
var errJobAbandoned = errors.New("job abandoned")

// Pipeline stage progress points. Progress is monotone within a job's
// lifetime; each transition persists before the next stage begins.
const (
	progressScraping     = 10
	progressGeneratingQA = 40
	progressStoringData  = 70
	progressFinalizing   = 90
	progressCompleted    = 100
)

// runPipeline drives one generation job through its stages. Stages run
// strictly one after another; any unrecoverable stage error moves the
// job to failed and stops.
func (e *Engine) runPipeline(ctx context.Context, job *kb.GenerationJob, opts StartOptions) {
	defer e.registry.Done(job.ID)

	if err := e.transition(ctx, job, kb.StatusScraping, progressScraping); err != nil {
		return
	}

	result, err := e.crawler.Crawl(ctx, job.WebsiteURL, crawler.Options{
		MaxPages:          opts.MaxPages,
		IncludeSubdomains: opts.IncludeSubdomains,
		ExcludePatterns:   opts.ExcludePatterns,
	})
	if err != nil {
		e.fail(job, err)
		return
	}

	job.PagesScraped = len(result.Pages)
	if err := e.transition(ctx, job, kb.StatusGeneratingQA, progressGeneratingQA); err != nil {
		return
	}

	facts, err := e.compiler.Compile(ctx, result.Pages, job.BotType)
	if err != nil {
		e.fail(job, err)
		return
	}
	if len(facts) == 0 {
		e.fail(job, kb.ErrQAGenerationFailed)
		return
	}

	job.QAPairsGenerated = len(facts)
	if err := e.transition(ctx, job, kb.StatusStoringData, progressStoringData); err != nil {
		return
	}

	if _, _, err := e.indexer.Index(ctx, job.ID, result.Pages, facts); err != nil {
		e.fail(job, err)
		return
	}

	if err := e.transition(ctx, job, kb.StatusFinalizing, progressFinalizing); err != nil {
		return
	}

	// The summary step is mandatory; its failure fails the job.
	head := result.Pages
	if len(head) > 3 {
		head = head[:3]
	}
	summary, err := e.ai.Complete(ctx, "", ai.SummaryPrompt(head))
	if err != nil {
		e.fail(job, err)
		return
	}

	job.Summary = summary
	now := time.Now().UTC()
	job.CompletedAt = &now
	if err := e.transition(ctx, job, kb.StatusCompleted, progressCompleted); err != nil {
		return
	}

	slog.Info("generation completed", "job", job.ID,
		"pages", job.PagesScraped, "facts", job.QAPairsGenerated, "crawl_errors", len(result.Errors))
}

// transition persists the job's next status and progress. Writes for
// jobs no longer in the registry are dropped, so a deleted job is
// abandoned rather than resumed.
func (e *Engine) transition(ctx context.Context, job *kb.GenerationJob, status string, progress int) error {
	if !e.registry.Active(job.ID) {
		slog.Info("dropping status write for abandoned job", "job", job.ID, "status", status)
		return errJobAbandoned
	}

	job.Status = status
	job.Progress = progress
	job.UpdatedAt = time.Now().UTC()

	if err := e.store.UpdateJob(ctx, job); err != nil {
		slog.Error("status write failed", "job", job.ID, "status", status, "err", err)
		return err
	}
	return nil
}

// fail moves the job to the failed terminal state, recording the error.
// No further stages run.
func (e *Engine) fail(job *kb.GenerationJob, cause error) {
	slog.Error("generation failed", "job", job.ID, "status", job.Status, "err", cause)

	if !e.registry.Active(job.ID) {
		return
	}

	job.Status = kb.StatusFailed
	job.ErrorMessage = cause.Error()
	job.UpdatedAt = time.Now().UTC()

	// The job context may already be cancelled; the failure write uses
	// its own deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.store.UpdateJob(ctx, job); err != nil {
		slog.Error("failure write failed", "job", job.ID, "err", err)
	}
}
