package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/sitechat/engine/internal/kb"
	"github.com/sitechat/engine/internal/rag"
)

// Schema is the DDL for the Postgres store. Requires the pgvector
// extension. The <=> index ordering is candidate pre-selection only;
// canonical similarity is recomputed in-process by the retriever.
const Schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS generation_jobs (
    id             TEXT PRIMARY KEY,
    website_url    TEXT NOT NULL,
    website_name   TEXT NOT NULL,
    bot_type       TEXT NOT NULL,
    status         TEXT NOT NULL,
    progress       INT NOT NULL DEFAULT 0,
    pages_scraped  INT NOT NULL DEFAULT 0,
    qa_pairs       INT NOT NULL DEFAULT 0,
    error_message  TEXT NOT NULL DEFAULT '',
    summary        TEXT NOT NULL DEFAULT '',
    created_at     TIMESTAMPTZ NOT NULL,
    updated_at     TIMESTAMPTZ NOT NULL,
    completed_at   TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS kb_pages (
    id          BIGSERIAL PRIMARY KEY,
    job_id      TEXT NOT NULL REFERENCES generation_jobs(id) ON DELETE CASCADE,
    url         TEXT NOT NULL,
    title       TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    keywords    TEXT NOT NULL DEFAULT '',
    body_text   TEXT NOT NULL,
    headings    JSONB NOT NULL DEFAULT '[]',
    nav_links   JSONB NOT NULL DEFAULT '[]',
    word_count  INT NOT NULL,
    scraped_at  TIMESTAMPTZ NOT NULL,
    embedding   vector(1536)
);
CREATE INDEX IF NOT EXISTS kb_pages_job_idx ON kb_pages (job_id);

CREATE TABLE IF NOT EXISTS kb_facts (
    id           BIGSERIAL PRIMARY KEY,
    job_id       TEXT NOT NULL REFERENCES generation_jobs(id) ON DELETE CASCADE,
    question     TEXT NOT NULL,
    answer       TEXT NOT NULL,
    category     TEXT NOT NULL,
    keywords     TEXT[] NOT NULL DEFAULT '{}',
    confidence   DOUBLE PRECISION NOT NULL,
    source_pages TEXT[] NOT NULL DEFAULT '{}',
    generated_at TIMESTAMPTZ NOT NULL,
    embedding    vector(1536)
);
CREATE INDEX IF NOT EXISTS kb_facts_job_idx ON kb_facts (job_id);

CREATE TABLE IF NOT EXISTS kb_interactions (
    id           BIGSERIAL PRIMARY KEY,
    job_id       TEXT NOT NULL REFERENCES generation_jobs(id) ON DELETE CASCADE,
    user_query   TEXT NOT NULL,
    bot_response TEXT NOT NULL,
    confidence   DOUBLE PRECISION NOT NULL,
    sources      TEXT[] NOT NULL DEFAULT '{}',
    created_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS kb_interactions_job_idx ON kb_interactions (job_id);
`

var _ Store = (*Postgres)(nil)

// Postgres is the durable Store backed by pgx and pgvector.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to databaseURL, registers pgvector types on each
// connection and applies the schema.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid database URL: %w", err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() { p.pool.Close() }

func (p *Postgres) CreateJob(ctx context.Context, job *kb.GenerationJob) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO generation_jobs
			(id, website_url, website_name, bot_type, status, progress,
			 pages_scraped, qa_pairs, error_message, summary, created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, job.ID, job.WebsiteURL, job.WebsiteName, job.BotType, job.Status, job.Progress,
		job.PagesScraped, job.QAPairsGenerated, job.ErrorMessage, job.Summary,
		job.CreatedAt, job.UpdatedAt, job.CompletedAt)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (p *Postgres) UpdateJob(ctx context.Context, job *kb.GenerationJob) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE generation_jobs SET
			status = $2, progress = $3, pages_scraped = $4, qa_pairs = $5,
			error_message = $6, summary = $7, updated_at = $8, completed_at = $9
		WHERE id = $1
	`, job.ID, job.Status, job.Progress, job.PagesScraped, job.QAPairsGenerated,
		job.ErrorMessage, job.Summary, job.UpdatedAt, job.CompletedAt)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return kb.ErrJobNotFound
	}
	return nil
}

func (p *Postgres) GetJob(ctx context.Context, id string) (*kb.GenerationJob, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, website_url, website_name, bot_type, status, progress,
		       pages_scraped, qa_pairs, error_message, summary, created_at, updated_at, completed_at
		FROM generation_jobs WHERE id = $1
	`, id)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, kb.ErrJobNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

func (p *Postgres) ListJobs(ctx context.Context) ([]kb.GenerationJob, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, website_url, website_name, bot_type, status, progress,
		       pages_scraped, qa_pairs, error_message, summary, created_at, updated_at, completed_at
		FROM generation_jobs ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []kb.GenerationJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("list jobs: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func scanJob(row pgx.Row) (*kb.GenerationJob, error) {
	var job kb.GenerationJob
	err := row.Scan(&job.ID, &job.WebsiteURL, &job.WebsiteName, &job.BotType,
		&job.Status, &job.Progress, &job.PagesScraped, &job.QAPairsGenerated,
		&job.ErrorMessage, &job.Summary, &job.CreatedAt, &job.UpdatedAt, &job.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (p *Postgres) DeleteKnowledgeBase(ctx context.Context, jobID string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM generation_jobs WHERE id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("delete knowledge base: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return kb.ErrJobNotFound
	}
	return nil
}

func (p *Postgres) InsertPage(ctx context.Context, jobID string, page kb.Page, embedding []float32) error {
	headings, err := json.Marshal(page.Headings)
	if err != nil {
		return fmt.Errorf("marshal headings: %w", err)
	}
	navLinks, err := json.Marshal(page.NavLinks)
	if err != nil {
		return fmt.Errorf("marshal nav links: %w", err)
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO kb_pages
			(job_id, url, title, description, keywords, body_text, headings, nav_links, word_count, scraped_at, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, jobID, page.URL, page.Title, page.Description, page.Keywords, page.BodyText,
		headings, navLinks, page.WordCount, page.ScrapedAt, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("insert page: %w", err)
	}
	return nil
}

func (p *Postgres) InsertFact(ctx context.Context, jobID string, fact kb.QAFact, embedding []float32) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO kb_facts
			(job_id, question, answer, category, keywords, confidence, source_pages, generated_at, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, jobID, fact.Question, fact.Answer, fact.Category, textArray(fact.Keywords),
		fact.Confidence, textArray(fact.SourcePages), fact.GeneratedAt, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("insert fact: %w", err)
	}
	return nil
}

// textArray coalesces a nil slice to an empty one. pgx encodes nil as
// SQL NULL, which the NOT NULL TEXT[] columns reject.
func textArray(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func (p *Postgres) SearchFacts(ctx context.Context, jobID string, query []float32, limit int) ([]rag.FactRecord, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT question, answer, category, keywords, confidence, source_pages, generated_at, embedding
		FROM kb_facts
		WHERE job_id = $1 AND embedding IS NOT NULL
		ORDER BY embedding <=> $2
		LIMIT $3
	`, jobID, pgvector.NewVector(query), limit)
	if err != nil {
		return nil, fmt.Errorf("search facts: %w", err)
	}
	defer rows.Close()

	var records []rag.FactRecord
	for rows.Next() {
		var rec rag.FactRecord
		var vec pgvector.Vector
		if err := rows.Scan(&rec.Fact.Question, &rec.Fact.Answer, &rec.Fact.Category,
			&rec.Fact.Keywords, &rec.Fact.Confidence, &rec.Fact.SourcePages,
			&rec.Fact.GeneratedAt, &vec); err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		rec.Embedding = vec.Slice()
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (p *Postgres) SearchPages(ctx context.Context, jobID string, query []float32, limit int) ([]rag.PageRecord, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT url, title, description, keywords, body_text, headings, nav_links, word_count, scraped_at, embedding
		FROM kb_pages
		WHERE job_id = $1 AND embedding IS NOT NULL
		ORDER BY embedding <=> $2
		LIMIT $3
	`, jobID, pgvector.NewVector(query), limit)
	if err != nil {
		return nil, fmt.Errorf("search pages: %w", err)
	}
	defer rows.Close()

	var records []rag.PageRecord
	for rows.Next() {
		var rec rag.PageRecord
		var vec pgvector.Vector
		var headings, navLinks []byte
		if err := rows.Scan(&rec.Page.URL, &rec.Page.Title, &rec.Page.Description,
			&rec.Page.Keywords, &rec.Page.BodyText, &headings, &navLinks,
			&rec.Page.WordCount, &rec.Page.ScrapedAt, &vec); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		if err := json.Unmarshal(headings, &rec.Page.Headings); err != nil {
			return nil, fmt.Errorf("unmarshal headings: %w", err)
		}
		if err := json.Unmarshal(navLinks, &rec.Page.NavLinks); err != nil {
			return nil, fmt.Errorf("unmarshal nav links: %w", err)
		}
		rec.Embedding = vec.Slice()
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (p *Postgres) LogInteraction(ctx context.Context, in kb.Interaction) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO kb_interactions (job_id, user_query, bot_response, confidence, sources, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, in.JobID, in.UserQuery, in.BotResponse, in.Confidence, textArray(in.Sources), in.CreatedAt)
	if err != nil {
		return fmt.Errorf("log interaction: %w", err)
	}
	return nil
}

func (p *Postgres) ListInteractions(ctx context.Context, jobID string, since time.Time) ([]kb.Interaction, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT job_id, user_query, bot_response, confidence, sources, created_at
		FROM kb_interactions
		WHERE job_id = $1 AND created_at >= $2
		ORDER BY created_at DESC
	`, jobID, since)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	defer rows.Close()

	var out []kb.Interaction
	for rows.Next() {
		var in kb.Interaction
		if err := rows.Scan(&in.JobID, &in.UserQuery, &in.BotResponse,
			&in.Confidence, &in.Sources, &in.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		out = append(out, in)
	}
	return out, rows.Err()
}
