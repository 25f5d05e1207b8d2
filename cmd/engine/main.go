package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sitechat/engine/internal/ai"
	"github.com/sitechat/engine/internal/config"
	"github.com/sitechat/engine/internal/engine"
	"github.com/sitechat/engine/internal/kb"
	"github.com/sitechat/engine/internal/store"
)

func main() {
	websiteURL := flag.String("url", "", "website root URL to build a knowledge base for")
	botType := flag.String("bot", "general", "bot type: general, navigation, qa, whatsapp, support")
	maxPages := flag.Int("max-pages", 0, "page budget for the crawl (0 uses the configured default)")
	subdomains := flag.Bool("subdomains", false, "include subdomains of the root domain")
	query := flag.String("query", "", "question to ask once the knowledge base is built")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if *websiteURL == "" {
		slog.Error("-url is required")
		os.Exit(1)
	}

	cfg := config.Load()
	if cfg.OpenAIKey == "" {
		slog.Error("OPENAI_API_KEY is required")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var st store.Store
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "err", err)
			os.Exit(1)
		}
		defer pg.Close()
		st = pg
		slog.Info("connected to database")
	} else {
		st = store.NewMemory()
		slog.Info("no DATABASE_URL set, using in-memory store")
	}

	eng := engine.New(cfg, st, ai.NewClient(ai.Config{
		APIKey:        cfg.OpenAIKey,
		EmbedEndpoint: cfg.EmbedEndpoint,
		EmbedModel:    cfg.EmbedModel,
		ChatEndpoint:  cfg.ChatEndpoint,
		ChatModel:     cfg.ChatModel,
		Timeout:       cfg.RequestTimeout,
	}))

	jobID, err := eng.StartGeneration(ctx, *websiteURL, engine.StartOptions{
		BotType:           *botType,
		MaxPages:          *maxPages,
		IncludeSubdomains: *subdomains,
	})
	if err != nil {
		slog.Error("failed to start generation", "err", err)
		os.Exit(1)
	}

	job, err := waitForJob(ctx, eng, jobID)
	if err != nil {
		slog.Error("generation did not finish", "job", jobID, "err", err)
		os.Exit(1)
	}
	if job.Status == kb.StatusFailed {
		slog.Error("generation failed", "job", jobID, "reason", job.ErrorMessage)
		os.Exit(1)
	}

	fmt.Printf("Knowledge base %s ready: %d pages, %d facts\n", jobID, job.PagesScraped, job.QAPairsGenerated)
	if job.Summary != "" {
		fmt.Printf("\n%s\n", job.Summary)
	}

	if *query != "" {
		answer, err := eng.AnswerQuery(ctx, jobID, *query)
		if err != nil {
			slog.Error("query failed", "err", err)
			os.Exit(1)
		}
		fmt.Printf("\nQ: %s\nA: %s\n(confidence %.2f, sources %v)\n",
			*query, answer.Response, answer.Confidence, answer.Sources)
	}
}

// waitForJob polls the job until it reaches a terminal state.
func waitForJob(ctx context.Context, eng *engine.Engine, jobID string) (*kb.GenerationJob, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		job, err := eng.GetJobStatus(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job.Terminal() {
			return job, nil
		}
		slog.Info("job progress", "job", jobID, "status", job.Status, "progress", job.Progress)

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, errors.New("interrupted")
		}
	}
}
