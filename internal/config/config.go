// Package config loads engine configuration from the environment with
// recognized defaults. A .env file in the working directory is honored
// but never overrides variables already set.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Storage
	DatabaseURL string

	// External AI capability (OpenAI-compatible)
	OpenAIKey      string
	EmbedEndpoint  string
	EmbedModel     string
	ChatEndpoint   string
	ChatModel      string
	RequestTimeout time.Duration

	// Crawling
	UserAgent    string
	MaxPages     int
	MaxPagesCap  int
	FetchTimeout time.Duration
	CrawlRate    float64 // fetches per second
	MinWordCount int

	// Knowledge compilation
	QABatchSize  int
	QABatchDelay time.Duration

	// Embedding indexer pacing
	EmbedRate float64 // embedding calls per second

	// Retrieval
	SimilarityThreshold float64
	MaxContextLength    int
	RetrieveLimit       int
	MaxSources          int
}

func Load() Config {
	_ = godotenv.Load()

	return Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),

		OpenAIKey:      getEnv("OPENAI_API_KEY", ""),
		EmbedEndpoint:  getEnv("EMBED_ENDPOINT", "https://api.openai.com/v1/embeddings"),
		EmbedModel:     getEnv("EMBED_MODEL", "text-embedding-3-small"),
		ChatEndpoint:   getEnv("CHAT_ENDPOINT", "https://api.openai.com/v1/chat/completions"),
		ChatModel:      getEnv("CHAT_MODEL", "gpt-4o-mini"),
		RequestTimeout: getDuration("AI_REQUEST_TIMEOUT", 60*time.Second),

		UserAgent:    getEnv("USER_AGENT", "SiteChat-Bot/1.0"),
		MaxPages:     getInt("MAX_PAGES", 20),
		MaxPagesCap:  getInt("MAX_PAGES_CAP", 50),
		FetchTimeout: getDuration("FETCH_TIMEOUT", 30*time.Second),
		CrawlRate:    getFloat("CRAWL_RATE", 1.0),
		MinWordCount: getInt("MIN_WORD_COUNT", 20),

		QABatchSize:  getInt("QA_BATCH_SIZE", 2),
		QABatchDelay: getDuration("QA_BATCH_DELAY", 1500*time.Millisecond),

		EmbedRate: getFloat("EMBED_RATE", 5.0),

		SimilarityThreshold: getFloat("SIMILARITY_THRESHOLD", 0.7),
		MaxContextLength:    getInt("MAX_CONTEXT_LENGTH", 4000),
		RetrieveLimit:       getInt("RETRIEVE_LIMIT", 3),
		MaxSources:          getInt("MAX_SOURCES", 5),
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
