package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"finsight/internal/answer"
	"finsight/internal/chunker"
	"finsight/internal/config"
	"finsight/internal/domain"
	"finsight/internal/embedding/hashing"
	"finsight/internal/embedding/openai"
	"finsight/internal/service"
	"finsight/internal/summarizer"
	"finsight/internal/vectorstore"
	"finsight/internal/vectorstore/memory"
	"finsight/internal/vectorstore/sqlite"
)

// buildSession assembles the components selected by cfg.
func buildSession(cfg *config.AppConfig, logger *slog.Logger) (*service.Session, error) {
	var emb domain.Embedder
	switch cfg.Embedder.Type {
	case "hashing", "":
		emb = hashing.NewEmbedder(cfg.Embedder.Dimension)
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			return nil, errors.New("openai embedder config missing")
		}
		oc := cfg.Embedder.OpenAI
		client, err := openai.NewClient(openai.Config{
			BaseURL:           oc.BaseURL,
			APIKeyEnv:         oc.APIKeyEnv,
			Model:             oc.Model,
			Dimension:         cfg.Embedder.Dimension,
			BatchSize:         cfg.Embedder.BatchSize,
			Concurrency:       oc.Concurrency,
			RequestsPerSecond: oc.RequestsPerSecond,
			MaxRetries:        oc.MaxRetries,
			Timeout:           time.Duration(oc.TimeoutSecs) * time.Second,
			Logger:            logger,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		emb = client
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}

	ch, err := chunker.NewWindowChunker(cfg.Chunker.ChunkSize, cfg.Chunker.Overlap)
	if err != nil {
		return nil, err
	}

	var codec vectorstore.MetadataCodec
	switch cfg.Index.Metadata {
	case "sqlite":
		codec = sqlite.Codec{}
	default:
		codec = vectorstore.JSONCodec{}
	}
	idx, err := memory.NewStorage(cfg.Embedder.Dimension, memory.WithMetadataCodec(codec))
	if err != nil {
		return nil, err
	}

	ans, err := buildAnswerer(cfg, logger)
	if err != nil {
		return nil, err
	}

	return service.NewSession(service.Deps{
		Chunker:    ch,
		Embedder:   emb,
		Index:      idx,
		Answerer:   ans,
		Summarizer: summarizer.NewFrequencySummarizer(),
		Logger:     logger,
	}, service.Options{
		TopK:             cfg.Answer.TopK,
		BatchSize:        cfg.Embedder.BatchSize,
		HistoryLimit:     cfg.Answer.HistoryLimit,
		HistoryWindow:    cfg.Answer.HistoryWindow,
		SummarySentences: cfg.Answer.SummaryLength,
	})
}

// buildAnswerer picks Groq with a local fallback, or local excerpts only.
func buildAnswerer(cfg *config.AppConfig, logger *slog.Logger) (domain.Answerer, error) {
	local := answer.Local{}
	switch cfg.Answer.Type {
	case "local":
		return local, nil
	case "auto", "groq", "":
		g := cfg.Answer.Groq
		groq, err := answer.NewGroq(answer.GroqConfig{
			BaseURL:           g.BaseURL,
			APIKeyEnv:         g.APIKeyEnv,
			Model:             g.Model,
			Temperature:       g.Temperature,
			MaxTokens:         g.MaxTokens,
			HistoryWindow:     cfg.Answer.HistoryWindow,
			RequestsPerSecond: g.RequestsPerSecond,
			Timeout:           time.Duration(g.TimeoutSecs) * time.Second,
		})
		if errors.Is(err, answer.ErrNoAPIKey) && cfg.Answer.Type != "groq" {
			logger.Info("no Groq key, answering with document excerpts", "env", g.APIKeyEnv)
			return local, nil
		}
		if err != nil {
			return nil, err
		}
		return answer.WithFallback(groq, local, logger), nil
	default:
		return nil, fmt.Errorf("unknown answerer: %s", cfg.Answer.Type)
	}
}

func groqAvailable(cfg *config.AppConfig) bool {
	return cfg.Answer.Type != "local" && answer.Available(cfg.Answer.Groq.APIKeyEnv)
}

// newLogger builds the slog handler from config. The terminal UI owns stdout,
// so quiet mode discards logs unless a file is configured.
func newLogger(c config.LogConfig, quiet bool) (*slog.Logger, func(), error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	var w io.Writer = os.Stderr
	closeFn := func() {}
	switch {
	case c.File != "":
		f, err := os.OpenFile(c.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		w, closeFn = f, func() { _ = f.Close() }
	case quiet:
		w = io.Discard
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), closeFn, nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), closeFn, nil
}
