package main

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"finsight/internal/answer"
	"finsight/internal/config"
	"finsight/internal/domain"
)

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	cfg, err := config.Load(t.TempDir() + "/missing.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cfg
}

func TestBuildAnswererWithoutKeyIsLocal(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	cfg := testConfig(t)
	ans, err := buildAnswerer(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("buildAnswerer: %v", err)
	}
	if _, ok := ans.(answer.Local); !ok {
		t.Fatalf("answerer = %T, want answer.Local", ans)
	}

	cfg.Answer.Type = "groq"
	if _, err := buildAnswerer(cfg, nil); err == nil {
		t.Fatalf("groq without key should fail")
	}
}

func TestBuildAnswererWithKeyFallsBack(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "test")
	ans, err := buildAnswerer(testConfig(t), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("buildAnswerer: %v", err)
	}
	if _, ok := ans.(*answer.Fallback); !ok {
		t.Fatalf("answerer = %T, want *answer.Fallback", ans)
	}
}

func TestBuildSessionEndToEnd(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	cfg := testConfig(t)
	cfg.Index.Metadata = "sqlite"
	sess, err := buildSession(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("buildSession: %v", err)
	}
	ctx := context.Background()
	pages := []domain.Page{{Number: 1, Text: "Total revenue for the quarter was 2.4 billion dollars."}}
	if _, err := sess.Ingest(ctx, pages); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	ans, err := sess.Ask(ctx, "what was revenue")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !strings.Contains(ans.Text, "revenue") || len(ans.Sources) != 1 {
		t.Fatalf("answer = %+v", ans)
	}
	dir := t.TempDir()
	if err := sess.Save(dir); err != nil {
		t.Fatalf("Save: %v", err)
	}
}

func TestUnknownEmbedder(t *testing.T) {
	cfg := testConfig(t)
	cfg.Embedder.Type = "word2vec"
	if _, err := buildSession(cfg, nil); err == nil {
		t.Fatalf("expected error for unknown embedder")
	}
}
