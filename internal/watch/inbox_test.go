package watch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"finsight/internal/domain"
)

type fakeExtractor struct{}

func (fakeExtractor) Extract(path string) ([]domain.Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return []domain.Page{{Number: 1, Text: string(data)}}, nil
}

type countingIngester struct {
	mu    sync.Mutex
	texts []string
}

func (c *countingIngester) Ingest(_ context.Context, pages []domain.Page) (domain.IngestResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, pages[0].Text)
	return domain.IngestResult{TotalPages: len(pages), TotalChunks: 1}, nil
}

func TestInboxIngestsSettledPDF(t *testing.T) {
	dir := t.TempDir()
	ing := &countingIngester{}
	done := make(chan string, 4)
	in := &Inbox{
		Dir:       dir,
		Debounce:  50 * time.Millisecond,
		Extractor: fakeExtractor{},
		Ingester:  ing,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		OnIngest:  func(path string, _ domain.IngestResult) { done <- path },
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- in.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	target := filepath.Join(dir, "annual.pdf")
	if err := os.WriteFile(target, []byte("annual report"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case got := <-done:
		if got != target {
			t.Fatalf("ingested %s, want %s", got, target)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("pdf was not ingested")
	}
	cancel()
	if err := <-errc; err != nil {
		t.Fatalf("Run returned %v", err)
	}
	ing.mu.Lock()
	defer ing.mu.Unlock()
	if len(ing.texts) != 1 || ing.texts[0] != "annual report" {
		t.Fatalf("ingested texts = %q", ing.texts)
	}
}

func TestInboxMissingDir(t *testing.T) {
	in := &Inbox{Dir: filepath.Join(t.TempDir(), "absent"), Extractor: fakeExtractor{}, Ingester: &countingIngester{}}
	if err := in.Run(context.Background()); err == nil {
		t.Fatalf("expected error for missing dir")
	}
}

func TestPendingSettlesOnlyLatestGeneration(t *testing.T) {
	p := newPending()
	defer p.stopAll()
	noop := func(settledFile) {}
	first := p.touch("a.pdf", time.Hour, noop)
	second := p.touch("a.pdf", time.Hour, noop)

	// a timer that fired before the second write must not settle the file
	if p.settle(settledFile{path: "a.pdf", gen: first}) {
		t.Fatalf("stale generation settled")
	}
	if !p.settle(settledFile{path: "a.pdf", gen: second}) {
		t.Fatalf("latest generation did not settle")
	}
	if p.settle(settledFile{path: "a.pdf", gen: second}) {
		t.Fatalf("path settled twice")
	}
}

func TestPendingRearmsAfterFire(t *testing.T) {
	p := newPending()
	defer p.stopAll()
	fired := make(chan settledFile, 4)
	fire := func(f settledFile) { fired <- f }

	p.touch("a.pdf", time.Millisecond, fire)
	stale := <-fired
	// write arrives after the timer fired but before the loop settled it
	p.touch("a.pdf", 10*time.Millisecond, fire)
	if p.settle(stale) {
		t.Fatalf("expired timer settled a file that changed again")
	}
	select {
	case f := <-fired:
		if !p.settle(f) {
			t.Fatalf("new timer did not settle")
		}
	case <-time.After(time.Second):
		t.Fatalf("new timer never fired")
	}
	select {
	case f := <-fired:
		t.Fatalf("unexpected extra fire %+v", f)
	case <-time.After(30 * time.Millisecond):
	}
}
