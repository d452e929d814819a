// Package watch ingests PDFs dropped into an inbox directory.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"

	"finsight/internal/domain"
	"finsight/internal/pdf"
)

// Ingester receives the pages of each settled file.
type Ingester interface {
	Ingest(ctx context.Context, pages []domain.Page) (domain.IngestResult, error)
}

// Inbox watches a directory and ingests each PDF once it stops changing for
// the debounce interval. The newest file replaces the current document.
type Inbox struct {
	Dir       string
	Debounce  time.Duration
	Extractor domain.PageExtractor
	Ingester  Ingester
	Logger    *slog.Logger
	// OnIngest, if set, is called after every successful ingestion.
	OnIngest func(path string, res domain.IngestResult)
}

// Run blocks until ctx is cancelled or the watcher fails.
func (in *Inbox) Run(ctx context.Context) error {
	logger := in.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounce := in.Debounce
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(in.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", in.Dir, err)
	}
	logger.Info("watching inbox", "dir", in.Dir)

	settled := make(chan settledFile)
	pending := newPending()
	defer pending.stopAll()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !pdf.IsPDF(ev.Name) || (!ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write)) {
				continue
			}
			pending.touch(ev.Name, debounce, func(f settledFile) {
				select {
				case settled <- f:
				case <-ctx.Done():
				}
			})
		case f := <-settled:
			if !pending.settle(f) {
				continue
			}
			in.ingest(ctx, logger, f.path)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "err", err)
		}
	}
}

func (in *Inbox) ingest(ctx context.Context, logger *slog.Logger, path string) {
	pages, err := in.Extractor.Extract(path)
	if err != nil {
		logger.Warn("inbox file skipped", "file", path, "err", err)
		return
	}
	res, err := in.Ingester.Ingest(ctx, pages)
	if err != nil {
		logger.Error("inbox ingest failed", "file", path, "err", err)
		return
	}
	logger.Info("inbox file ingested", "file", path, "pages", res.TotalPages, "chunks", res.TotalChunks)
	if in.OnIngest != nil {
		in.OnIngest(path, res)
	}
}

type settledFile struct {
	path string
	gen  uint64
}

// pending tracks one debounce timer per path. Every event starts a new
// generation; only the timer of the latest generation may settle a path.
type pending struct {
	gen    uint64
	latest map[string]uint64
	timers map[string]*time.Timer
}

func newPending() *pending {
	return &pending{latest: map[string]uint64{}, timers: map[string]*time.Timer{}}
}

func (p *pending) touch(path string, after time.Duration, fire func(settledFile)) uint64 {
	p.gen++
	f := settledFile{path: path, gen: p.gen}
	p.latest[path] = f.gen
	if t, ok := p.timers[path]; ok {
		t.Stop()
	}
	p.timers[path] = time.AfterFunc(after, func() { fire(f) })
	return f.gen
}

// settle reports whether f is the latest generation for its path and, if so,
// forgets the path.
func (p *pending) settle(f settledFile) bool {
	if g, ok := p.latest[f.path]; !ok || g != f.gen {
		return false
	}
	delete(p.latest, f.path)
	delete(p.timers, f.path)
	return true
}

func (p *pending) stopAll() {
	for _, t := range p.timers {
		t.Stop()
	}
}
