package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"finsight/internal/domain"
	"finsight/internal/vectorstore"
)

// Options tunes a Session.
type Options struct {
	TopK             int
	BatchSize        int
	HistoryLimit     int
	HistoryWindow    int
	SummarySentences int
}

// DefaultOptions returns the defaults used by the HTTP API and the terminal UI.
func DefaultOptions() Options {
	return Options{TopK: 6, BatchSize: 64, HistoryLimit: 20, HistoryWindow: 10, SummarySentences: 3}
}

// Deps are the collaborators a Session orchestrates. Summarizer and Logger are optional.
type Deps struct {
	Chunker    domain.Chunker
	Embedder   domain.Embedder
	Index      vectorstore.Storage
	Answerer   domain.Answerer
	Summarizer domain.Summarizer
	Logger     *slog.Logger
}

// Status describes what a session currently holds.
type Status struct {
	SessionID   string `json:"session"`
	Ingested    bool   `json:"ingested"`
	TotalPages  int    `json:"pages"`
	TotalChunks int    `json:"chunks"`
	Summary     string `json:"summary,omitempty"`
}

// Answer is the result of Ask. Sources are set even when answer generation fails.
type Answer struct {
	Text    string                   `json:"answer"`
	Sources []domain.RetrievalResult `json:"chunks"`
}

// Session owns the retrieval pipeline for one document at a time.
// Ingest and Reset take the write lock; queries share the read lock.
type Session struct {
	id         string
	chunker    domain.Chunker
	embedder   domain.Embedder
	index      vectorstore.Storage
	answerer   domain.Answerer
	summarizer domain.Summarizer
	history    *History
	logger     *slog.Logger
	tracer     trace.Tracer
	opts       Options

	mu       sync.RWMutex
	ingested bool
	pages    int
	summary  string
}

// NewSession wires a session. The embedder and index must agree on dimension.
func NewSession(deps Deps, opts Options) (*Session, error) {
	if deps.Chunker == nil || deps.Embedder == nil || deps.Index == nil || deps.Answerer == nil {
		return nil, fmt.Errorf("session: chunker, embedder, index and answerer are required")
	}
	if deps.Embedder.Dimension() != deps.Index.Dimension() {
		return nil, domain.NewValidationError("dimension", deps.Embedder.Dimension(),
			fmt.Sprintf("embedder %s does not match index dimension %d", deps.Embedder.Name(), deps.Index.Dimension()))
	}
	def := DefaultOptions()
	if opts.TopK <= 0 {
		opts.TopK = def.TopK
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = def.BatchSize
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = def.HistoryWindow
	}
	if opts.SummarySentences <= 0 {
		opts.SummarySentences = def.SummarySentences
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	return &Session{
		id:         id,
		chunker:    deps.Chunker,
		embedder:   deps.Embedder,
		index:      deps.Index,
		answerer:   deps.Answerer,
		summarizer: deps.Summarizer,
		history:    NewHistory(opts.HistoryLimit),
		logger:     logger.With("session", id),
		tracer:     otel.Tracer("finsight/service"),
		opts:       opts,
	}, nil
}

func (s *Session) ID() string { return s.id }

// Ingest replaces the session's document with pages. Chunking and embedding
// run before the index is touched, so a failure there keeps the previous
// document queryable; a failure while adding leaves the session empty.
func (s *Session) Ingest(ctx context.Context, pages []domain.Page) (domain.IngestResult, error) {
	ctx, span := s.tracer.Start(ctx, "session.Ingest", trace.WithAttributes(attribute.Int("pages", len(pages))))
	defer span.End()
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.ingest(ctx, pages)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("ingest failed", "pages", len(pages), "err", err)
		return domain.IngestResult{}, err
	}
	span.SetAttributes(attribute.Int("chunks", res.TotalChunks))
	s.logger.Info("document ingested", "pages", res.TotalPages, "chunks", res.TotalChunks, "elapsed", time.Since(start))
	return res, nil
}

func (s *Session) ingest(ctx context.Context, pages []domain.Page) (domain.IngestResult, error) {
	chunks, err := s.chunker.Chunk(pages)
	if err != nil {
		return domain.IngestResult{}, fmt.Errorf("chunk: %w", err)
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors := make([][]float32, 0, len(chunks))
	for b := 0; b < len(texts); b += s.opts.BatchSize {
		batch := texts[b:min(b+s.opts.BatchSize, len(texts))]
		vecs, err := s.embedder.EmbedBatch(ctx, batch)
		if err != nil {
			return domain.IngestResult{}, fmt.Errorf("embed chunks %d-%d: %w", b, b+len(batch)-1, err)
		}
		if len(vecs) != len(batch) {
			return domain.IngestResult{}, &domain.EmbeddingError{Op: "batch", Err: fmt.Errorf("got %d vectors for %d texts", len(vecs), len(batch))}
		}
		vectors = append(vectors, vecs...)
		s.logger.Debug("embedded batch", "from", b, "count", len(batch), "total", len(texts))
	}

	var summary string
	if s.summarizer != nil {
		if summary, err = s.summarizer.Summarize(pages, s.opts.SummarySentences); err != nil {
			s.logger.Warn("summary failed", "err", err)
			summary = ""
		}
	}

	s.index.Reset()
	s.history.Clear()
	s.ingested = false
	s.pages = 0
	s.summary = ""
	if err := s.index.Add(vectors, chunks); err != nil {
		return domain.IngestResult{}, fmt.Errorf("index: %w", err)
	}
	s.ingested = true
	s.pages = len(pages)
	s.summary = summary
	return domain.IngestResult{TotalPages: len(pages), TotalChunks: len(chunks), Summary: summary}, nil
}

// Query embeds text and returns the topK closest chunks.
func (s *Session) Query(ctx context.Context, text string, topK int) ([]domain.RetrievalResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.query(ctx, text, topK)
}

func (s *Session) query(ctx context.Context, text string, topK int) ([]domain.RetrievalResult, error) {
	ctx, span := s.tracer.Start(ctx, "session.Query", trace.WithAttributes(attribute.Int("top_k", topK)))
	defer span.End()
	if strings.TrimSpace(text) == "" {
		return nil, domain.NewValidationError("query", text, "cannot be empty")
	}
	if topK <= 0 {
		return nil, domain.NewValidationError("top_k", topK, "must be positive")
	}
	if !s.ingested {
		return nil, domain.ErrNothingIngested
	}
	vec, err := s.embedder.EmbedOne(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return s.index.Search(vec, topK)
}

// Ask retrieves the configured number of chunks, generates an answer with the
// recent history and records the exchange.
func (s *Session) Ask(ctx context.Context, question string) (Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results, err := s.query(ctx, question, s.opts.TopK)
	if err != nil {
		return Answer{}, err
	}
	text, err := s.answerer.Answer(ctx, question, results, s.history.Recent(s.opts.HistoryWindow))
	if err != nil {
		return Answer{Sources: results}, fmt.Errorf("generate answer: %w", err)
	}
	s.history.Append(
		domain.Message{Role: domain.RoleUser, Content: question},
		domain.Message{Role: domain.RoleAssistant, Content: text},
	)
	s.logger.Info("question answered", "top_k", s.opts.TopK, "sources", len(results))
	return Answer{Text: text, Sources: results}, nil
}

// Chunk looks up a stored chunk by id.
func (s *Session) Chunk(id int) (domain.IndexEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ingested {
		return domain.IndexEntry{}, domain.ErrNothingIngested
	}
	e, ok := s.index.GetByID(id)
	if !ok {
		return domain.IndexEntry{}, &domain.NotFoundError{Resource: "chunk", ID: strconv.Itoa(id)}
	}
	return e, nil
}

// Reset returns the session to its empty state. Repeated calls are no-ops.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ingested && s.index.Len() == 0 {
		return
	}
	s.index.Reset()
	s.history.Clear()
	s.ingested = false
	s.pages = 0
	s.summary = ""
	s.logger.Info("session reset")
}

// Save persists the current index into dir.
func (s *Session) Save(dir string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ingested {
		return domain.ErrNothingIngested
	}
	return s.index.Save(dir)
}

// Load restores a saved index from dir and makes it queryable.
func (s *Session) Load(dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.index.Load(dir); err != nil {
		return err
	}
	s.history.Clear()
	s.ingested = true
	s.pages = 0
	s.summary = ""
	s.logger.Info("index loaded", "dir", dir, "chunks", s.index.Len())
	return nil
}

// History returns a copy of the chat log.
func (s *Session) History() []domain.Message { return s.history.Recent(0) }

func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		SessionID:   s.id,
		Ingested:    s.ingested,
		TotalPages:  s.pages,
		TotalChunks: s.index.Len(),
		Summary:     s.summary,
	}
}
