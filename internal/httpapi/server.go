// Package httpapi exposes a session over HTTP+JSON.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"finsight/internal/domain"
	"finsight/internal/pdf"
	"finsight/internal/service"
)

// SessionPort is the subset of *service.Session the API needs.
type SessionPort interface {
	Ingest(ctx context.Context, pages []domain.Page) (domain.IngestResult, error)
	Ask(ctx context.Context, question string) (service.Answer, error)
	Chunk(id int) (domain.IndexEntry, error)
	Reset()
	Save(dir string) error
	History() []domain.Message
	Status() service.Status
}

// Config configures the API server.
type Config struct {
	UploadDir      string
	MaxUploadBytes int64
	GroqAvailable  bool
	CORSOrigin     string
	// StaticDir, when set, serves a frontend build with index.html fallback.
	StaticDir string
	// IndexDir, when set, receives a saved copy of the index after each upload.
	IndexDir string
}

// Server handles the /api routes.
type Server struct {
	session   SessionPort
	extractor domain.PageExtractor
	cfg       Config
	logger    *slog.Logger

	mu      sync.Mutex
	current string // stored file backing the ingested document
}

// NewServer creates a server. A nil logger uses slog.Default.
func NewServer(session SessionPort, extractor domain.PageExtractor, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 50 << 20
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "uploads"
	}
	if cfg.CORSOrigin == "" {
		cfg.CORSOrigin = "*"
	}
	return &Server{session: session, extractor: extractor, cfg: cfg, logger: logger}
}

// Handler returns the routed, instrumented handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/upload", s.handleUpload)
	mux.HandleFunc("POST /api/query", s.handleQuery)
	mux.HandleFunc("GET /api/chunk/{id}", s.handleChunk)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("POST /api/reset", s.handleReset)
	if s.cfg.StaticDir != "" {
		mux.Handle("GET /", s.staticHandler())
	}
	return s.instrument(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.session.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"groq_available": s.cfg.GroqAvailable,
		"session":        st.SessionID,
		"ingested":       st.Ingested,
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File exceeds %d MB limit", s.cfg.MaxUploadBytes>>20))
			return
		}
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()
	name := filepath.Base(strings.TrimSpace(hdr.Filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		writeError(w, http.StatusBadRequest, "No file selected")
		return
	}
	if !pdf.IsPDF(name) {
		writeError(w, http.StatusBadRequest, "Only PDF files are allowed")
		return
	}

	path, err := s.store(file, name)
	if err != nil {
		s.fail(w, "store upload", err)
		return
	}
	pages, err := s.extractor.Extract(path)
	if err != nil {
		s.discard(path)
		s.logger.Warn("pdf extraction failed", "file", name, "err", err)
		writeError(w, http.StatusUnprocessableEntity, "Could not read PDF: "+err.Error())
		return
	}
	res, err := s.session.Ingest(r.Context(), pages)
	if err != nil {
		s.discard(path)
		s.fail(w, "ingest", err)
		return
	}
	s.replaceCurrent(path)
	if s.cfg.IndexDir != "" {
		if err := s.session.Save(s.cfg.IndexDir); err != nil {
			s.logger.Warn("autosave failed", "dir", s.cfg.IndexDir, "err", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "success",
		"filename": name,
		"pages":    res.TotalPages,
		"chunks":   res.TotalChunks,
		"summary":  res.Summary,
	})
}

// store copies the upload under a unique name inside the upload directory.
func (s *Server) store(src io.Reader, name string) (string, error) {
	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(s.cfg.UploadDir, uuid.NewString()+"-"+name)
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(path)
		return "", err
	}
	return path, dst.Close()
}

func (s *Server) discard(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("remove upload failed", "file", path, "err", err)
	}
}

// replaceCurrent records path as the live document and drops the file it replaced.
func (s *Server) replaceCurrent(path string) {
	s.mu.Lock()
	prev := s.current
	s.current = path
	s.mu.Unlock()
	if prev != "" && prev != path {
		s.discard(prev)
	}
}

type queryRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	q := strings.TrimSpace(req.Query)
	if q == "" {
		writeError(w, http.StatusBadRequest, "Query cannot be empty")
		return
	}
	ans, err := s.session.Ask(r.Context(), q)
	if err != nil {
		if len(ans.Sources) > 0 {
			s.logger.Error("answer generation failed", "err", err)
			writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error(), "chunks": ans.Sources})
			return
		}
		s.fail(w, "query", err)
		return
	}
	if ans.Sources == nil {
		ans.Sources = []domain.RetrievalResult{}
	}
	writeJSON(w, http.StatusOK, ans)
}

func (s *Server) handleChunk(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid chunk id")
		return
	}
	entry, err := s.session.Chunk(id)
	if err != nil {
		s.fail(w, "chunk", err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	h := s.session.History()
	if h == nil {
		h = []domain.Message{}
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.session.Reset()
	s.mu.Lock()
	s.current = ""
	s.mu.Unlock()
	if err := clearDir(s.cfg.UploadDir); err != nil {
		s.fail(w, "clear uploads", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) staticHandler() http.Handler {
	files := http.FileServer(http.Dir(s.cfg.StaticDir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := filepath.Join(s.cfg.StaticDir, filepath.Clean("/"+r.URL.Path))
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			files.ServeHTTP(w, r)
			return
		}
		http.ServeFile(w, r, filepath.Join(s.cfg.StaticDir, "index.html"))
	})
}

// fail maps error kinds to status codes and logs unexpected failures.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	var nf *domain.NotFoundError
	switch {
	case errors.Is(err, domain.ErrNothingIngested):
		writeError(w, http.StatusBadRequest, "No document uploaded")
	case errors.As(err, &nf) && nf.Resource == "chunk":
		writeError(w, http.StatusNotFound, "Chunk not found")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrEmbedding):
		s.logger.Error(op+" failed", "err", err)
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.Error(op+" failed", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
