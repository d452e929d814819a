package memory

import (
	"cmp"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"finsight/internal/domain"
	"finsight/internal/vectorstore"
)

// Storage is an in-memory vector index using brute-force inner product.
// Vectors and entries are parallel slices; byID maps a chunk id to its position.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	codec     vectorstore.MetadataCodec
	vectors   [][]float32
	entries   []domain.IndexEntry
	byID      map[int]int
}

var _ vectorstore.Storage = (*Storage)(nil)

// Option configures a Storage.
type Option func(*Storage)

// WithMetadataCodec selects the metadata artifact format used by Save and Load.
func WithMetadataCodec(c vectorstore.MetadataCodec) Option {
	return func(s *Storage) { s.codec = c }
}

// NewStorage creates an empty index for vectors of the given dimension.
func NewStorage(dimension int, opts ...Option) (*Storage, error) {
	if dimension <= 0 {
		return nil, domain.NewValidationError("dimension", dimension, "must be positive")
	}
	s := &Storage{dimension: dimension, codec: vectorstore.JSONCodec{}, byID: map[int]int{}}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *Storage) Dimension() int { return s.dimension }

func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Add appends vectors and chunks in lockstep. The whole call is validated
// before anything is stored, so a failed Add leaves the index unchanged.
func (s *Storage) Add(vectors [][]float32, chunks []domain.Chunk) error {
	if len(vectors) != len(chunks) {
		return domain.NewValidationError("vectors", len(vectors), fmt.Sprintf("count does not match %d chunks", len(chunks)))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	last := -1
	if n := len(s.entries); n > 0 {
		last = s.entries[n-1].ChunkID
	}
	for i, v := range vectors {
		if len(v) != s.dimension {
			return domain.NewValidationError("dimension", len(v), fmt.Sprintf("vector %d, index expects %d", i, s.dimension))
		}
		if chunks[i].ID <= last {
			return domain.NewValidationError("chunk_id", chunks[i].ID, fmt.Sprintf("must be greater than %d", last))
		}
		last = chunks[i].ID
	}
	for i, v := range vectors {
		s.byID[chunks[i].ID] = len(s.entries)
		s.vectors = append(s.vectors, slices.Clone(v))
		s.entries = append(s.entries, chunks[i].Entry())
	}
	return nil
}

// Search ranks every stored vector by inner product with query. Ties keep
// the lower chunk id first. An empty index yields an empty result.
func (s *Storage) Search(query []float32, topK int) ([]domain.RetrievalResult, error) {
	if topK <= 0 {
		return nil, domain.NewValidationError("top_k", topK, "must be positive")
	}
	if len(query) != s.dimension {
		return nil, domain.NewValidationError("dimension", len(query), fmt.Sprintf("query, index expects %d", s.dimension))
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	scores := make([]float32, len(s.vectors))
	for i := range s.vectors {
		scores[i] = dot(s.vectors[i], query)
	}
	idxs := s.argsortDesc(scores)
	topK = min(topK, len(idxs))
	results := make([]domain.RetrievalResult, 0, topK)
	for _, j := range idxs[:topK] {
		results = append(results, domain.RetrievalResult{IndexEntry: s.entries[j], Score: scores[j]})
	}
	return results, nil
}

// GetByID returns the entry for chunkID, or false when it is not stored.
func (s *Storage) GetByID(chunkID int) (domain.IndexEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[chunkID]
	if !ok {
		return domain.IndexEntry{}, false
	}
	return s.entries[i], true
}

// Reset drops all vectors and entries. Calling it on an empty index is a no-op.
func (s *Storage) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors = nil
	s.entries = nil
	clear(s.byID)
}

// Save writes the vector artifact and the metadata artifact into dir.
func (s *Storage) Save(dir string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &domain.PersistenceError{Op: "save", Path: dir, Err: err}
	}
	vecPath := filepath.Join(dir, vectorstore.VectorsFile)
	err := vectorstore.WriteFileAtomic(vecPath, func(w io.Writer) error {
		return vectorstore.WriteVectors(w, s.dimension, s.vectors)
	})
	if err != nil {
		return &domain.PersistenceError{Op: "save", Path: vecPath, Err: err}
	}
	metaPath := filepath.Join(dir, s.codec.FileName())
	if err := s.codec.Write(metaPath, s.entries); err != nil {
		return &domain.PersistenceError{Op: "save", Path: metaPath, Err: err}
	}
	return nil
}

// Load replaces the index contents with the artifacts in dir. Nothing is
// replaced unless both artifacts are consistent with each other and with
// the configured dimension.
func (s *Storage) Load(dir string) error {
	vecPath := filepath.Join(dir, vectorstore.VectorsFile)
	f, err := os.Open(vecPath)
	if err != nil {
		return &domain.PersistenceError{Op: "load", Path: vecPath, Err: err}
	}
	_, vectors, err := vectorstore.ReadVectors(f, s.dimension)
	_ = f.Close()
	if err != nil {
		return &domain.PersistenceError{Op: "load", Path: vecPath, Err: err}
	}
	metaPath := filepath.Join(dir, s.codec.FileName())
	entries, err := s.codec.Read(metaPath)
	if err != nil {
		return &domain.PersistenceError{Op: "load", Path: metaPath, Err: err}
	}
	if len(entries) != len(vectors) {
		return &domain.PersistenceError{Op: "load", Path: metaPath, Err: fmt.Errorf("%w: %d entries for %d vectors", vectorstore.ErrBadFormat, len(entries), len(vectors))}
	}
	byID := make(map[int]int, len(entries))
	for i, e := range entries {
		if i > 0 && e.ChunkID <= entries[i-1].ChunkID {
			return &domain.PersistenceError{Op: "load", Path: metaPath, Err: fmt.Errorf("%w: chunk ids out of order at %d", vectorstore.ErrBadFormat, i)}
		}
		byID[e.ChunkID] = i
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors = vectors
	s.entries = entries
	s.byID = byID
	return nil
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// argsortDesc orders positions by score descending, then by chunk id ascending.
func (s *Storage) argsortDesc(scores []float32) []int {
	idxs := make([]int, len(scores))
	for i := range idxs {
		idxs[i] = i
	}
	slices.SortFunc(idxs, func(a, b int) int {
		if c := cmp.Compare(scores[b], scores[a]); c != 0 {
			return c
		}
		return cmp.Compare(s.entries[a].ChunkID, s.entries[b].ChunkID)
	})
	return idxs
}
