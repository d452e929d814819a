package vectorstore

import "finsight/internal/domain"

// Storage holds vectors and their metadata in lockstep and serves
// brute-force similarity search over them.
type Storage interface {
	Dimension() int
	Len() int
	Add(vectors [][]float32, chunks []domain.Chunk) error
	Search(query []float32, topK int) ([]domain.RetrievalResult, error)
	GetByID(chunkID int) (domain.IndexEntry, bool)
	Reset()
	Save(dir string) error
	Load(dir string) error
}

// MetadataCodec reads and writes the metadata artifact of a saved index.
type MetadataCodec interface {
	FileName() string
	Write(path string, entries []domain.IndexEntry) error
	Read(path string) ([]domain.IndexEntry, error)
}

// VectorsFile is the name of the binary vector artifact inside an index directory.
const VectorsFile = "index.vec"
