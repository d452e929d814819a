package vectorstore

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"finsight/internal/domain"
)

// JSONCodec stores metadata as a JSON array of entries in chunk order.
type JSONCodec struct{}

func (JSONCodec) FileName() string { return "index.meta.json" }

func (JSONCodec) Write(path string, entries []domain.IndexEntry) error {
	if entries == nil {
		entries = []domain.IndexEntry{}
	}
	return WriteFileAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	})
}

func (JSONCodec) Read(path string) ([]domain.IndexEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var entries []domain.IndexEntry
	if err := json.NewDecoder(f).Decode(&entries); err != nil {
		return nil, fmt.Errorf("%w: metadata: %v", ErrBadFormat, err)
	}
	return entries, nil
}
