package sqlite

import (
	"path/filepath"
	"reflect"
	"testing"

	"finsight/internal/domain"
)

func TestCodecRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), Codec{}.FileName())
	entries := []domain.IndexEntry{
		{ChunkID: 0, Page: 1, Text: "Consolidated balance sheet"},
		{ChunkID: 1, Page: 1, Text: "Total assets 12,400"},
		{ChunkID: 2, Page: 4, Text: "Risk factors; O'Brien & Co."},
	}
	if err := (Codec{}).Write(path, entries); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	// overwrite replaces rather than appends
	if err := (Codec{}).Write(path, entries); err != nil {
		t.Fatalf("second Write failed: %v", err)
	}
	got, err := Codec{}.Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !reflect.DeepEqual(got, entries) {
		t.Fatalf("got %+v", got)
	}
}

func TestReadMissingFile(t *testing.T) {
	if _, err := (Codec{}).Read(filepath.Join(t.TempDir(), "missing.db")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
