package vectorstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"finsight/internal/domain"
)

func TestVectorsRoundTrip(t *testing.T) {
	vecs := [][]float32{{0.6, 0.8, 0}, {0, -1, 0}}
	var buf bytes.Buffer
	if err := WriteVectors(&buf, 3, vecs); err != nil {
		t.Fatalf("WriteVectors failed: %v", err)
	}
	if buf.Len() != 16+2*3*4 {
		t.Fatalf("encoded size = %d", buf.Len())
	}
	dim, got, err := ReadVectors(&buf, 3)
	if err != nil {
		t.Fatalf("ReadVectors failed: %v", err)
	}
	if dim != 3 || !reflect.DeepEqual(got, vecs) {
		t.Fatalf("got dim %d vecs %v", dim, got)
	}
}

func TestReadVectorsRejectsGarbage(t *testing.T) {
	if _, _, err := ReadVectors(bytes.NewReader([]byte("nope, not an index")), 0); !errors.Is(err, ErrBadFormat) {
		t.Fatalf("expected ErrBadFormat, got %v", err)
	}
	var buf bytes.Buffer
	_ = WriteVectors(&buf, 2, [][]float32{{1, 0}, {0, 1}})
	truncated := buf.Bytes()[:buf.Len()-3]
	if _, _, err := ReadVectors(bytes.NewReader(truncated), 2); !errors.Is(err, ErrBadFormat) {
		t.Fatalf("expected ErrBadFormat for truncated file, got %v", err)
	}
}

func header(dim, count uint32) []byte {
	b := []byte("FSVI")
	for _, v := range []uint32{1, dim, count} {
		b = binary.LittleEndian.AppendUint32(b, v)
	}
	return b
}

func TestReadVectorsRejectsOversizedDimension(t *testing.T) {
	if _, _, err := ReadVectors(bytes.NewReader(header(0x7fffffff, 1)), 0); !errors.Is(err, ErrBadFormat) {
		t.Fatalf("expected ErrBadFormat for huge dimension, got %v", err)
	}
	if _, _, err := ReadVectors(bytes.NewReader(header(0x7fffffff, 1)), 384); !errors.Is(err, ErrBadFormat) {
		t.Fatalf("expected ErrBadFormat for huge dimension with expected dim, got %v", err)
	}
}

func TestReadVectorsRejectsUnexpectedDimension(t *testing.T) {
	// the header alone is enough to reject; no vector data follows
	_, _, err := ReadVectors(bytes.NewReader(header(512, 1000)), 384)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestJSONCodec(t *testing.T) {
	path := filepath.Join(t.TempDir(), JSONCodec{}.FileName())
	entries := []domain.IndexEntry{{ChunkID: 0, Page: 1, Text: "Revenue: $2.4B"}, {ChunkID: 1, Page: 2, Text: "\"quoted\"\nline"}}
	if err := (JSONCodec{}).Write(path, entries); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	got, err := JSONCodec{}.Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !reflect.DeepEqual(got, entries) {
		t.Fatalf("got %+v", got)
	}
}
