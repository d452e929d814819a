package vectorstore

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

var vecMagic = [4]byte{'F', 'S', 'V', 'I'}

const vecVersion uint32 = 1

// maxDimension bounds header dimensions read from disk.
const maxDimension = 1 << 16

var (
	// ErrBadFormat is wrapped when an artifact is truncated or not an index file.
	ErrBadFormat = errors.New("bad index format")
	// ErrDimensionMismatch is wrapped when a stored dimension differs from the expected one.
	ErrDimensionMismatch = errors.New("dimension mismatch")
)

// WriteVectors encodes vecs as: magic, version, dim, count, then count*dim
// float32 values, all little-endian.
func WriteVectors(w io.Writer, dim int, vecs [][]float32) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(vecMagic[:]); err != nil {
		return err
	}
	for _, v := range []uint32{vecVersion, uint32(dim), uint32(len(vecs))} {
		if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	buf := make([]byte, 4*dim)
	for i, vec := range vecs {
		if len(vec) != dim {
			return fmt.Errorf("vector %d has dimension %d, want %d", i, len(vec), dim)
		}
		for j, f := range vec {
			binary.LittleEndian.PutUint32(buf[j*4:], math.Float32bits(f))
		}
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadVectors decodes a stream written by WriteVectors. When wantDim is
// positive the header dimension must equal it; it is checked before any
// vector buffer is allocated.
func ReadVectors(r io.Reader, wantDim int) (int, [][]float32, error) {
	br := bufio.NewReader(r)
	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return 0, nil, fmt.Errorf("%w: header: %v", ErrBadFormat, err)
	}
	if magic != vecMagic {
		return 0, nil, fmt.Errorf("%w: magic %q", ErrBadFormat, magic[:])
	}
	var hdr [3]uint32
	if err := binary.Read(br, binary.LittleEndian, &hdr); err != nil {
		return 0, nil, fmt.Errorf("%w: header: %v", ErrBadFormat, err)
	}
	version, dim, count := hdr[0], int(hdr[1]), int(hdr[2])
	if version != vecVersion {
		return 0, nil, fmt.Errorf("%w: version %d", ErrBadFormat, version)
	}
	if dim <= 0 || dim > maxDimension {
		return 0, nil, fmt.Errorf("%w: dimension %d", ErrBadFormat, dim)
	}
	if wantDim > 0 && dim != wantDim {
		return 0, nil, fmt.Errorf("%w: stored dimension %d, expected %d", ErrDimensionMismatch, dim, wantDim)
	}
	vecs := make([][]float32, 0, min(count, 1<<16))
	buf := make([]byte, 4*dim)
	for i := 0; i < count; i++ {
		if _, err := io.ReadFull(br, buf); err != nil {
			return 0, nil, fmt.Errorf("%w: vector %d: %v", ErrBadFormat, i, err)
		}
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[j*4:]))
		}
		vecs = append(vecs, vec)
	}
	return dim, vecs, nil
}

// WriteFileAtomic writes through a temp file in the same directory and renames it into place.
func WriteFileAtomic(path string, write func(w io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
