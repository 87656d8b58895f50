// Package mmap provides 128-byte aligned float32 matrices for the trainer,
// either on the Go heap or backed by memory-mapped files so that very large
// parameter matrices do not have to live in anonymous memory.
package mmap

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"unsafe"
)

const (
	// Alignment is the byte boundary of every matrix returned by this package.
	Alignment = 128
	// FloatsPerAlignment is the number of float32 values per Alignment bytes.
	FloatsPerAlignment = Alignment / 4

	ArenaMagic   = 0x4D415752 // "RWAM"
	ArenaVersion = 1
	// ArenaHeaderSize keeps the payload aligned: mappings start on a page
	// boundary and the header is a whole number of Alignment blocks.
	ArenaHeaderSize = Alignment
)

var (
	// ErrBadShape is returned for non-positive matrix dimensions.
	ErrBadShape = errors.New("mmap: matrix dimensions must be positive")
	// ErrClosed is returned when allocating from a closed arena.
	ErrClosed = errors.New("mmap: arena is closed")
)

// AlignedStride rounds cols up to a whole number of alignment blocks.
func AlignedStride(cols int) int {
	return ((cols-1)/FloatsPerAlignment + 1) * FloatsPerAlignment
}

// AlignedFloat32 allocates n zeroed float32 values on the heap whose first
// element sits on an Alignment boundary.
func AlignedFloat32(n int) []float32 {
	if n <= 0 {
		return nil
	}
	buf := make([]float32, n+FloatsPerAlignment)
	addr := uintptr(unsafe.Pointer(&buf[0]))
	off := 0
	if rem := addr % Alignment; rem != 0 {
		off = int((Alignment - rem) / 4)
	}
	return buf[off : off+n : off+n]
}

// region is a single memory-mapped matrix file.
type region struct {
	name string
	file *os.File
	data []byte
}

// MatrixArena hands out file-backed matrices stored under dir.
type MatrixArena struct {
	mu      sync.Mutex
	dir     string
	regions []*region
	closed  bool
}

// NewMatrixArena creates dir if needed.
func NewMatrixArena(dir string) (*MatrixArena, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create arena dir: %w", err)
	}
	return &MatrixArena{dir: dir}, nil
}

// Alloc maps a fresh rows x cols float32 matrix in file "<name>.bin",
// truncating any previous content. The matrix starts zeroed.
func (a *MatrixArena) Alloc(name string, rows, cols int) ([]float32, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrBadShape, rows, cols)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, ErrClosed
	}

	fileName := filepath.Join(a.dir, name+".bin")
	file, err := os.OpenFile(fileName, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}

	size := ArenaHeaderSize + rows*cols*4
	if err := file.Truncate(int64(size)); err != nil {
		file.Close()
		return nil, err
	}

	data, err := mmapFile(file.Fd(), size)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("mmap %s: %w", fileName, err)
	}

	binary.LittleEndian.PutUint32(data[0:4], ArenaMagic)
	binary.LittleEndian.PutUint32(data[4:8], ArenaVersion)
	binary.LittleEndian.PutUint64(data[8:16], uint64(rows))
	binary.LittleEndian.PutUint64(data[16:24], uint64(cols))

	a.regions = append(a.regions, &region{name: name, file: file, data: data})
	return BytesToFloat32Slice(data[ArenaHeaderSize:], rows*cols), nil
}

// Dir returns the directory holding the matrix files.
func (a *MatrixArena) Dir() string { return a.dir }

// Close unmaps every matrix and closes the files. Slices returned by Alloc
// must not be used afterwards.
func (a *MatrixArena) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true

	var firstErr error
	for _, r := range a.regions {
		if err := munmapFile(r.data); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("munmap %s: %w", r.name, err)
		}
		if err := r.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.regions = nil
	return firstErr
}

// BytesToFloat32Slice casts a byte slice directly to a float32 slice without copying.
func BytesToFloat32Slice(b []byte, n int) []float32 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), n)
}
