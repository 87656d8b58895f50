package skipgram

import (
	"github.com/talnish/iiswc21-rwalk/pkg/storage/mmap"
)

// Matrix is a dense row-major float32 matrix whose rows start on 128-byte
// boundaries. Stride is Dim rounded up to the alignment.
type Matrix struct {
	Rows   int
	Dim    int
	Stride int
	Data   []float32
}

// Row returns row i, sharing memory with the matrix.
func (m *Matrix) Row(i int) []float32 {
	off := i * m.Stride
	return m.Data[off : off+m.Dim : off+m.Dim]
}

// newMatrix allocates a zeroed matrix from arena, or from the heap when arena
// is nil.
func newMatrix(arena *mmap.MatrixArena, name string, rows, dim int) (*Matrix, error) {
	stride := mmap.AlignedStride(dim)
	var data []float32
	if arena != nil {
		var err error
		data, err = arena.Alloc(name, rows, stride)
		if err != nil {
			return nil, err
		}
	} else {
		data = mmap.AlignedFloat32(rows * stride)
	}
	return &Matrix{Rows: rows, Dim: dim, Stride: stride, Data: data}, nil
}

// randomize fills the input layer with small values in (-0.5/dim, 0.5/dim).
func (m *Matrix) randomize(seed uint64) {
	next := seed
	for r := 0; r < m.Rows; r++ {
		row := m.Row(r)
		for i := range row {
			next = lcg(next)
			row[i] = (float32(next&0xFFFF)/65536 - 0.5) / float32(m.Dim)
		}
	}
}
