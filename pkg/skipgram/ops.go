package skipgram

import (
	"github.com/klauspost/cpuid/v2"
	"github.com/viterin/vek/vek32"
	"gonum.org/v1/gonum/blas/blas32"
)

// vectorOps are the two primitives every update is built from. One instance
// is owned by one worker.
type vectorOps interface {
	Dot(x, y []float32) float32
	// Axpy computes y += a*x.
	Axpy(a float32, x, y []float32)
}

// goOps is the reference implementation.
type goOps struct{}

func (goOps) Dot(x, y []float32) float32 {
	var sum float32
	for i := range x {
		sum += x[i] * y[i]
	}
	return sum
}

func (goOps) Axpy(a float32, x, y []float32) {
	for i := range x {
		y[i] += a * x[i]
	}
}

type blasOps struct{}

func (blasOps) Dot(x, y []float32) float32 {
	return blas32.Dot(
		blas32.Vector{N: len(x), Inc: 1, Data: x},
		blas32.Vector{N: len(y), Inc: 1, Data: y},
	)
}

func (blasOps) Axpy(a float32, x, y []float32) {
	blas32.Axpy(a,
		blas32.Vector{N: len(x), Inc: 1, Data: x},
		blas32.Vector{N: len(y), Inc: 1, Data: y},
	)
}

// simdOps uses vek32, which has no fused axpy, so the scaled operand goes
// through a scratch row.
type simdOps struct {
	scratch []float32
}

func (s *simdOps) Dot(x, y []float32) float32 {
	return vek32.Dot(x, y)
}

func (s *simdOps) Axpy(a float32, x, y []float32) {
	tmp := s.scratch[:len(x)]
	vek32.MulNumber_Into(tmp, x, a)
	vek32.Add_Inplace(y, tmp)
}

// SIMDSupported reports whether the CPU can run the simd kernel.
func SIMDSupported() bool {
	return cpuid.CPU.Has(cpuid.AVX2) && cpuid.CPU.Has(cpuid.FMA3)
}
