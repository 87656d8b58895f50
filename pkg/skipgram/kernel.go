package skipgram

import (
	"fmt"

	"github.com/talnish/iiswc21-rwalk/pkg/vocab"
)

const (
	KernelGo   = "go"
	KernelBLAS = "blas"
	KernelSIMD = "simd"
)

// Model is the shared training state a kernel operates on.
type Model struct {
	Config Config
	Words  []vocab.Word
	// Syn0 is the input layer and becomes the embedding matrix.
	Syn0 *Matrix
	// Syn1 is the hierarchical softmax output layer, nil when unused.
	Syn1 *Matrix
	// Syn1Neg is the negative sampling output layer, nil when unused.
	Syn1Neg *Matrix
	Table   []int32
}

// Kernel runs the per-sentence parameter updates. Execute is called
// concurrently with distinct thread ids.
type Kernel interface {
	Init(m *Model) error
	Execute(threadID int, alpha float32, batch [][]int32) error
	Results() *Matrix
	Cleanup()
}

// kernelCatalog maps kernel names to per-worker ops constructors.
var kernelCatalog = map[string]func(dim int) vectorOps{
	KernelGo:   func(int) vectorOps { return goOps{} },
	KernelBLAS: func(int) vectorOps { return blasOps{} },
	KernelSIMD: func(dim int) vectorOps { return &simdOps{scratch: make([]float32, dim)} },
}

// NewKernel returns the named kernel, or ErrAcceleratorUnavailable when the
// name is unknown or the CPU lacks the required instructions.
func NewKernel(name string) (Kernel, error) {
	newOps, ok := kernelCatalog[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown kernel %q", ErrAcceleratorUnavailable, name)
	}
	if name == KernelSIMD && !SIMDSupported() {
		return nil, fmt.Errorf("%w: %s kernel needs AVX2 and FMA3", ErrAcceleratorUnavailable, name)
	}
	return &cpuKernel{name: name, newOps: newOps}, nil
}

// threadState is the private scratch of one worker.
type threadState struct {
	ops   vectorOps
	neu1  []float32
	neu1e []float32
	next  uint64
}

type cpuKernel struct {
	name    string
	newOps  func(dim int) vectorOps
	model   *Model
	threads []*threadState
}

func (k *cpuKernel) Init(m *Model) error {
	if m == nil || m.Syn0 == nil {
		return fmt.Errorf("%w: missing model", ErrKernelState)
	}
	dim := m.Config.Dimension
	k.model = m
	k.threads = make([]*threadState, m.Config.Threads)
	for i := range k.threads {
		k.threads[i] = &threadState{
			ops:   k.newOps(dim),
			neu1:  make([]float32, dim),
			neu1e: make([]float32, dim),
			next:  uint64(i),
		}
	}
	return nil
}

func (k *cpuKernel) Execute(threadID int, alpha float32, batch [][]int32) error {
	if k.model == nil {
		return ErrKernelState
	}
	if threadID < 0 || threadID >= len(k.threads) {
		return fmt.Errorf("%w: thread %d of %d", ErrKernelState, threadID, len(k.threads))
	}
	st := k.threads[threadID]
	for _, sen := range batch {
		for pos := range sen {
			if k.model.Config.CBOW {
				k.cbow(st, alpha, sen, pos)
			} else {
				k.skipGram(st, alpha, sen, pos)
			}
		}
	}
	return nil
}

func (k *cpuKernel) Results() *Matrix {
	if k.model == nil {
		return nil
	}
	return k.model.Syn0
}

func (k *cpuKernel) Cleanup() {
	k.threads = nil
}

// shrink draws the random window reduction b in [0, window).
func (st *threadState) shrink(window int) int {
	st.next = lcg(st.next)
	return int(st.next % uint64(window))
}

func (k *cpuKernel) skipGram(st *threadState, alpha float32, sen []int32, pos int) {
	m := k.model
	window := m.Config.Window
	b := st.shrink(window)
	for a := b; a < window*2+1-b; a++ {
		if a == window {
			continue
		}
		c := pos - window + a
		if c < 0 || c >= len(sen) {
			continue
		}
		l1 := m.Syn0.Row(int(sen[c]))
		clear(st.neu1e)
		k.output(st, alpha, sen[pos], l1)
		st.ops.Axpy(1, st.neu1e, l1)
	}
}

func (k *cpuKernel) cbow(st *threadState, alpha float32, sen []int32, pos int) {
	m := k.model
	window := m.Config.Window
	b := st.shrink(window)
	clear(st.neu1)
	clear(st.neu1e)

	cw := 0
	for a := b; a < window*2+1-b; a++ {
		if c := pos - window + a; a != window && c >= 0 && c < len(sen) {
			st.ops.Axpy(1, m.Syn0.Row(int(sen[c])), st.neu1)
			cw++
		}
	}
	if cw == 0 {
		return
	}
	inv := 1 / float32(cw)
	for i := range st.neu1 {
		st.neu1[i] *= inv
	}

	k.output(st, alpha, sen[pos], st.neu1)
	for a := b; a < window*2+1-b; a++ {
		if c := pos - window + a; a != window && c >= 0 && c < len(sen) {
			st.ops.Axpy(1, st.neu1e, m.Syn0.Row(int(sen[c])))
		}
	}
}

// output trains the output layers to predict word from the hidden vector h,
// accumulating the gradient for h into st.neu1e.
func (k *cpuKernel) output(st *threadState, alpha float32, word int32, h []float32) {
	m := k.model
	ops := st.ops

	if m.Config.UseHS() {
		w := &m.Words[word]
		for d, row := range w.Path {
			l2 := m.Syn1.Row(int(row))
			f := ops.Dot(h, l2)
			if f <= -MaxExp || f >= MaxExp {
				continue
			}
			g := (1 - float32(w.Code[d]) - sigmoid(f)) * alpha
			ops.Axpy(g, l2, st.neu1e)
			ops.Axpy(g, h, l2)
		}
	}

	if m.Config.Negative > 0 {
		for d := 0; d <= m.Config.Negative; d++ {
			target, label := word, float32(1)
			if d > 0 {
				st.next = lcg(st.next)
				target = m.Table[(st.next>>16)%uint64(len(m.Table))]
				if target == 0 {
					target = int32(st.next%uint64(len(m.Words)-1)) + 1
				}
				if target == word {
					continue
				}
				label = 0
			}
			l2 := m.Syn1Neg.Row(int(target))
			f := ops.Dot(h, l2)
			var g float32
			switch {
			case f > MaxExp:
				g = (label - 1) * alpha
			case f < -MaxExp:
				g = label * alpha
			default:
				g = (label - sigmoid(f)) * alpha
			}
			ops.Axpy(g, l2, st.neu1e)
			ops.Axpy(g, h, l2)
		}
	}
}
