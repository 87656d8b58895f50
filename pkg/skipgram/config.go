// Package skipgram trains node embeddings from a walk corpus with the
// skip-gram (or CBOW) model, using hierarchical softmax over Huffman codes or
// negative sampling. Workers update the shared matrices without locks.
package skipgram

import (
	"errors"
	"fmt"
	"runtime"
)

const (
	// MaxSentenceLength caps the words kept per sentence.
	MaxSentenceLength = 1000
	// BatchSentences is the number of sentences handed to a kernel at once.
	BatchSentences = 16
	// DefaultTableSize is the size of the negative sampling table.
	DefaultTableSize = 100_000_000
	// alphaRefresh is how many words a worker processes between
	// learning rate updates.
	alphaRefresh = 10_000
	// minAlphaRatio bounds the decayed learning rate from below.
	minAlphaRatio = 0.0001
)

var (
	ErrInvalidConfig          = errors.New("skipgram: invalid configuration")
	ErrAcceleratorUnavailable = errors.New("skipgram: accelerator unavailable")
	ErrNoCodes                = errors.New("skipgram: vocabulary has no huffman codes")
	ErrEmptyVocabulary        = errors.New("skipgram: vocabulary is empty")
	ErrKernelState            = errors.New("skipgram: kernel used outside Init/Cleanup")
)

// Config holds the training hyperparameters.
type Config struct {
	Dimension    int     `yaml:"dimension"`
	Window       int     `yaml:"window"`
	Epochs       int     `yaml:"epochs"`
	Sample       float64 `yaml:"sample"`
	Negative     int     `yaml:"negative"`
	HS           bool    `yaml:"hs"`
	Threads      int     `yaml:"threads"`
	LearningRate float32 `yaml:"learning_rate"`
	CBOW         bool    `yaml:"cbow"`
	Kernel       string  `yaml:"kernel"`
	TableSize    int     `yaml:"table_size"`
	// ArenaDir, when set, places the parameter matrices in memory-mapped
	// files under this directory instead of the heap.
	ArenaDir string `yaml:"arena_dir"`
}

// DefaultConfig returns the word2vec defaults used for walk corpora.
func DefaultConfig() Config {
	return Config{
		Dimension:    128,
		Window:       5,
		Epochs:       5,
		Sample:       1e-3,
		Negative:     5,
		Threads:      runtime.GOMAXPROCS(0),
		LearningRate: 0.025,
		Kernel:       KernelGo,
		TableSize:    DefaultTableSize,
	}
}

// UseHS reports whether hierarchical softmax is active. It is implied when
// negative sampling is disabled.
func (c Config) UseHS() bool {
	return c.HS || c.Negative == 0
}

func (c Config) Validate() error {
	switch {
	case c.Dimension <= 0:
		return fmt.Errorf("%w: dimension must be positive, got %d", ErrInvalidConfig, c.Dimension)
	case c.Window <= 0:
		return fmt.Errorf("%w: window must be positive, got %d", ErrInvalidConfig, c.Window)
	case c.Epochs <= 0:
		return fmt.Errorf("%w: epochs must be positive, got %d", ErrInvalidConfig, c.Epochs)
	case c.Threads <= 0:
		return fmt.Errorf("%w: threads must be positive, got %d", ErrInvalidConfig, c.Threads)
	case c.Negative < 0:
		return fmt.Errorf("%w: negative must not be negative, got %d", ErrInvalidConfig, c.Negative)
	case c.Sample < 0:
		return fmt.Errorf("%w: sample must not be negative, got %g", ErrInvalidConfig, c.Sample)
	case c.LearningRate <= 0:
		return fmt.Errorf("%w: learning rate must be positive, got %g", ErrInvalidConfig, c.LearningRate)
	case c.Negative > 0 && c.TableSize <= 0:
		return fmt.Errorf("%w: table size must be positive with negative sampling", ErrInvalidConfig)
	}
	return nil
}
