// Package vocab builds the frequency-ranked token table of a walk corpus.
//
// Tokens are stored in a slice of Word entries indexed through an
// open-addressed HashIndex. Slot 0 always holds the sentence boundary token
// (corpus.EndOfSentence). While streaming, the table is pruned whenever the
// number of entries exceeds MaxLoadFactor of the index capacity: entries seen
// at most minReduce times are dropped and minReduce grows by one. After the
// stream ends, entries are sorted by descending count, entries below MinCount
// are dropped, and the index is rebuilt.
package vocab

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/talnish/iiswc21-rwalk/pkg/corpus"
	"github.com/talnish/iiswc21-rwalk/pkg/huffman"
	"github.com/talnish/iiswc21-rwalk/pkg/metrics"
)

const (
	// DefaultHashSize is the default number of hash index slots.
	DefaultHashSize = 1 << 24
	// MinHashSize leaves room for the sentinel and at least one word.
	MinHashSize = 2
	// MaxLoadFactor is the occupancy that triggers a reduction pass.
	MaxLoadFactor = 0.7
)

// ErrFrozen is returned when adding tokens to a finalized vocabulary.
var ErrFrozen = errors.New("vocab: vocabulary is frozen")

// Word is one vocabulary entry. Code and Path are filled by AssignCodes.
type Word struct {
	Token string
	Count int64
	// Code is the Huffman code, root to leaf, one bit per byte.
	Code []byte
	// Path holds the output-layer row of every internal node on the way from
	// the root to this leaf; len(Path) == len(Code).
	Path []int32
}

// Options configures vocabulary construction.
type Options struct {
	// MinCount drops entries seen fewer times (the sentinel is exempt).
	MinCount int64
	// HashSize is the capacity of the hash index.
	HashSize int
}

// DefaultOptions keeps every token and uses DefaultHashSize slots.
func DefaultOptions() Options {
	return Options{MinCount: 1, HashSize: DefaultHashSize}
}

// Vocabulary is the token table of one training run. It is built by a single
// goroutine and is read-only once finalized.
type Vocabulary struct {
	Words []Word
	// TrainWords is the total count of all surviving entries.
	TrainWords int64
	// CorpusWords is the number of tokens streamed, before any pruning.
	CorpusWords int64

	opts       Options
	index      *HashIndex
	minReduce  int64
	reductions int
	frozen     bool
}

// New returns an empty vocabulary holding only the sentence boundary token.
func New(opts Options) *Vocabulary {
	if opts.HashSize <= 0 {
		opts.HashSize = DefaultHashSize
	}
	opts.HashSize = max(opts.HashSize, MinHashSize)
	v := &Vocabulary{
		Words:     []Word{{Token: corpus.EndOfSentence}},
		opts:      opts,
		index:     NewHashIndex(opts.HashSize),
		minReduce: 1,
	}
	_ = v.index.Insert(corpus.EndOfSentence, 0)
	return v
}

// Size returns the number of entries, the sentinel included.
func (v *Vocabulary) Size() int { return len(v.Words) }

// Reductions returns how many pruning passes ran while streaming.
func (v *Vocabulary) Reductions() int { return v.reductions }

// Index returns the hash index; it must not be modified.
func (v *Vocabulary) Index() *HashIndex { return v.index }

// Search returns the slot of token or -1.
func (v *Vocabulary) Search(token []byte) int {
	return v.index.Find(v.Words, token)
}

// Add counts one occurrence of token.
func (v *Vocabulary) Add(token []byte) error {
	return v.addCount(token, 1)
}

func (v *Vocabulary) addCount(token []byte, n int64) error {
	if v.frozen {
		return ErrFrozen
	}
	if i := v.Search(token); i >= 0 {
		v.Words[i].Count += n
	} else {
		if err := v.index.Insert(string(token), len(v.Words)); err != nil {
			return fmt.Errorf("add %q: %w", token, err)
		}
		v.Words = append(v.Words, Word{Token: string(token), Count: n})
	}
	v.CorpusWords += n
	if float64(len(v.Words)) > float64(v.index.Capacity())*MaxLoadFactor {
		v.reduce()
	}
	return nil
}

// reduce drops entries with count <= minReduce, keeping the sentinel, and
// raises the threshold for the next pass.
func (v *Vocabulary) reduce() {
	kept := v.Words[:1]
	for _, w := range v.Words[1:] {
		if w.Count > v.minReduce {
			kept = append(kept, w)
		}
	}
	dropped := len(v.Words) - len(kept)
	clear(v.Words[len(kept):])
	v.Words = kept
	v.index.Rebuild(v.Words)

	slog.Debug("[VOCAB] Reduced vocabulary", "threshold", v.minReduce, "dropped", dropped, "size", len(v.Words))
	v.minReduce++
	v.reductions++
	metrics.VocabReductions.Inc()
}

// Finalize sorts by descending count with the sentinel pinned at slot 0,
// applies MinCount, rebuilds the index, and freezes the vocabulary.
func (v *Vocabulary) Finalize() {
	rest := v.Words[1:]
	sort.SliceStable(rest, func(a, b int) bool { return rest[a].Count > rest[b].Count })

	kept := v.Words[:1]
	v.TrainWords = v.Words[0].Count
	for _, w := range rest {
		if w.Count < v.opts.MinCount {
			continue
		}
		kept = append(kept, w)
		v.TrainWords += w.Count
	}
	clear(v.Words[len(kept):])
	v.Words = kept
	v.index.Rebuild(v.Words)
	v.frozen = true

	metrics.VocabSize.Set(float64(len(v.Words)))
}

// AssignCodes builds the Huffman tree over the finalized vocabulary and stores
// each entry's code and path.
func (v *Vocabulary) AssignCodes() error {
	if !v.frozen {
		return fmt.Errorf("vocab: AssignCodes before Finalize")
	}
	counts := make([]int64, len(v.Words))
	for i, w := range v.Words {
		counts[i] = w.Count
	}
	tree, err := huffman.Build(counts)
	if err != nil {
		return fmt.Errorf("vocab: %w", err)
	}
	for i := range v.Words {
		v.Words[i].Code, v.Words[i].Path = tree.Code(i)
	}
	return nil
}

// Learn streams a corpus and returns the finalized vocabulary.
func Learn(r io.Reader, opts Options) (*Vocabulary, error) {
	v := New(opts)
	rd := corpus.NewReader(r)
	for {
		tok, err := rd.ReadToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("vocab: reading corpus: %w", err)
		}
		if err := v.Add(tok); err != nil {
			return nil, err
		}
	}
	metrics.CorpusTokens.Add(float64(v.CorpusWords))
	v.Finalize()
	return v, nil
}

// LearnFile opens path and calls Learn.
func LearnFile(path string, opts Options) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vocab: training data file not found: %w", err)
	}
	defer f.Close()

	v, err := Learn(f, opts)
	if err != nil {
		return nil, err
	}
	slog.Info("[VOCAB] Vocabulary learned",
		"path", path,
		"size", v.Size(),
		"train_words", v.TrainWords,
		"reductions", v.reductions,
	)
	return v, nil
}
