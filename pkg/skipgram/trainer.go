package skipgram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/talnish/iiswc21-rwalk/pkg/corpus"
	"github.com/talnish/iiswc21-rwalk/pkg/metrics"
	"github.com/talnish/iiswc21-rwalk/pkg/storage/mmap"
	"github.com/talnish/iiswc21-rwalk/pkg/vocab"
)

// Trainer owns the parameter matrices of one training run.
//
// Workers read and write Syn0, Syn1 and Syn1Neg without synchronization
// (Hogwild). Concurrent updates to the same row may lose increments; the
// values stay finite and training converges regardless.
type Trainer struct {
	cfg        Config
	vocab      *vocab.Vocabulary
	corpusPath string

	model  *Model
	kernel Kernel
	arena  *mmap.MatrixArena

	processed atomic.Int64
	alphaBits atomic.Uint32
	start     time.Time
}

// NewTrainer validates cfg, selects the kernel and allocates the matrices.
// v must be finalized, and carry Huffman codes when hierarchical softmax is
// used.
func NewTrainer(cfg Config, v *vocab.Vocabulary, corpusPath string) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if v == nil || v.Size() < 2 {
		return nil, ErrEmptyVocabulary
	}
	if cfg.UseHS() && len(v.Words[1].Path) == 0 {
		return nil, ErrNoCodes
	}

	kernel, err := NewKernel(cfg.Kernel)
	if err != nil {
		return nil, err
	}

	t := &Trainer{cfg: cfg, vocab: v, corpusPath: corpusPath, kernel: kernel}
	if cfg.ArenaDir != "" {
		if t.arena, err = mmap.NewMatrixArena(cfg.ArenaDir); err != nil {
			return nil, err
		}
	}

	m := &Model{Config: cfg, Words: v.Words}
	rows := v.Size()
	if m.Syn0, err = newMatrix(t.arena, "syn0", rows, cfg.Dimension); err != nil {
		t.Close()
		return nil, err
	}
	m.Syn0.randomize(1)
	if cfg.UseHS() {
		if m.Syn1, err = newMatrix(t.arena, "syn1", rows, cfg.Dimension); err != nil {
			t.Close()
			return nil, err
		}
	}
	if cfg.Negative > 0 {
		if m.Syn1Neg, err = newMatrix(t.arena, "syn1neg", rows, cfg.Dimension); err != nil {
			t.Close()
			return nil, err
		}
		m.Table = BuildUnigramTable(v.Words, cfg.TableSize)
	}

	if err := kernel.Init(m); err != nil {
		t.Close()
		return nil, err
	}
	t.model = m
	t.setAlpha(cfg.LearningRate)
	return t, nil
}

// Alpha returns the current learning rate.
func (t *Trainer) Alpha() float32 {
	return math.Float32frombits(t.alphaBits.Load())
}

func (t *Trainer) setAlpha(a float32) {
	t.alphaBits.Store(math.Float32bits(a))
	metrics.LearningRate.Set(float64(a))
}

// Processed returns the number of corpus words consumed so far.
func (t *Trainer) Processed() int64 { return t.processed.Load() }

// Model exposes the training state.
func (t *Trainer) Model() *Model { return t.model }

// Train runs Threads workers over disjoint byte ranges of the corpus for
// Epochs passes each and returns once all of them are done.
func (t *Trainer) Train(ctx context.Context) error {
	if t.model == nil {
		return ErrKernelState
	}
	if _, err := corpus.FileSize(t.corpusPath); err != nil {
		return err
	}

	slog.Info("[TRAIN] Training started",
		"mode", t.mode(),
		"kernel", t.cfg.Kernel,
		"vocab", t.vocab.Size(),
		"train_words", t.vocab.TrainWords,
		"dim", t.cfg.Dimension,
		"threads", t.cfg.Threads,
		"epochs", t.cfg.Epochs,
	)
	t.start = time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for id := 0; id < t.cfg.Threads; id++ {
		g.Go(func() error {
			return t.runWorker(gctx, id)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("skipgram: training aborted: %w", err)
	}

	slog.Info("[TRAIN] Training completed",
		"words", t.Processed(),
		"duration", time.Since(t.start),
	)
	return nil
}

func (t *Trainer) mode() string {
	arch := "skip-gram"
	if t.cfg.CBOW {
		arch = "cbow"
	}
	switch {
	case t.cfg.UseHS() && t.cfg.Negative > 0:
		return arch + "+hs+ns"
	case t.cfg.UseHS():
		return arch + "+hs"
	default:
		return arch + "+ns"
	}
}

// Embeddings returns the trained input layer, one row per vocabulary entry.
func (t *Trainer) Embeddings() *Matrix {
	return t.kernel.Results()
}

// Close releases the kernel and any memory-mapped matrices. Matrices
// obtained from the trainer must not be used afterwards when an arena
// directory was configured.
func (t *Trainer) Close() error {
	t.kernel.Cleanup()
	if t.arena != nil {
		return t.arena.Close()
	}
	return nil
}

// advance publishes delta processed words and recomputes the learning rate.
func (t *Trainer) advance(delta int64) {
	done := t.processed.Add(delta)
	metrics.WordsTrained.Add(float64(delta))
	total := float64(t.cfg.Epochs)*float64(t.vocab.TrainWords) + 1
	t.setAlpha(t.cfg.LearningRate * float32(max(minAlphaRatio, 1-float64(done)/total)))
}

func (t *Trainer) logProgress() {
	done := t.Processed()
	total := float64(t.cfg.Epochs)*float64(t.vocab.TrainWords) + 1
	elapsed := time.Since(t.start).Seconds()
	slog.Debug("[TRAIN] Progress",
		"alpha", t.Alpha(),
		"progress_pct", float64(done)/total*100,
		"words_per_sec", float64(done)/max(elapsed, 1e-9),
	)
}

// shard is the reading state of one worker.
type shard struct {
	id     int
	file   *os.File
	offset int64
	reader *corpus.Reader
	next   uint64

	wordCount     int64
	lastWordCount int64

	buf   [][]int32
	batch [][]int32
}

func (s *shard) rewind() error {
	if _, err := s.file.Seek(s.offset, io.SeekStart); err != nil {
		return err
	}
	s.reader.Reset(s.file)
	s.wordCount, s.lastWordCount = 0, 0
	return nil
}

func (t *Trainer) runWorker(ctx context.Context, id int) error {
	f, off, err := corpus.OpenShard(t.corpusPath, t.cfg.Threads, id)
	if err != nil {
		return err
	}
	defer f.Close()

	s := &shard{
		id:     id,
		file:   f,
		offset: off,
		reader: corpus.NewReader(f),
		next:   uint64(id),
		buf:    make([][]int32, BatchSentences),
		batch:  make([][]int32, 0, BatchSentences),
	}
	for i := range s.buf {
		s.buf[i] = make([]int32, 0, MaxSentenceLength)
	}

	perWorker := t.vocab.TrainWords / int64(t.cfg.Threads)
	for epochs := t.cfg.Epochs; ; {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.wordCount-s.lastWordCount > alphaRefresh {
			t.advance(s.wordCount - s.lastWordCount)
			s.lastWordCount = s.wordCount
			if id == 0 {
				t.logProgress()
			}
		}

		batch, eof, err := t.readBatch(s)
		if err != nil {
			return fmt.Errorf("worker %d: %w", id, err)
		}
		if len(batch) > 0 {
			if err := t.kernel.Execute(id, t.Alpha(), batch); err != nil {
				return err
			}
		}

		if eof || s.wordCount > perWorker {
			t.advance(s.wordCount - s.lastWordCount)
			epochs--
			if epochs == 0 {
				return nil
			}
			if err := s.rewind(); err != nil {
				return fmt.Errorf("worker %d: %w", id, err)
			}
		}
	}
}

// readBatch reads up to BatchSentences sentences. Out-of-vocabulary tokens
// are skipped, the sentence boundary ends a sentence and is counted, and
// frequent words are randomly discarded when Sample is set.
func (t *Trainer) readBatch(s *shard) ([][]int32, bool, error) {
	words := t.vocab.Words
	threshold := t.cfg.Sample * float64(t.vocab.TrainWords)
	batch := s.batch[:0]
	eof := false

	for len(batch) < BatchSentences && !eof {
		sen := s.buf[len(batch)][:0]
		for {
			tok, err := s.reader.ReadToken()
			if errors.Is(err, io.EOF) {
				eof = true
				break
			}
			if err != nil {
				return nil, false, err
			}
			w := t.vocab.Search(tok)
			if w < 0 {
				continue
			}
			s.wordCount++
			if w == 0 {
				break
			}
			if t.cfg.Sample > 0 {
				cn := float64(words[w].Count)
				keep := (math.Sqrt(cn/threshold) + 1) * threshold / cn
				s.next = lcg(s.next)
				if keep < float64(s.next&0xFFFF)/65536 {
					continue
				}
			}
			sen = append(sen, int32(w))
			if len(sen) >= MaxSentenceLength {
				break
			}
		}
		s.buf[len(batch)] = sen
		if len(sen) > 0 {
			batch = append(batch, sen)
		}
	}
	return batch, eof, nil
}
