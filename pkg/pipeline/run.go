package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/talnish/iiswc21-rwalk/pkg/corpus"
	"github.com/talnish/iiswc21-rwalk/pkg/embedding"
	"github.com/talnish/iiswc21-rwalk/pkg/graph"
	"github.com/talnish/iiswc21-rwalk/pkg/metrics"
	"github.com/talnish/iiswc21-rwalk/pkg/skipgram"
	"github.com/talnish/iiswc21-rwalk/pkg/vocab"
	"github.com/talnish/iiswc21-rwalk/pkg/walk"
)

// Result collects what a run produced.
type Result struct {
	RunID      string
	Nodes      int
	Edges      int
	Walks      int
	Vocab      *vocab.Vocabulary
	Embeddings *embedding.Map
	Manifest   *Manifest
}

// stage runs fn as a tracked stage. fn returns a short progress message.
func (s *Session) stage(name string, fn func() (string, error)) error {
	rec := s.begin(name)
	start := time.Now()
	slog.Info("[PIPELINE] Stage started", "run", s.ID, "stage", name)
	s.setStatus(rec, StageRunning)

	msg, err := fn()
	metrics.ObserveStage(name, start)
	if msg != "" {
		s.setProgress(rec, msg)
	}
	s.finish(rec, time.Since(start), err)
	if err != nil {
		slog.Error("[PIPELINE] Stage failed", "run", s.ID, "stage", name, "error", err)
		return fmt.Errorf("%s: %w", name, err)
	}
	slog.Info("[PIPELINE] Stage completed", "run", s.ID, "stage", name, "duration", time.Since(start), "result", msg)
	return nil
}

// Walk loads the graph, samples walks and writes the corpus file.
func (s *Session) Walk(ctx context.Context, res *Result) error {
	cfg := s.Config
	var g *graph.CSR
	if err := s.stage(StageLoadGraph, func() (string, error) {
		var err error
		if g, err = graph.LoadFile(cfg.Graph.Path, cfg.Graph.Symmetrize); err != nil {
			return "", err
		}
		return fmt.Sprintf("%d nodes, %d edges", g.NumNodes(), g.NumEdges()), nil
	}); err != nil {
		return err
	}
	res.Nodes, res.Edges = g.NumNodes(), g.NumEdges()

	var walks *walk.Walks
	if err := s.stage(StageSample, func() (string, error) {
		sampler, err := walk.NewSampler(g, cfg.Walk.Options)
		if err != nil {
			return "", err
		}
		if walks, err = sampler.Sample(ctx); err != nil {
			return "", err
		}
		return fmt.Sprintf("%d walks", walks.Len()), nil
	}); err != nil {
		return err
	}
	res.Walks = walks.Len()

	return s.stage(StageWriteCorpus, func() (string, error) {
		if err := corpus.WriteWalks(cfg.Walk.CorpusPath, walks); err != nil {
			return "", err
		}
		return cfg.Walk.CorpusPath, nil
	})
}

// Train builds the vocabulary from the corpus file, trains the model and
// writes the configured outputs.
func (s *Session) Train(ctx context.Context, res *Result) error {
	cfg := s.Config
	corpusPath := cfg.Walk.CorpusPath

	var v *vocab.Vocabulary
	if err := s.stage(StageVocab, func() (string, error) {
		var err error
		if cfg.Train.ReadVocab != "" {
			v, err = vocab.ReadFile(cfg.Train.ReadVocab, cfg.Train.VocabOptions())
		} else {
			v, err = vocab.LearnFile(corpusPath, cfg.Train.VocabOptions())
		}
		if err != nil {
			return "", err
		}
		if cfg.Train.SaveVocab != "" {
			if err := v.SaveFile(cfg.Train.SaveVocab); err != nil {
				return "", err
			}
		}
		return fmt.Sprintf("%d entries, %d words", v.Size(), v.TrainWords), nil
	}); err != nil {
		return err
	}
	res.Vocab = v

	if err := s.stage(StageHuffman, func() (string, error) {
		return "", v.AssignCodes()
	}); err != nil {
		return err
	}

	trainer, err := skipgram.NewTrainer(cfg.Train.Config, v, corpusPath)
	if err != nil {
		return fmt.Errorf("%s: %w", StageTrain, err)
	}
	defer trainer.Close()

	if err := s.stage(StageTrain, func() (string, error) {
		if err := trainer.Train(ctx); err != nil {
			return "", err
		}
		return fmt.Sprintf("%d words processed", trainer.Processed()), nil
	}); err != nil {
		return err
	}

	if err := s.stage(StageExtract, func() (string, error) {
		var err error
		res.Embeddings, err = embedding.Extract(v.Words, trainer.Embeddings(), cfg.Train.Dimension)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d vectors", res.Embeddings.Len()), nil
	}); err != nil {
		return err
	}

	return s.stage(StageOutput, func() (string, error) {
		return s.writeOutputs(res.Embeddings)
	})
}

func (s *Session) writeOutputs(m *embedding.Map) (string, error) {
	out := s.Config.Output
	written := 0
	if out.TextPath != "" {
		if err := embedding.WriteTextFile(out.TextPath, m, out.TextHeader); err != nil {
			return "", err
		}
		written++
	}
	if out.BinaryPath != "" {
		if err := embedding.WriteBinary(out.BinaryPath, m, out.Precision); err != nil {
			return "", err
		}
		written++
	}
	if out.Classes > 0 {
		assignments, err := embedding.KMeans(m, out.Classes, embedding.DefaultKMeansIterations)
		if err != nil {
			return "", err
		}
		if err := embedding.WriteClassesFile(out.ClassesPath, assignments); err != nil {
			return "", err
		}
		written++
	}
	return fmt.Sprintf("%d files", written), nil
}

// Run executes every stage and writes the run manifest next to the corpus.
func (s *Session) Run(ctx context.Context) (*Result, error) {
	if err := s.Config.Validate(); err != nil {
		return nil, err
	}
	res := &Result{RunID: s.ID}
	slog.Info("[PIPELINE] Run started", "run", s.ID, "graph", s.Config.Graph.Path)

	if err := s.Walk(ctx, res); err != nil {
		return res, err
	}
	if err := s.Train(ctx, res); err != nil {
		return res, err
	}

	manifest, err := s.Manifest(res)
	if err != nil {
		return res, err
	}
	if err := manifest.WriteFile(ManifestPath(s.Config.Walk.CorpusPath)); err != nil {
		return res, err
	}
	res.Manifest = manifest

	slog.Info("[PIPELINE] Run completed", "run", s.ID, "duration", time.Since(s.started))
	return res, nil
}
