package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talnish/iiswc21-rwalk/pkg/embedding"
	"github.com/talnish/iiswc21-rwalk/pkg/graph"
	"github.com/talnish/iiswc21-rwalk/pkg/skipgram"
	"github.com/talnish/iiswc21-rwalk/pkg/vocab"
	"github.com/talnish/iiswc21-rwalk/pkg/walk"
)

// writeGraph writes a ring of n nodes with increasing timestamps plus a few
// chords.
func writeGraph(t *testing.T, dir string, n int) string {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("# src dst ts\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "%d %d %d\n", i, (i+1)%n, i+1)
		fmt.Fprintf(&sb, "%d %d %d\n", i, (i+3)%n, i+2)
	}
	path := filepath.Join(dir, "graph.wel")
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0644))
	return path
}

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Graph.Path = writeGraph(t, dir, 12)
	cfg.Graph.Symmetrize = true
	cfg.Walk.WalksPerNode = 4
	cfg.Walk.MaxLength = 6
	cfg.Walk.Workers = 2
	cfg.Walk.CorpusPath = filepath.Join(dir, "walks.txt")
	cfg.Train.Dimension = 8
	cfg.Train.Threads = 2
	cfg.Train.Epochs = 2
	cfg.Train.Negative = 3
	cfg.Train.TableSize = 10_000
	cfg.Train.HashSize = 1024
	cfg.Output.TextPath = filepath.Join(dir, "emb.txt")
	cfg.Output.TextHeader = true
	cfg.Output.BinaryPath = filepath.Join(dir, "emb.bin")
	cfg.Output.Precision = embedding.Float16
	cfg.Output.Classes = 3
	cfg.Output.ClassesPath = filepath.Join(dir, "classes.txt")
	return cfg
}

func TestRunProducesAllOutputs(t *testing.T) {
	cfg := testConfig(t)
	s := NewSession(cfg)
	res, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, s.ID, res.RunID)
	assert.Equal(t, 12, res.Nodes)
	assert.Equal(t, 48, res.Walks)
	assert.Equal(t, 13, res.Vocab.Size())
	require.Equal(t, 12, res.Embeddings.Len())

	for _, st := range s.Stages() {
		assert.Equal(t, StageCompleted, st.Status, st.Name)
	}
	_, ok := s.Stage(StageHuffman)
	assert.True(t, ok)

	text, err := os.ReadFile(cfg.Output.TextPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(text)), "\n")
	assert.Equal(t, "12 8", lines[0])
	assert.Len(t, lines, 13)

	bin, prec, err := embedding.ReadBinary(cfg.Output.BinaryPath)
	require.NoError(t, err)
	assert.Equal(t, embedding.Float16, prec)
	assert.Equal(t, 12, bin.Len())

	classes, err := os.ReadFile(cfg.Output.ClassesPath)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(classes)), "\n"), 12)

	m, err := ReadManifest(ManifestPath(cfg.Walk.CorpusPath))
	require.NoError(t, err)
	assert.Equal(t, s.ID, m.RunID)
	assert.Equal(t, 12, m.Embeddings)
	digest, size, err := DigestFile(cfg.Walk.CorpusPath)
	require.NoError(t, err)
	assert.Equal(t, digest, m.CorpusDigest)
	assert.Equal(t, size, m.CorpusBytes)
	assert.Len(t, m.Stages, 8)

	v, err := res.Embeddings.Lookup(graph.NodeID(5))
	require.NoError(t, err)
	assert.Len(t, v, 8)
	_, err = res.Embeddings.Lookup(graph.NodeID(99))
	assert.ErrorIs(t, err, embedding.ErrNodeNotFound)
}

func TestRunHierarchicalSoftmaxWithSavedVocab(t *testing.T) {
	cfg := testConfig(t)
	cfg.Train.Negative = 0
	cfg.Train.CBOW = true
	cfg.Train.SaveVocab = filepath.Join(t.TempDir(), "vocab.txt")
	cfg.Output = OutputConfig{}

	res, err := NewSession(cfg).Run(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, cfg.Train.SaveVocab)

	cfg.Train.ReadVocab = cfg.Train.SaveVocab
	cfg.Train.SaveVocab = ""
	again, err := NewSession(cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, res.Vocab.Size(), again.Vocab.Size())
	assert.Equal(t, res.Vocab.TrainWords, again.Vocab.TrainWords)
}

func TestRunRecordsFailedStage(t *testing.T) {
	cfg := testConfig(t)
	cfg.Graph.Path = filepath.Join(t.TempDir(), "missing.wel")
	s := NewSession(cfg)

	_, err := s.Run(context.Background())
	require.Error(t, err)
	st, ok := s.Stage(StageLoadGraph)
	require.True(t, ok)
	assert.Equal(t, StageFailed, st.Status)
	assert.NotEmpty(t, st.Error)
	_, ok = s.Stage(StageSample)
	assert.False(t, ok)
}

func TestRunUnavailableKernel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Train.Kernel = "gpu"
	_, err := NewSession(cfg).Run(context.Background())
	assert.ErrorIs(t, err, skipgram.ErrAcceleratorUnavailable)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSession(testConfig(t)).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("RWALK_TEST_GRAPH", "/data/g.wel")
	path := filepath.Join(dir, "rwalk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
graph:
  path: ${RWALK_TEST_GRAPH}
walk:
  max_length: 8
  filter: inclusive
train:
  dimension: 64
  negative: 0
  kernel: blas
output:
  precision: float16
log_level: debug
`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/g.wel", cfg.Graph.Path)
	assert.Equal(t, 8, cfg.Walk.MaxLength)
	assert.Equal(t, walk.FilterInclusive, cfg.Walk.Filter)
	assert.Equal(t, 10, cfg.Walk.WalksPerNode)
	assert.Equal(t, DefaultCorpusPath, cfg.Walk.CorpusPath)
	assert.Equal(t, 64, cfg.Train.Dimension)
	assert.True(t, cfg.Train.UseHS())
	assert.Equal(t, skipgram.KernelBLAS, cfg.Train.Kernel)
	assert.Equal(t, int64(1), cfg.Train.MinCount)
	assert.Equal(t, embedding.Float16, cfg.Output.Precision)
	require.NoError(t, cfg.Validate())

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("train:\n  dimensions: 3\n"), 0644))
	_, err = LoadConfig(bad)
	assert.Error(t, err)

	_, err = LoadConfig(filepath.Join(dir, "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	cfg, err = LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Train.Dimension, cfg.Train.Dimension)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Output.Classes = 4
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.LogLevel = "loud"
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.Output.Precision = "int8"
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.Train.Window = 0
	assert.ErrorIs(t, cfg.Validate(), skipgram.ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.Walk.WalksPerNode = 0
	assert.ErrorIs(t, cfg.Validate(), walk.ErrInvalidOptions)

	for _, size := range []int{-1, 0, 1} {
		cfg = DefaultConfig()
		cfg.Train.HashSize = size
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig, "hash_size %d", size)
	}
	cfg = DefaultConfig()
	cfg.Train.HashSize = vocab.MinHashSize
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigUnreadableDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	// No .env at all.
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Train.HashSize, cfg.Train.HashSize)

	// A .env that exists but cannot be read is reported, not fatal.
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".env"), 0755))
	cfg, err = LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Train.Dimension, cfg.Train.Dimension)
}
