// Package pipeline wires the stages of a run together: temporal walks, the
// walk corpus, vocabulary, Huffman codes, skip-gram training and outputs.
package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/talnish/iiswc21-rwalk/pkg/embedding"
	"github.com/talnish/iiswc21-rwalk/pkg/skipgram"
	"github.com/talnish/iiswc21-rwalk/pkg/vocab"
	"github.com/talnish/iiswc21-rwalk/pkg/walk"
)

// DefaultCorpusPath is where walks are written when no path is configured.
const DefaultCorpusPath = "out_random_walk.txt"

var ErrInvalidConfig = errors.New("pipeline: invalid configuration")

// Config is the top-level run configuration.
type Config struct {
	Graph       GraphConfig  `yaml:"graph"`
	Walk        WalkConfig   `yaml:"walk"`
	Train       TrainConfig  `yaml:"train"`
	Output      OutputConfig `yaml:"output"`
	MetricsAddr string       `yaml:"metrics_addr"`
	LogLevel    string       `yaml:"log_level"`
}

// GraphConfig locates the temporal edge list.
type GraphConfig struct {
	Path       string `yaml:"path"`
	Symmetrize bool   `yaml:"symmetrize"`
}

// WalkConfig configures sampling and where the corpus goes.
type WalkConfig struct {
	walk.Options `yaml:",inline"`
	CorpusPath   string `yaml:"corpus_path"`
}

// TrainConfig configures the vocabulary and the trainer.
type TrainConfig struct {
	skipgram.Config `yaml:",inline"`
	MinCount        int64  `yaml:"min_count"`
	HashSize        int    `yaml:"hash_size"`
	SaveVocab       string `yaml:"save_vocab"`
	ReadVocab       string `yaml:"read_vocab"`
}

// OutputConfig selects the embedding outputs. Empty paths disable an output.
type OutputConfig struct {
	TextPath    string              `yaml:"text_path"`
	TextHeader  bool                `yaml:"text_header"`
	BinaryPath  string              `yaml:"binary_path"`
	Precision   embedding.Precision `yaml:"precision"`
	Classes     int                 `yaml:"classes"`
	ClassesPath string              `yaml:"classes_path"`
}

// DefaultConfig returns a configuration that only needs a graph path.
func DefaultConfig() Config {
	return Config{
		Walk: WalkConfig{
			Options:    walk.DefaultOptions(),
			CorpusPath: DefaultCorpusPath,
		},
		Train: TrainConfig{
			Config:   skipgram.DefaultConfig(),
			MinCount: 1,
			HashSize: vocab.DefaultHashSize,
		},
		Output: OutputConfig{
			Precision: embedding.Float32,
		},
		LogLevel: "info",
	}
}

// VocabOptions derives the vocabulary options.
func (c TrainConfig) VocabOptions() vocab.Options {
	return vocab.Options{MinCount: c.MinCount, HashSize: c.HashSize}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Walk.Validate(); err != nil {
		return err
	}
	if c.Walk.CorpusPath == "" {
		return fmt.Errorf("%w: walk.corpus_path is empty", ErrInvalidConfig)
	}
	if err := c.Train.Config.Validate(); err != nil {
		return err
	}
	if c.Train.HashSize < vocab.MinHashSize {
		return fmt.Errorf("%w: train.hash_size must be at least %d", ErrInvalidConfig, vocab.MinHashSize)
	}
	if c.Train.MinCount < 0 {
		return fmt.Errorf("%w: train.min_count must not be negative", ErrInvalidConfig)
	}
	switch c.Output.Precision {
	case "", embedding.Float32, embedding.Float16:
	default:
		return fmt.Errorf("%w: output.precision %q", ErrInvalidConfig, c.Output.Precision)
	}
	if c.Output.Classes < 0 {
		return fmt.Errorf("%w: output.classes must not be negative", ErrInvalidConfig)
	}
	if c.Output.Classes > 0 && c.Output.ClassesPath == "" {
		return fmt.Errorf("%w: output.classes_path is required with output.classes", ErrInvalidConfig)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// LoadConfig reads the YAML configuration at path over DefaultConfig. A .env
// file in the working directory is loaded first, and ${VAR} references in
// the file are expanded from the environment. Unknown keys are rejected.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("[CONFIG] Failed to load .env", "error", err)
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader([]byte(os.ExpandEnv(string(data)))))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("YAML syntax error in config: %w", err)
	}
	return cfg, nil
}

// ParseLogLevel maps a config level name to a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, s)
}
