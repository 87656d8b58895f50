package pipeline

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"
)

// Manifest summarizes a finished run.
type Manifest struct {
	RunID        string        `yaml:"run_id"`
	CreatedAt    time.Time     `yaml:"created_at"`
	Graph        string        `yaml:"graph"`
	Nodes        int           `yaml:"nodes"`
	Edges        int           `yaml:"edges"`
	Walks        int           `yaml:"walks"`
	Corpus       string        `yaml:"corpus"`
	CorpusBytes  int64         `yaml:"corpus_bytes"`
	CorpusDigest string        `yaml:"corpus_xxhash"`
	VocabSize    int           `yaml:"vocab_size"`
	TrainWords   int64         `yaml:"train_words"`
	Embeddings   int           `yaml:"embeddings"`
	Stages       []StageRecord `yaml:"stages"`
}

// ManifestPath returns the manifest location for a corpus file.
func ManifestPath(corpusPath string) string {
	return corpusPath + ".manifest.yaml"
}

// Manifest builds the manifest of res, hashing the corpus file.
func (s *Session) Manifest(res *Result) (*Manifest, error) {
	digest, size, err := DigestFile(s.Config.Walk.CorpusPath)
	if err != nil {
		return nil, err
	}
	m := &Manifest{
		RunID:        s.ID,
		CreatedAt:    time.Now().UTC(),
		Graph:        s.Config.Graph.Path,
		Nodes:        res.Nodes,
		Edges:        res.Edges,
		Walks:        res.Walks,
		Corpus:       s.Config.Walk.CorpusPath,
		CorpusBytes:  size,
		CorpusDigest: digest,
		Stages:       s.Stages(),
	}
	if res.Vocab != nil {
		m.VocabSize = res.Vocab.Size()
		m.TrainWords = res.Vocab.TrainWords
	}
	if res.Embeddings != nil {
		m.Embeddings = res.Embeddings.Len()
	}
	return m, nil
}

// DigestFile returns the xxhash64 of the file at path as hex, and its size.
func DigestFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("pipeline: %w", err)
	}
	defer f.Close()

	h := xxhash.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("pipeline: hashing %s: %w", path, err)
	}
	return fmt.Sprintf("%016x", h.Sum64()), n, nil
}

// WriteFile stores the manifest as YAML.
func (m *Manifest) WriteFile(path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("pipeline: writing manifest: %w", err)
	}
	return nil
}

// ReadManifest loads a manifest written by WriteFile.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("pipeline: parsing manifest: %w", err)
	}
	return &m, nil
}
