package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// StageStatus is the state of one pipeline stage.
type StageStatus string

const (
	StageStarted   StageStatus = "started"
	StageRunning   StageStatus = "running"
	StageCompleted StageStatus = "completed"
	StageFailed    StageStatus = "failed"
)

// Stage names, also used as the metrics label.
const (
	StageLoadGraph   = "load_graph"
	StageSample      = "sample"
	StageWriteCorpus = "write_corpus"
	StageVocab       = "build_vocab"
	StageHuffman     = "huffman"
	StageTrain       = "train"
	StageExtract     = "extract"
	StageOutput      = "output"
)

// StageRecord is the tracked state of one stage.
type StageRecord struct {
	Name            string        `yaml:"name"`
	Status          StageStatus   `yaml:"status"`
	ProgressMessage string        `yaml:"progress_message,omitempty"`
	Error           string        `yaml:"error,omitempty"`
	Duration        time.Duration `yaml:"duration"`
}

// Session is one pipeline run. Its stage list is safe to read while the run
// is in progress.
type Session struct {
	ID     string
	Config Config

	mu      sync.RWMutex
	stages  []*StageRecord
	started time.Time
}

// NewSession creates a session with a fresh run id.
func NewSession(cfg Config) *Session {
	return &Session{
		ID:      uuid.New().String(),
		Config:  cfg,
		started: time.Now(),
	}
}

// Stages returns a snapshot of every stage so far.
func (s *Session) Stages() []StageRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]StageRecord, len(s.stages))
	for i, st := range s.stages {
		out[i] = *st
	}
	return out
}

// Stage returns the latest record for name.
func (s *Session) Stage(name string) (StageRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.stages) - 1; i >= 0; i-- {
		if s.stages[i].Name == name {
			return *s.stages[i], true
		}
	}
	return StageRecord{}, false
}

func (s *Session) begin(name string) *StageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := &StageRecord{Name: name, Status: StageStarted}
	s.stages = append(s.stages, rec)
	return rec
}

// setStatus updates the status of a stage.
func (s *Session) setStatus(rec *StageRecord, status StageStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.Status = status
}

// setProgress updates the progress message of a stage.
func (s *Session) setProgress(rec *StageRecord, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ProgressMessage = message
}

// finish records the outcome and duration of a stage.
func (s *Session) finish(rec *StageRecord, d time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.Duration = d
	if err != nil {
		rec.Status = StageFailed
		rec.Error = err.Error()
		return
	}
	rec.Status = StageCompleted
}
