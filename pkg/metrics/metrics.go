package metrics

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pipeline metrics. 'promauto' registers them on the default registry.

var (
	// WalksGenerated counts walks written into walk buffers.
	WalksGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rwalk_walks_generated_total",
			Help: "Total number of temporal random walks generated",
		},
	)

	// WalkSteps counts hops taken by all walks (start nodes excluded).
	WalkSteps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rwalk_walk_steps_total",
			Help: "Total number of hops taken by temporal random walks",
		},
	)

	// CorpusTokens counts tokens read while learning a vocabulary.
	CorpusTokens = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rwalk_corpus_tokens_total",
			Help: "Total number of corpus tokens streamed by the vocabulary builder",
		},
	)

	// VocabSize is the size of the last frozen vocabulary, sentinel included.
	VocabSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rwalk_vocab_size",
			Help: "Number of entries in the last built vocabulary",
		},
	)

	// VocabReductions counts low-frequency pruning passes.
	VocabReductions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rwalk_vocab_reductions_total",
			Help: "Number of vocabulary reduction passes triggered by hash table load",
		},
	)

	// WordsTrained counts corpus words consumed by trainer workers.
	WordsTrained = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rwalk_train_words_processed_total",
			Help: "Total number of words processed by skip-gram workers",
		},
	)

	// LearningRate tracks the current linearly decayed learning rate.
	LearningRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rwalk_train_learning_rate",
			Help: "Current skip-gram learning rate",
		},
	)

	// StageDuration measures how long each pipeline stage takes.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "rwalk_stage_duration_seconds",
			Help: "Duration of pipeline stages in seconds",
			// From small test graphs (ms) to large training runs (hours)
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 30, 60, 300, 1800, 3600, 14400},
		},
		[]string{"stage"},
	)
)

// ObserveStage records the time elapsed since start for stage.
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// Serve exposes /metrics on addr in a background goroutine and returns the
// server so the caller can shut it down.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		slog.Info("[METRICS] Listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("[METRICS] Server stopped", "error", err)
		}
	}()
	return srv
}
