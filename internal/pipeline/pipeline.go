package pipeline

import (
	"context"
	"sync"

	"github.com/millworks/millstream-core/internal/anomaly"
	"github.com/millworks/millstream-core/internal/infrastructure/logging"
	"github.com/millworks/millstream-core/internal/ingest"
	"github.com/millworks/millstream-core/internal/metrics"
	"github.com/millworks/millstream-core/internal/transform"
	"github.com/millworks/millstream-core/internal/writer"
)

// Pipeline runs the worker pool that connects ingestion to the batch
// writer: each worker normalizes, evaluates, and submits.
//
// Stage-local failures (validation, a single evaluation) never abort a
// worker; they are counted and the worker moves to the next message.
type Pipeline struct {
	normalizer *transform.Normalizer
	detector   *anomaly.Detector
	sink       *writer.BatchWriter
	counters   *metrics.Counters
	logger     *logging.Logger
	workers    int

	wg sync.WaitGroup
}

// New creates a Pipeline with the given number of workers.
func New(normalizer *transform.Normalizer, detector *anomaly.Detector, sink *writer.BatchWriter, workers int, counters *metrics.Counters, logger *logging.Logger) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		normalizer: normalizer,
		detector:   detector,
		sink:       sink,
		counters:   counters,
		logger:     logger,
		workers:    workers,
	}
}

// Start launches the worker pool over the message channel. Workers run
// until the channel is closed; they drain whatever remains so shutdown
// never abandons accepted messages.
func (p *Pipeline) Start(ctx context.Context, messages <-chan ingest.RawMessage) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, messages)
	}
	p.logger.Info("pipeline started", "workers", p.workers)
}

// Wait blocks until all workers have drained and exited.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

func (p *Pipeline) worker(ctx context.Context, messages <-chan ingest.RawMessage) {
	defer p.wg.Done()

	for msg := range messages {
		p.process(ctx, msg)
	}
}

// process runs one message through normalize -> evaluate -> submit.
func (p *Pipeline) process(ctx context.Context, msg ingest.RawMessage) {
	rec, err := p.normalizer.Normalize(ctx, msg)
	if err != nil {
		// Already counted and logged by the normalizer; validation
		// failures are not transient, so there is nothing to retry.
		return
	}

	for _, event := range p.detector.Evaluate(rec) {
		p.counters.AnomaliesDetected.Add(1)
		p.logger.Warn("anomaly detected",
			"machine", event.Machine,
			"metric", event.Metric,
			"value", event.Value,
			"severity", string(event.Tier),
		)
		e := event
		p.sink.Submit(&e)
	}

	p.sink.Submit(rec)
}
