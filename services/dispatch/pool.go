package dispatch

import (
	"context"
	"sync"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/cadrius/mailpipe/interfaces"
	"github.com/cadrius/mailpipe/internal/logger"
	"github.com/cadrius/mailpipe/internal/tracing"
)

const (
	DefaultWorkerCount = 4
	queueSizePerWorker = 100
)

var ErrPoolStopped = errors.New("process pool is stopped")

// WorkerPool is the in-process ProcessQueue used when no broker is configured.
// Each message is processed independently; a panic in one job does not stop the worker.
type WorkerPool struct {
	log       logger.Logger
	processor interfaces.Processor
	workers   int
	jobs      chan string

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

var _ interfaces.ProcessQueue = (*WorkerPool)(nil)

func NewWorkerPool(log logger.Logger, processor interfaces.Processor, workers int) *WorkerPool {
	if workers <= 0 {
		workers = DefaultWorkerCount
	}
	return &WorkerPool{
		log:       log,
		processor: processor,
		workers:   workers,
		jobs:      make(chan string, workers*queueSizePerWorker),
	}
}

func (p *WorkerPool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.work(i)
	}
	p.log.Infof("Process pool started with %d workers", p.workers)
}

// EnqueueProcessEmail blocks while the buffer is full, until ctx is done.
func (p *WorkerPool) EnqueueProcessEmail(ctx context.Context, emailMessageID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "WorkerPool.EnqueueProcessEmail")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, emailMessageID)

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		tracing.TraceErr(span, ErrPoolStopped)
		return ErrPoolStopped
	}

	select {
	case p.jobs <- emailMessageID:
		return nil
	case <-ctx.Done():
		tracing.TraceErr(span, ctx.Err())
		return errors.Wrapf(ctx.Err(), "enqueue %s", emailMessageID)
	}
}

// Stop refuses new jobs and waits for the queued ones to finish.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	p.log.Info("Process pool stopped")
}

func (p *WorkerPool) work(worker int) {
	defer p.wg.Done()
	for id := range p.jobs {
		p.run(worker, id)
	}
}

func (p *WorkerPool) run(worker int, emailMessageID string) {
	defer tracing.RecoverAndLogToJaeger(p.log)
	p.log.Debugf("worker %d processing email %s", worker, emailMessageID)
	p.processor.Process(context.Background(), emailMessageID)
}
