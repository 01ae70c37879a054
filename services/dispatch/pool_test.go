package dispatch

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadrius/mailpipe/internal/logger"
)

type recordingProcessor struct {
	mu      sync.Mutex
	ids     []string
	panicOn string
	block   chan struct{}
}

func (p *recordingProcessor) Process(_ context.Context, id string) {
	if p.block != nil {
		<-p.block
	}
	if id == p.panicOn {
		panic("boom")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = append(p.ids, id)
}

func testLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{LogLevel: "error"})
	appLogger.InitLogger()
	return appLogger
}

func TestWorkerPool_ProcessesEveryJob(t *testing.T) {
	processor := &recordingProcessor{panicOn: "emsg_2"}
	pool := NewWorkerPool(testLogger(), processor, 3)
	pool.Start()

	for _, id := range []string{"emsg_1", "emsg_2", "emsg_3", "emsg_4"} {
		require.NoError(t, pool.EnqueueProcessEmail(context.Background(), id))
	}
	pool.Stop()

	sort.Strings(processor.ids)
	assert.Equal(t, []string{"emsg_1", "emsg_3", "emsg_4"}, processor.ids)
}

func TestWorkerPool_RejectsAfterStop(t *testing.T) {
	pool := NewWorkerPool(testLogger(), &recordingProcessor{}, 1)
	pool.Start()
	pool.Stop()
	pool.Stop()

	assert.ErrorIs(t, pool.EnqueueProcessEmail(context.Background(), "emsg_1"), ErrPoolStopped)
}

func TestWorkerPool_EnqueueHonoursContext(t *testing.T) {
	processor := &recordingProcessor{block: make(chan struct{})}
	pool := NewWorkerPool(testLogger(), processor, 1)
	pool.Start()

	// one job held by the worker plus a full buffer
	for i := 0; i < 1+queueSizePerWorker; i++ {
		require.NoError(t, pool.EnqueueProcessEmail(context.Background(), "emsg_fill"))
	}
	assert.Equal(t, cap(pool.jobs), len(pool.jobs))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, pool.EnqueueProcessEmail(ctx, "emsg_late"), context.DeadlineExceeded)

	close(processor.block)
	pool.Stop()
}

func TestNewWorkerPool_DefaultsWorkerCount(t *testing.T) {
	pool := NewWorkerPool(testLogger(), &recordingProcessor{}, 0)
	assert.Equal(t, DefaultWorkerCount, pool.workers)
}
