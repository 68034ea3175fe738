package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingProcessor struct {
	calls atomic.Int32
}

func (p *countingProcessor) ProcessJobs(ctx context.Context) error {
	p.calls.Add(1)
	return nil
}

func TestWorker_RunsImmediatelyThenPolls(t *testing.T) {
	processor := &countingProcessor{}
	worker := NewWorker(processor, 20*time.Millisecond)

	go worker.Start(context.Background())

	// The first pass happens before the first tick
	assert.Eventually(t, func() bool {
		return processor.calls.Load() >= 1
	}, time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		return processor.calls.Load() >= 3
	}, time.Second, 5*time.Millisecond)

	worker.Stop()
}

func TestWorker_StopTerminatesLoop(t *testing.T) {
	processor := &countingProcessor{}
	worker := NewWorker(processor, time.Hour)

	done := make(chan struct{})
	go func() {
		worker.Start(context.Background())
		close(done)
	}()

	// Let the immediate pass run before stopping
	assert.Eventually(t, func() bool {
		return processor.calls.Load() == 1
	}, time.Second, 5*time.Millisecond)

	worker.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorker_ContextCancelTerminatesLoop(t *testing.T) {
	processor := &countingProcessor{}
	worker := NewWorker(processor, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancel")
	}
}
