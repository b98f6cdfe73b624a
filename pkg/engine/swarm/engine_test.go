package swarm

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
)

func TestEngine_RunsSubmittedTasks(t *testing.T) {
	e := NewEngine()
	e.MaxWorkers = 4
	e.Start(context.Background())
	defer e.Stop()

	var done int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		e.Submit(func(ctx context.Context) error {
			defer wg.Done()
			atomic.AddInt64(&done, 1)
			return nil
		})
	}
	wg.Wait()

	if atomic.LoadInt64(&done) != 20 {
		t.Errorf("completed %d tasks, want 20", done)
	}
}

func TestEngine_Restartable(t *testing.T) {
	e := NewEngine()
	e.MaxWorkers = 2

	for cycle := 0; cycle < 2; cycle++ {
		e.Start(context.Background())

		var wg sync.WaitGroup
		wg.Add(1)
		e.Submit(func(ctx context.Context) error {
			defer wg.Done()
			return nil
		})
		wg.Wait()

		e.Stop()
	}
}

func TestEngine_StopTwice(t *testing.T) {
	e := NewEngine()
	e.Start(context.Background())
	e.Stop()
	e.Stop()
}
