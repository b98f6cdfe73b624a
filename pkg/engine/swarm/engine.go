// Package swarm runs the blocking per-scope collection tasks across a
// bounded worker pool. Tasks share nothing; a failing task reports its error
// without cancelling siblings.
package swarm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aws/smithy-go"
)

// Task is one unit of blocking work.
type Task func(ctx context.Context) error

// Engine manages the worker pool.
type Engine struct {
	MaxWorkers int

	aimd     *AIMD
	tasks    chan Task
	wg       sync.WaitGroup
	quit     chan struct{}
	stopOnce *sync.Once
	mu       sync.Mutex
	active   int
	done     int64
}

// Stats holds runtime statistics for the engine.
type Stats struct {
	ActiveWorkers  int
	Concurrency    int
	TasksCompleted int64
}

func NewEngine() *Engine {
	return &Engine{
		MaxWorkers: 16,
		tasks:      make(chan Task, 256),
	}
}

// Start spins up the supervision loop. A stopped pool may be started again;
// each Start/Stop cycle gets its own quit channel.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.aimd == nil {
		start := e.MaxWorkers / 2
		if start < 1 {
			start = 1
		}
		e.aimd = NewAIMD(start, 1, e.MaxWorkers)
	}
	quit := make(chan struct{})
	e.quit = quit
	e.stopOnce = &sync.Once{}
	e.mu.Unlock()

	go e.loop(ctx, quit)
}

// Submit queues a task.
func (e *Engine) Submit(t Task) {
	e.tasks <- t
}

// Stop drains workers. Safe to call more than once per Start.
func (e *Engine) Stop() {
	e.mu.Lock()
	quit, once := e.quit, e.stopOnce
	e.mu.Unlock()
	if once == nil {
		return
	}
	once.Do(func() { close(quit) })
	e.wg.Wait()
}

func (e *Engine) GetStats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	stats := Stats{
		ActiveWorkers:  e.active,
		TasksCompleted: e.done,
	}
	if e.aimd != nil {
		stats.Concurrency = e.aimd.GetConcurrency()
	}
	return stats
}

func (e *Engine) loop(ctx context.Context, quit chan struct{}) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-quit:
			return
		case <-ticker.C:
			target := e.aimd.GetConcurrency()
			current := e.activeCount()
			for i := current; i < target; i++ {
				e.wg.Add(1)
				go e.worker(ctx, quit)
			}
			// Excess workers exit on their own once they notice the lower
			// target.
		}
	}
}

func (e *Engine) activeCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

func (e *Engine) worker(ctx context.Context, quit chan struct{}) {
	e.mu.Lock()
	e.active++
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.active--
		e.mu.Unlock()
		e.wg.Done()
	}()

	for {
		if e.activeCount() > e.aimd.GetConcurrency() {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-quit:
			return
		case task := <-e.tasks:
			start := time.Now()
			err := task(ctx)
			e.aimd.Feedback(time.Since(start), isThrottle(err))

			e.mu.Lock()
			e.done++
			e.mu.Unlock()
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// isThrottle recognizes API rate-limit responses so the pool can back off.
func isThrottle(err error) bool {
	if err == nil {
		return false
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "Throttling", "ThrottlingException", "RequestLimitExceeded", "TooManyRequestsException":
			return true
		}
	}
	return false
}
