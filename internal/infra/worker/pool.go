package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
)

// Task is a unit of work executed on a pool goroutine.
type Task func(ctx context.Context) error

// Pool is a fixed set of workers, each owning its own queue. Submit routes
// by key, so every task carrying the same key runs on the same worker in
// submission order. Bot updates are keyed by user identity: the quota row
// read-modify-write in the conversation flow relies on one user's events
// never running concurrently.
type Pool struct {
	wg    sync.WaitGroup
	lanes []chan Task
	quit  chan struct{}

	log *zerolog.Logger
}

func NewPool(workers int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	lanes := make([]chan Task, workers)
	for i := range lanes {
		lanes[i] = make(chan Task, 16)
	}
	return &Pool{lanes: lanes, quit: make(chan struct{}), log: logger}
}

func (p *Pool) Start(ctx context.Context) {
	for i, lane := range p.lanes {
		p.wg.Add(1)
		go func(id int, jobs <-chan Task) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-p.quit:
					return
				case task := <-jobs:
					if task == nil {
						continue
					}
					if err := task(ctx); err != nil {
						p.log.Error().Err(err).Int("worker", id).Msg("task failed")
					}
				}
			}
		}(i, lane)
	}
}

func (p *Pool) Stop() {
	close(p.quit)
	p.wg.Wait()
}

// Submit enqueues the task on the worker owning key. The queue is bounded;
// a saturated lane drops the task to avoid back-pressure on the polling
// loop, and the caller logs the drop.
func (p *Pool) Submit(key int64, task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	lane := p.lanes[uint64(key)%uint64(len(p.lanes))]
	select {
	case lane <- task:
		return nil
	default:
		return errors.New("worker queue full")
	}
}
