// Package queue runs background import jobs on a bounded pool of workers.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrPanicked wraps a panic raised inside a job's Work.
var ErrPanicked = errors.New("job panicked")

// Job is one unit of work, such as importing a dropped review bundle.
type Job struct {
	ID     string
	Source string
	Work   func(context.Context) error
	// Done runs on the worker after Work returns, panics included.
	Done func(Result)
}

// Result describes a finished job.
type Result struct {
	JobID    string
	Err      error
	Duration time.Duration
}

// Outcome reports what happened to a submitted job.
type Outcome int

const (
	Accepted Outcome = iota
	Full
	NotRunning
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Full:
		return "full"
	case NotRunning:
		return "not_running"
	case Cancelled:
		return "cancelled"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

type lifecycle int

const (
	idle lifecycle = iota
	running
	stopped
)

// Stats is a point-in-time view of the pool.
type Stats struct {
	Length    int    `json:"length"`
	Capacity  int    `json:"capacity"`
	Workers   int    `json:"workers"`
	InFlight  int    `json:"in_flight"`
	Processed uint64 `json:"processed"`
	Failed    uint64 `json:"failed"`
}

// Queue is a bounded job channel drained by a fixed set of workers. A queue
// runs once: after Stop it rejects work for good.
type Queue struct {
	jobs    chan Job
	workers int
	timeout time.Duration
	logger  *zap.Logger

	mu    sync.RWMutex
	state lifecycle
	wg    sync.WaitGroup

	inFlight  atomic.Int64
	processed atomic.Uint64
	failed    atomic.Uint64
}

// New builds an idle queue. A zero timeout leaves jobs bounded only by the
// context passed to Start. A nil logger discards output.
func New(capacity, workers int, timeout time.Duration, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		jobs:    make(chan Job, capacity),
		workers: workers,
		timeout: timeout,
		logger:  logger.Named("queue"),
	}
}

// Start launches the workers. Cancelling ctx stops them without draining.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.state != idle {
		return
	}
	q.state = running
	for n := range q.workers {
		q.wg.Add(1)
		go q.work(ctx, n)
	}
}

// Submit offers j without blocking and logs rejections.
func (q *Queue) Submit(j Job) Outcome {
	out := q.offer(j)
	switch out {
	case Full:
		q.logger.Warn("queue full, job dropped", zap.String("job", j.ID), zap.String("source", j.Source))
	case NotRunning:
		q.logger.Warn("queue not running, job rejected", zap.String("job", j.ID))
	}
	return out
}

// SubmitWithin keeps offering j every interval while the queue is full, for
// at most window. It returns Full when the window runs out.
func (q *Queue) SubmitWithin(ctx context.Context, j Job, window, interval time.Duration) Outcome {
	out := q.offer(j)
	if out != Full {
		return out
	}
	deadline := time.NewTimer(window)
	defer deadline.Stop()
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return Cancelled
		case <-deadline.C:
			return Full
		case <-tick.C:
			if out = q.offer(j); out != Full {
				return out
			}
		}
	}
}

func (q *Queue) offer(j Job) Outcome {
	// Holding the read lock across the send keeps Stop from closing the channel mid-send.
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.state != running {
		return NotRunning
	}
	select {
	case q.jobs <- j:
		return Accepted
	default:
		return Full
	}
}

// Stop closes the queue to new work and waits for queued jobs to finish. It
// returns ctx's error if the drain outlives ctx.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.state == stopped {
		q.mu.Unlock()
		return nil
	}
	q.state = stopped
	close(q.jobs)
	q.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain queue: %w", ctx.Err())
	}
}

// Running reports whether the queue accepts work.
func (q *Queue) Running() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.state == running
}

func (q *Queue) Stats() Stats {
	return Stats{
		Length:    len(q.jobs),
		Capacity:  cap(q.jobs),
		Workers:   q.workers,
		InFlight:  int(q.inFlight.Load()),
		Processed: q.processed.Load(),
		Failed:    q.failed.Load(),
	}
}

func (q *Queue) work(ctx context.Context, n int) {
	defer q.wg.Done()
	log := q.logger.With(zap.Int("worker", n))
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-q.jobs:
			if !ok {
				return
			}
			res := q.execute(ctx, j)
			fields := []zap.Field{
				zap.String("job", j.ID),
				zap.String("source", j.Source),
				zap.Duration("took", res.Duration),
			}
			if res.Err != nil {
				log.Warn("job failed", append(fields, zap.Error(res.Err))...)
				continue
			}
			log.Debug("job done", fields...)
		}
	}
}

func (q *Queue) execute(ctx context.Context, j Job) Result {
	q.inFlight.Add(1)
	defer q.inFlight.Add(-1)

	start := time.Now()
	err := q.call(ctx, j)
	res := Result{JobID: j.ID, Err: err, Duration: time.Since(start)}
	q.processed.Add(1)
	if err != nil {
		q.failed.Add(1)
	}
	if j.Done != nil {
		j.Done(res)
	}
	return res
}

func (q *Queue) call(ctx context.Context, j Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrPanicked, j.ID, r)
		}
	}()
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}
	return j.Work(ctx)
}
