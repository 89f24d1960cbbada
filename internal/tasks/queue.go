// Package tasks runs fire-and-forget work on a fixed pool of workers. Tasks
// that cannot be queued, fail or panic are handed to a dead-letter sink.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	infralogger "github.com/onronder/p-958660-sub000/infrastructure/logger"
)

var (
	ErrQueueFull       = errors.New("task queue is full")
	ErrQueueNotRunning = errors.New("task queue is not running")
)

// State of a Queue.
type State int32

const (
	StateStopped State = iota
	StateRunning
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// Task outcomes reported to the observer.
const (
	OutcomeOK       = "ok"
	OutcomeFailed   = "failed"
	OutcomePanicked = "panicked"
	OutcomeDropped  = "dropped"
)

const (
	defaultWorkers     = 4
	defaultQueueSize   = 256
	defaultTaskTimeout = 30 * time.Second
)

// Task is one unit of background work.
type Task struct {
	ID   string
	Name string
	Run  func(ctx context.Context) error
}

// Config sizes a Queue.
type Config struct {
	Workers     int
	QueueSize   int
	TaskTimeout time.Duration
}

// Option customises a Queue.
type Option func(*Queue)

// WithObserver receives one outcome per task and the queue depth after each
// change.
func WithObserver(outcome func(string), depth func(int)) Option {
	return func(q *Queue) {
		if outcome != nil {
			q.observe = outcome
		}
		if depth != nil {
			q.depth = depth
		}
	}
}

// Queue is safe for concurrent use.
type Queue struct {
	cfg     Config
	sink    DeadLetterSink
	log     infralogger.Logger
	observe func(string)
	depth   func(int)

	mu     sync.RWMutex
	state  atomic.Int32
	tasks  chan Task
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New returns a stopped queue.
func New(cfg Config, sink DeadLetterSink, log infralogger.Logger, opts ...Option) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = defaultTaskTimeout
	}
	if sink == nil {
		sink = NewLogSink(log)
	}
	q := &Queue{
		cfg:     cfg,
		sink:    sink,
		log:     log,
		observe: func(string) {},
		depth:   func(int) {},
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// State reports the current state.
func (q *Queue) State() State {
	return State(q.state.Load())
}

// Start launches the workers.
func (q *Queue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.state.CompareAndSwap(int32(StateStopped), int32(StateRunning)) {
		return errors.New("task queue is already running")
	}
	q.tasks = make(chan Task, q.cfg.QueueSize)
	q.ctx, q.cancel = context.WithCancel(context.Background())

	for range q.cfg.Workers {
		q.wg.Add(1)
		go q.work()
	}

	q.log.Info("Task queue started",
		infralogger.Int("workers", q.cfg.Workers),
		infralogger.Int("queue_size", q.cfg.QueueSize),
	)
	return nil
}

// Stop stops accepting tasks and waits for queued ones to finish. When ctx
// expires first, running tasks are cancelled.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.state.CompareAndSwap(int32(StateRunning), int32(StateDraining)) {
		q.mu.Unlock()
		return ErrQueueNotRunning
	}
	close(q.tasks)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
		q.log.Info("Task queue drained")
	case <-ctx.Done():
		q.cancel()
		<-done
		err = fmt.Errorf("drain task queue: %w", ctx.Err())
		q.log.Warn("Task queue drain cut short", infralogger.Error(ctx.Err()))
	}
	q.cancel()
	q.state.Store(int32(StateStopped))
	return err
}

// Enqueue hands t to the workers without blocking. A full buffer sends t to
// the dead-letter sink and returns ErrQueueFull.
func (q *Queue) Enqueue(t Task) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.State() != StateRunning {
		return ErrQueueNotRunning
	}

	select {
	case q.tasks <- t:
		q.depth(len(q.tasks))
		return nil
	default:
		q.observe(OutcomeDropped)
		q.deadLetter(t, ReasonQueueFull, ErrQueueFull)
		return ErrQueueFull
	}
}

func (q *Queue) work() {
	defer q.wg.Done()
	for t := range q.tasks {
		q.depth(len(q.tasks))
		q.run(t)
	}
}

func (q *Queue) run(t Task) {
	ctx, cancel := context.WithTimeout(q.ctx, q.cfg.TaskTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			q.observe(OutcomePanicked)
			q.deadLetter(t, ReasonPanicked, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := t.Run(ctx); err != nil {
		q.observe(OutcomeFailed)
		q.deadLetter(t, ReasonFailed, err)
		return
	}
	q.observe(OutcomeOK)
}

func (q *Queue) deadLetter(t Task, reason string, err error) {
	letter := DeadLetter{
		TaskID:   t.ID,
		Name:     t.Name,
		Reason:   reason,
		Error:    err.Error(),
		FailedAt: time.Now().UTC(),
	}
	q.log.Warn("Background task dead-lettered",
		infralogger.String("task_id", t.ID),
		infralogger.String("task", t.Name),
		infralogger.String("reason", reason),
		infralogger.Error(err),
	)
	// The sink gets its own deadline; the task context may be gone.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	q.sink.Record(ctx, letter)
}
