// Package dispatch runs page tasks against the inference backends under per-backend concurrency ceilings.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// Lane selects the backend a task is admitted against.
type Lane int

const (
	LaneImage Lane = iota
	LaneText
)

func (l Lane) String() string {
	switch l {
	case LaneImage:
		return "image"
	case LaneText:
		return "text"
	default:
		return fmt.Sprintf("lane(%d)", int(l))
	}
}

const (
	DefaultImageConcurrency = 4
	DefaultTextConcurrency  = 8
)

var (
	ErrPoolClosed  = errors.New("dispatcher pool is closed")
	ErrUnknownLane = errors.New("unknown dispatch lane")
)

// Dispatcher owns one worker pool per backend. Pool capacity is the backend's
// in-flight ceiling: a task holds a worker for exactly as long as its backend call runs.
type Dispatcher struct {
	imagePool *ants.Pool
	textPool  *ants.Pool
	logger    *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New creates a dispatcher with the given image and text ceilings (minimum 1 each).
func New(imageConcurrency, textConcurrency int, opts ...Option) (*Dispatcher, error) {
	imagePool, err := ants.NewPool(max(imageConcurrency, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to create image pool: %w", err)
	}
	textPool, err := ants.NewPool(max(textConcurrency, 1))
	if err != nil {
		imagePool.Release()
		return nil, fmt.Errorf("failed to create text pool: %w", err)
	}

	d := &Dispatcher{imagePool: imagePool, textPool: textPool, logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Capacity returns the ceiling of a lane.
func (d *Dispatcher) Capacity(lane Lane) int {
	pool, err := d.pool(lane)
	if err != nil {
		return 0
	}
	return pool.Cap()
}

// Release frees both pools. The dispatcher must not be used afterwards.
func (d *Dispatcher) Release() {
	if d.imagePool != nil {
		d.imagePool.Release()
	}
	if d.textPool != nil {
		d.textPool.Release()
	}
}

func (d *Dispatcher) pool(lane Lane) (*ants.Pool, error) {
	switch lane {
	case LaneImage:
		return d.imagePool, nil
	case LaneText:
		return d.textPool, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownLane, lane)
	}
}

// Task is one unit of backend work.
type Task[R any] struct {
	Lane Lane
	Run  func(ctx context.Context) (R, error)
}

// Outcome is the result of the task at the same index.
type Outcome[R any] struct {
	Value R
	Err   error
}

// Run executes every task and waits for all of them.
// Tasks of one lane are submitted in order by a dedicated goroutine, so a
// saturated lane never delays admission on the other. A failing or panicking
// task never affects its siblings; its error is captured in its Outcome.
func Run[R any](ctx context.Context, d *Dispatcher, tasks []Task[R]) []Outcome[R] {
	outcomes := make([]Outcome[R], len(tasks))
	if len(tasks) == 0 {
		return outcomes
	}

	byLane := make(map[Lane][]int)
	for i, t := range tasks {
		byLane[t.Lane] = append(byLane[t.Lane], i)
	}

	var done sync.WaitGroup
	done.Add(len(tasks))

	var submitters sync.WaitGroup
	for lane, indexes := range byLane {
		submitters.Add(1)
		go func() {
			defer submitters.Done()
			pool, err := d.pool(lane)
			for _, i := range indexes {
				if err != nil {
					outcomes[i].Err = err
					done.Done()
					continue
				}
				submitErr := pool.Submit(func() {
					defer done.Done()
					outcomes[i] = execute(ctx, d.logger, lane, tasks[i])
				})
				if submitErr != nil {
					if errors.Is(submitErr, ants.ErrPoolClosed) {
						submitErr = ErrPoolClosed
					}
					outcomes[i].Err = fmt.Errorf("failed to submit %s task: %w", lane, submitErr)
					done.Done()
				}
			}
		}()
	}

	submitters.Wait()
	done.Wait()
	return outcomes
}

func execute[R any](ctx context.Context, logger *slog.Logger, lane Lane, task Task[R]) (out Outcome[R]) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Recovered panic in dispatched task.", "lane", lane.String(), "panic", r, "stack", string(debug.Stack()))
			out = Outcome[R]{Err: fmt.Errorf("%s task panicked: %v", lane, r)}
		}
	}()
	value, err := task.Run(ctx)
	return Outcome[R]{Value: value, Err: err}
}
