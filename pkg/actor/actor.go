// Package actor serializes access to state owned by a single goroutine.
package actor

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

var (
	ErrActorClosed = errors.Base("actor is closed")
	ErrTaskPanic   = errors.Base("task panicked")
)

type State int32

const (
	StateIdle State = iota
	StateExecuting
	StateShutDown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateExecuting:
		return "executing"
	case StateShutDown:
		return "shut down"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

type task[S any] struct {
	ctx context.Context
	run func(ctx context.Context, state S)
}

// Actor owns a value of S and runs submitted tasks against it one at a time, in
// submission order. The mailbox is unbounded: submitting never blocks.
type Actor[S any] struct {
	id    string
	state S

	mu      sync.Mutex
	queue   []task[S]
	wake    chan struct{}
	closing bool

	status atomic.Int32
	done   chan struct{}
}

// New starts the worker goroutine for state. The logger in ctx is used for the actor's
// own events; tasks log through their caller's context.
func New[S any](ctx context.Context, state S) *Actor[S] {
	a := &Actor[S]{
		id:    xid.New().String(),
		state: state,
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	logger := zerolog.Ctx(ctx).With().Str("actor_id", a.id).Logger()
	go a.loop(logger)
	return a
}

func (a *Actor[S]) ID() string {
	return a.id
}

func (a *Actor[S]) State() State {
	return State(a.status.Load())
}

// Done is closed once the actor has shut down.
func (a *Actor[S]) Done() <-chan struct{} {
	return a.done
}

func (a *Actor[S]) submit(t task[S]) error {
	a.mu.Lock()
	if a.closing {
		a.mu.Unlock()
		return ErrActorClosed
	}
	a.queue = append(a.queue, t)
	a.mu.Unlock()

	select {
	case a.wake <- struct{}{}:
	default:
	}
	return nil
}

// next pops the oldest task. ok is false once the actor is closing and the queue is
// drained.
func (a *Actor[S]) next() (t task[S], ok bool, closing bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.queue) == 0 {
		return t, false, a.closing
	}
	t = a.queue[0]
	a.queue[0] = task[S]{}
	a.queue = a.queue[1:]
	return t, true, a.closing
}

func (a *Actor[S]) loop(logger zerolog.Logger) {
	defer close(a.done)
	logger.Debug().Msg("actor started")
	for {
		t, ok, closing := a.next()
		if !ok {
			if closing {
				a.status.Store(int32(StateShutDown))
				logger.Debug().Msg("actor shut down")
				return
			}
			<-a.wake
			continue
		}
		a.status.Store(int32(StateExecuting))
		t.run(t.ctx, a.state)
		a.status.Store(int32(StateIdle))
	}
}

// Close refuses new tasks, lets the queued ones finish and waits for the worker to
// stop or for ctx to end.
func (a *Actor[S]) Close(ctx context.Context) error {
	a.mu.Lock()
	a.closing = true
	a.mu.Unlock()
	select {
	case a.wake <- struct{}{}:
	default:
	}

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return errors.Errorf("closing actor %s: %w", a.id, ctx.Err())
	}
}

type result[R any] struct {
	value R
	err   error
}

// Do runs fn on the actor and waits for its result. The task sees the values of ctx but
// not its cancellation: once queued it always runs, and if ctx ends first the result is
// dropped and ctx.Err() is returned.
func Do[S, R any](ctx context.Context, a *Actor[S], fn func(ctx context.Context, state S) (R, error)) (R, error) {
	reply := make(chan result[R], 1)
	err := a.submit(task[S]{
		ctx: context.WithoutCancel(ctx),
		run: func(ctx context.Context, state S) {
			reply <- protect(ctx, state, fn)
		},
	})
	if err != nil {
		var zero R
		return zero, errors.Errorf("submitting to actor %s: %w", a.id, err)
	}

	select {
	case res := <-reply:
		return res.value, res.err
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}

// Send queues fn without waiting for it.
func Send[S any](ctx context.Context, a *Actor[S], fn func(ctx context.Context, state S)) error {
	err := a.submit(task[S]{
		ctx: context.WithoutCancel(ctx),
		run: func(ctx context.Context, state S) {
			res := protect(ctx, state, func(ctx context.Context, state S) (struct{}, error) {
				fn(ctx, state)
				return struct{}{}, nil
			})
			if res.err != nil {
				zerolog.Ctx(ctx).Error().Err(res.err).Msg("actor task failed")
			}
		},
	})
	if err != nil {
		return errors.Errorf("submitting to actor %s: %w", a.id, err)
	}
	return nil
}

func protect[S, R any](ctx context.Context, state S, fn func(ctx context.Context, state S) (R, error)) (res result[R]) {
	defer func() {
		if r := recover(); r != nil {
			zerolog.Ctx(ctx).Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("actor task panicked")
			res = result[R]{err: errors.Errorf("%v: %w", r, ErrTaskPanic)}
		}
	}()
	v, err := fn(ctx, state)
	return result[R]{value: v, err: err}
}
