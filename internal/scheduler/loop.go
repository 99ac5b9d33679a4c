// Package scheduler runs timer work on a single cooperative loop. Tasks never overlap.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrLoopStopped = errors.New("scheduler_loop_stopped")

// Task runs on the loop goroutine.
type Task func(ctx context.Context)

// Ticket cancels scheduled work. Cancelling is idempotent and safe from any goroutine.
type Ticket struct {
	cancelled atomic.Bool
	once      sync.Once
	stop      func()
}

func (t *Ticket) Cancel() {
	if t == nil {
		return
	}
	t.cancelled.Store(true)
	t.once.Do(func() {
		if t.stop != nil {
			t.stop()
		}
	})
}

func (t *Ticket) Cancelled() bool {
	return t != nil && t.cancelled.Load()
}

type Params struct {
	fx.In

	Log    *zap.Logger
	Config Config `optional:"true"`
}

type Loop struct {
	log   *zap.Logger
	tasks chan Task

	done     chan struct{}
	stopOnce sync.Once
}

func NewLoop(p Params) *Loop {
	cfg := p.Config.withDefaults()
	return &Loop{
		log:   p.Log.Named("scheduler.loop"),
		tasks: make(chan Task, cfg.QueueSize),
		done:  make(chan struct{}),
	}
}

// Post queues task to run on the loop. It blocks while the queue is full and gives up once the
// loop stops.
func (l *Loop) Post(task Task) error {
	select {
	case <-l.done:
		return ErrLoopStopped
	default:
	}
	select {
	case l.tasks <- task:
		return nil
	case <-l.done:
		return ErrLoopStopped
	}
}

// After runs task once after delay unless the ticket is cancelled first.
func (l *Loop) After(delay time.Duration, task Task) *Ticket {
	ticket := &Ticket{}
	timer := time.AfterFunc(delay, func() {
		l.postTicket(ticket, task)
	})
	ticket.stop = func() { timer.Stop() }
	return ticket
}

// Every runs task at a fixed interval until the ticket is cancelled. A tick is dropped while
// the previous run is still queued or running, so at most one run is ever in flight.
func (l *Loop) Every(interval time.Duration, task Task) *Ticket {
	ticket := &Ticket{}
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	ticket.stop = func() {
		ticker.Stop()
		close(done)
	}

	var inFlight atomic.Bool
	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if !inFlight.CompareAndSwap(false, true) {
					continue
				}
				l.postTicket(ticket, func(ctx context.Context) {
					defer inFlight.Store(false)
					task(ctx)
				})
			}
		}
	}()
	return ticket
}

// Run executes queued tasks until ctx is done.
func (l *Loop) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			l.stopOnce.Do(func() { close(l.done) })
			return
		case task := <-l.tasks:
			l.execute(ctx, task)
		}
	}
}

// RunPending executes the tasks queued right now and returns how many ran.
func (l *Loop) RunPending(ctx context.Context) int {
	n := 0
	for {
		select {
		case task := <-l.tasks:
			l.execute(ctx, task)
			n++
		default:
			return n
		}
	}
}

func (l *Loop) postTicket(ticket *Ticket, task Task) {
	if ticket.Cancelled() {
		return
	}
	err := l.Post(func(ctx context.Context) {
		if ticket.Cancelled() {
			return
		}
		task(ctx)
	})
	if err != nil {
		l.log.Debug("dropped task after loop stopped")
	}
}

func (l *Loop) execute(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("scheduled task panicked", zap.Any("panic", r))
		}
	}()
	task(ctx)
}
