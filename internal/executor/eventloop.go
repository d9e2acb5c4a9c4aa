// Package executor provides the single-threaded task queues sessions are
// pinned to. One EventLoop runs one goroutine; everything submitted for the
// sessions on that loop executes in order, one task at a time, which is what
// lets the session engine skip locking entirely.
package executor

import (
	"sync"
	"sync/atomic"
	"time"

	"yqhp/session-engine/pkg/logger"
)

const defaultQueueSize = 1024

// EventLoop is a strictly ordered, single-consumer task queue.
type EventLoop struct {
	tasks   chan func()
	quit    chan struct{}
	done    chan struct{}
	closed  atomic.Bool
	once    sync.Once
	pending sync.WaitGroup
}

// NewEventLoop creates and starts an event loop.
func NewEventLoop() *EventLoop {
	l := &EventLoop{
		tasks: make(chan func(), defaultQueueSize),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *EventLoop) run() {
	defer close(l.done)
	for {
		select {
		case task := <-l.tasks:
			l.invoke(task)
		case <-l.quit:
			// Drain what was queued before the close.
			for {
				select {
				case task := <-l.tasks:
					l.invoke(task)
				default:
					return
				}
			}
		}
	}
}

func (l *EventLoop) invoke(task func()) {
	defer l.pending.Done()
	task()
}

// Submit enqueues a task for in-order execution. Tasks submitted after Close
// are dropped.
func (l *EventLoop) Submit(task func()) {
	if l.closed.Load() {
		logger.Warn("task submitted to a closed event loop, dropping")
		return
	}
	l.pending.Add(1)
	select {
	case l.tasks <- task:
	case <-l.done:
		l.pending.Done()
	}
}

// Schedule runs task on the loop after the given delay. The timer fires on a
// runtime goroutine; the task itself still executes in order on the loop.
func (l *EventLoop) Schedule(delay time.Duration, task func()) {
	time.AfterFunc(delay, func() {
		l.Submit(task)
	})
}

// Close stops accepting tasks, finishes everything already queued, and waits
// for the loop goroutine to exit.
func (l *EventLoop) Close() {
	l.once.Do(func() {
		l.closed.Store(true)
		close(l.quit)
	})
	<-l.done
}

// Idle blocks until every task submitted so far has finished. Intended for
// tests and shutdown sequencing, not for the hot path.
func (l *EventLoop) Idle() {
	l.pending.Wait()
}
