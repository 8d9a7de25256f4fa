package keyfold

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Event is a credential lifecycle notification. Events are dispatched
// best-effort: delivery failure is logged and never fails the operation that
// produced the event.
type Event struct {
	Type       string
	AccountID  string
	Email      string
	TokenID    string
	Credential string
	ServiceID  string
	At         time.Time
}

// Event types emitted by the engine.
const (
	EventTokenCreated        = "token.created"
	EventTokenRemoved        = "token.removed"
	EventTokenVerified       = "token.verified"
	EventClientCreated       = "client.created"
	EventClientAuthenticated = "client.authenticated"
	EventClientWarning       = "client.warning"
)

// Notifier is the event dispatch collaborator contract.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// NoopNotifier discards all events.
type NoopNotifier struct{}

// Notify implements [Notifier].
func (NoopNotifier) Notify(context.Context, Event) error { return nil }

type notifyDispatcher struct {
	cfg       NotifyConfig
	sink      Notifier
	ch        chan Event
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

func newNotifyDispatcher(cfg NotifyConfig, sink Notifier) *notifyDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoopNotifier{}
	}

	d := &notifyDispatcher{
		cfg:  cfg,
		sink: sink,
		ch:   make(chan Event, cfg.BufferSize),
		done: make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *notifyDispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.ch:
			d.deliver(event)
		case <-d.done:
			for {
				select {
				case event := <-d.ch:
					d.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (d *notifyDispatcher) deliver(event Event) {
	if err := d.sink.Notify(context.Background(), event); err != nil {
		log.Print("keyfold: notification dispatch failed")
	}
}

// Emit enqueues an event without blocking. Events are dropped, and counted,
// when the buffer is full or the dispatcher is closed.
func (d *notifyDispatcher) Emit(event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	select {
	case d.ch <- event:
	default:
		d.dropped.Add(1)
	}
}

// Dropped returns the number of events discarded because of backpressure.
func (d *notifyDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Close drains buffered events and stops the dispatch goroutine.
func (d *notifyDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}
