/*
dispatcher.go - Ledger change notifications

PURPOSE:
  Tells interested parties (dashboards, realtime channels, audit sinks) that
  a worker's ledger changed. The cache invalidation that correctness depends
  on happens synchronously in the Service; notifications here are best
  effort and never block a ledger write.

DESIGN:
  - One background goroutine drains a buffered channel
  - Publish never blocks: when the buffer is full the event is dropped and
    logged
  - Stop drains what is already queued, then returns

USAGE:
  d := NewDispatcher(64, logger)
  d.Subscribe(func(ev LedgerChanged) { ... })
  d.Start()
  defer d.Stop()
*/
package closing

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/warp/crew-payroll/generic"
)

type ChangeAction string

const (
	ActionRegistered ChangeAction = "registered"
	ActionCancelled  ChangeAction = "cancelled"
)

// LedgerChanged is published after a successful ledger mutation.
type LedgerChanged struct {
	Action   ChangeAction
	EntryID  generic.EntryID
	WorkerID generic.WorkerID
	EventID  generic.EventID
	Kind     generic.PaymentKind
	Amount   decimal.Decimal
	At       time.Time
}

type Subscriber func(LedgerChanged)

// Dispatcher fans LedgerChanged events out to subscribers.
type Dispatcher struct {
	events chan LedgerChanged
	stop   chan struct{}
	log    zerolog.Logger

	mu      sync.RWMutex
	subs    []Subscriber
	running bool
	wg      sync.WaitGroup
}

func NewDispatcher(buffer int, log zerolog.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = 64
	}
	return &Dispatcher{
		events: make(chan LedgerChanged, buffer),
		stop:   make(chan struct{}),
		log:    log,
	}
}

func (d *Dispatcher) Subscribe(fn Subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subs = append(d.subs, fn)
}

// Start begins delivering events. Calling Start twice is a no-op.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	d.running = true
	d.wg.Add(1)
	go d.run()
	d.log.Debug().Msg("ledger dispatcher started")
}

// Stop delivers queued events and waits for the goroutine to exit.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	close(d.stop)
	d.mu.Unlock()

	d.wg.Wait()
	d.log.Debug().Msg("ledger dispatcher stopped")
}

// Publish queues ev. It reports false when the event was dropped.
func (d *Dispatcher) Publish(ev LedgerChanged) bool {
	select {
	case d.events <- ev:
		return true
	default:
		d.log.Warn().
			Str("entry_id", string(ev.EntryID)).
			Str("event_id", string(ev.EventID)).
			Msg("ledger notification dropped: buffer full")
		return false
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case ev := <-d.events:
			d.deliver(ev)
		case <-d.stop:
			for {
				select {
				case ev := <-d.events:
					d.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(ev LedgerChanged) {
	d.mu.RLock()
	subs := append([]Subscriber(nil), d.subs...)
	d.mu.RUnlock()

	for _, fn := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					d.log.Error().Interface("panic", r).Msg("ledger subscriber panicked")
				}
			}()
			fn(ev)
		}()
	}
}
