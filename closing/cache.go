package closing

import (
	"slices"
	"sync"

	"github.com/warp/crew-payroll/generic"
	"github.com/warp/crew-payroll/payroll"
)

// =============================================================================
// VIEW CACHE - Computed payroll views, dropped on every relevant mutation
// =============================================================================

// Cache holds computed event views and per-worker monthly views. It never
// holds source data: a miss recomputes from the repository and ledger.
//
// Fills are versioned. A reader takes a Version before loading source data
// and hands it back to PutEvent / PutMonthly. A fill whose version was
// invalidated in between is discarded.
type Cache struct {
	mu      sync.RWMutex
	epoch   uint64
	events  map[generic.EventID][]payroll.Detail
	monthly map[monthKey]payroll.MonthlySummary

	eventGen  map[generic.EventID]uint64
	workerGen map[generic.WorkerID]uint64
}

type monthKey struct {
	WorkerID generic.WorkerID
	Month    generic.Month
}

// Version identifies the cache state a reader started from.
type Version struct {
	epoch uint64
	gen   uint64
}

func NewCache() *Cache {
	return &Cache{
		events:    make(map[generic.EventID][]payroll.Detail),
		monthly:   make(map[monthKey]payroll.MonthlySummary),
		eventGen:  make(map[generic.EventID]uint64),
		workerGen: make(map[generic.WorkerID]uint64),
	}
}

// Event returns a copy of the cached view, safe for the caller to modify.
func (c *Cache) Event(eventID generic.EventID) ([]payroll.Detail, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.events[eventID]
	if !ok {
		return nil, false
	}
	return cloneDetails(d), true
}

func (c *Cache) EventVersion(eventID generic.EventID) Version {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Version{epoch: c.epoch, gen: c.eventGen[eventID]}
}

// PutEvent stores details unless the event was invalidated after v was
// taken. It reports whether the view was stored.
func (c *Cache) PutEvent(eventID generic.EventID, details []payroll.Detail, v Version) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v != (Version{epoch: c.epoch, gen: c.eventGen[eventID]}) {
		return false
	}
	c.events[eventID] = cloneDetails(details)
	return true
}

// Monthly returns a copy of the cached summary.
func (c *Cache) Monthly(workerID generic.WorkerID, month generic.Month) (payroll.MonthlySummary, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.monthly[monthKey{workerID, month}]
	if !ok {
		return payroll.MonthlySummary{}, false
	}
	s.Events = slices.Clone(s.Events)
	return s, true
}

func (c *Cache) WorkerVersion(workerID generic.WorkerID) Version {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Version{epoch: c.epoch, gen: c.workerGen[workerID]}
}

// PutMonthly stores s unless the worker was invalidated after v was taken.
func (c *Cache) PutMonthly(s payroll.MonthlySummary, v Version) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v != (Version{epoch: c.epoch, gen: c.workerGen[s.WorkerID]}) {
		return false
	}
	s.Events = slices.Clone(s.Events)
	c.monthly[monthKey{s.WorkerID, s.Month}] = s
	return true
}

// Invalidate drops the event view and every monthly view of the worker.
// An empty workerID drops the event view only.
func (c *Cache) Invalidate(eventID generic.EventID, workerID generic.WorkerID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eventGen[eventID]++
	delete(c.events, eventID)
	if workerID == "" {
		return
	}
	c.workerGen[workerID]++
	for k := range c.monthly {
		if k.WorkerID == workerID {
			delete(c.monthly, k)
		}
	}
}

// Clear drops everything. Used when settings or personnel change, since
// those feed every event.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.events = make(map[generic.EventID][]payroll.Detail)
	c.monthly = make(map[monthKey]payroll.MonthlySummary)
	c.eventGen = make(map[generic.EventID]uint64)
	c.workerGen = make(map[generic.WorkerID]uint64)
}

// Len reports the number of cached views, for tests and metrics.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.events) + len(c.monthly)
}

func cloneDetails(details []payroll.Detail) []payroll.Detail {
	out := slices.Clone(details)
	for i := range out {
		out[i].Absences = slices.Clone(out[i].Absences)
		out[i].Payments = slices.Clone(out[i].Payments)
		out[i].Overtime.Days = slices.Clone(out[i].Overtime.Days)
	}
	return out
}
