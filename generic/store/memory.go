// Package store provides LedgerStore implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/crew-payroll/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	entries     map[generic.EntryID]generic.PaymentEntry
	idempotency map[string]generic.EntryID
	allocations map[allocKey]int
}

type allocKey struct {
	WorkerID generic.WorkerID
	EventID  generic.EventID
}

func NewMemory() *Memory {
	return &Memory{
		entries:     make(map[generic.EntryID]generic.PaymentEntry),
		idempotency: make(map[string]generic.EntryID),
		allocations: make(map[allocKey]int),
	}
}

// Allocate records one allocation row for the worker in the event.
func (m *Memory) Allocate(workerID generic.WorkerID, eventID generic.EventID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allocations[allocKey{workerID, eventID}]++
}

// Deallocate removes one allocation row.
func (m *Memory) Deallocate(workerID generic.WorkerID, eventID generic.EventID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := allocKey{workerID, eventID}
	if m.allocations[k] <= 1 {
		delete(m.allocations, k)
		return
	}
	m.allocations[k]--
}

func (m *Memory) Append(_ context.Context, entry generic.PaymentEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(entry)
}

func (m *Memory) appendLocked(entry generic.PaymentEntry) error {
	if entry.IdempotencyKey != "" {
		if _, ok := m.idempotency[entry.IdempotencyKey]; ok {
			return generic.ErrDuplicateIdempotencyKey
		}
		m.idempotency[entry.IdempotencyKey] = entry.ID
	}
	m.entries[entry.ID] = entry
	return nil
}

func (m *Memory) Delete(_ context.Context, id generic.EntryID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteLocked(id)
}

func (m *Memory) deleteLocked(id generic.EntryID) error {
	entry, ok := m.entries[id]
	if !ok {
		return generic.ErrEntryNotFound
	}
	delete(m.entries, id)
	if entry.IdempotencyKey != "" {
		delete(m.idempotency, entry.IdempotencyKey)
	}
	return nil
}

func (m *Memory) Get(_ context.Context, id generic.EntryID) (*generic.PaymentEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLocked(id), nil
}

func (m *Memory) getLocked(id generic.EntryID) *generic.PaymentEntry {
	entry, ok := m.entries[id]
	if !ok {
		return nil
	}
	return &entry
}

func (m *Memory) LoadByEvent(_ context.Context, eventID generic.EventID) ([]generic.PaymentEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterLocked(func(e generic.PaymentEntry) bool { return e.EventID == eventID }), nil
}

func (m *Memory) LoadByWorker(_ context.Context, workerID generic.WorkerID) ([]generic.PaymentEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterLocked(func(e generic.PaymentEntry) bool { return e.WorkerID == workerID }), nil
}

func (m *Memory) filterLocked(keep func(generic.PaymentEntry) bool) []generic.PaymentEntry {
	var result []generic.PaymentEntry
	for _, e := range m.entries {
		if keep(e) {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].PaidAt.Equal(result[j].PaidAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].PaidAt.Before(result[j].PaidAt)
	})
	return result
}

func (m *Memory) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.idempotency[idempotencyKey]
	return ok, nil
}

func (m *Memory) HasAllocation(_ context.Context, workerID generic.WorkerID, eventID generic.EventID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.allocations[allocKey{workerID, eventID}] > 0, nil
}

// =============================================================================
// TRANSACTIONAL VIEW
// =============================================================================

// WithTx executes fn while holding the write lock.
// Simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(_ context.Context, fn func(generic.LedgerStore) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()
	if err := fn(&txView{parent: m}); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	entries     map[generic.EntryID]generic.PaymentEntry
	idempotency map[string]generic.EntryID
}

func (m *Memory) snapshot() memorySnapshot {
	entries := make(map[generic.EntryID]generic.PaymentEntry, len(m.entries))
	for k, v := range m.entries {
		entries[k] = v
	}
	idem := make(map[string]generic.EntryID, len(m.idempotency))
	for k, v := range m.idempotency {
		idem[k] = v
	}
	return memorySnapshot{entries: entries, idempotency: idem}
}

func (m *Memory) restore(s memorySnapshot) {
	m.entries = s.entries
	m.idempotency = s.idempotency
}

// txView operates on the parent without locking; the lock is held by WithTx.
type txView struct {
	parent *Memory
}

func (v *txView) Append(_ context.Context, entry generic.PaymentEntry) error {
	return v.parent.appendLocked(entry)
}

func (v *txView) Delete(_ context.Context, id generic.EntryID) error {
	return v.parent.deleteLocked(id)
}

func (v *txView) Get(_ context.Context, id generic.EntryID) (*generic.PaymentEntry, error) {
	return v.parent.getLocked(id), nil
}

func (v *txView) LoadByEvent(_ context.Context, eventID generic.EventID) ([]generic.PaymentEntry, error) {
	return v.parent.filterLocked(func(e generic.PaymentEntry) bool { return e.EventID == eventID }), nil
}

func (v *txView) LoadByWorker(_ context.Context, workerID generic.WorkerID) ([]generic.PaymentEntry, error) {
	return v.parent.filterLocked(func(e generic.PaymentEntry) bool { return e.WorkerID == workerID }), nil
}

func (v *txView) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	_, ok := v.parent.idempotency[idempotencyKey]
	return ok, nil
}

func (v *txView) HasAllocation(_ context.Context, workerID generic.WorkerID, eventID generic.EventID) (bool, error) {
	return v.parent.allocations[allocKey{workerID, eventID}] > 0, nil
}

var (
	_ generic.TxStore     = (*Memory)(nil)
	_ generic.LedgerStore = (*txView)(nil)
)
