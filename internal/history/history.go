// Package history keeps a bounded in-memory record of the registration
// notifications the MME has emitted, so that operators can inspect recent
// Reg/UnReg/CgiChange activity through the status API without attaching a
// downstream consumer. Durability is explicitly out of scope; the buffer
// lives and dies with the process.
package history

import (
	"context"
	"sync"

	"github.com/free5gc/mme/internal/logger"
	"github.com/free5gc/mme/internal/model"
	"github.com/free5gc/mme/internal/northbound"
)

// Store is the interface used by the dispatcher (append side) and the
// status API (query side). All operations are safe to call from concurrent
// goroutines.
type Store interface {
	// Append records one emitted notification.
	Append(ctx context.Context, notification northbound.RegistrationNotification) error

	// Query returns notifications matching the constraints, oldest first.
	Query(ctx context.Context, query Query) ([]northbound.RegistrationNotification, error)

	// Len returns the current number of retained notifications.
	Len() int
}

// Query defines constraints used when selecting notifications.
type Query struct {
	// Imsi restricts results to a single subscriber when non-nil.
	Imsi *model.Imsi

	// Type restricts results to one notification type when non-empty.
	Type model.OutputType

	// Limit is an optional maximum number of results.
	// If Limit <= 0, no explicit limit is applied.
	Limit int
}

// memoryStore keeps notifications in an append-only slice trimmed to
// maxItems. Oldest entries are dropped first.
type memoryStore struct {
	mutexForEntries sync.RWMutex
	entries         []northbound.RegistrationNotification

	maxItems int
}

// NewMemoryStore creates a bounded in-memory history. A maxItems of zero or
// less falls back to a default of 1024 retained notifications.
func NewMemoryStore(maxItems int) Store {
	if maxItems <= 0 {
		maxItems = 1024
	}

	return &memoryStore{
		entries:  make([]northbound.RegistrationNotification, 0),
		maxItems: maxItems,
	}
}

// Append implements Store.Append.
func (store *memoryStore) Append(
	ctx context.Context,
	notification northbound.RegistrationNotification,
) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	store.mutexForEntries.Lock()
	defer store.mutexForEntries.Unlock()

	store.entries = append(store.entries, notification)

	if len(store.entries) > store.maxItems {
		overflow := len(store.entries) - store.maxItems
		logger.HistoryLog.Debugf(
			"notification history reached maxItems=%d, dropping oldest %d entr(ies)",
			store.maxItems, overflow,
		)
		store.entries = append(store.entries[:0:0], store.entries[overflow:]...)
	}

	return nil
}

// Query implements Store.Query. It scans the retained slice and returns a
// filtered copy.
func (store *memoryStore) Query(
	ctx context.Context,
	query Query,
) ([]northbound.RegistrationNotification, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	store.mutexForEntries.RLock()
	defer store.mutexForEntries.RUnlock()

	results := make([]northbound.RegistrationNotification, 0)

	for _, entry := range store.entries {
		if query.Imsi != nil && entry.Imsi != *query.Imsi {
			continue
		}
		if query.Type != "" && entry.Type != query.Type {
			continue
		}

		results = append(results, entry)

		if query.Limit > 0 && len(results) >= query.Limit {
			break
		}
	}

	return results, nil
}

// Len implements Store.Len.
func (store *memoryStore) Len() int {
	store.mutexForEntries.RLock()
	defer store.mutexForEntries.RUnlock()
	return len(store.entries)
}
