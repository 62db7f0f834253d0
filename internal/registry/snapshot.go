package registry

import (
	"sort"

	"github.com/free5gc/mme/internal/model"
)

// Read-only snapshot accessors for the status API and tests. Like Handle,
// they perform no internal locking: callers must run them on the same
// goroutine that owns the registry (in this repository, the dispatch loop).

// SubscriberCount returns the number of known subscribers.
func (registry *Registry) SubscriberCount() int {
	return len(registry.imsiToSubscriber)
}

// PendingIdentityRequestCount returns the number of armed identity-request
// deadlines.
func (registry *Registry) PendingIdentityRequestCount() int {
	return len(registry.imsiToIdentityRequestTimeout)
}

// GetSubscriberView returns a copy of the record for the given IMSI.
func (registry *Registry) GetSubscriberView(imsi model.Imsi) (SubscriberView, bool) {
	sub, exists := registry.imsiToSubscriber[imsi]
	if !exists {
		return SubscriberView{}, false
	}
	return sub.view(), true
}

// SubscribersSnapshot returns copies of all subscriber records, ordered by
// IMSI for stable output.
func (registry *Registry) SubscribersSnapshot() []SubscriberView {
	views := make([]SubscriberView, 0, len(registry.imsiToSubscriber))
	for _, sub := range registry.imsiToSubscriber {
		views = append(views, sub.view())
	}
	sort.Slice(views, func(i, j int) bool {
		return views[i].Imsi < views[j].Imsi
	})
	return views
}
