package registry

import (
	"github.com/free5gc/mme/internal/logger"
	"github.com/free5gc/mme/internal/model"
)

// RecordIdentityRequest creates (or refreshes) an Attaching placeholder for
// a subscriber whose IMSI the embedding application learned while
// transmitting an IDENTITY REQUEST, and arms its response deadline. The
// placeholder is completed by a later IdentityResponse or torn down by
// HandleTimeouts.
//
// A subscriber already past the identity procedure is left untouched and
// ErrInvalidStateForEvent is returned.
func (registry *Registry) RecordIdentityRequest(imsi model.Imsi, deadline model.Timestamp) error {
	sub, exists := registry.imsiToSubscriber[imsi]
	if exists {
		if sub.state != model.StateAttaching {
			logger.RegistryLog.Warnf(
				"Identity Request recorded for user imsi=%d in state %s, ignoring",
				imsi, sub.state,
			)
			return ErrInvalidStateForEvent
		}
		registry.imsiToIdentityRequestTimeout[imsi] = deadline
		logger.RegistryLog.Debugf(
			"Identity Request deadline refreshed for user imsi=%d deadline=%d",
			imsi, deadline,
		)
		return nil
	}

	sub = newSubscriber(imsi)
	sub.state = model.StateAttaching
	registry.imsiToSubscriber[imsi] = sub
	registry.imsiToIdentityRequestTimeout[imsi] = deadline

	logger.RegistryLog.Infof(
		"Identity Request recorded for user imsi=%d, waiting for Identity Response until %d",
		imsi, deadline,
	)
	return nil
}

// HandleTimeouts tears down every subscriber whose identity-request
// deadline has passed without an Identity Response. No Reg was ever emitted
// for these subscribers, so no UnReg is emitted either. The sweep is
// idempotent and safe to invoke at any cadence. It returns the number of
// subscribers torn down.
func (registry *Registry) HandleTimeouts(now model.Timestamp) int {
	var expired []model.Imsi
	for imsi, deadline := range registry.imsiToIdentityRequestTimeout {
		if deadline <= now {
			expired = append(expired, imsi)
		}
	}

	sweptCount := 0
	for _, imsi := range expired {
		sub, exists := registry.imsiToSubscriber[imsi]
		if !exists || sub.state != model.StateAttaching {
			// The deadline entry is stale; drop it to restore the
			// invariant that entries track Attaching subscribers only.
			delete(registry.imsiToIdentityRequestTimeout, imsi)
			continue
		}

		logger.RegistryLog.Warnf(
			"user imsi=%d: %v, tearing down pending attach", imsi, ErrTimeoutOccurred,
		)

		sub.state = model.StateDetached
		registry.detachSubscriber(sub)
		sweptCount++
	}

	return sweptCount
}
