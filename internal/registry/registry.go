// Package registry implements the in-memory subscriber registry and the
// event-driven FSM at the heart of the MME: identity resolution across
// permanent (IMSI) and temporary (M-TMSI, eNodeB ID) keys, per-event state
// transitions, temporary identity allocation, and derivation of the
// outbound registration notification stream.
//
// The registry performs no internal synchronization. Handle and
// HandleTimeouts assume a single producer; multi-producer deployments must
// serialize externally, e.g. through the dispatch package's event queue.
package registry

import (
	"github.com/free5gc/mme/internal/logger"
	"github.com/free5gc/mme/internal/model"
	"github.com/free5gc/mme/internal/s1ap"
)

// firstMTmsi is the initial value of the temporary identity counter.
const firstMTmsi model.MTmsi = 1000

// IdentityRequester receives the "send IDENTITY REQUEST" side effect when
// an ATTACH REQUEST arrives with an M-TMSI the registry cannot resolve.
// Implementations must not call back into the registry.
type IdentityRequester interface {
	RequestIdentity(mTmsi model.MTmsi, enodebID model.EnodebID)
}

// logIdentityRequester is the default collaborator: the side effect is
// observable as a log line only.
type logIdentityRequester struct{}

func (logIdentityRequester) RequestIdentity(mTmsi model.MTmsi, enodebID model.EnodebID) {
	logger.RegistryLog.Infof(
		"received Attach Request with unknown mTmsi=%d from enodebId=%d, sending Identity Request",
		mTmsi, enodebID,
	)
}

// TargetEnodebIDFromCgi derives the target eNodeB of a PATH SWITCH REQUEST
// from the event's CGI. The default takes the first byte of the CGI blob,
// a stand-in for a real CGI decode step; it is an explicit hook so
// deployments can install a proper decoder.
var TargetEnodebIDFromCgi = func(cgi model.Cgi) model.EnodebID {
	if len(cgi) == 0 {
		return 0
	}
	return model.EnodebID(cgi[0])
}

// Registry owns the subscriber set and its secondary indices. Subscriber
// records live only in imsiToSubscriber; every other map carries the IMSI
// as its value.
type Registry struct {
	imsiToSubscriber             map[model.Imsi]*subscriber
	mTmsiToImsi                  map[model.MTmsi]model.Imsi
	enodebIDToImsi               map[model.EnodebID]model.Imsi
	mmeIDToImsi                  map[model.MmeID]model.Imsi
	imsiToIdentityRequestTimeout map[model.Imsi]model.Timestamp

	nextMTmsi         model.MTmsi
	identityRequester IdentityRequester
}

// NewRegistry creates an empty registry. A nil identityRequester installs
// the default log-only collaborator.
func NewRegistry(identityRequester IdentityRequester) *Registry {
	if identityRequester == nil {
		identityRequester = logIdentityRequester{}
	}

	return &Registry{
		imsiToSubscriber:             make(map[model.Imsi]*subscriber),
		mTmsiToImsi:                  make(map[model.MTmsi]model.Imsi),
		enodebIDToImsi:               make(map[model.EnodebID]model.Imsi),
		mmeIDToImsi:                  make(map[model.MmeID]model.Imsi),
		imsiToIdentityRequestTimeout: make(map[model.Imsi]model.Timestamp),
		nextMTmsi:                    firstMTmsi,
		identityRequester:            identityRequester,
	}
}

// GenerateNewMTmsi allocates the next temporary identity. The counter is
// monotonic within a process lifetime; wrap-around is not handled.
func (registry *Registry) GenerateNewMTmsi() model.MTmsi {
	allocated := registry.nextMTmsi
	registry.nextMTmsi++
	return allocated
}

// Handle validates the event, dispatches it to the per-type handler, and
// returns an optional registration notification. A nil Output with a nil
// error means the event was processed but no downstream notification is
// warranted.
func (registry *Registry) Handle(event s1ap.Event) (*s1ap.Output, error) {
	if verifyError := event.Verify(); verifyError != nil {
		return nil, verifyError
	}

	switch event.Type() {
	case model.EventAttachRequest:
		return registry.handleAttachRequest(event)
	case model.EventIdentityResponse:
		return registry.handleIdentityResponse(event)
	case model.EventPaging:
		return registry.handlePaging(event)
	case model.EventPathSwitchRequest:
		return registry.handlePathSwitchRequest(event)
	case model.EventUEContextReleaseResponse:
		return registry.handleUEContextReleaseResponse(event)
	case model.EventAttachAccept,
		model.EventPathSwitchRequestAcknowledge,
		model.EventUEContextReleaseCommand:
		// MME-originated (or mirrored) events carry no bookkeeping in this
		// simplified model.
		return nil, nil
	default:
		return nil, s1ap.ErrWrongEventType
	}
}

// resolveImsiFromEvent returns the event's IMSI directly, or the IMSI the
// event's M-TMSI currently maps to.
func (registry *Registry) resolveImsiFromEvent(event s1ap.Event) (model.Imsi, error) {
	if imsi, hasImsi := event.Imsi(); hasImsi {
		return imsi, nil
	}
	if mTmsi, hasMTmsi := event.MTmsi(); hasMTmsi {
		if imsi, known := registry.mTmsiToImsi[mTmsi]; known {
			return imsi, nil
		}
	}
	return 0, ErrNoImsiOrMTmsiInEvent
}

// resolveImsiFromEnodebID returns the IMSI of the subscriber currently
// reachable via the given eNodeB.
func (registry *Registry) resolveImsiFromEnodebID(enodebID model.EnodebID) (model.Imsi, error) {
	imsi, known := registry.enodebIDToImsi[enodebID]
	if !known {
		return 0, ErrSubscriberNotFound
	}
	return imsi, nil
}

func (registry *Registry) handleAttachRequest(event s1ap.Event) (*s1ap.Output, error) {
	imsi, resolveError := registry.resolveImsiFromEvent(event)
	if resolveError != nil {
		if mTmsi, hasMTmsi := event.MTmsi(); hasMTmsi {
			// Unknown temporary identity: ask the UE for its IMSI and wait.
			// The error is suppressed; no subscriber exists yet to track.
			enodebID, _ := event.EnodebID()
			registry.identityRequester.RequestIdentity(mTmsi, enodebID)
			return nil, nil
		}
		return nil, resolveError
	}

	sub, exists := registry.imsiToSubscriber[imsi]
	if !exists {
		return registry.processNewAttach(imsi, event)
	}

	if sub.state == model.StateAttached {
		return registry.processDuplicateAttach(sub, event)
	}

	return registry.processExistingAttach(sub, event)
}

// processNewAttach creates a subscriber for an IMSI the registry has never
// seen, assigns a fresh M-TMSI, and installs all indices.
func (registry *Registry) processNewAttach(imsi model.Imsi, event s1ap.Event) (*s1ap.Output, error) {
	enodebID, _ := event.EnodebID()

	sub := newSubscriber(imsi)
	sub.setLastEvent(event.Type(), event.Timestamp())
	sub.state = model.StateAttached
	sub.setEnodebID(enodebID)
	if event.HasCgi() {
		sub.setCgi(event.Cgi())
	}

	registry.imsiToSubscriber[imsi] = sub

	newMTmsi := registry.GenerateNewMTmsi()
	sub.setMTmsi(newMTmsi)
	registry.mTmsiToImsi[newMTmsi] = imsi
	registry.enodebIDToImsi[enodebID] = imsi

	logger.RegistryLog.Infof("user imsi=%d attached, assigned mTmsi=%d", imsi, newMTmsi)

	output := s1ap.NewOutput(model.OutputReg, imsi, event.Cgi())
	return &output, nil
}

// processDuplicateAttach refreshes the last-event bookkeeping for a
// subscriber that is already attached. No notification is emitted.
func (registry *Registry) processDuplicateAttach(sub *subscriber, event s1ap.Event) (*s1ap.Output, error) {
	sub.setLastEvent(event.Type(), event.Timestamp())
	logger.RegistryLog.Infof("user imsi=%d already attached, ignoring duplicate Attach Request", sub.imsi)
	return nil, nil
}

// processExistingAttach re-attaches a known subscriber that is not in the
// Attached state, allocating an M-TMSI only if it never held one.
func (registry *Registry) processExistingAttach(sub *subscriber, event s1ap.Event) (*s1ap.Output, error) {
	enodebID, _ := event.EnodebID()

	if sub.enodebID != nil && *sub.enodebID != enodebID {
		delete(registry.enodebIDToImsi, *sub.enodebID)
	}

	sub.state = model.StateAttached
	sub.setEnodebID(enodebID)
	if event.HasCgi() {
		sub.setCgi(event.Cgi())
	}
	sub.setLastEvent(event.Type(), event.Timestamp())

	if sub.mTmsi == nil {
		newMTmsi := registry.GenerateNewMTmsi()
		sub.setMTmsi(newMTmsi)
		registry.mTmsiToImsi[newMTmsi] = sub.imsi
	}

	registry.enodebIDToImsi[enodebID] = sub.imsi

	// A subscriber placed in Attaching by an identity procedure may
	// re-attach with its IMSI before the Identity Response arrives; the
	// pending deadline is obsolete once it reaches Attached.
	delete(registry.imsiToIdentityRequestTimeout, sub.imsi)

	logger.RegistryLog.Infof("user imsi=%d re-attached, current mTmsi=%d", sub.imsi, *sub.mTmsi)

	output := s1ap.NewOutput(model.OutputReg, sub.imsi, event.Cgi())
	return &output, nil
}

func (registry *Registry) handleIdentityResponse(event s1ap.Event) (*s1ap.Output, error) {
	imsi, _ := event.Imsi()

	sub, exists := registry.imsiToSubscriber[imsi]
	if !exists {
		return registry.processIdentityResponseForNewUser(imsi, event)
	}

	if sub.state == model.StateAttaching {
		return registry.processIdentityResponseForAttachingUser(sub, event)
	}

	logger.RegistryLog.Warnf(
		"received Identity Response for user imsi=%d in unexpected state %s, ignoring",
		imsi, sub.state,
	)
	return nil, nil
}

// processIdentityResponseForNewUser completes an attach whose initiating
// ATTACH REQUEST carried an M-TMSI the registry never resolved.
func (registry *Registry) processIdentityResponseForNewUser(imsi model.Imsi, event s1ap.Event) (*s1ap.Output, error) {
	enodebID, _ := event.EnodebID()
	mmeID, _ := event.MmeID()

	sub := newSubscriber(imsi)
	sub.setLastEvent(event.Type(), event.Timestamp())
	sub.state = model.StateAttached
	sub.setEnodebID(enodebID)
	sub.setMmeID(mmeID)
	if event.HasCgi() {
		sub.setCgi(event.Cgi())
	}

	registry.imsiToSubscriber[imsi] = sub

	newMTmsi := registry.GenerateNewMTmsi()
	sub.setMTmsi(newMTmsi)
	registry.mTmsiToImsi[newMTmsi] = imsi
	registry.enodebIDToImsi[enodebID] = imsi
	registry.mmeIDToImsi[mmeID] = imsi
	delete(registry.imsiToIdentityRequestTimeout, imsi)

	logger.RegistryLog.Infof(
		"received Identity Response for user imsi=%d, user attached, assigned mTmsi=%d",
		imsi, newMTmsi,
	)

	output := s1ap.NewOutput(model.OutputReg, imsi, event.Cgi())
	return &output, nil
}

// processIdentityResponseForAttachingUser moves an Attaching subscriber to
// Attached and clears its pending identity-request deadline.
func (registry *Registry) processIdentityResponseForAttachingUser(sub *subscriber, event s1ap.Event) (*s1ap.Output, error) {
	enodebID, _ := event.EnodebID()
	mmeID, _ := event.MmeID()

	sub.state = model.StateAttached
	sub.setLastEvent(event.Type(), event.Timestamp())
	sub.setEnodebID(enodebID)
	sub.setMmeID(mmeID)
	if event.HasCgi() {
		sub.setCgi(event.Cgi())
	}

	if sub.mTmsi == nil {
		newMTmsi := registry.GenerateNewMTmsi()
		sub.setMTmsi(newMTmsi)
		registry.mTmsiToImsi[newMTmsi] = sub.imsi
	}

	registry.enodebIDToImsi[enodebID] = sub.imsi
	registry.mmeIDToImsi[mmeID] = sub.imsi
	delete(registry.imsiToIdentityRequestTimeout, sub.imsi)

	logger.RegistryLog.Infof(
		"user imsi=%d moved from %s to %s, current mTmsi=%d",
		sub.imsi, model.StateAttaching, model.StateAttached, *sub.mTmsi,
	)

	output := s1ap.NewOutput(model.OutputReg, sub.imsi, event.Cgi())
	return &output, nil
}

func (registry *Registry) handlePaging(event s1ap.Event) (*s1ap.Output, error) {
	imsi, resolveError := registry.resolveImsiFromEvent(event)
	if resolveError != nil {
		return nil, resolveError
	}

	sub, exists := registry.imsiToSubscriber[imsi]
	if !exists {
		mTmsi, _ := event.MTmsi()
		logger.RegistryLog.Warnf(
			"Paging for non-existent subscriber imsi=%d (from mTmsi=%d)",
			imsi, mTmsi,
		)
		return nil, ErrSubscriberNotFound
	}

	if sub.state != model.StateAttached && sub.state != model.StateDetached {
		logger.RegistryLog.Warnf(
			"Paging for user imsi=%d received in unexpected state %s, ignoring",
			sub.imsi, sub.state,
		)
		return nil, nil
	}

	sub.setLastEvent(event.Type(), event.Timestamp())
	sub.state = model.StatePaging

	mTmsi, _ := event.MTmsi()
	logger.RegistryLog.Infof(
		"Paging for user imsi=%d (mTmsi=%d), changing state to %s",
		sub.imsi, mTmsi, model.StatePaging,
	)

	return nil, nil
}

func (registry *Registry) handlePathSwitchRequest(event s1ap.Event) (*s1ap.Output, error) {
	sourceEnodebID, _ := event.EnodebID()

	imsi, resolveError := registry.resolveImsiFromEnodebID(sourceEnodebID)
	if resolveError != nil {
		return nil, resolveError
	}

	sub, exists := registry.imsiToSubscriber[imsi]
	if !exists {
		logger.RegistryLog.Warnf("Path Switch Request for non-existent subscriber imsi=%d", imsi)
		return nil, ErrSubscriberNotFound
	}

	if sub.state != model.StateAttached {
		logger.RegistryLog.Warnf(
			"Path Switch Request for user imsi=%d received in unexpected state %s, rejecting",
			sub.imsi, sub.state,
		)
		return nil, ErrWrongState
	}

	targetEnodebID := TargetEnodebIDFromCgi(event.Cgi())
	mmeID, _ := event.MmeID()

	sub.setLastEvent(event.Type(), event.Timestamp())
	sub.setEnodebID(targetEnodebID)
	sub.setMmeID(mmeID)
	sub.state = model.StateHandover
	if event.HasCgi() {
		sub.setCgi(event.Cgi())
	}

	delete(registry.enodebIDToImsi, sourceEnodebID)
	registry.enodebIDToImsi[targetEnodebID] = sub.imsi
	registry.mmeIDToImsi[mmeID] = sub.imsi

	logger.RegistryLog.Infof(
		"Path Switch Request for user imsi=%d, moved from enodebId=%d to enodebId=%d",
		sub.imsi, sourceEnodebID, targetEnodebID,
	)

	output := s1ap.NewOutput(model.OutputCgiChange, sub.imsi, event.Cgi())
	return &output, nil
}

func (registry *Registry) handleUEContextReleaseResponse(event s1ap.Event) (*s1ap.Output, error) {
	enodebID, _ := event.EnodebID()

	imsi, resolveError := registry.resolveImsiFromEnodebID(enodebID)
	if resolveError != nil {
		return nil, resolveError
	}

	sub, exists := registry.imsiToSubscriber[imsi]
	if !exists {
		logger.RegistryLog.Warnf("UE Context Release Response for non-existent subscriber imsi=%d", imsi)
		return nil, ErrSubscriberNotFound
	}

	sub.state = model.StateDetached
	sub.setLastEvent(event.Type(), event.Timestamp())

	// The last known serving cell outlives the record as the UnReg
	// swan-song value.
	lastCgi := sub.cgi.Clone()

	registry.detachSubscriber(sub)

	logger.RegistryLog.Infof("UE Context for user imsi=%d released, user detached", imsi)

	output := s1ap.NewOutput(model.OutputUnReg, imsi, lastCgi)
	return &output, nil
}

// detachSubscriber erases every index entry the subscriber holds and then
// the primary record itself.
func (registry *Registry) detachSubscriber(sub *subscriber) {
	if sub.mTmsi != nil {
		delete(registry.mTmsiToImsi, *sub.mTmsi)
	}
	if sub.enodebID != nil {
		delete(registry.enodebIDToImsi, *sub.enodebID)
	}
	if sub.mmeID != nil {
		delete(registry.mmeIDToImsi, *sub.mmeID)
	}
	delete(registry.imsiToIdentityRequestTimeout, sub.imsi)
	delete(registry.imsiToSubscriber, sub.imsi)
}
