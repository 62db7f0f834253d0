// Package s1ap defines the value types exchanged with the subscriber
// registry: the immutable Event describing one S1AP signalling message and
// the Output notification emitted to downstream consumers.
//
// Events are constructed through named factories only; an event once
// constructed is never mutated. Verify checks the per-type required-field
// mask and is pure: it never touches registry state.
package s1ap

import (
	"github.com/free5gc/mme/internal/model"
)

// Event is an immutable, tagged record describing one S1AP signalling
// message. The optional identifier fields are populated per event type by
// the factories below.
type Event struct {
	eventType model.EventType
	timestamp model.Timestamp

	imsi     *model.Imsi
	mTmsi    *model.MTmsi
	enodebID *model.EnodebID
	mmeID    *model.MmeID
	cgi      model.Cgi
}

// NewAttachRequestWithImsi builds an ATTACH REQUEST identified by the
// permanent IMSI.
func NewAttachRequestWithImsi(
	timestamp model.Timestamp,
	imsi model.Imsi,
	enodebID model.EnodebID,
	cgi model.Cgi,
) Event {
	return Event{
		eventType: model.EventAttachRequest,
		timestamp: timestamp,
		imsi:      &imsi,
		enodebID:  &enodebID,
		cgi:       cgi.Clone(),
	}
}

// NewAttachRequestWithMTmsi builds an ATTACH REQUEST identified by a
// previously assigned temporary M-TMSI.
func NewAttachRequestWithMTmsi(
	timestamp model.Timestamp,
	enodebID model.EnodebID,
	mTmsi model.MTmsi,
	cgi model.Cgi,
) Event {
	return Event{
		eventType: model.EventAttachRequest,
		timestamp: timestamp,
		mTmsi:     &mTmsi,
		enodebID:  &enodebID,
		cgi:       cgi.Clone(),
	}
}

// NewIdentityResponse builds an IDENTITY RESPONSE revealing the IMSI of a
// subscriber previously known only by M-TMSI.
func NewIdentityResponse(
	timestamp model.Timestamp,
	imsi model.Imsi,
	enodebID model.EnodebID,
	mmeID model.MmeID,
	cgi model.Cgi,
) Event {
	return Event{
		eventType: model.EventIdentityResponse,
		timestamp: timestamp,
		imsi:      &imsi,
		enodebID:  &enodebID,
		mmeID:     &mmeID,
		cgi:       cgi.Clone(),
	}
}

// NewAttachAccept builds an ATTACH ACCEPT.
func NewAttachAccept(
	timestamp model.Timestamp,
	enodebID model.EnodebID,
	mmeID model.MmeID,
	mTmsi model.MTmsi,
) Event {
	return Event{
		eventType: model.EventAttachAccept,
		timestamp: timestamp,
		enodebID:  &enodebID,
		mmeID:     &mmeID,
		mTmsi:     &mTmsi,
	}
}

// NewPaging builds a PAGING event for the subscriber holding the M-TMSI.
func NewPaging(
	timestamp model.Timestamp,
	mTmsi model.MTmsi,
	cgi model.Cgi,
) Event {
	return Event{
		eventType: model.EventPaging,
		timestamp: timestamp,
		mTmsi:     &mTmsi,
		cgi:       cgi.Clone(),
	}
}

// NewPathSwitchRequest builds a PATH SWITCH REQUEST. The enodebID field
// designates the source eNodeB; the target is derived from the CGI by the
// registry.
func NewPathSwitchRequest(
	timestamp model.Timestamp,
	enodebID model.EnodebID,
	mmeID model.MmeID,
	cgi model.Cgi,
) Event {
	return Event{
		eventType: model.EventPathSwitchRequest,
		timestamp: timestamp,
		enodebID:  &enodebID,
		mmeID:     &mmeID,
		cgi:       cgi.Clone(),
	}
}

// NewPathSwitchRequestAcknowledge builds a PATH SWITCH REQUEST ACKNOWLEDGE.
func NewPathSwitchRequestAcknowledge(
	timestamp model.Timestamp,
	enodebID model.EnodebID,
	mmeID model.MmeID,
) Event {
	return Event{
		eventType: model.EventPathSwitchRequestAcknowledge,
		timestamp: timestamp,
		enodebID:  &enodebID,
		mmeID:     &mmeID,
	}
}

// NewUEContextReleaseCommand builds a UE CONTEXT RELEASE COMMAND.
func NewUEContextReleaseCommand(
	timestamp model.Timestamp,
	enodebID model.EnodebID,
	mmeID model.MmeID,
	cgi model.Cgi,
) Event {
	return Event{
		eventType: model.EventUEContextReleaseCommand,
		timestamp: timestamp,
		enodebID:  &enodebID,
		mmeID:     &mmeID,
		cgi:       cgi.Clone(),
	}
}

// NewUEContextReleaseResponse builds a UE CONTEXT RELEASE RESPONSE, the
// event that finally destroys a subscriber record.
func NewUEContextReleaseResponse(
	timestamp model.Timestamp,
	enodebID model.EnodebID,
	mmeID model.MmeID,
) Event {
	return Event{
		eventType: model.EventUEContextReleaseResponse,
		timestamp: timestamp,
		enodebID:  &enodebID,
		mmeID:     &mmeID,
	}
}

// Type returns the event's type tag.
func (event Event) Type() model.EventType { return event.eventType }

// Timestamp returns the producer-supplied monotonic timestamp.
func (event Event) Timestamp() model.Timestamp { return event.timestamp }

// Imsi returns the IMSI and whether it is present.
func (event Event) Imsi() (model.Imsi, bool) {
	if event.imsi == nil {
		return 0, false
	}
	return *event.imsi, true
}

// MTmsi returns the M-TMSI and whether it is present.
func (event Event) MTmsi() (model.MTmsi, bool) {
	if event.mTmsi == nil {
		return 0, false
	}
	return *event.mTmsi, true
}

// EnodebID returns the eNodeB ID and whether it is present.
func (event Event) EnodebID() (model.EnodebID, bool) {
	if event.enodebID == nil {
		return 0, false
	}
	return *event.enodebID, true
}

// MmeID returns the MME ID and whether it is present.
func (event Event) MmeID() (model.MmeID, bool) {
	if event.mmeID == nil {
		return 0, false
	}
	return *event.mmeID, true
}

// Cgi returns a copy of the CGI, or nil if absent.
func (event Event) Cgi() model.Cgi { return event.cgi.Clone() }

// HasCgi reports whether the event carries a CGI.
func (event Event) HasCgi() bool { return event.cgi != nil }

// Verify checks the per-type required-field mask. It is pure and performs
// no registry reads.
func (event Event) Verify() error {
	switch event.eventType {
	case model.EventAttachRequest:
		return event.verifyAttachRequest()
	case model.EventIdentityResponse:
		return event.verifyIdentityResponse()
	case model.EventAttachAccept:
		return event.verifyAttachAccept()
	case model.EventPaging:
		return event.verifyPaging()
	case model.EventPathSwitchRequest:
		return event.verifyPathSwitchRequest()
	case model.EventPathSwitchRequestAcknowledge:
		return event.verifyPathSwitchRequestAcknowledge()
	case model.EventUEContextReleaseCommand:
		return event.verifyUEContextReleaseCommand()
	case model.EventUEContextReleaseResponse:
		return event.verifyUEContextReleaseResponse()
	default:
		return ErrWrongEventType
	}
}

func (event Event) verifyAttachRequest() error {
	if event.imsi != nil && event.mTmsi != nil {
		return ErrWrongImsiAndMTmsiArgs
	}
	if event.imsi == nil && event.mTmsi == nil {
		return ErrMissingImsiOrMTmsi
	}
	if event.enodebID == nil {
		return ErrBadEnodebID
	}
	if event.cgi == nil {
		return ErrBadCgi
	}
	return nil
}

func (event Event) verifyIdentityResponse() error {
	if event.imsi == nil {
		return ErrImsiNotExist
	}
	if event.enodebID == nil {
		return ErrBadEnodebID
	}
	if event.mmeID == nil {
		return ErrBadMmeID
	}
	if event.cgi == nil {
		return ErrBadCgi
	}
	return nil
}

func (event Event) verifyAttachAccept() error {
	if event.enodebID == nil {
		return ErrBadEnodebID
	}
	if event.mmeID == nil {
		return ErrBadMmeID
	}
	if event.mTmsi == nil {
		return ErrBadMTmsi
	}
	return nil
}

func (event Event) verifyPaging() error {
	if event.mTmsi == nil {
		return ErrBadMTmsi
	}
	if event.cgi == nil {
		return ErrBadCgi
	}
	return nil
}

func (event Event) verifyPathSwitchRequest() error {
	if event.enodebID == nil {
		return ErrBadEnodebID
	}
	if event.mmeID == nil {
		return ErrBadMmeID
	}
	if event.cgi == nil {
		return ErrBadCgi
	}
	return nil
}

func (event Event) verifyPathSwitchRequestAcknowledge() error {
	if event.enodebID == nil {
		return ErrBadEnodebID
	}
	if event.mmeID == nil {
		return ErrBadMmeID
	}
	return nil
}

func (event Event) verifyUEContextReleaseCommand() error {
	if event.enodebID == nil {
		return ErrBadEnodebID
	}
	if event.mmeID == nil {
		return ErrBadMmeID
	}
	if event.cgi == nil {
		return ErrBadCgi
	}
	return nil
}

func (event Event) verifyUEContextReleaseResponse() error {
	if event.enodebID == nil {
		return ErrBadEnodebID
	}
	if event.mmeID == nil {
		return ErrBadMmeID
	}
	return nil
}
