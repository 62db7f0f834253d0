package registry

import (
	"github.com/free5gc/mme/internal/model"
)

// subscriber is the mutable per-IMSI record. It is exclusively owned by the
// registry's primary map; secondary indices hold only the IMSI key, never a
// reference to the record.
type subscriber struct {
	imsi model.Imsi // set at creation, never changes

	mTmsi    *model.MTmsi
	enodebID *model.EnodebID
	mmeID    *model.MmeID
	cgi      model.Cgi

	state              model.SubscriberState
	lastEventType      model.EventType
	lastEventTimestamp model.Timestamp
}

// newSubscriber creates a record in the Detached state. The creating handler
// transitions it immediately.
func newSubscriber(imsi model.Imsi) *subscriber {
	return &subscriber{
		imsi:  imsi,
		state: model.StateDetached,
	}
}

// setLastEvent records the type and timestamp of the most recent event
// applied to this subscriber.
func (sub *subscriber) setLastEvent(eventType model.EventType, timestamp model.Timestamp) {
	sub.lastEventType = eventType
	sub.lastEventTimestamp = timestamp
}

func (sub *subscriber) setMTmsi(mTmsi model.MTmsi)          { sub.mTmsi = &mTmsi }
func (sub *subscriber) setEnodebID(enodebID model.EnodebID) { sub.enodebID = &enodebID }
func (sub *subscriber) setMmeID(mmeID model.MmeID)          { sub.mmeID = &mmeID }
func (sub *subscriber) setCgi(cgi model.Cgi)                { sub.cgi = cgi.Clone() }

// SubscriberView is an immutable copy of a subscriber record handed to
// callers outside the registry (status API, tests). Optional identifiers
// are nil when the subscriber has not yet learned them.
type SubscriberView struct {
	Imsi               model.Imsi            `json:"imsi"`
	MTmsi              *model.MTmsi          `json:"mTmsi,omitempty"`
	EnodebID           *model.EnodebID       `json:"enodebId,omitempty"`
	MmeID              *model.MmeID          `json:"mmeId,omitempty"`
	Cgi                model.Cgi             `json:"cgi,omitempty"`
	State              model.SubscriberState `json:"state"`
	LastEventType      model.EventType       `json:"lastEventType"`
	LastEventTimestamp model.Timestamp       `json:"lastEventTimestamp"`
}

// view builds a detached copy of the record. Pointer fields are duplicated
// so the caller can never alias registry-owned memory.
func (sub *subscriber) view() SubscriberView {
	subscriberView := SubscriberView{
		Imsi:               sub.imsi,
		Cgi:                sub.cgi.Clone(),
		State:              sub.state,
		LastEventType:      sub.lastEventType,
		LastEventTimestamp: sub.lastEventTimestamp,
	}
	if sub.mTmsi != nil {
		mTmsi := *sub.mTmsi
		subscriberView.MTmsi = &mTmsi
	}
	if sub.enodebID != nil {
		enodebID := *sub.enodebID
		subscriberView.EnodebID = &enodebID
	}
	if sub.mmeID != nil {
		mmeID := *sub.mmeID
		subscriberView.MmeID = &mmeID
	}
	return subscriberView
}
