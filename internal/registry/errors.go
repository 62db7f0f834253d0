package registry

import "errors"

// Registry errors. Handle returns either one of these or an event
// validation error from the s1ap package; both are matchable with errors.Is.
var (
	ErrImsiNotExists        = errors.New("imsi not known to registry")
	ErrMTmsiNotExists       = errors.New("m-tmsi not known to registry")
	ErrSubscriberNotFound   = errors.New("subscriber not found")
	ErrInvalidStateForEvent = errors.New("invalid subscriber state for event")
	ErrNoImsiOrMTmsiInEvent = errors.New("no imsi or resolvable m-tmsi in event")
	ErrTimeoutOccurred      = errors.New("identity request timeout occurred")
	ErrWrongState           = errors.New("wrong subscriber state")
)
