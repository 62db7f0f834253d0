package s1ap

import "errors"

// Event validation errors. Verify returns exactly one of these; Handle
// surfaces them unchanged so callers can match with errors.Is.
var (
	ErrWrongEventType        = errors.New("wrong event type")
	ErrWrongImsiAndMTmsiArgs = errors.New("attach request carries both imsi and m-tmsi")
	ErrMissingImsiOrMTmsi    = errors.New("attach request carries neither imsi nor m-tmsi")
	ErrImsiNotExist          = errors.New("imsi missing from event")
	ErrBadImsi               = errors.New("bad imsi")
	ErrBadEnodebID           = errors.New("enodeb id missing from event")
	ErrBadMTmsi              = errors.New("m-tmsi missing from event")
	ErrBadMmeID              = errors.New("mme id missing from event")
	ErrBadCgi                = errors.New("cgi missing from event")
)
