package model

import "errors"

// Kind is a stable error tag surfaced to callers of the core's request/
// response interface: every failure mode the caller needs to branch on has
// a sentinel here rather than a parsed error string.
type Kind string

const (
	KindInvalidFix       Kind = "InvalidFix"
	KindInvalidTrack     Kind = "InvalidTrack"
	KindMissingSession   Kind = "MissingSession"
	KindUnknownTrain     Kind = "UnknownTrain"
	KindUnknownTrack     Kind = "UnknownTrack"
	KindTrackBusy        Kind = "TrackBusy"
	KindStoreUnavailable Kind = "StoreUnavailable"
)

var (
	ErrInvalidFix       = errors.New(string(KindInvalidFix))
	ErrInvalidTrack     = errors.New(string(KindInvalidTrack))
	ErrMissingSession   = errors.New(string(KindMissingSession))
	ErrUnknownTrain     = errors.New(string(KindUnknownTrain))
	ErrUnknownTrack     = errors.New(string(KindUnknownTrack))
	ErrTrackBusy        = errors.New(string(KindTrackBusy))
	ErrStoreUnavailable = errors.New(string(KindStoreUnavailable))
)
