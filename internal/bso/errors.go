package bso

import "errors"

var (
	ErrPayloadIsTombstone = errors.New("payload is a tombstone")
	ErrMismatchedID       = errors.New("payload id does not match envelope id")
	ErrRecordTooLarge     = errors.New("record is too large to upload")
)
