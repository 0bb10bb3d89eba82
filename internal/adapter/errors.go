package adapter

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized       = errors.New("storage server rejected the authorization token")
	ErrNotFound           = errors.New("not found on the storage server")
	ErrBatchInterrupted   = errors.New("upload interrupted by a concurrent modification")
	ErrRecordUploadFailed = errors.New("server rejected records in an atomic upload")
	ErrTokenExpired       = errors.New("authorization token has expired")
)

// StorageError reports a non-2xx response that does not map to one of the
// sentinel values above.
type StorageError struct {
	Code  int
	Route string
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage request %s failed with http %d", e.Route, e.Code)
}
