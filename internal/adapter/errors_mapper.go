package adapter

import (
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

func mapStorageError(resp *resty.Response, route string) error {
	if resp.StatusCode() >= http.StatusOK && resp.StatusCode() < http.StatusMultipleChoices {
		return nil
	}

	switch resp.StatusCode() {
	case http.StatusUnauthorized:
		return fmt.Errorf("%s: %w", route, ErrUnauthorized)
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", route, ErrNotFound)
	case http.StatusPreconditionFailed:
		return fmt.Errorf("%s: %w", route, ErrBatchInterrupted)
	default:
		return &StorageError{Code: resp.StatusCode(), Route: route}
	}
}
