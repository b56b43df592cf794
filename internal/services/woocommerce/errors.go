package woocommerce

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCredentials: base URL, consumer key or consumer secret is empty.
	ErrMissingCredentials = errors.New("woocommerce: base URL, consumer key and consumer secret are required")
	// ErrNotFound: the remote answered 404 for a single product or variation.
	ErrNotFound = errors.New("woocommerce: not found")
)

// StatusError is a non-2xx answer. Page is 0 for non-paginated calls.
type StatusError struct {
	Method     string
	Path       string
	Page       int
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("woocommerce: %s %s page %d failed with status %d: %s", e.Method, e.Path, e.Page, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("woocommerce: %s %s failed with status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}
