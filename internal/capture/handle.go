package capture

import (
	"context"
	"fmt"
	"sync"

	"github.com/lehigh-university-libraries/shelfscanner/internal/extraction"
)

// ModelUnavailableError means a detector or extractor could not be built.
// It fails the whole request.
type ModelUnavailableError struct {
	Component string
	Err       error
}

func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Component, e.Err)
}

func (e *ModelUnavailableError) Unwrap() error {
	return e.Err
}

// Message describes the underlying failure as "Type: message"
func (e *ModelUnavailableError) Message() string {
	return extraction.DescribeError(e.Err)
}

// Handle builds a model backend on first use and reuses it afterwards.
// A failed build is not remembered, so a later request retries.
type Handle[T any] struct {
	component string
	factory   func(context.Context) (T, error)

	mu    sync.Mutex
	value T
	ready bool
}

// NewHandle wraps factory for the named component
func NewHandle[T any](component string, factory func(context.Context) (T, error)) *Handle[T] {
	return &Handle[T]{component: component, factory: factory}
}

// Ready returns a handle that already holds value
func Ready[T any](component string, value T) *Handle[T] {
	return &Handle[T]{component: component, value: value, ready: true}
}

// Get returns the memoized value, building it if needed
func (h *Handle[T]) Get(ctx context.Context) (T, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ready {
		return h.value, nil
	}

	value, err := h.factory(ctx)
	if err != nil {
		var zero T
		return zero, &ModelUnavailableError{Component: h.component, Err: err}
	}
	h.value = value
	h.ready = true
	return value, nil
}
