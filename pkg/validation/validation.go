// Package validation runs ordered chains of validators over batches of
// requests and partitions the results into valid and invalid items.
package validation

import (
	"context"
	"fmt"
)

// Kind classifies a validation failure.
type Kind int

const (
	KindBadRequest Kind = iota
	KindNotFound
)

func (k Kind) String() string {
	if k == KindNotFound {
		return "not_found"
	}
	return "bad_request"
}

// Error is a business-rule failure for one request.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// BadRequest creates a bad-request validation error.
func BadRequest(message string) *Error {
	return &Error{Kind: KindBadRequest, Message: message}
}

// NotFound creates a not-found validation error.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Validator checks a request without I/O. A nil return means valid.
type Validator[T any] interface {
	Validate(req T) *Error
}

// AsyncValidator checks a request and may consult collaborators. A non-nil
// error is an infrastructure failure and aborts the run.
type AsyncValidator[T any] interface {
	Validate(ctx context.Context, req T) (*Error, error)
}

// Func adapts a function to Validator.
type Func[T any] func(req T) *Error

func (f Func[T]) Validate(req T) *Error { return f(req) }

// AsyncFunc adapts a function to AsyncValidator.
type AsyncFunc[T any] func(ctx context.Context, req T) (*Error, error)

func (f AsyncFunc[T]) Validate(ctx context.Context, req T) (*Error, error) { return f(ctx, req) }

// Result is the outcome of validating one request.
type Result[T any] struct {
	Request T
	Err     *Error
}

// IsValid returns true when no validator rejected the request.
func (r Result[T]) IsValid() bool {
	return r.Err == nil
}

// Pipeline is an ordered chain of synchronous validators followed by an
// ordered chain of asynchronous ones. Later validators may rely on
// preconditions proven by earlier ones.
type Pipeline[T any] struct {
	Sync  []Validator[T]
	Async []AsyncValidator[T]
}

// Run validates each request independently, in input order. For each request
// the first failing validator decides the result and later validators are not
// run.
func (p Pipeline[T]) Run(ctx context.Context, requests []T) ([]Result[T], error) {
	results := make([]Result[T], 0, len(requests))
	for i, req := range requests {
		verr, err := p.validate(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("validate request %d: %w", i, err)
		}
		results = append(results, Result[T]{Request: req, Err: verr})
	}
	return results, nil
}

func (p Pipeline[T]) validate(ctx context.Context, req T) (*Error, error) {
	for _, v := range p.Sync {
		if verr := v.Validate(req); verr != nil {
			return verr, nil
		}
	}
	for _, v := range p.Async {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		verr, err := v.Validate(ctx, req)
		if err != nil {
			return nil, err
		}
		if verr != nil {
			return verr, nil
		}
	}
	return nil, nil
}

// Valid returns the requests that passed every validator.
func Valid[T any](results []Result[T]) []T {
	var out []T
	for _, r := range results {
		if r.IsValid() {
			out = append(out, r.Request)
		}
	}
	return out
}

// Invalid returns the rejected results.
func Invalid[T any](results []Result[T]) []Result[T] {
	var out []Result[T]
	for _, r := range results {
		if !r.IsValid() {
			out = append(out, r)
		}
	}
	return out
}
