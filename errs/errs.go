// Package errs provides structured error types and helpers for Folio services.
package errs

import (
	"errors"
	"strconv"
	"strings"
)

// Code identifies an error category within the strategy runtime.
type Code string

const (
	// CodeContractNotFound indicates an order or subscription targeted an unknown instrument.
	CodeContractNotFound Code = "contract_not_found"
	// CodeDuplicateStrategy indicates a strategy name collision in the registry.
	CodeDuplicateStrategy Code = "duplicate_strategy"
	// CodeUnknownClass indicates the referenced strategy class is not registered.
	CodeUnknownClass Code = "unknown_strategy_class"
	// CodeInvalidTransition indicates a lifecycle operation was called out of order.
	CodeInvalidTransition Code = "invalid_transition"
	// CodeCallbackFault indicates a strategy hook panicked or returned an error.
	CodeCallbackFault Code = "callback_fault"
	// CodeInvalid indicates invalid input provided by the caller.
	CodeInvalid Code = "invalid_request"
	// CodeStorage indicates a persistence-layer failure.
	CodeStorage Code = "storage"
	// CodeNetwork indicates a network transport failure.
	CodeNetwork Code = "network"
	// CodeGateway indicates an order-gateway failure.
	CodeGateway Code = "gateway_error"
	// CodeNotFound indicates a missing resource.
	CodeNotFound Code = "not_found"
)

// E captures structured error information produced across the Folio stack.
type E struct {
	Scope    string
	Code     Code
	Strategy string
	Message  string

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the scope and error code.
func New(scope string, code Code, opts ...Option) *E {
	e := &E{
		Scope:    strings.TrimSpace(scope),
		Code:     code,
		Strategy: "",
		Message:  "",
		cause:    nil,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithMessage attaches a human-readable message to the error.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) {
		e.Message = trimmed
	}
}

// WithStrategy records the strategy instance the error relates to.
func WithStrategy(name string) Option {
	trimmed := strings.TrimSpace(name)
	return func(e *E) {
		e.Strategy = trimmed
	}
}

// WithCause sets the underlying cause error.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	var parts []string

	scope := strings.TrimSpace(e.Scope)
	if scope == "" {
		scope = "unknown"
	}
	parts = append(parts, "scope="+scope)

	code := strings.TrimSpace(string(e.Code))
	if code == "" {
		code = "unknown"
	}
	parts = append(parts, "code="+code)

	if e.Strategy != "" {
		parts = append(parts, "strategy="+e.Strategy)
	}
	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}

	return strings.Join(parts, " ")
}

func (e *E) Unwrap() error { return e.cause }

// CodeOf extracts the error code from err, walking the wrap chain.
// Returns an empty code when err carries no envelope.
func CodeOf(err error) Code {
	var envelope *E
	if errors.As(err, &envelope) && envelope != nil {
		return envelope.Code
	}
	return ""
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}
