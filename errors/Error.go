// Package errors provides the indexer's error type: a code, a message, and
// an optional wrapped cause, composable with the standard library's
// errors.Is/errors.As/errors.Unwrap machinery.
package errors

import (
	"errors"
	"fmt"
)

// ERR identifies the broad category of an Error. Unlike the teacher's
// protobuf-generated enum, this is a plain Go type: the indexer has no
// gRPC-facing surface in this scope (see DESIGN.md), so there is nothing to
// marshal ERR across the wire for.
type ERR int32

const (
	ERR_UNKNOWN ERR = iota
	ERR_INVALID_ARGUMENT
	ERR_STORAGE
	ERR_PROCESSING
	ERR_NOT_FOUND
	ERR_BLOCK_EXISTS
	ERR_REORG_TOO_DEEP
	ERR_THRESHOLD_EXCEEDED

	// validation error codes, §4.4
	ERR_TICKER_ALREADY_EXISTS
	ERR_TICKER_NOT_DEPLOYED
	ERR_INVALID_AMOUNT
	ERR_INVALID_OPERATION
	ERR_EXCEEDS_MINT_LIMIT
	ERR_EXCEEDS_MAX_SUPPLY
	ERR_INSUFFICIENT_BALANCE
	ERR_NO_STANDARD_OUTPUT
	ERR_OP_RETURN_NOT_FIRST
	ERR_LEGACY_TOKEN_EXISTS
	ERR_INVALID_MARKETPLACE

	// parse error codes, §4.3/§7
	ERR_INVALID_JSON
	ERR_UNKNOWN_OP
	ERR_MISSING_FIELD
)

var errName = map[ERR]string{
	ERR_UNKNOWN:               "UNKNOWN",
	ERR_INVALID_ARGUMENT:      "INVALID_ARGUMENT",
	ERR_STORAGE:               "STORAGE",
	ERR_PROCESSING:            "PROCESSING",
	ERR_NOT_FOUND:             "NOT_FOUND",
	ERR_BLOCK_EXISTS:          "BLOCK_EXISTS",
	ERR_REORG_TOO_DEEP:        "REORG_TOO_DEEP",
	ERR_THRESHOLD_EXCEEDED:    "THRESHOLD_EXCEEDED",
	ERR_TICKER_ALREADY_EXISTS: "TICKER_ALREADY_EXISTS",
	ERR_TICKER_NOT_DEPLOYED:   "TICKER_NOT_DEPLOYED",
	ERR_INVALID_AMOUNT:        "INVALID_AMOUNT",
	ERR_INVALID_OPERATION:     "INVALID_OPERATION",
	ERR_EXCEEDS_MINT_LIMIT:    "EXCEEDS_MINT_LIMIT",
	ERR_EXCEEDS_MAX_SUPPLY:    "EXCEEDS_MAX_SUPPLY",
	ERR_INSUFFICIENT_BALANCE:  "INSUFFICIENT_BALANCE",
	ERR_NO_STANDARD_OUTPUT:    "NO_STANDARD_OUTPUT",
	ERR_OP_RETURN_NOT_FIRST:   "OP_RETURN_NOT_FIRST",
	ERR_LEGACY_TOKEN_EXISTS:   "LEGACY_TOKEN_EXISTS",
	ERR_INVALID_MARKETPLACE:   "INVALID_MARKETPLACE",
	ERR_INVALID_JSON:          "INVALID_JSON",
	ERR_UNKNOWN_OP:            "UNKNOWN_OP",
	ERR_MISSING_FIELD:         "MISSING_FIELD",
}

func (c ERR) String() string {
	if s, ok := errName[c]; ok {
		return s
	}
	return "UNKNOWN"
}

// Error is the indexer-wide error type. It is returned by every layer
// described in spec.md §7; the Code field lets callers (the reorg
// controller, the block pipeline, tests) branch on error category without
// parsing strings.
type Error struct {
	Code       ERR
	Message    string
	WrappedErr error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.WrappedErr == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.WrappedErr)
}

// Is reports whether error codes match, the way the teacher's Error.Is does.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	var ue *Error
	if errors.As(target, &ue) {
		return e.Code == ue.Code
	}
	return false
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.WrappedErr
}

// New constructs an Error, pulling the last param as a wrapped error when
// it implements error, then formatting the remainder against message with
// fmt.Sprintf - mirroring the teacher's errors.New signature.
func New(code ERR, message string, params ...interface{}) *Error {
	var wErr error
	if len(params) > 0 {
		if err, ok := params[len(params)-1].(error); ok {
			wErr = err
			params = params[:len(params)-1]
		}
	}
	if len(params) > 0 {
		message = fmt.Sprintf(message, params...)
	}
	return &Error{Code: code, Message: message, WrappedErr: wErr}
}

func NewInvalidArgumentError(message string, params ...interface{}) *Error {
	return New(ERR_INVALID_ARGUMENT, message, params...)
}

func NewStorageError(message string, params ...interface{}) *Error {
	return New(ERR_STORAGE, message, params...)
}

func NewProcessingError(message string, params ...interface{}) *Error {
	return New(ERR_PROCESSING, message, params...)
}

func NewNotFoundError(message string, params ...interface{}) *Error {
	return New(ERR_NOT_FOUND, message, params...)
}

func NewBlockExistsError(message string, params ...interface{}) *Error {
	return New(ERR_BLOCK_EXISTS, message, params...)
}

func NewReorgTooDeepError(message string, params ...interface{}) *Error {
	return New(ERR_REORG_TOO_DEEP, message, params...)
}

// NewValidationError builds a validation-layer error from one of the
// spec.md §4.4 codes, an ERR value whose String() form is what the
// operation-log entry stores (ticker/amount context is carried separately
// on the operation-log entry, not in the error).
func NewValidationError(code ERR, message string, params ...interface{}) *Error {
	return New(code, message, params...)
}

func Join(errs ...error) error {
	return errors.Join(errs...)
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}
