// Package ecs holds the error taxonomy shared by the component runtime packages.
package ecs

import (
	"errors"
	"fmt"

	"github.com/zeusync/ecsruntime/internal/core/models"
)

var (
	ErrUnknownComponentType       = errors.New("unknown component type")
	ErrDeserialization            = errors.New("component deserialization failed")
	ErrSerialization              = errors.New("component serialization failed")
	ErrMissingSerializer          = errors.New("missing component serializer")
	ErrTypeMismatch               = errors.New("component model type mismatch")
	ErrComponentAlreadyRegistered = errors.New("component type already registered")
)

// ErrorCode is a numeric form of the sentinel errors, stable across the wire.
type ErrorCode int

const (
	ErrorCodeUnknown ErrorCode = iota
	ErrorCodeUnknownComponentType
	ErrorCodeDeserialization
	ErrorCodeSerialization
	ErrorCodeMissingSerializer
	ErrorCodeTypeMismatch
	ErrorCodeAlreadyRegistered
)

var codeToSentinel = map[ErrorCode]error{
	ErrorCodeUnknownComponentType: ErrUnknownComponentType,
	ErrorCodeDeserialization:      ErrDeserialization,
	ErrorCodeSerialization:        ErrSerialization,
	ErrorCodeMissingSerializer:    ErrMissingSerializer,
	ErrorCodeTypeMismatch:         ErrTypeMismatch,
	ErrorCodeAlreadyRegistered:    ErrComponentAlreadyRegistered,
}

// Error ties a failure to the component type it happened on.
type Error struct {
	Code        ErrorCode
	ComponentID models.ComponentID
	Cause       error
}

// NewError builds an Error for the given code and component type.
func NewError(code ErrorCode, id models.ComponentID, cause error) *Error {
	return &Error{Code: code, ComponentID: id, Cause: cause}
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s (component %d)", e.sentinel().Error(), e.ComponentID)
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

// Is matches the sentinel for the error's code, so errors.Is(err, ErrDeserialization) works.
func (e *Error) Is(target error) bool {
	return target == e.sentinel()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) sentinel() error {
	if s, ok := codeToSentinel[e.Code]; ok {
		return s
	}
	return errors.New("component runtime error")
}

// GetErrorCode returns the code carried by err, or ErrorCodeUnknown.
func GetErrorCode(err error) ErrorCode {
	var ecsErr *Error
	if errors.As(err, &ecsErr) {
		return ecsErr.Code
	}
	for code, sentinel := range codeToSentinel {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return ErrorCodeUnknown
}
