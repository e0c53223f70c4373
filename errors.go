package crossing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/anggasct/crossing/pkg/route"
)

// ErrorCode represents specific error conditions in the controller
type ErrorCode int

const (
	// No error occurred
	ErrCodeNone ErrorCode = iota
	// Origin and destination do not form a route
	ErrCodeInvalidRoute
	// Leave was called for a route with no occupant
	ErrCodeNoSuchOccupant
	// Teardown found vehicles still inside the intersection
	ErrCodeOccupiedAtClose
	// Controller has been torn down
	ErrCodeControllerClosed
	// Vehicle stopped waiting before admission
	ErrCodeAbandoned
	// Controller configuration is invalid
	ErrCodeInvalidConfiguration
)

// InvalidRouteError is returned when origin and destination do not
// describe a path through the intersection
type InvalidRouteError = route.InvalidRouteError

// ConsistencyError reports a broken enter/leave pairing. The occupancy
// record can no longer be trusted once one is returned.
type ConsistencyError struct {
	Code      ErrorCode
	Operation string
	Route     route.Route
	Occupants []string
	Message   string
}

func (e *ConsistencyError) Error() string {
	if len(e.Occupants) > 0 {
		return fmt.Sprintf("consistency error during %s: %s [%s]", e.Operation, e.Message, strings.Join(e.Occupants, ", "))
	}
	return fmt.Sprintf("consistency error during %s: %s", e.Operation, e.Message)
}

// NewNoSuchOccupantError creates the error returned by a leave without a
// matching enter
func NewNoSuchOccupantError(r route.Route) *ConsistencyError {
	return &ConsistencyError{
		Code:      ErrCodeNoSuchOccupant,
		Operation: "Leave",
		Route:     r,
		Message:   fmt.Sprintf("no vehicle on route %s is inside the intersection", r),
	}
}

// NewOccupiedAtCloseError creates the error returned by a teardown while
// vehicles remain inside
func NewOccupiedAtCloseError(occupants []string) *ConsistencyError {
	return &ConsistencyError{
		Code:      ErrCodeOccupiedAtClose,
		Operation: "Close",
		Occupants: occupants,
		Message:   fmt.Sprintf("%d vehicle(s) still inside the intersection", len(occupants)),
	}
}

// ControllerError represents errors from controller operations
type ControllerError struct {
	Code      ErrorCode
	Operation string
	Message   string
	Cause     error
}

func (e *ControllerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("controller error during %s: %s: %v", e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("controller error during %s: %s", e.Operation, e.Message)
}

func (e *ControllerError) Unwrap() error {
	return e.Cause
}

// NewControllerClosedError creates a new controller closed error
func NewControllerClosedError(operation string) *ControllerError {
	return &ControllerError{
		Code:      ErrCodeControllerClosed,
		Operation: operation,
		Message:   "controller is closed",
	}
}

// NewAbandonedError creates the error returned when a waiting vehicle's
// context ends before admission
func NewAbandonedError(r route.Route, cause error) *ControllerError {
	return &ControllerError{
		Code:      ErrCodeAbandoned,
		Operation: "Enter",
		Message:   fmt.Sprintf("vehicle on route %s stopped waiting", r),
		Cause:     cause,
	}
}

// ConfigurationError represents controller configuration issues
type ConfigurationError struct {
	Component string
	Issue     string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Issue)
}

// NewConfigurationError creates a new configuration error
func NewConfigurationError(component, issue string) *ConfigurationError {
	return &ConfigurationError{
		Component: component,
		Issue:     issue,
	}
}

// IsInvalidRouteError checks if an error is an InvalidRouteError
func IsInvalidRouteError(err error) bool {
	return route.IsInvalidRouteError(err)
}

// IsConsistencyError checks if an error is a ConsistencyError
func IsConsistencyError(err error) bool {
	var target *ConsistencyError
	return errors.As(err, &target)
}

// IsControllerError checks if an error is a ControllerError
func IsControllerError(err error) bool {
	var target *ControllerError
	return errors.As(err, &target)
}

// IsConfigurationError checks if an error is a ConfigurationError
func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// GetErrorCode returns the error code for known error types
func GetErrorCode(err error) ErrorCode {
	var (
		consistency *ConsistencyError
		controller  *ControllerError
	)
	switch {
	case IsInvalidRouteError(err):
		return ErrCodeInvalidRoute
	case errors.As(err, &consistency):
		return consistency.Code
	case errors.As(err, &controller):
		return controller.Code
	case IsConfigurationError(err):
		return ErrCodeInvalidConfiguration
	default:
		return ErrCodeNone
	}
}
