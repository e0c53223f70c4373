package route

import (
	"errors"
	"fmt"
)

// InvalidRouteError reports an origin/destination pair that does not
// describe a path through the intersection
type InvalidRouteError struct {
	Origin      Direction
	Destination Direction
	Reason      string
}

func (e *InvalidRouteError) Error() string {
	return fmt.Sprintf("invalid route [%s->%s]: %s", e.Origin, e.Destination, e.Reason)
}

// NewInvalidRouteError creates a new invalid route error
func NewInvalidRouteError(origin, destination Direction, reason string) *InvalidRouteError {
	return &InvalidRouteError{
		Origin:      origin,
		Destination: destination,
		Reason:      reason,
	}
}

// IsInvalidRouteError checks if an error is an InvalidRouteError
func IsInvalidRouteError(err error) bool {
	var target *InvalidRouteError
	return errors.As(err, &target)
}
