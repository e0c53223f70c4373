// Package occupancy tracks the vehicles that hold space inside the
// intersection and the lifecycle each of them goes through.
package occupancy

import (
	"fmt"
	"time"

	"github.com/anggasct/crossing/pkg/route"
	"github.com/google/uuid"
)

// State is the lifecycle stage of a vehicle
type State int

const (
	// Arriving vehicles have called enter but not yet been tested
	Arriving State = iota
	// Waiting vehicles are blocked on the controller
	Waiting
	// Occupying vehicles hold space inside the intersection
	Occupying
	// Departed vehicles have left the intersection
	Departed
	// Abandoned vehicles gave up waiting before being admitted
	Abandoned
)

func (s State) String() string {
	switch s {
	case Arriving:
		return "arriving"
	case Waiting:
		return "waiting"
	case Occupying:
		return "occupying"
	case Departed:
		return "departed"
	case Abandoned:
		return "abandoned"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// IsFinal reports whether no further transition is possible
func (s State) IsFinal() bool {
	return s == Departed || s == Abandoned
}

var allowedTransitions = map[State][]State{
	Arriving:  {Waiting, Occupying, Abandoned},
	Waiting:   {Occupying, Abandoned},
	Occupying: {Departed},
}

// CanTransition reports whether a vehicle may move from one state to another
func CanTransition(from, to State) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Vehicle is the controller's handle for one crossing. It exists from the
// call to enter until the matching leave returns.
type Vehicle struct {
	ID         string
	Route      route.Route
	Arrival    uint64
	State      State
	ArrivedAt  time.Time
	AdmittedAt time.Time
	DepartedAt time.Time
}

// NewVehicle creates a vehicle in the Arriving state
func NewVehicle(r route.Route, arrival uint64, now time.Time) *Vehicle {
	return &Vehicle{
		ID:        uuid.New().String(),
		Route:     r,
		Arrival:   arrival,
		State:     Arriving,
		ArrivedAt: now,
	}
}

// Advance moves the vehicle to the next lifecycle state, stamping the
// matching timestamp
func (v *Vehicle) Advance(to State, now time.Time) error {
	if !CanTransition(v.State, to) {
		return fmt.Errorf("vehicle %s: transition %s -> %s not allowed", v.ID, v.State, to)
	}
	v.State = to
	switch to {
	case Occupying:
		v.AdmittedAt = now
	case Departed, Abandoned:
		v.DepartedAt = now
	}
	return nil
}

// WaitTime returns how long the vehicle waited before admission, or zero
// if it has not been admitted
func (v *Vehicle) WaitTime() time.Duration {
	if v.AdmittedAt.IsZero() {
		return 0
	}
	return v.AdmittedAt.Sub(v.ArrivedAt)
}

// CrossingTime returns how long the vehicle occupied the intersection, or
// zero if it has not departed
func (v *Vehicle) CrossingTime() time.Duration {
	if v.AdmittedAt.IsZero() || v.DepartedAt.IsZero() {
		return 0
	}
	return v.DepartedAt.Sub(v.AdmittedAt)
}

func (v *Vehicle) String() string {
	return fmt.Sprintf("vehicle#%d[%s %s]", v.Arrival, v.Route, v.State)
}
