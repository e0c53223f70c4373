// Package policy holds the admission orderings that can be layered on top
// of the collision check. A policy can only delay a vehicle; whether two
// vehicles may share the intersection is decided by the route predicate.
package policy

import (
	"fmt"
	"strings"

	"github.com/anggasct/crossing/pkg/occupancy"
)

// Policy decides whether a vehicle whose route is compatible with every
// occupant should still hold back for the sake of other waiters
type Policy interface {
	// Name identifies the policy in logs and configuration
	Name() string

	// Yield reports whether candidate must keep waiting and, when known,
	// the vehicle it is waiting for. waiting holds every blocked vehicle
	// and may include candidate. Called with the controller lock held.
	Yield(candidate *occupancy.Vehicle, waiting *occupancy.Set) (*occupancy.Vehicle, bool)
}

// Greedy admits a vehicle as soon as its route fits. A vehicle whose route
// keeps colliding with a steady stream of compatible traffic can wait
// indefinitely.
type Greedy struct{}

// Name implements Policy
func (Greedy) Name() string { return "greedy" }

// Yield implements Policy
func (Greedy) Yield(*occupancy.Vehicle, *occupancy.Set) (*occupancy.Vehicle, bool) {
	return nil, false
}

// Ordered never lets a vehicle overtake an earlier waiter it collides
// with. The earliest waiter is held back only by occupants, which always
// leave, so every waiter is eventually admitted.
type Ordered struct{}

// Name implements Policy
func (Ordered) Name() string { return "ordered" }

// Yield implements Policy
func (Ordered) Yield(candidate *occupancy.Vehicle, waiting *occupancy.Set) (*occupancy.Vehicle, bool) {
	return waiting.ConflictBefore(candidate)
}

// Parse returns the policy with the given name
func Parse(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "greedy":
		return Greedy{}, nil
	case "ordered", "fifo":
		return Ordered{}, nil
	}
	return nil, fmt.Errorf("unknown admission policy %q", name)
}
