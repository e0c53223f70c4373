package occupancy

import (
	"github.com/anggasct/crossing/pkg/route"
)

// Set is an insertion-ordered collection of vehicles.
//
// A Set is not safe for concurrent use. The controller owns its sets and
// only touches them while holding its lock.
type Set struct {
	vehicles []*Vehicle
}

// NewSet creates an empty set
func NewSet() *Set {
	return &Set{
		vehicles: make([]*Vehicle, 0),
	}
}

// Add appends a vehicle to the set
func (s *Set) Add(v *Vehicle) {
	s.vehicles = append(s.vehicles, v)
}

// Remove removes the earliest vehicle travelling on r. It returns false and
// leaves the set untouched when no such vehicle exists.
func (s *Set) Remove(r route.Route) (*Vehicle, bool) {
	for i, v := range s.vehicles {
		if v.Route == r {
			s.removeAt(i)
			return v, true
		}
	}
	return nil, false
}

// RemoveVehicle removes exactly the given vehicle
func (s *Set) RemoveVehicle(target *Vehicle) bool {
	for i, v := range s.vehicles {
		if v == target {
			s.removeAt(i)
			return true
		}
	}
	return false
}

func (s *Set) removeAt(i int) {
	copy(s.vehicles[i:], s.vehicles[i+1:])
	s.vehicles[len(s.vehicles)-1] = nil
	s.vehicles = s.vehicles[:len(s.vehicles)-1]
}

// Conflict returns the first vehicle in the set whose route collides with
// r. Every member is checked.
func (s *Set) Conflict(r route.Route) (*Vehicle, bool) {
	for _, v := range s.vehicles {
		if route.Collides(v.Route, r) {
			return v, true
		}
	}
	return nil, false
}

// ConflictBefore returns the first vehicle that arrived before candidate
// and whose route collides with the candidate's route
func (s *Set) ConflictBefore(candidate *Vehicle) (*Vehicle, bool) {
	for _, v := range s.vehicles {
		if v == candidate || v.Arrival >= candidate.Arrival {
			continue
		}
		if route.Collides(v.Route, candidate.Route) {
			return v, true
		}
	}
	return nil, false
}

// Contains reports whether the vehicle is a member of the set
func (s *Set) Contains(target *Vehicle) bool {
	for _, v := range s.vehicles {
		if v == target {
			return true
		}
	}
	return false
}

// Len returns the number of vehicles in the set
func (s *Set) Len() int {
	return len(s.vehicles)
}

// Snapshot returns copies of the members in insertion order
func (s *Set) Snapshot() []Vehicle {
	out := make([]Vehicle, len(s.vehicles))
	for i, v := range s.vehicles {
		out[i] = *v
	}
	return out
}

// CountByRoute returns how many members travel on each route
func (s *Set) CountByRoute() map[route.Route]int {
	counts := make(map[route.Route]int)
	for _, v := range s.vehicles {
		counts[v.Route]++
	}
	return counts
}

// Compatible reports whether every pair of members may coexist
func (s *Set) Compatible() bool {
	routes := make([]route.Route, len(s.vehicles))
	for i, v := range s.vehicles {
		routes[i] = v.Route
	}
	_, _, collides := FirstCollision(routes)
	return !collides
}

// Routes extracts the route of every vehicle in a snapshot
func Routes(vehicles []Vehicle) []route.Route {
	routes := make([]route.Route, len(vehicles))
	for i, v := range vehicles {
		routes[i] = v.Route
	}
	return routes
}

// FirstCollision returns the first pair of routes that collide
func FirstCollision(routes []route.Route) (route.Route, route.Route, bool) {
	for i := range routes {
		for j := i + 1; j < len(routes); j++ {
			if route.Collides(routes[i], routes[j]) {
				return routes[i], routes[j], true
			}
		}
	}
	return route.Route{}, route.Route{}, false
}
