// Package route models the approaches of a four-way intersection and the
// paths vehicles take through it.
package route

import (
	"fmt"
	"strings"
)

// Direction identifies one side of the intersection
type Direction uint8

const (
	// North side of the intersection
	North Direction = iota
	// East side of the intersection
	East
	// South side of the intersection
	South
	// West side of the intersection
	West
)

// NumDirections is the number of sides of the intersection
const NumDirections = 4

var directionNames = [NumDirections]string{"north", "east", "south", "west"}

// String returns the lower-case name of the direction
func (d Direction) String() string {
	if !d.Valid() {
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
	return directionNames[d]
}

// Valid reports whether d is one of the four sides
func (d Direction) Valid() bool {
	return d < NumDirections
}

// Opposite returns the side facing d
func (d Direction) Opposite() Direction {
	return (d + 2) % NumDirections
}

// ParseDirection parses a direction name. Single-letter abbreviations and
// any letter case are accepted.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "north", "n":
		return North, nil
	case "east", "e":
		return East, nil
	case "south", "s":
		return South, nil
	case "west", "w":
		return West, nil
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

// Turn classifies the manoeuvre a route performs
type Turn int

const (
	// Straight crosses to the opposite side
	Straight Turn = iota
	// Left crosses the oncoming lanes
	Left
	// Right stays in one quadrant
	Right
)

func (t Turn) String() string {
	switch t {
	case Straight:
		return "straight"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "unknown"
	}
}

// Route is the path of a vehicle through the intersection
type Route struct {
	Origin      Direction
	Destination Direction
}

// Canonicalize validates an origin/destination pair and returns its route.
// A vehicle must leave by a different side than it entered.
func Canonicalize(origin, destination Direction) (Route, error) {
	if !origin.Valid() || !destination.Valid() {
		return Route{}, NewInvalidRouteError(origin, destination, "unknown direction")
	}
	if origin == destination {
		return Route{}, NewInvalidRouteError(origin, destination, "origin equals destination")
	}
	return Route{Origin: origin, Destination: destination}, nil
}

// MustCanonicalize is like Canonicalize but panics on an invalid pair
func MustCanonicalize(origin, destination Direction) Route {
	r, err := Canonicalize(origin, destination)
	if err != nil {
		panic(err)
	}
	return r
}

// ParseRoute parses "origin->destination" as printed by String. The
// directions accept anything ParseDirection does, so "w->s" is West to
// South.
func ParseRoute(s string) (Route, error) {
	origin, destination, ok := strings.Cut(s, "->")
	if !ok {
		return Route{}, fmt.Errorf("route %q: expected origin->destination", s)
	}
	o, err := ParseDirection(origin)
	if err != nil {
		return Route{}, fmt.Errorf("route %q: %w", s, err)
	}
	d, err := ParseDirection(destination)
	if err != nil {
		return Route{}, fmt.Errorf("route %q: %w", s, err)
	}
	return Canonicalize(o, d)
}

// String renders the route as "origin->destination"
func (r Route) String() string {
	return r.Origin.String() + "->" + r.Destination.String()
}

// Valid reports whether r could have been produced by Canonicalize
func (r Route) Valid() bool {
	return r.Origin.Valid() && r.Destination.Valid() && r.Origin != r.Destination
}

// Index returns a dense index in [0, NumRoutes) for a valid route
func (r Route) Index() int {
	offset := int((r.Destination+NumDirections-r.Origin)%NumDirections) - 1
	return int(r.Origin)*(NumDirections-1) + offset
}

// Turn classifies the route
func (r Route) Turn() Turn {
	switch {
	case IsRightTurn(r):
		return Right
	case r.Destination == r.Origin.Opposite():
		return Straight
	default:
		return Left
	}
}

// IsRightTurn reports whether r is one of the four right-turn routes
func IsRightTurn(r Route) bool {
	switch r {
	case Route{West, South}, Route{South, East}, Route{East, North}, Route{North, West}:
		return true
	}
	return false
}

// NumRoutes is the number of valid routes through the intersection
const NumRoutes = NumDirections * (NumDirections - 1)

// All returns every valid route ordered by Index
func All() []Route {
	routes := make([]Route, 0, NumRoutes)
	for o := Direction(0); o < NumDirections; o++ {
		for step := Direction(1); step < NumDirections; step++ {
			routes = append(routes, Route{Origin: o, Destination: (o + step) % NumDirections})
		}
	}
	return routes
}
