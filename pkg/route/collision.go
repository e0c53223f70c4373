package route

// MayCoexist reports whether vehicles on routes a and b can be inside the
// intersection at the same time. The relation is symmetric and every route
// coexists with itself.
//
// Two routes coexist when any of the following holds:
//   - they share an origin
//   - they traverse the intersection in mirror directions
//   - their destinations differ and at least one of them is a right turn
func MayCoexist(a, b Route) bool {
	if a.Origin == b.Origin {
		return true
	}
	if a.Origin == b.Destination && a.Destination == b.Origin {
		return true
	}
	return a.Destination != b.Destination && (IsRightTurn(a) || IsRightTurn(b))
}

// Collides is the negation of MayCoexist
func Collides(a, b Route) bool {
	return !MayCoexist(a, b)
}

// Matrix holds the coexistence relation for every pair of routes,
// indexed by Route.Index
type Matrix [NumRoutes][NumRoutes]bool

// ConflictMatrix computes MayCoexist for every pair of valid routes
func ConflictMatrix() *Matrix {
	var m Matrix
	routes := All()
	for _, a := range routes {
		for _, b := range routes {
			m[a.Index()][b.Index()] = MayCoexist(a, b)
		}
	}
	return &m
}

// MayCoexist looks up the relation for a pair of valid routes
func (m *Matrix) MayCoexist(a, b Route) bool {
	return m[a.Index()][b.Index()]
}

// Conflicts returns the routes that collide with r
func Conflicts(r Route) []Route {
	var out []Route
	for _, other := range All() {
		if Collides(r, other) {
			out = append(out, other)
		}
	}
	return out
}
