package observers

import (
	"fmt"
	"sync"

	"github.com/anggasct/crossing/pkg/occupancy"
	"github.com/anggasct/crossing/pkg/route"
)

// ValidationObserver keeps its own record of who is inside the
// intersection and checks every admission against it. Any admitted pair
// of colliding routes, unknown departure or controller error is recorded
// as a violation.
type ValidationObserver struct {
	inside     map[string]route.Route
	order      []string
	admissions int
	violations []string
	mutex      sync.RWMutex
}

// NewValidationObserver creates a new validation observer
func NewValidationObserver() *ValidationObserver {
	return &ValidationObserver{
		inside:     make(map[string]route.Route),
		violations: make([]string, 0),
	}
}

// addViolation adds a violation; the caller holds the mutex
func (o *ValidationObserver) addViolation(format string, args ...any) {
	o.violations = append(o.violations, fmt.Sprintf(format, args...))
}

// OnAdmit validates the admission against every recorded occupant
func (o *ValidationObserver) OnAdmit(v *occupancy.Vehicle, occupants int) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.admissions++
	if _, dup := o.inside[v.ID]; dup {
		o.addViolation("vehicle %s admitted twice", v.ID)
		return
	}
	for _, id := range o.order {
		if other := o.inside[id]; route.Collides(other, v.Route) {
			o.addViolation("admitted %s while %s was inside", v.Route, other)
		}
	}
	o.inside[v.ID] = v.Route
	o.order = append(o.order, v.ID)

	if occupants != len(o.order) {
		o.addViolation("controller reports %d occupants after admitting %s, expected %d", occupants, v.Route, len(o.order))
	}
}

// OnDepart validates that the departing vehicle was inside
func (o *ValidationObserver) OnDepart(v *occupancy.Vehicle, occupants int) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if _, ok := o.inside[v.ID]; !ok {
		o.addViolation("vehicle %s departed without being admitted", v.ID)
		return
	}
	delete(o.inside, v.ID)
	for i, id := range o.order {
		if id == v.ID {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}

	if occupants != len(o.order) {
		o.addViolation("controller reports %d occupants after %s departed, expected %d", occupants, v.Route, len(o.order))
	}
}

// OnArrive needs no validation
func (o *ValidationObserver) OnArrive(*occupancy.Vehicle) {}

// OnWait needs no validation
func (o *ValidationObserver) OnWait(*occupancy.Vehicle, *occupancy.Vehicle) {}

// OnAbandon validates that an abandoned vehicle never got inside
func (o *ValidationObserver) OnAbandon(v *occupancy.Vehicle, _ error) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if _, ok := o.inside[v.ID]; ok {
		o.addViolation("vehicle %s abandoned while inside", v.ID)
	}
}

// OnRejected needs no validation
func (o *ValidationObserver) OnRejected(route.Direction, route.Direction, error) {}

// OnError records a controller error as a violation
func (o *ValidationObserver) OnError(err error) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.addViolation("error occurred: %v", err)
}

// OnClosed validates that nobody is left inside
func (o *ValidationObserver) OnClosed() {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if len(o.inside) > 0 {
		o.addViolation("controller closed with %d vehicle(s) inside", len(o.inside))
	}
}

// GetViolations returns all validation violations
func (o *ValidationObserver) GetViolations() []string {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	result := make([]string, len(o.violations))
	copy(result, o.violations)
	return result
}

// HasViolations returns whether any violations occurred
func (o *ValidationObserver) HasViolations() bool {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return len(o.violations) > 0
}

// Admissions returns the number of admissions checked
func (o *ValidationObserver) Admissions() int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return o.admissions
}

// Inside returns the number of vehicles the observer believes are inside
func (o *ValidationObserver) Inside() int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return len(o.inside)
}

// Reset resets the validation state
func (o *ValidationObserver) Reset() {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.inside = make(map[string]route.Route)
	o.order = nil
	o.admissions = 0
	o.violations = make([]string, 0)
}
