package crossing

import (
	"context"
	"sync"
	"testing"
	"time"
)

// TestObserver is a mock observer for testing that captures all observer events
type TestObserver struct {
	mutex      sync.RWMutex
	Arrivals   []Route
	Waits      []WaitEvent
	Admissions []OccupancyEvent
	Departures []OccupancyEvent
	Abandons   []AbandonEvent
	Rejects    []RejectEvent
	Errors     []error
	Closed     int
}

type WaitEvent struct {
	Route   Route
	Blocker *Route
}

type OccupancyEvent struct {
	Route     Route
	Occupants int
}

type AbandonEvent struct {
	Route Route
	State VehicleState
	Err   error
}

type RejectEvent struct {
	Origin      Direction
	Destination Direction
	Err         error
}

// NewTestObserver creates a new test observer
func NewTestObserver() *TestObserver {
	return &TestObserver{}
}

// Observer interface implementations
func (o *TestObserver) OnAdmit(v *Vehicle, occupants int) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Admissions = append(o.Admissions, OccupancyEvent{Route: v.Route, Occupants: occupants})
}

func (o *TestObserver) OnDepart(v *Vehicle, occupants int) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Departures = append(o.Departures, OccupancyEvent{Route: v.Route, Occupants: occupants})
}

func (o *TestObserver) OnArrive(v *Vehicle) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Arrivals = append(o.Arrivals, v.Route)
}

func (o *TestObserver) OnWait(v *Vehicle, blocker *Vehicle) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	event := WaitEvent{Route: v.Route}
	if blocker != nil {
		r := blocker.Route
		event.Blocker = &r
	}
	o.Waits = append(o.Waits, event)
}

func (o *TestObserver) OnAbandon(v *Vehicle, err error) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Abandons = append(o.Abandons, AbandonEvent{Route: v.Route, State: v.State, Err: err})
}

func (o *TestObserver) OnRejected(origin, destination Direction, err error) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Rejects = append(o.Rejects, RejectEvent{Origin: origin, Destination: destination, Err: err})
}

func (o *TestObserver) OnError(err error) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Errors = append(o.Errors, err)
}

func (o *TestObserver) OnClosed() {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Closed++
}

// Counts returns the number of admissions, departures and waits seen
func (o *TestObserver) Counts() (admissions, departures, waits int) {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return len(o.Admissions), len(o.Departures), len(o.Waits)
}

// AdmissionOrder returns admitted routes in order
func (o *TestObserver) AdmissionOrder() []Route {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	routes := make([]Route, len(o.Admissions))
	for i, a := range o.Admissions {
		routes[i] = a.Route
	}
	return routes
}

// LastError returns the most recent error reported to the observer
func (o *TestObserver) LastError() error {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	if len(o.Errors) == 0 {
		return nil
	}
	return o.Errors[len(o.Errors)-1]
}

// CreateTestController creates a controller with the given observer
func CreateTestController(t *testing.T, observer Observer, opts ...Option) *Controller {
	t.Helper()
	if observer != nil {
		opts = append(opts, WithObserver(observer))
	}
	ctrl, err := New(opts...)
	if err != nil {
		t.Fatalf("Failed to create controller: %v", err)
	}
	return ctrl
}

// EnterAsync calls Enter on a new goroutine. The returned channel yields
// its result.
func EnterAsync(ctrl *Controller, origin, destination Direction) <-chan error {
	return EnterAsyncContext(context.Background(), ctrl, origin, destination)
}

// EnterAsyncContext is EnterAsync with a context
func EnterAsyncContext(ctx context.Context, ctrl *Controller, origin, destination Direction) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- ctrl.EnterContext(ctx, origin, destination)
	}()
	return done
}

// WaitForWaiting blocks until n vehicles are waiting in Enter
func WaitForWaiting(t *testing.T, ctrl *Controller, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for ctrl.Waiting() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d waiting vehicles, got %d", n, ctrl.Waiting())
		}
		time.Sleep(time.Millisecond)
	}
}

// AssertReturns checks that an asynchronous Enter finished with no error
func AssertReturns(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Expected enter to succeed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected enter to return")
	}
}

// AssertBlocked checks that an asynchronous Enter has not returned yet
func AssertBlocked(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		t.Fatalf("Expected enter to block, it returned %v", err)
	case <-time.After(20 * time.Millisecond):
	}
}

// AssertOccupants checks the routes inside the intersection in admission order
func AssertOccupants(t *testing.T, ctrl *Controller, expected ...Route) {
	t.Helper()
	occupants := ctrl.Occupants()
	if len(occupants) != len(expected) {
		t.Fatalf("Expected %d occupants, got %d", len(expected), len(occupants))
	}
	for i, v := range occupants {
		if v.Route != expected[i] {
			t.Errorf("Expected occupant %d to be %s, got %s", i, expected[i], v.Route)
		}
		if v.State != Occupying {
			t.Errorf("Expected occupant %s to be occupying, got %s", v.Route, v.State)
		}
	}
}

// R builds a route and fails the test if it is invalid
func R(t *testing.T, origin, destination Direction) Route {
	t.Helper()
	r, err := Canonicalize(origin, destination)
	if err != nil {
		t.Fatalf("Invalid test route: %v", err)
	}
	return r
}
