package crossing

import "fmt"

// Observer represents an entity that observes vehicles passing through
// the controller.
//
// Observers are notified while the controller lock is held, in the order
// the controller changes its state. They must not call back into the
// controller and should return quickly.
type Observer interface {
	// Required methods

	// OnAdmit is called when a vehicle enters the intersection
	OnAdmit(vehicle *Vehicle, occupants int)

	// OnDepart is called when a vehicle leaves the intersection
	OnDepart(vehicle *Vehicle, occupants int)
}

// ExtendedObserver provides additional optional observation methods
type ExtendedObserver interface {
	Observer

	// OnArrive is called when a vehicle with a valid route calls enter
	OnArrive(vehicle *Vehicle)

	// OnWait is called the first time a vehicle blocks, with the vehicle
	// holding it back
	OnWait(vehicle *Vehicle, blocker *Vehicle)

	// OnAbandon is called when a waiting vehicle gives up
	OnAbandon(vehicle *Vehicle, err error)

	// OnRejected is called when enter is called with an invalid route
	OnRejected(origin, destination Direction, err error)

	// OnError is called when the controller detects a broken protocol
	OnError(err error)

	// OnClosed is called when the controller is torn down
	OnClosed()
}

// BaseObserver provides a default implementation with no-op methods
type BaseObserver struct{}

// OnAdmit implements the required Observer method
func (o *BaseObserver) OnAdmit(vehicle *Vehicle, occupants int) {}

// OnDepart implements the required Observer method
func (o *BaseObserver) OnDepart(vehicle *Vehicle, occupants int) {}

// OnArrive implements the optional ExtendedObserver method
func (o *BaseObserver) OnArrive(vehicle *Vehicle) {}

// OnWait implements the optional ExtendedObserver method
func (o *BaseObserver) OnWait(vehicle *Vehicle, blocker *Vehicle) {}

// OnAbandon implements the optional ExtendedObserver method
func (o *BaseObserver) OnAbandon(vehicle *Vehicle, err error) {}

// OnRejected implements the optional ExtendedObserver method
func (o *BaseObserver) OnRejected(origin, destination Direction, err error) {}

// OnError implements the optional ExtendedObserver method
func (o *BaseObserver) OnError(err error) {}

// OnClosed implements the optional ExtendedObserver method
func (o *BaseObserver) OnClosed() {}

// ObserverManager manages a collection of observers
type ObserverManager struct {
	observers []Observer
}

// NewObserverManager creates a new observer manager
func NewObserverManager() *ObserverManager {
	return &ObserverManager{
		observers: make([]Observer, 0),
	}
}

// AddObserver adds an observer to the manager
func (om *ObserverManager) AddObserver(observer Observer) {
	om.observers = append(om.observers, observer)
}

// RemoveObserver removes an observer from the manager
func (om *ObserverManager) RemoveObserver(observer Observer) {
	for i, obs := range om.observers {
		if obs == observer {
			om.observers = append(om.observers[:i], om.observers[i+1:]...)
			break
		}
	}
}

// Len returns the number of registered observers
func (om *ObserverManager) Len() int {
	return len(om.observers)
}

// call runs fn for one observer. A panicking observer is reported to its
// own OnError if it has one and never reaches the controller.
func (om *ObserverManager) call(observer Observer, method string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if extObs, ok := observer.(ExtendedObserver); ok {
				func() {
					defer func() { recover() }()
					extObs.OnError(fmt.Errorf("observer panic in %s: %v", method, r))
				}()
			}
		}
	}()
	fn()
}

// NotifyAdmit notifies all observers of an admission
func (om *ObserverManager) NotifyAdmit(vehicle *Vehicle, occupants int) {
	for _, observer := range om.observers {
		om.call(observer, "OnAdmit", func() { observer.OnAdmit(vehicle, occupants) })
	}
}

// NotifyDepart notifies all observers of a departure
func (om *ObserverManager) NotifyDepart(vehicle *Vehicle, occupants int) {
	for _, observer := range om.observers {
		om.call(observer, "OnDepart", func() { observer.OnDepart(vehicle, occupants) })
	}
}

// NotifyArrive notifies all observers of an arrival
func (om *ObserverManager) NotifyArrive(vehicle *Vehicle) {
	for _, observer := range om.observers {
		if extObs, ok := observer.(ExtendedObserver); ok {
			om.call(observer, "OnArrive", func() { extObs.OnArrive(vehicle) })
		}
	}
}

// NotifyWait notifies all observers that a vehicle blocked
func (om *ObserverManager) NotifyWait(vehicle *Vehicle, blocker *Vehicle) {
	for _, observer := range om.observers {
		if extObs, ok := observer.(ExtendedObserver); ok {
			om.call(observer, "OnWait", func() { extObs.OnWait(vehicle, blocker) })
		}
	}
}

// NotifyAbandon notifies all observers that a waiter gave up
func (om *ObserverManager) NotifyAbandon(vehicle *Vehicle, err error) {
	for _, observer := range om.observers {
		if extObs, ok := observer.(ExtendedObserver); ok {
			om.call(observer, "OnAbandon", func() { extObs.OnAbandon(vehicle, err) })
		}
	}
}

// NotifyRejected notifies all observers of an invalid route
func (om *ObserverManager) NotifyRejected(origin, destination Direction, err error) {
	for _, observer := range om.observers {
		if extObs, ok := observer.(ExtendedObserver); ok {
			om.call(observer, "OnRejected", func() { extObs.OnRejected(origin, destination, err) })
		}
	}
}

// NotifyError notifies all observers of errors
func (om *ObserverManager) NotifyError(err error) {
	for _, observer := range om.observers {
		if extObs, ok := observer.(ExtendedObserver); ok {
			func() {
				defer func() { recover() }()
				extObs.OnError(err)
			}()
		}
	}
}

// NotifyClosed notifies all observers that the controller was torn down
func (om *ObserverManager) NotifyClosed() {
	for _, observer := range om.observers {
		if extObs, ok := observer.(ExtendedObserver); ok {
			om.call(observer, "OnClosed", func() { extObs.OnClosed() })
		}
	}
}
