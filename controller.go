package crossing

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anggasct/crossing/pkg/occupancy"
	"github.com/anggasct/crossing/pkg/policy"
	"github.com/anggasct/crossing/pkg/route"
)

// Controller admits vehicles into a four-way intersection. At every
// instant, each pair of vehicles inside has routes that may coexist.
//
// A single mutex guards the occupancy record and a single condition
// variable carries every wake-up. Enter blocks until the vehicle's route
// is compatible with all occupants; Leave removes an occupant and wakes
// every waiter so each can re-test its own route.
type Controller struct {
	mu       sync.Mutex
	changed  *sync.Cond
	occupied *occupancy.Set
	waiting  *occupancy.Set
	closed   bool
	arrivals uint64
	stats    Stats
	rejected atomic.Uint64

	policy    policy.Policy
	observers *ObserverManager
	logger    *slog.Logger
	now       func() time.Time
}

// Stats summarizes controller activity
type Stats struct {
	Arrived       uint64
	Admitted      uint64
	Departed      uint64
	Abandoned     uint64
	Rejected      uint64
	Occupants     int
	Waiting       int
	PeakOccupancy int
	Policy        string
}

// New creates a controller. It must be built once before any vehicle runs
// and torn down with Close after all of them have left.
func New(opts ...Option) (*Controller, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if len(o.errs) > 0 {
		return nil, errors.Join(o.errs...)
	}

	c := &Controller{
		occupied:  occupancy.NewSet(),
		waiting:   occupancy.NewSet(),
		policy:    o.policy,
		observers: NewObserverManager(),
		logger:    o.logger,
		now:       o.now,
	}
	c.changed = sync.NewCond(&c.mu)
	for _, observer := range o.observers {
		c.observers.AddObserver(observer)
	}

	c.logger.Debug("controller created", "policy", c.policy.Name(), "observers", c.observers.Len())
	return c, nil
}

// Enter blocks until a vehicle travelling from origin to destination may
// occupy the intersection, then records it as an occupant
func (c *Controller) Enter(origin, destination Direction) error {
	return c.EnterContext(context.Background(), origin, destination)
}

// EnterContext is like Enter but gives up when ctx ends. A vehicle that
// gives up leaves no trace in the occupancy record.
func (c *Controller) EnterContext(ctx context.Context, origin, destination Direction) error {
	r, err := c.canonicalize(origin, destination)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return NewAbandonedError(r, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return NewControllerClosedError("Enter")
	}

	c.arrivals++
	c.stats.Arrived++
	v := occupancy.NewVehicle(r, c.arrivals, c.now())
	c.observers.NotifyArrive(v)

	blocker, blocked := c.blockerFor(v)
	if blocked {
		if err := c.wait(ctx, v, blocker); err != nil {
			return err
		}
	}

	c.admit(v)
	return nil
}

// wait suspends v until no occupant conflicts with it and the policy lets
// it through. Called and returns with c.mu held.
func (c *Controller) wait(ctx context.Context, v *Vehicle, blocker *Vehicle) error {
	stop := context.AfterFunc(ctx, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.changed.Broadcast()
	})
	defer stop()

	c.advance(v, occupancy.Waiting)
	c.waiting.Add(v)
	c.observers.NotifyWait(v, blocker)
	if blocker != nil {
		c.logger.Debug("vehicle waiting", "vehicle", v.ID, "route", v.Route.String(), "blocked_by", blocker.Route.String())
	}

	for blocked := true; blocked; _, blocked = c.blockerFor(v) {
		if c.closed {
			err := NewControllerClosedError("Enter")
			c.abandon(v, err)
			return err
		}
		if ctx.Err() != nil {
			err := NewAbandonedError(v.Route, ctx.Err())
			c.abandon(v, err)
			return err
		}
		c.changed.Wait()
	}

	c.waiting.RemoveVehicle(v)
	return nil
}

// blockerFor returns the vehicle that prevents v from entering now
func (c *Controller) blockerFor(v *Vehicle) (*Vehicle, bool) {
	if occupant, ok := c.occupied.Conflict(v.Route); ok {
		return occupant, true
	}
	return c.policy.Yield(v, c.waiting)
}

func (c *Controller) admit(v *Vehicle) {
	c.advance(v, occupancy.Occupying)
	c.occupied.Add(v)

	c.stats.Admitted++
	if n := c.occupied.Len(); n > c.stats.PeakOccupancy {
		c.stats.PeakOccupancy = n
	}

	c.observers.NotifyAdmit(v, c.occupied.Len())
	c.logger.Debug("vehicle admitted",
		"vehicle", v.ID,
		"route", v.Route.String(),
		"occupants", c.occupied.Len(),
		"wait", v.WaitTime(),
	)
}

func (c *Controller) abandon(v *Vehicle, err error) {
	c.waiting.RemoveVehicle(v)
	c.advance(v, occupancy.Abandoned)
	c.stats.Abandoned++
	c.observers.NotifyAbandon(v, err)
	c.logger.Debug("vehicle abandoned", "vehicle", v.ID, "route", v.Route.String(), "error", err)

	// Only a policy that orders waiters can be unblocked by a waiter
	// disappearing; occupancy itself is unchanged.
	if _, greedy := c.policy.(policy.Greedy); !greedy && c.waiting.Len() > 0 {
		c.changed.Broadcast()
	}
}

// Leave records that the vehicle travelling from origin to destination
// has left the intersection and wakes every waiting vehicle. It never
// blocks.
//
// Leave must pair with an earlier successful Enter on the same route.
// Otherwise it returns a *ConsistencyError and changes nothing; callers
// should treat that as fatal.
func (c *Controller) Leave(origin, destination Direction) error {
	r, err := c.canonicalize(origin, destination)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.occupied.Remove(r)
	if !ok {
		err := NewNoSuchOccupantError(r)
		c.logger.Error("leave without matching occupant", "route", r.String(), "occupants", c.occupied.Len())
		c.observers.NotifyError(err)
		return err
	}

	c.advance(v, occupancy.Departed)
	c.stats.Departed++
	c.observers.NotifyDepart(v, c.occupied.Len())
	c.logger.Debug("vehicle departed", "vehicle", v.ID, "route", r.String(), "occupants", c.occupied.Len())

	c.changed.Broadcast()
	return nil
}

// Close tears the controller down. It fails with a *ConsistencyError
// while any vehicle is still inside, leaving the controller usable.
// Closing a closed controller is a no-op.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	if c.occupied.Len() > 0 {
		remaining := make([]string, 0, c.occupied.Len())
		for _, v := range c.occupied.Snapshot() {
			remaining = append(remaining, v.Route.String())
		}
		err := NewOccupiedAtCloseError(remaining)
		c.logger.Error("close with vehicles inside", "occupants", len(remaining))
		c.observers.NotifyError(err)
		return err
	}

	c.closed = true
	c.changed.Broadcast()
	c.observers.NotifyClosed()
	c.logger.Debug("controller closed", "admitted", c.stats.Admitted, "peak_occupancy", c.stats.PeakOccupancy)
	return nil
}

// Occupants returns a snapshot of the vehicles inside the intersection in
// admission order
func (c *Controller) Occupants() []Vehicle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.occupied.Snapshot()
}

// Len returns the number of vehicles inside the intersection
func (c *Controller) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.occupied.Len()
}

// Waiting returns the number of vehicles blocked in Enter
func (c *Controller) Waiting() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waiting.Len()
}

// Stats returns a snapshot of controller counters
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := c.stats
	stats.Occupants = c.occupied.Len()
	stats.Waiting = c.waiting.Len()
	stats.Policy = c.policy.Name()
	stats.Rejected = c.rejected.Load()
	return stats
}

// Closed reports whether Close has succeeded
func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// canonicalize validates a route without the lock. Only the rejection
// report takes it, so observers stay serialized.
func (c *Controller) canonicalize(origin, destination Direction) (route.Route, error) {
	r, err := route.Canonicalize(origin, destination)
	if err != nil {
		c.rejected.Add(1)
		c.mu.Lock()
		c.observers.NotifyRejected(origin, destination, err)
		c.mu.Unlock()
		c.logger.Warn("invalid route", "origin", origin.String(), "destination", destination.String())
		return route.Route{}, err
	}
	return r, nil
}

// advance applies a lifecycle transition the controller itself guarantees
// to be legal
func (c *Controller) advance(v *Vehicle, to occupancy.State) {
	if err := v.Advance(to, c.now()); err != nil {
		panic(err)
	}
}
