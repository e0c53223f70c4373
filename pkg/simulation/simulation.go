// Package simulation drives concurrent vehicles through an intersection
// controller and audits the occupancy invariant while they run.
//
// Each vehicle is its own goroutine: it arrives, calls EnterContext,
// stays inside for a random crossing time and calls Leave. A sampler
// goroutine snapshots the occupants on a fixed interval and records any
// pair of routes that collide.
package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/anggasct/crossing"
	"github.com/anggasct/crossing/pkg/config"
	"github.com/anggasct/crossing/pkg/occupancy"
	"github.com/anggasct/crossing/pkg/route"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Intersection is the part of a controller the driver uses
type Intersection interface {
	EnterContext(ctx context.Context, origin, destination route.Direction) error
	Leave(origin, destination route.Direction) error
	Occupants() []occupancy.Vehicle
}

// Trip is one planned vehicle
type Trip struct {
	Route    route.Route
	Crossing time.Duration
}

// Driver runs one simulation
type Driver struct {
	ctrl   Intersection
	cfg    *config.Config
	logger *slog.Logger
	seed   int64
	trips  []Trip

	mu     sync.Mutex
	report Report
}

// New plans a simulation from cfg. Routes and crossing times are drawn up
// front so a seed reproduces the same traffic.
func New(ctrl Intersection, cfg *config.Config, logger *slog.Logger) (*Driver, error) {
	if ctrl == nil {
		return nil, crossing.NewConfigurationError("simulation", "intersection cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid simulation config: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	d := &Driver{
		ctrl:   ctrl,
		cfg:    cfg,
		logger: logger,
		seed:   seed,
	}
	d.trips = Plan(seed, cfg.Vehicles, cfg.CrossingTime.Min, cfg.CrossingTime.Max)
	return d, nil
}

// Plan draws n random trips from seed
func Plan(seed int64, n int, minCrossing, maxCrossing time.Duration) []Trip {
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
	trips := make([]Trip, n)
	for i := range trips {
		origin := route.Direction(rng.IntN(route.NumDirections))
		// any of the three other sides
		destination := route.Direction((int(origin) + 1 + rng.IntN(route.NumDirections-1)) % route.NumDirections)

		crossingTime := minCrossing
		if span := maxCrossing - minCrossing; span > 0 {
			crossingTime += time.Duration(rng.Int64N(int64(span) + 1))
		}
		trips[i] = Trip{
			Route:    route.MustCanonicalize(origin, destination),
			Crossing: crossingTime,
		}
	}
	return trips
}

// Trips returns the planned traffic
func (d *Driver) Trips() []Trip {
	return append([]Trip(nil), d.trips...)
}

// Run releases every planned vehicle and waits for all of them. The first
// fatal error cancels the remaining vehicles and is returned with the
// partial report.
func (d *Driver) Run(ctx context.Context) (*Report, error) {
	d.report = Report{
		Seed:     d.seed,
		Vehicles: len(d.trips),
		Policy:   d.cfg.Policy,
		PerRoute: make(map[route.Route]int),
	}
	d.logger.Info("simulation starting",
		"vehicles", len(d.trips),
		"seed", d.seed,
		"policy", d.cfg.Policy,
		"arrival_rate", d.cfg.ArrivalRate,
	)

	started := time.Now()
	stopSampler := d.startSampler()

	g, gctx := errgroup.WithContext(ctx)

	var limiter *rate.Limiter
	if d.cfg.ArrivalRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(d.cfg.ArrivalRate), d.cfg.ArrivalBurst)
	}

	for i, trip := range d.trips {
		if limiter != nil {
			if err := limiter.Wait(gctx); err != nil {
				break
			}
		}
		g.Go(func() error {
			return d.drive(gctx, i, trip)
		})
	}

	err := g.Wait()
	stopSampler()

	d.mu.Lock()
	defer d.mu.Unlock()
	report := d.report
	report.Duration = time.Since(started)
	report.Violations = append([]string(nil), d.report.Violations...)

	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		d.logger.Error("simulation aborted", "error", err, "admitted", report.Admitted)
		return &report, err
	}

	d.logger.Info("simulation finished",
		"admitted", report.Admitted,
		"abandoned", report.Abandoned,
		"max_concurrent", report.MaxConcurrent,
		"violations", len(report.Violations),
		"duration", report.Duration,
	)
	return &report, nil
}

// drive takes one vehicle through the intersection
func (d *Driver) drive(ctx context.Context, n int, trip Trip) error {
	o, dst := trip.Route.Origin, trip.Route.Destination

	enterCtx := ctx
	if d.cfg.Patience > 0 {
		var cancel context.CancelFunc
		enterCtx, cancel = context.WithTimeout(ctx, d.cfg.Patience)
		defer cancel()
	}

	arrived := time.Now()
	if err := d.ctrl.EnterContext(enterCtx, o, dst); err != nil {
		if crossing.GetErrorCode(err) == crossing.ErrCodeAbandoned && ctx.Err() == nil {
			d.record(func(r *Report) { r.Abandoned++ })
			d.logger.Debug("vehicle gave up", "vehicle", n, "route", trip.Route.String())
			return nil
		}
		return fmt.Errorf("vehicle %d enter %s: %w", n, trip.Route, err)
	}
	waited := time.Since(arrived)

	d.record(func(r *Report) {
		r.Admitted++
		r.PerRoute[trip.Route]++
		r.TotalWait += waited
		r.MaxWait = max(r.MaxWait, waited)
	})

	// The crossing is not interruptible: a vehicle inside always leaves.
	time.Sleep(trip.Crossing)

	if err := d.ctrl.Leave(o, dst); err != nil {
		return fmt.Errorf("vehicle %d leave %s: %w", n, trip.Route, err)
	}
	return nil
}

func (d *Driver) record(fn func(*Report)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(&d.report)
}

// startSampler snapshots occupants every SampleInterval until the
// returned function is called. The final sample is taken on stop.
func (d *Driver) startSampler() (stop func()) {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(d.cfg.SampleInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				d.sample()
				return
			case <-ticker.C:
				d.sample()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			wg.Wait()
		})
	}
}

func (d *Driver) sample() {
	routes := occupancy.Routes(d.ctrl.Occupants())

	d.mu.Lock()
	defer d.mu.Unlock()
	d.report.Samples++
	d.report.MaxConcurrent = max(d.report.MaxConcurrent, len(routes))
	if a, b, collided := occupancy.FirstCollision(routes); collided {
		violation := fmt.Sprintf("%s and %s inside together", a, b)
		d.report.Violations = append(d.report.Violations, violation)
		d.logger.Error("occupancy invariant violated", "first", a.String(), "second", b.String(), "occupants", len(routes))
	}
}
