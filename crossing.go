// Package crossing coordinates vehicles through a shared four-way
// intersection. A Controller admits a vehicle only when its route cannot
// collide with any vehicle already inside, and blocks it until then.
//
// Typical use:
//
//	ctrl, err := crossing.New(crossing.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer ctrl.Close()
//
//	if err := ctrl.Enter(crossing.North, crossing.South); err != nil {
//		return err
//	}
//	// cross
//	if err := ctrl.Leave(crossing.North, crossing.South); err != nil {
//		return err
//	}
package crossing

import (
	"github.com/anggasct/crossing/pkg/observers"
	"github.com/anggasct/crossing/pkg/occupancy"
	"github.com/anggasct/crossing/pkg/policy"
	"github.com/anggasct/crossing/pkg/route"
)

// Route types
type (
	// Direction identifies one side of the intersection
	Direction = route.Direction

	// Route is the path of a vehicle through the intersection
	Route = route.Route

	// Turn classifies the manoeuvre a route performs
	Turn = route.Turn
)

// Occupancy types
type (
	// Vehicle is the controller's handle for one crossing
	Vehicle = occupancy.Vehicle

	// VehicleState is the lifecycle stage of a vehicle
	VehicleState = occupancy.State
)

// Policy types
type (
	// Policy orders compatible vehicles on top of the collision check
	Policy = policy.Policy

	// GreedyPolicy admits any compatible vehicle immediately
	GreedyPolicy = policy.Greedy

	// OrderedPolicy stops vehicles overtaking earlier conflicting waiters
	OrderedPolicy = policy.Ordered
)

// Re-export observer types
type (
	// LoggingObserver logs vehicle activity through log/slog
	LoggingObserver = observers.LoggingObserver

	// MetricsObserver keeps in-memory counters per route
	MetricsObserver = observers.MetricsObserver

	// PrometheusObserver exports controller activity as Prometheus metrics
	PrometheusObserver = observers.PrometheusObserver

	// TracingObserver records one OpenTelemetry span per vehicle
	TracingObserver = observers.TracingObserver

	// ValidationObserver audits the occupancy invariant independently
	ValidationObserver = observers.ValidationObserver

	// LogLevel filters LoggingObserver output
	LogLevel = observers.LogLevel
)

// Re-export constants
const (
	North = route.North
	East  = route.East
	South = route.South
	West  = route.West

	Straight = route.Straight
	Left     = route.Left
	Right    = route.Right

	Arriving  = occupancy.Arriving
	Waiting   = occupancy.Waiting
	Occupying = occupancy.Occupying
	Departed  = occupancy.Departed
	Abandoned = occupancy.Abandoned

	LogError   = observers.LogError
	LogWarning = observers.LogWarning
	LogInfo    = observers.LogInfo
	LogDebug   = observers.LogDebug
)

// Re-export route functions
var (
	// Canonicalize validates an origin/destination pair
	Canonicalize = route.Canonicalize

	// IsRightTurn reports whether a route is one of the four right turns
	IsRightTurn = route.IsRightTurn

	// MayCoexist reports whether two routes can share the intersection
	MayCoexist = route.MayCoexist

	// Routes returns every valid route
	Routes = route.All

	// ParseDirection parses a direction name
	ParseDirection = route.ParseDirection

	// ParseRoute parses "origin->destination"
	ParseRoute = route.ParseRoute

	// ParsePolicy returns the admission policy with the given name
	ParsePolicy = policy.Parse
)

// Re-export observer constructors
var (
	// NewLoggingObserver creates a new logging observer
	NewLoggingObserver = observers.NewLoggingObserver

	// NewDefaultLoggingObserver logs at LogInfo through slog.Default
	NewDefaultLoggingObserver = observers.NewDefaultLoggingObserver

	// NewMetricsObserver creates a new metrics observer
	NewMetricsObserver = observers.NewMetricsObserver

	// NewPrometheusObserver creates and registers Prometheus collectors
	NewPrometheusObserver = observers.NewPrometheusObserver

	// NewTracingObserver creates a new tracing observer
	NewTracingObserver = observers.NewTracingObserver

	// NewValidationObserver creates a new validation observer
	NewValidationObserver = observers.NewValidationObserver
)
