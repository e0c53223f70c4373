// Package observers provides observers for monitoring vehicles passing
// through the intersection controller
package observers

import (
	"context"
	"log/slog"
	"sync"

	"github.com/anggasct/crossing/pkg/occupancy"
	"github.com/anggasct/crossing/pkg/route"
)

// LogLevel represents the logging level
type LogLevel int

const (
	// LogError logs only errors
	LogError LogLevel = iota
	// LogWarning logs errors and warnings
	LogWarning
	// LogInfo logs errors, warnings, and info
	LogInfo
	// LogDebug logs errors, warnings, info, and debug
	LogDebug
)

// slogLevel maps a LogLevel onto the slog scale
func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LogError:
		return slog.LevelError
	case LogWarning:
		return slog.LevelWarn
	case LogDebug:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// LoggingObserver logs vehicle activity
type LoggingObserver struct {
	level  LogLevel
	logger *slog.Logger
	mutex  sync.RWMutex
}

// NewLoggingObserver creates a new logging observer. Records carry a
// component attribute set to prefix when it is not empty.
func NewLoggingObserver(logger *slog.Logger, level LogLevel, prefix string) *LoggingObserver {
	if logger == nil {
		logger = slog.Default()
	}
	if prefix != "" {
		logger = logger.With("component", prefix)
	}
	return &LoggingObserver{
		level:  level,
		logger: logger,
	}
}

// NewDefaultLoggingObserver creates a logging observer on slog.Default at
// LogInfo level
func NewDefaultLoggingObserver() *LoggingObserver {
	return NewLoggingObserver(slog.Default(), LogInfo, "intersection")
}

// SetLevel changes the verbosity
func (o *LoggingObserver) SetLevel(level LogLevel) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.level = level
}

// log logs a message at the specified level
func (o *LoggingObserver) log(level LogLevel, msg string, args ...any) {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	if level <= o.level {
		o.logger.Log(context.Background(), level.slogLevel(), msg, args...)
	}
}

// OnArrive logs an arrival
func (o *LoggingObserver) OnArrive(v *occupancy.Vehicle) {
	o.log(LogDebug, "vehicle arrived", "vehicle", v.ID, "arrival", v.Arrival, "route", v.Route.String())
}

// OnWait logs a vehicle blocking
func (o *LoggingObserver) OnWait(v *occupancy.Vehicle, blocker *occupancy.Vehicle) {
	blockedBy := "policy"
	if blocker != nil {
		blockedBy = blocker.Route.String()
	}
	o.log(LogDebug, "vehicle waiting", "vehicle", v.ID, "route", v.Route.String(), "blocked_by", blockedBy)
}

// OnAdmit logs an admission
func (o *LoggingObserver) OnAdmit(v *occupancy.Vehicle, occupants int) {
	o.log(LogInfo, "vehicle admitted",
		"vehicle", v.ID,
		"route", v.Route.String(),
		"turn", v.Route.Turn().String(),
		"occupants", occupants,
		"wait", v.WaitTime(),
	)
}

// OnDepart logs a departure
func (o *LoggingObserver) OnDepart(v *occupancy.Vehicle, occupants int) {
	o.log(LogInfo, "vehicle departed",
		"vehicle", v.ID,
		"route", v.Route.String(),
		"occupants", occupants,
		"crossing", v.CrossingTime(),
	)
}

// OnAbandon logs a waiter giving up
func (o *LoggingObserver) OnAbandon(v *occupancy.Vehicle, err error) {
	o.log(LogWarning, "vehicle abandoned", "vehicle", v.ID, "route", v.Route.String(), "error", err)
}

// OnRejected logs an invalid route
func (o *LoggingObserver) OnRejected(origin, destination route.Direction, err error) {
	o.log(LogWarning, "route rejected", "origin", origin.String(), "destination", destination.String(), "error", err)
}

// OnError logs errors
func (o *LoggingObserver) OnError(err error) {
	o.log(LogError, "controller error", "error", err)
}

// OnClosed logs teardown
func (o *LoggingObserver) OnClosed() {
	o.log(LogInfo, "controller closed")
}
