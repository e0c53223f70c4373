package crossing

import (
	"log/slog"
	"time"

	"github.com/anggasct/crossing/pkg/policy"
)

// Option configures a Controller
type Option func(*options)

type options struct {
	logger    *slog.Logger
	policy    policy.Policy
	observers []Observer
	now       func() time.Time
	errs      []error
}

func defaultOptions() *options {
	return &options{
		logger: slog.New(slog.DiscardHandler),
		policy: policy.Greedy{},
		now:    time.Now,
	}
}

// WithLogger sets the structured logger used by the controller
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger == nil {
			o.errs = append(o.errs, NewConfigurationError("WithLogger", "logger cannot be nil"))
			return
		}
		o.logger = logger
	}
}

// WithPolicy sets the admission ordering layered on top of the collision
// check. The default is policy.Greedy.
func WithPolicy(p policy.Policy) Option {
	return func(o *options) {
		if p == nil {
			o.errs = append(o.errs, NewConfigurationError("WithPolicy", "policy cannot be nil"))
			return
		}
		o.policy = p
	}
}

// WithObserver registers observers. Observers are fixed once the
// controller is built.
func WithObserver(observers ...Observer) Option {
	return func(o *options) {
		for _, observer := range observers {
			if observer == nil {
				o.errs = append(o.errs, NewConfigurationError("WithObserver", "observer cannot be nil"))
				continue
			}
			o.observers = append(o.observers, observer)
		}
	}
}

// WithClock replaces time.Now for vehicle timestamps
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now == nil {
			o.errs = append(o.errs, NewConfigurationError("WithClock", "clock cannot be nil"))
			return
		}
		o.now = now
	}
}
