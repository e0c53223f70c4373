package simulation

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/anggasct/crossing"
	"github.com/anggasct/crossing/pkg/route"
)

// Report summarizes one simulation run
type Report struct {
	Seed     int64
	Vehicles int
	Policy   string
	Duration time.Duration

	Admitted  int
	Abandoned int

	// MaxConcurrent is the largest occupancy seen by the sampler
	MaxConcurrent int
	Samples       int

	TotalWait time.Duration
	MaxWait   time.Duration
	PerRoute  map[route.Route]int

	// Violations lists sampled occupancies that broke the invariant
	Violations []string
}

// ErrViolation marks a run that broke the occupancy invariant
var ErrViolation = errors.New("occupancy invariant violated")

// Check returns an error when the run recorded any violation
func (r *Report) Check() error {
	if len(r.Violations) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d sample(s), first: %s", ErrViolation, len(r.Violations), r.Violations[0])
}

// IsFatal reports whether err means the controller contract was broken
func IsFatal(err error) bool {
	return crossing.IsConsistencyError(err) || errors.Is(err, ErrViolation)
}

// MeanWait returns the average time admitted vehicles spent in Enter
func (r *Report) MeanWait() time.Duration {
	if r.Admitted == 0 {
		return 0
	}
	return r.TotalWait / time.Duration(r.Admitted)
}

// WriteTo writes a human readable summary
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "seed:            %d\n", r.Seed)
	fmt.Fprintf(&b, "policy:          %s\n", r.Policy)
	fmt.Fprintf(&b, "vehicles:        %d\n", r.Vehicles)
	fmt.Fprintf(&b, "admitted:        %d\n", r.Admitted)
	fmt.Fprintf(&b, "abandoned:       %d\n", r.Abandoned)
	fmt.Fprintf(&b, "max concurrent:  %d\n", r.MaxConcurrent)
	fmt.Fprintf(&b, "mean wait:       %s\n", r.MeanWait())
	fmt.Fprintf(&b, "max wait:        %s\n", r.MaxWait)
	fmt.Fprintf(&b, "duration:        %s\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "samples:         %d\n", r.Samples)
	fmt.Fprintf(&b, "violations:      %d\n", len(r.Violations))

	b.WriteString("per route:\n")
	for _, rt := range route.All() {
		if n := r.PerRoute[rt]; n > 0 {
			fmt.Fprintf(&b, "  %-14s %d\n", rt, n)
		}
	}
	for _, v := range r.Violations {
		fmt.Fprintf(&b, "violation: %s\n", v)
	}

	n, err := io.WriteString(w, b.String())
	return int64(n), err
}
