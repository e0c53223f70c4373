package crossing

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anggasct/crossing/pkg/occupancy"
)

func TestController_OppositeTraversal(t *testing.T) {
	ctrl := CreateTestController(t, nil)

	if err := ctrl.Enter(North, South); err != nil {
		t.Fatalf("Enter failed: %v", err)
	}
	AssertReturns(t, EnterAsync(ctrl, South, North))
	AssertOccupants(t, ctrl, R(t, North, South), R(t, South, North))
}

func TestController_RightTurnBesideLeftTurn(t *testing.T) {
	ctrl := CreateTestController(t, nil)

	if err := ctrl.Enter(West, South); err != nil {
		t.Fatalf("Enter failed: %v", err)
	}
	AssertReturns(t, EnterAsync(ctrl, North, East))
	AssertOccupants(t, ctrl, R(t, West, South), R(t, North, East))
}

func TestController_SharedDestinationBlocks(t *testing.T) {
	observer := NewTestObserver()
	ctrl := CreateTestController(t, observer)

	if err := ctrl.Enter(North, South); err != nil {
		t.Fatalf("Enter failed: %v", err)
	}

	done := EnterAsync(ctrl, West, South)
	WaitForWaiting(t, ctrl, 1)
	AssertBlocked(t, done)
	AssertOccupants(t, ctrl, R(t, North, South))

	observer.mutex.RLock()
	wait := observer.Waits[0]
	observer.mutex.RUnlock()
	if wait.Blocker == nil || *wait.Blocker != R(t, North, South) {
		t.Errorf("Expected west->south to wait for north->south, got %+v", wait)
	}

	if err := ctrl.Leave(North, South); err != nil {
		t.Fatalf("Leave failed: %v", err)
	}
	AssertReturns(t, done)
	AssertOccupants(t, ctrl, R(t, West, South))
}

func TestController_SameOrigin(t *testing.T) {
	ctrl := CreateTestController(t, nil)

	if err := ctrl.Enter(North, South); err != nil {
		t.Fatalf("Enter failed: %v", err)
	}
	AssertReturns(t, EnterAsync(ctrl, North, East))
	AssertReturns(t, EnterAsync(ctrl, North, South))
	AssertOccupants(t, ctrl, R(t, North, South), R(t, North, East), R(t, North, South))
}

func TestController_InvalidRoute(t *testing.T) {
	observer := NewTestObserver()
	ctrl := CreateTestController(t, observer)

	if err := ctrl.Enter(East, West); err != nil {
		t.Fatalf("Enter failed: %v", err)
	}

	for _, tc := range []struct {
		name     string
		from, to Direction
	}{
		{"same side", North, North},
		{"unknown direction", Direction(9), South},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := ctrl.Enter(tc.from, tc.to)
			if !IsInvalidRouteError(err) {
				t.Fatalf("Expected InvalidRouteError, got %v", err)
			}
			if GetErrorCode(err) != ErrCodeInvalidRoute {
				t.Errorf("Expected ErrCodeInvalidRoute, got %v", GetErrorCode(err))
			}
			AssertOccupants(t, ctrl, R(t, East, West))
		})
	}

	if err := ctrl.Leave(South, South); !IsInvalidRouteError(err) {
		t.Errorf("Expected Leave to reject an invalid route, got %v", err)
	}

	stats := ctrl.Stats()
	if stats.Rejected != 3 {
		t.Errorf("Expected 3 rejected routes, got %d", stats.Rejected)
	}
	if stats.Arrived != 1 {
		t.Errorf("Expected rejected routes not to count as arrivals, got %d", stats.Arrived)
	}
	if len(observer.Rejects) != 3 || len(observer.Arrivals) != 1 {
		t.Errorf("Expected 3 rejects and 1 arrival, got %d and %d", len(observer.Rejects), len(observer.Arrivals))
	}
}

func TestController_LeaveWithoutEnter(t *testing.T) {
	observer := NewTestObserver()
	ctrl := CreateTestController(t, observer)

	if err := ctrl.Enter(North, South); err != nil {
		t.Fatalf("Enter failed: %v", err)
	}

	err := ctrl.Leave(East, West)
	if !IsConsistencyError(err) {
		t.Fatalf("Expected ConsistencyError, got %v", err)
	}
	if GetErrorCode(err) != ErrCodeNoSuchOccupant {
		t.Errorf("Expected ErrCodeNoSuchOccupant, got %v", GetErrorCode(err))
	}
	if !errors.Is(observer.LastError(), err) {
		t.Errorf("Expected observers to see the error, got %v", observer.LastError())
	}
	AssertOccupants(t, ctrl, R(t, North, South))
	if ctrl.Stats().Departed != 0 {
		t.Error("Failed leave must not count as a departure")
	}
}

func TestController_LeaveRemovesEarliestMatch(t *testing.T) {
	ctrl := CreateTestController(t, nil)

	for range 2 {
		if err := ctrl.Enter(North, South); err != nil {
			t.Fatalf("Enter failed: %v", err)
		}
	}
	if err := ctrl.Leave(North, South); err != nil {
		t.Fatalf("Leave failed: %v", err)
	}

	occupants := ctrl.Occupants()
	if len(occupants) != 1 || occupants[0].Arrival != 2 {
		t.Fatalf("Expected only the second vehicle to remain, got %+v", occupants)
	}
}

func TestController_OccupantsSnapshot(t *testing.T) {
	ctrl := CreateTestController(t, nil)
	if err := ctrl.Enter(South, East); err != nil {
		t.Fatalf("Enter failed: %v", err)
	}

	snapshot := ctrl.Occupants()
	snapshot[0].State = Departed
	snapshot[0].Route = R(t, West, North)

	AssertOccupants(t, ctrl, R(t, South, East))
}

func TestController_EnterContext(t *testing.T) {
	t.Run("Cancelled while waiting", func(t *testing.T) {
		observer := NewTestObserver()
		ctrl := CreateTestController(t, observer)

		if err := ctrl.Enter(North, South); err != nil {
			t.Fatalf("Enter failed: %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		done := EnterAsyncContext(ctx, ctrl, West, South)
		WaitForWaiting(t, ctrl, 1)
		cancel()

		var err error
		select {
		case err = <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Expected cancelled enter to return")
		}

		if GetErrorCode(err) != ErrCodeAbandoned {
			t.Fatalf("Expected ErrCodeAbandoned, got %v", err)
		}
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected error to wrap context.Canceled, got %v", err)
		}

		AssertOccupants(t, ctrl, R(t, North, South))
		if ctrl.Waiting() != 0 {
			t.Errorf("Expected no waiting vehicles, got %d", ctrl.Waiting())
		}
		if ctrl.Stats().Abandoned != 1 {
			t.Errorf("Expected 1 abandoned vehicle, got %d", ctrl.Stats().Abandoned)
		}
		if len(observer.Abandons) != 1 || observer.Abandons[0].State != Abandoned {
			t.Errorf("Expected one abandoned notification, got %+v", observer.Abandons)
		}
	})

	t.Run("Deadline while waiting", func(t *testing.T) {
		ctrl := CreateTestController(t, nil)
		if err := ctrl.Enter(East, West); err != nil {
			t.Fatalf("Enter failed: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		err := ctrl.EnterContext(ctx, North, South)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("Expected deadline error, got %v", err)
		}
		AssertOccupants(t, ctrl, R(t, East, West))
	})

	t.Run("Already cancelled", func(t *testing.T) {
		observer := NewTestObserver()
		ctrl := CreateTestController(t, observer)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := ctrl.EnterContext(ctx, North, South)
		if GetErrorCode(err) != ErrCodeAbandoned {
			t.Fatalf("Expected ErrCodeAbandoned, got %v", err)
		}
		if ctrl.Len() != 0 || len(observer.Arrivals) != 0 {
			t.Error("A cancelled enter must not register the vehicle")
		}
	})

	t.Run("Compatible vehicle ignores context", func(t *testing.T) {
		ctrl := CreateTestController(t, nil)
		ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
		defer cancel()

		if err := ctrl.EnterContext(ctx, North, West); err != nil {
			t.Fatalf("EnterContext failed: %v", err)
		}
		AssertOccupants(t, ctrl, R(t, North, West))
	})
}

func TestController_OrderedPolicy(t *testing.T) {
	observer := NewTestObserver()
	ctrl := CreateTestController(t, observer, WithPolicy(OrderedPolicy{}))

	if err := ctrl.Enter(North, South); err != nil {
		t.Fatalf("Enter failed: %v", err)
	}

	first := EnterAsync(ctrl, West, South)
	WaitForWaiting(t, ctrl, 1)

	// compatible with the occupant but would overtake west->south
	second := EnterAsync(ctrl, North, South)
	WaitForWaiting(t, ctrl, 2)
	AssertBlocked(t, second)

	if err := ctrl.Leave(North, South); err != nil {
		t.Fatalf("Leave failed: %v", err)
	}
	AssertReturns(t, first)
	AssertBlocked(t, second)

	if err := ctrl.Leave(West, South); err != nil {
		t.Fatalf("Leave failed: %v", err)
	}
	AssertReturns(t, second)

	order := observer.AdmissionOrder()
	expected := []Route{R(t, North, South), R(t, West, South), R(t, North, South)}
	for i := range expected {
		if order[i] != expected[i] {
			t.Fatalf("Expected admission order %v, got %v", expected, order)
		}
	}
}

func TestController_GreedyPolicyOvertakes(t *testing.T) {
	ctrl := CreateTestController(t, nil)

	if err := ctrl.Enter(North, South); err != nil {
		t.Fatalf("Enter failed: %v", err)
	}
	blocked := EnterAsync(ctrl, West, South)
	WaitForWaiting(t, ctrl, 1)

	AssertReturns(t, EnterAsync(ctrl, North, South))
	AssertBlocked(t, blocked)

	for range 2 {
		if err := ctrl.Leave(North, South); err != nil {
			t.Fatalf("Leave failed: %v", err)
		}
	}
	AssertReturns(t, blocked)
}

func TestController_OrderedAbandonReleasesFollowers(t *testing.T) {
	ctrl := CreateTestController(t, nil, WithPolicy(OrderedPolicy{}))

	if err := ctrl.Enter(North, South); err != nil {
		t.Fatalf("Enter failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	leader := EnterAsyncContext(ctx, ctrl, West, South)
	WaitForWaiting(t, ctrl, 1)

	follower := EnterAsync(ctrl, North, South)
	WaitForWaiting(t, ctrl, 2)
	AssertBlocked(t, follower)

	cancel()
	if err := <-leader; GetErrorCode(err) != ErrCodeAbandoned {
		t.Fatalf("Expected leader to abandon, got %v", err)
	}
	AssertReturns(t, follower)
	AssertOccupants(t, ctrl, R(t, North, South), R(t, North, South))
}

func TestController_Close(t *testing.T) {
	observer := NewTestObserver()
	ctrl := CreateTestController(t, observer)

	if err := ctrl.Enter(North, South); err != nil {
		t.Fatalf("Enter failed: %v", err)
	}

	err := ctrl.Close()
	if GetErrorCode(err) != ErrCodeOccupiedAtClose {
		t.Fatalf("Expected ErrCodeOccupiedAtClose, got %v", err)
	}
	if ctrl.Closed() {
		t.Fatal("Failed close must leave the controller usable")
	}

	if err := ctrl.Leave(North, South); err != nil {
		t.Fatalf("Leave failed: %v", err)
	}
	if err := ctrl.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := ctrl.Close(); err != nil {
		t.Fatalf("Second close should be a no-op, got %v", err)
	}
	if observer.Closed != 1 {
		t.Errorf("Expected one close notification, got %d", observer.Closed)
	}

	err = ctrl.Enter(North, South)
	if GetErrorCode(err) != ErrCodeControllerClosed {
		t.Errorf("Expected ErrCodeControllerClosed, got %v", err)
	}
	if ctrl.Len() != 0 {
		t.Error("Closed controller must not admit vehicles")
	}
}

func TestController_Stats(t *testing.T) {
	ctrl := CreateTestController(t, nil, WithPolicy(OrderedPolicy{}))

	_ = ctrl.Enter(North, South)
	_ = ctrl.Enter(South, North)
	_ = ctrl.Enter(North, North)
	_ = ctrl.Leave(South, North)

	stats := ctrl.Stats()
	expected := Stats{
		Arrived:       2,
		Admitted:      2,
		Departed:      1,
		Rejected:      1,
		Occupants:     1,
		PeakOccupancy: 2,
		Policy:        "ordered",
	}
	if stats != expected {
		t.Errorf("Expected stats %+v, got %+v", expected, stats)
	}
}

func TestController_Clock(t *testing.T) {
	var ticks atomic.Int64
	epoch := time.Date(2026, 3, 1, 7, 30, 0, 0, time.UTC)
	clock := func() time.Time {
		return epoch.Add(time.Duration(ticks.Add(1)) * time.Second)
	}
	var admitted *Vehicle
	spy := &admitSpy{fn: func(v *Vehicle) { admitted = v }}
	ctrl := CreateTestController(t, spy, WithClock(clock))

	if err := ctrl.Enter(East, North); err != nil {
		t.Fatalf("Enter failed: %v", err)
	}
	if admitted == nil {
		t.Fatal("Expected the spy to see the admission")
	}
	if !admitted.ArrivedAt.After(epoch) || admitted.WaitTime() != time.Second {
		t.Errorf("Expected timestamps from the injected clock, got arrived %v wait %v",
			admitted.ArrivedAt, admitted.WaitTime())
	}
}

type admitSpy struct {
	BaseObserver
	fn func(*Vehicle)
}

func (s *admitSpy) OnAdmit(v *Vehicle, _ int) { s.fn(v) }

func TestNew_InvalidOptions(t *testing.T) {
	_, err := New(WithLogger(nil), WithPolicy(nil), WithObserver(nil), WithClock(nil))
	if !IsConfigurationError(err) {
		t.Fatalf("Expected ConfigurationError, got %v", err)
	}
	if GetErrorCode(err) != ErrCodeInvalidConfiguration {
		t.Errorf("Expected ErrCodeInvalidConfiguration, got %v", GetErrorCode(err))
	}
	for _, component := range []string{"WithLogger", "WithPolicy", "WithObserver", "WithClock"} {
		if !strings.Contains(err.Error(), component) {
			t.Errorf("Expected error to mention %s, got %v", component, err)
		}
	}
}

func TestController_SafetyUnderLoad(t *testing.T) {
	for _, p := range []Policy{GreedyPolicy{}, OrderedPolicy{}} {
		t.Run(p.Name(), func(t *testing.T) {
			validator := NewValidationObserver()
			ctrl := CreateTestController(t, validator, WithPolicy(p))

			const (
				vehicles = 32
				trips    = 100
			)

			var wg sync.WaitGroup
			stop := make(chan struct{})
			violations := make(chan string, 1)

			// Sample the occupancy while vehicles run
			go func() {
				for {
					select {
					case <-stop:
						return
					default:
					}
					time.Sleep(20 * time.Microsecond)
					routes := occupancy.Routes(ctrl.Occupants())
					if a, b, collided := occupancy.FirstCollision(routes); collided {
						select {
						case violations <- a.String() + " with " + b.String():
						default:
						}
					}
				}
			}()

			errs := make(chan error, vehicles)
			for i := range vehicles {
				wg.Add(1)
				go func() {
					defer wg.Done()
					rng := rand.New(rand.NewPCG(uint64(i), 42))
					for range trips {
						from := Direction(rng.IntN(4))
						to := Direction((int(from) + 1 + rng.IntN(3)) % 4)
						if err := ctrl.Enter(from, to); err != nil {
							errs <- err
							return
						}
						if rng.IntN(4) == 0 {
							time.Sleep(time.Duration(rng.IntN(200)) * time.Microsecond)
						}
						if err := ctrl.Leave(from, to); err != nil {
							errs <- err
							return
						}
					}
				}()
			}

			finished := make(chan struct{})
			go func() {
				wg.Wait()
				close(finished)
			}()

			select {
			case <-finished:
			case <-time.After(30 * time.Second):
				t.Fatal("Vehicles did not all get through; possible deadlock")
			}
			close(stop)
			close(errs)

			for err := range errs {
				t.Errorf("Vehicle failed: %v", err)
			}
			select {
			case v := <-violations:
				t.Errorf("Sampled colliding occupants: %s", v)
			default:
			}
			if validator.HasViolations() {
				t.Errorf("Validator found violations: %v", validator.GetViolations())
			}

			stats := ctrl.Stats()
			if stats.Admitted != vehicles*trips || stats.Departed != vehicles*trips {
				t.Errorf("Expected %d admissions and departures, got %+v", vehicles*trips, stats)
			}
			if err := ctrl.Close(); err != nil {
				t.Errorf("Close failed: %v", err)
			}
		})
	}
}

// lockCheckObserver records whether the controller lock was held during
// OnRejected
type lockCheckObserver struct {
	BaseObserver
	ctrl *Controller
	held []bool
}

func (o *lockCheckObserver) OnRejected(Direction, Direction, error) {
	locked := !o.ctrl.mu.TryLock()
	if !locked {
		o.ctrl.mu.Unlock()
	}
	o.held = append(o.held, locked)
}

func TestController_RejectionNotifiedUnderLock(t *testing.T) {
	observer := &lockCheckObserver{}
	ctrl := CreateTestController(t, observer)
	observer.ctrl = ctrl

	if err := ctrl.Enter(West, West); !IsInvalidRouteError(err) {
		t.Fatalf("Expected invalid route error, got %v", err)
	}
	if err := ctrl.Leave(South, South); !IsInvalidRouteError(err) {
		t.Fatalf("Expected invalid route error, got %v", err)
	}

	if len(observer.held) != 2 {
		t.Fatalf("Expected 2 rejections, got %d", len(observer.held))
	}
	for i, held := range observer.held {
		if !held {
			t.Errorf("Expected rejection %d to be reported with the lock held", i)
		}
	}
	if !ctrl.mu.TryLock() {
		t.Fatal("Expected the lock to be released after a rejection")
	}
	ctrl.mu.Unlock()
}
