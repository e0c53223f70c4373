package observers

import (
	"sync"
	"time"

	"github.com/anggasct/crossing/pkg/occupancy"
	"github.com/anggasct/crossing/pkg/route"
)

// MetricsObserver collects in-memory metrics about admissions
type MetricsObserver struct {
	arrivals      map[route.Route]int
	admissions    map[route.Route]int
	waits         map[route.Route]int
	waitTime      map[route.Route]time.Duration
	maxWait       map[route.Route]time.Duration
	crossingTime  map[route.Route]time.Duration
	abandoned     int
	rejected      int
	errorCount    int
	peakOccupancy int
	mutex         sync.RWMutex
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	o := &MetricsObserver{}
	o.reset()
	return o
}

// OnArrive records an arrival
func (o *MetricsObserver) OnArrive(v *occupancy.Vehicle) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.arrivals[v.Route]++
}

// OnWait records a vehicle that had to block
func (o *MetricsObserver) OnWait(v *occupancy.Vehicle, _ *occupancy.Vehicle) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.waits[v.Route]++
}

// OnAdmit records admission metrics
func (o *MetricsObserver) OnAdmit(v *occupancy.Vehicle, occupants int) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.admissions[v.Route]++
	wait := v.WaitTime()
	o.waitTime[v.Route] += wait
	if wait > o.maxWait[v.Route] {
		o.maxWait[v.Route] = wait
	}
	if occupants > o.peakOccupancy {
		o.peakOccupancy = occupants
	}
}

// OnDepart records how long the vehicle occupied the intersection
func (o *MetricsObserver) OnDepart(v *occupancy.Vehicle, _ int) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.crossingTime[v.Route] += v.CrossingTime()
}

// OnAbandon records a waiter giving up
func (o *MetricsObserver) OnAbandon(*occupancy.Vehicle, error) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.abandoned++
}

// OnRejected records an invalid route
func (o *MetricsObserver) OnRejected(route.Direction, route.Direction, error) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.rejected++
}

// OnError records error metrics
func (o *MetricsObserver) OnError(error) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.errorCount++
}

// OnClosed implements the controller observer contract
func (o *MetricsObserver) OnClosed() {}

func copyCounts[V int | time.Duration](src map[route.Route]V) map[route.Route]V {
	result := make(map[route.Route]V, len(src))
	for r, v := range src {
		result[r] = v
	}
	return result
}

// GetArrivalCounts returns the number of arrivals per route
func (o *MetricsObserver) GetArrivalCounts() map[route.Route]int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return copyCounts(o.arrivals)
}

// GetAdmissionCounts returns the number of admissions per route
func (o *MetricsObserver) GetAdmissionCounts() map[route.Route]int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return copyCounts(o.admissions)
}

// GetWaitCounts returns how many vehicles on each route had to block
func (o *MetricsObserver) GetWaitCounts() map[route.Route]int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return copyCounts(o.waits)
}

// GetWaitTime returns the total time spent waiting per route
func (o *MetricsObserver) GetWaitTime() map[route.Route]time.Duration {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return copyCounts(o.waitTime)
}

// GetMaxWait returns the longest wait seen per route
func (o *MetricsObserver) GetMaxWait() map[route.Route]time.Duration {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return copyCounts(o.maxWait)
}

// GetCrossingTime returns the total time spent inside per route
func (o *MetricsObserver) GetCrossingTime() map[route.Route]time.Duration {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return copyCounts(o.crossingTime)
}

// GetPeakOccupancy returns the largest number of simultaneous occupants
func (o *MetricsObserver) GetPeakOccupancy() int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return o.peakOccupancy
}

// GetAbandonedCount returns the number of waiters that gave up
func (o *MetricsObserver) GetAbandonedCount() int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return o.abandoned
}

// GetRejectedCount returns the number of invalid routes seen
func (o *MetricsObserver) GetRejectedCount() int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return o.rejected
}

// GetErrorCount returns the number of errors
func (o *MetricsObserver) GetErrorCount() int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return o.errorCount
}

// Reset resets all metrics
func (o *MetricsObserver) Reset() {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.reset()
}

func (o *MetricsObserver) reset() {
	o.arrivals = make(map[route.Route]int)
	o.admissions = make(map[route.Route]int)
	o.waits = make(map[route.Route]int)
	o.waitTime = make(map[route.Route]time.Duration)
	o.maxWait = make(map[route.Route]time.Duration)
	o.crossingTime = make(map[route.Route]time.Duration)
	o.abandoned = 0
	o.rejected = 0
	o.errorCount = 0
	o.peakOccupancy = 0
}
