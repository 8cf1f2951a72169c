package observers

import (
	"sync"
	"time"

	"github.com/anggasct/rendezvous/pkg/core"
)

// MetricsObserver collects metrics about admissions and process lifecycles
type MetricsObserver struct {
	entries      map[core.Direction]int
	batches      map[core.Direction]int
	waits        map[core.Direction]int
	peakWaiting  map[core.Direction]int
	admitTime    map[core.Direction]time.Duration
	lastAdmit    time.Time
	lastAdmitDir core.Direction
	idle         int

	registered  int
	zombies     int
	reaped      map[core.ReapReason]int
	blockedWait int
	errorCount  int

	mutex sync.RWMutex
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	o := &MetricsObserver{}
	o.reset()
	return o
}

func (o *MetricsObserver) reset() {
	o.entries = make(map[core.Direction]int)
	o.batches = make(map[core.Direction]int)
	o.waits = make(map[core.Direction]int)
	o.peakWaiting = make(map[core.Direction]int)
	o.admitTime = make(map[core.Direction]time.Duration)
	o.lastAdmit = time.Time{}
	o.idle = 0
	o.registered = 0
	o.zombies = 0
	o.reaped = make(map[core.ReapReason]int)
	o.blockedWait = 0
	o.errorCount = 0
}

// OnArrive is a no-op; arrivals show up as entries or waits
func (o *MetricsObserver) OnArrive(origin, destination core.Direction) {}

// OnWait records a queued vehicle
func (o *MetricsObserver) OnWait(origin core.Direction, waiting int) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.waits[origin]++
	if waiting > o.peakWaiting[origin] {
		o.peakWaiting[origin] = waiting
	}
}

// OnEnter records an admitted vehicle
func (o *MetricsObserver) OnEnter(origin, destination core.Direction) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if o.lastAdmit.IsZero() {
		// bootstrap admission
		o.lastAdmit = time.Now()
		o.lastAdmitDir = origin
	}
	o.entries[origin]++
}

// OnLeave is a no-op
func (o *MetricsObserver) OnLeave(origin, destination core.Direction, remaining int) {}

// OnAdmit records a batch handover and the time the previous direction held the intersection
func (o *MetricsObserver) OnAdmit(direction core.Direction, batch int) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.closeHold()
	o.batches[direction]++
	o.lastAdmit = time.Now()
	o.lastAdmitDir = direction
}

// OnIdle records the intersection becoming empty
func (o *MetricsObserver) OnIdle() {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.closeHold()
	o.idle++
}

// caller holds lock
func (o *MetricsObserver) closeHold() {
	if !o.lastAdmit.IsZero() {
		o.admitTime[o.lastAdmitDir] += time.Since(o.lastAdmit)
		o.lastAdmit = time.Time{}
	}
}

// OnRegister records a new process
func (o *MetricsObserver) OnRegister(pid, parent core.PID) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.registered++
}

// OnZombie records a process exit awaiting collection
func (o *MetricsObserver) OnZombie(pid core.PID, exitCode int) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.zombies++
}

// OnReap records a removed process entry
func (o *MetricsObserver) OnReap(pid core.PID, reason core.ReapReason) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.reaped[reason]++
}

// OnWaitBlocked records a wait that had to sleep
func (o *MetricsObserver) OnWaitBlocked(pid, caller core.PID) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.blockedWait++
}

// OnError records errors
func (o *MetricsObserver) OnError(err error) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.errorCount++
}

// GetEntryCounts returns the number of vehicles admitted per direction
func (o *MetricsObserver) GetEntryCounts() map[core.Direction]int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return copyCounts(o.entries)
}

// GetBatchCounts returns the number of batch admissions per direction
func (o *MetricsObserver) GetBatchCounts() map[core.Direction]int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return copyCounts(o.batches)
}

// GetWaitCounts returns the number of vehicles that queued per direction
func (o *MetricsObserver) GetWaitCounts() map[core.Direction]int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return copyCounts(o.waits)
}

// GetPeakWaiting returns the longest queue seen per direction
func (o *MetricsObserver) GetPeakWaiting() map[core.Direction]int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return copyCounts(o.peakWaiting)
}

// GetHoldTime returns how long each direction owned the intersection
func (o *MetricsObserver) GetHoldTime() map[core.Direction]time.Duration {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	result := make(map[core.Direction]time.Duration)
	for d, duration := range o.admitTime {
		result[d] = duration
	}
	return result
}

// GetIdleCount returns how often the intersection became idle
func (o *MetricsObserver) GetIdleCount() int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return o.idle
}

// GetRegisteredCount returns the number of registered processes
func (o *MetricsObserver) GetRegisteredCount() int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return o.registered
}

// GetZombieCount returns the number of exits that left a zombie
func (o *MetricsObserver) GetZombieCount() int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return o.zombies
}

// GetReapCounts returns removed entries by reason
func (o *MetricsObserver) GetReapCounts() map[core.ReapReason]int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return copyCounts(o.reaped)
}

// GetBlockedWaitCount returns the number of waits that had to sleep
func (o *MetricsObserver) GetBlockedWaitCount() int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return o.blockedWait
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

func copyCounts[K comparable](m map[K]int) map[K]int {
	result := make(map[K]int, len(m))
	for k, v := range m {
		result[k] = v
	}
	return result
}
