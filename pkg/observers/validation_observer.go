package observers

import (
	"fmt"
	"sync"

	"github.com/anggasct/rendezvous/pkg/core"
	"github.com/anggasct/rendezvous/pkg/utils"
)

// ValidationObserver checks scheduler and process table invariants from the
// notification stream and records every violation it sees
type ValidationObserver struct {
	inside     [core.NumDirections]int
	waiting    [core.NumDirections]int
	pending    int
	zombies    map[core.PID]bool
	reaped     map[core.PID]bool
	violations []string
	mutex      sync.RWMutex
}

// NewValidationObserver creates a new validation observer
func NewValidationObserver() *ValidationObserver {
	return &ValidationObserver{
		zombies:    make(map[core.PID]bool),
		reaped:     make(map[core.PID]bool),
		violations: make([]string, 0),
	}
}

// caller holds lock
func (o *ValidationObserver) addViolation(format string, args ...interface{}) {
	o.violations = append(o.violations, fmt.Sprintf(format, args...))
}

// OnArrive counts a request that is not yet matched by an exit
func (o *ValidationObserver) OnArrive(origin, destination core.Direction) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.pending++
}

// OnWait tracks the queue length reported by the scheduler
func (o *ValidationObserver) OnWait(origin core.Direction, waiting int) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.waiting[origin]++
	if o.waiting[origin] != waiting {
		o.addViolation("%s queue is %d, expected %d", origin, waiting, o.waiting[origin])
	}
	o.checkConservation()
}

// OnEnter checks mutual exclusion
func (o *ValidationObserver) OnEnter(origin, destination core.Direction) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	for d, n := range o.inside {
		if core.Direction(d) != origin && n > 0 {
			o.addViolation("%s vehicle entered while %d %s vehicles are inside", origin, n, core.Direction(d))
		}
	}
	o.inside[origin]++
	o.checkConservation()
}

// OnLeave checks that a vehicle was inside before it left
func (o *ValidationObserver) OnLeave(origin, destination core.Direction, remaining int) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if o.inside[origin] == 0 {
		o.addViolation("%s vehicle left without entering", origin)
		return
	}
	o.inside[origin]--
	o.pending--
}

// OnAdmit checks that the whole queue is admitted and nobody else is inside
func (o *ValidationObserver) OnAdmit(direction core.Direction, batch int) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if batch != o.waiting[direction] {
		o.addViolation("%s admitted batch of %d with %d queued", direction, batch, o.waiting[direction])
	}
	for d, n := range o.inside {
		if n > 0 {
			o.addViolation("%s admitted while %d %s vehicles are inside", direction, n, core.Direction(d))
		}
	}
	o.waiting[direction] = 0
}

// OnIdle checks that the intersection really is empty
func (o *ValidationObserver) OnIdle() {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	for d := range o.inside {
		if o.inside[d] != 0 || o.waiting[d] != 0 {
			o.addViolation("idle with %d inside and %d waiting from %s", o.inside[d], o.waiting[d], core.Direction(d))
		}
	}
}

// caller holds lock
func (o *ValidationObserver) checkConservation() {
	total := 0
	for d := range o.inside {
		total += o.inside[d] + o.waiting[d]
	}
	if total > o.pending {
		o.addViolation("%d vehicles admitted or waiting for %d outstanding requests", total, o.pending)
	}
}

// OnRegister checks that a pid is not reused while its entry exists
func (o *ValidationObserver) OnRegister(pid, parent core.PID) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if o.zombies[pid] {
		o.addViolation("pid %d registered while still a zombie", pid)
	}
	delete(o.reaped, pid)
}

// OnZombie tracks exited processes
func (o *ValidationObserver) OnZombie(pid core.PID, exitCode int) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.zombies[pid] = true
}

// OnReap checks that an entry is removed at most once
func (o *ValidationObserver) OnReap(pid core.PID, reason core.ReapReason) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if o.reaped[pid] {
		o.addViolation("pid %d reaped twice", pid)
	}
	if reason == core.ReapCollected && !o.zombies[pid] {
		o.addViolation("pid %d collected before it exited", pid)
	}
	o.reaped[pid] = true
	delete(o.zombies, pid)
}

// OnWaitBlocked is a no-op
func (o *ValidationObserver) OnWaitBlocked(pid, caller core.PID) {}

// OnError records observer failures as violations
func (o *ValidationObserver) OnError(err error) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.addViolation("observer error: %v", err)
}

// Violations returns all recorded violations
func (o *ValidationObserver) Violations() []string {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return append([]string(nil), o.violations...)
}

// IsValid returns whether no violations were recorded
func (o *ValidationObserver) IsValid() bool {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return len(o.violations) == 0
}

// Err returns the violations as a single error, or nil
func (o *ValidationObserver) Err() error {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	collector := utils.NewErrorCollector()
	for _, v := range o.violations {
		collector.Add(fmt.Errorf("%s", v))
	}
	return collector.Err()
}

// Reset clears all tracked state and violations
func (o *ValidationObserver) Reset() {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.inside = [core.NumDirections]int{}
	o.waiting = [core.NumDirections]int{}
	o.pending = 0
	o.zombies = make(map[core.PID]bool)
	o.reaped = make(map[core.PID]bool)
	o.violations = make([]string, 0)
}
