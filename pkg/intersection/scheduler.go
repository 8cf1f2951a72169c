// Package intersection implements an admission scheduler for a four-way
// intersection. Vehicles from a single direction may occupy the
// intersection at a time; when the admitted batch has left, queued
// directions are served round-robin by direction index.
package intersection

import (
	"sync"

	"github.com/anggasct/rendezvous/pkg/core"
	"github.com/anggasct/rendezvous/pkg/utils"
)

const component = "intersection"

// Options configures a Scheduler
type Options struct {
	// Name is used in log output only
	Name string
	// Policy decides whether same-direction arrivals join a live batch.
	// Under JoinActive, the default, a steady stream from the admitted
	// direction keeps the batch open and other directions wait until it
	// ends; JoinUncontended bounds that wait to the current batch.
	Policy Policy
}

// DefaultOptions returns the default scheduler options
func DefaultOptions() Options {
	return Options{
		Name:   "intersection",
		Policy: JoinActive,
	}
}

// Snapshot is a consistent copy of the scheduler state
type Snapshot struct {
	State   State
	Waiting [core.NumDirections]int
}

// TotalWaiting returns the number of queued vehicles over all directions
func (s Snapshot) TotalWaiting() int {
	total := 0
	for _, n := range s.Waiting {
		total += n
	}
	return total
}

// Scheduler arbitrates access to the intersection
type Scheduler struct {
	options Options

	mutex      sync.Mutex
	state      State
	waiting    [core.NumDirections]int
	generation [core.NumDirections]uint64
	cond       [core.NumDirections]*sync.Cond
	closed     bool

	observers *core.ObserverManager[core.TrafficObserver]
}

// NewScheduler creates a scheduler in the Unset state
func NewScheduler(options ...Options) *Scheduler {
	opts := DefaultOptions()
	if len(options) > 0 {
		opts = options[0]
	}

	s := &Scheduler{
		options:   opts,
		state:     Unset,
		observers: core.NewObserverManager[core.TrafficObserver](),
	}
	for i := range s.cond {
		s.cond[i] = sync.NewCond(&s.mutex)
	}
	return s
}

// Name returns the configured scheduler name
func (s *Scheduler) Name() string {
	return s.options.Name
}

// Policy returns the configured join policy
func (s *Scheduler) Policy() Policy {
	return s.options.Policy
}

// AddObserver registers an observer
func (s *Scheduler) AddObserver(observer core.TrafficObserver) {
	s.observers.AddObserver(observer)
}

// RemoveObserver unregisters an observer
func (s *Scheduler) RemoveObserver(observer core.TrafficObserver) {
	s.observers.RemoveObserver(observer)
}

// RequestEntry blocks until a vehicle from origin may occupy the
// intersection. The destination does not influence admission.
func (s *Scheduler) RequestEntry(origin, destination core.Direction) {
	utils.Assert(origin.Valid(), component, "request entry from invalid origin %d", int(origin))
	utils.Assert(destination.Valid(), component, "request entry to invalid destination %d", int(destination))

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.assertOpen("RequestEntry")

	s.observers.Notify("OnArrive", func(o core.TrafficObserver) { o.OnArrive(origin, destination) })

	if s.options.Policy.canJoin(s.state, origin, s.waiting) {
		if s.state.Phase == PhaseUnset {
			s.state = Admitted(origin, 1)
		} else {
			s.state.Remaining++
		}
	} else {
		s.waiting[origin]++
		waiting := s.waiting[origin]
		s.observers.Notify("OnWait", func(o core.TrafficObserver) { o.OnWait(origin, waiting) })

		// The broadcast for origin bumps its generation; anything else is a
		// spurious wakeup.
		ticket := s.generation[origin]
		for s.generation[origin] == ticket {
			s.cond[origin].Wait()
		}
		utils.Assert(s.state.Phase == PhaseAdmitted && s.state.Direction == origin, component,
			"%s vehicle woken while state is %s", origin, s.state)
	}

	s.observers.Notify("OnEnter", func(o core.TrafficObserver) { o.OnEnter(origin, destination) })
}

// ExitEntry records that a vehicle from origin has left the intersection.
// It never blocks; when the last vehicle of the batch leaves, the next
// direction is chosen and its whole queue is woken.
func (s *Scheduler) ExitEntry(origin, destination core.Direction) {
	utils.Assert(origin.Valid(), component, "exit from invalid origin %d", int(origin))

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.assertOpen("ExitEntry")

	utils.Assert(s.state.Phase == PhaseAdmitted && s.state.Direction == origin && s.state.Remaining > 0,
		component, "%s vehicle exits while state is %s", origin, s.state)

	s.state.Remaining--
	remaining := s.state.Remaining
	s.observers.Notify("OnLeave", func(o core.TrafficObserver) { o.OnLeave(origin, destination, remaining) })

	if remaining > 0 {
		return
	}

	s.state = Next(s.state.Direction, s.waiting)
	if s.state.Phase == PhaseUnset {
		s.observers.Notify("OnIdle", func(o core.TrafficObserver) { o.OnIdle() })
		return
	}

	next := s.state.Direction
	batch := s.state.Remaining
	s.waiting[next] = 0
	s.generation[next]++
	s.observers.Notify("OnAdmit", func(o core.TrafficObserver) { o.OnAdmit(next, batch) })
	s.cond[next].Broadcast()
}

// State returns the current admission state
func (s *Scheduler) State() State {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state
}

// Waiting returns the number of vehicles queued for direction d
func (s *Scheduler) Waiting(d core.Direction) int {
	utils.Assert(d.Valid(), component, "invalid direction %d", int(d))
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.waiting[d]
}

// Snapshot returns a consistent copy of the scheduler state
func (s *Scheduler) Snapshot() Snapshot {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return Snapshot{State: s.state, Waiting: s.waiting}
}

// Teardown ends the scheduler lifecycle. Leaked waiters or vehicles still
// inside are fatal.
func (s *Scheduler) Teardown() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.assertOpen("Teardown")

	for _, d := range core.Directions() {
		utils.Assert(s.waiting[d] == 0, component, "teardown with %d %s vehicles waiting", s.waiting[d], d)
	}
	utils.Assert(s.state.Phase == PhaseUnset, component, "teardown while state is %s", s.state)
	s.closed = true
}

// caller holds lock
func (s *Scheduler) assertOpen(op string) {
	utils.Assert(!s.closed, component, "%s after teardown", op)
}
