package core

import (
	"fmt"
	"sync"
)

// TrafficObserver receives notifications from the intersection scheduler.
// Notifications are delivered while the scheduler lock is held, so an
// observer sees a linearized history and must never call back into the
// scheduler.
type TrafficObserver interface {
	// OnArrive is called when a vehicle requests entry
	OnArrive(origin, destination Direction)

	// OnWait is called when a vehicle has to queue; waiting is the new queue length
	OnWait(origin Direction, waiting int)

	// OnEnter is called when a vehicle is inside the intersection
	OnEnter(origin, destination Direction)

	// OnLeave is called when a vehicle exits; remaining is the live batch size left
	OnLeave(origin, destination Direction, remaining int)

	// OnAdmit is called when a queued direction is admitted as a batch
	OnAdmit(direction Direction, batch int)

	// OnIdle is called when the intersection empties with nobody waiting
	OnIdle()
}

// ProcessObserver receives notifications from the process table.
// The same locking rules as TrafficObserver apply.
type ProcessObserver interface {
	// OnRegister is called when a process is added to the table
	OnRegister(pid, parent PID)

	// OnZombie is called when a process exits and waits to be collected
	OnZombie(pid PID, exitCode int)

	// OnReap is called when a process entry is removed from the table
	OnReap(pid PID, reason ReapReason)

	// OnWaitBlocked is called when a caller has to sleep waiting for pid
	OnWaitBlocked(pid, caller PID)
}

// ErrorObserver is optionally implemented by observers that want to hear
// about panics raised by other observers
type ErrorObserver interface {
	OnError(err error)
}

// BaseObserver provides a default implementation with no-op methods
type BaseObserver struct{}

func (o *BaseObserver) OnArrive(origin, destination Direction)               {}
func (o *BaseObserver) OnWait(origin Direction, waiting int)                 {}
func (o *BaseObserver) OnEnter(origin, destination Direction)                {}
func (o *BaseObserver) OnLeave(origin, destination Direction, remaining int) {}
func (o *BaseObserver) OnAdmit(direction Direction, batch int)               {}
func (o *BaseObserver) OnIdle()                                              {}
func (o *BaseObserver) OnRegister(pid, parent PID)                           {}
func (o *BaseObserver) OnZombie(pid PID, exitCode int)                       {}
func (o *BaseObserver) OnReap(pid PID, reason ReapReason)                    {}
func (o *BaseObserver) OnWaitBlocked(pid, caller PID)                        {}

// ObserverManager manages a collection of observers of type T
type ObserverManager[T comparable] struct {
	mutex     sync.RWMutex
	observers []T
}

// NewObserverManager creates a new observer manager
func NewObserverManager[T comparable]() *ObserverManager[T] {
	return &ObserverManager[T]{
		observers: make([]T, 0),
	}
}

// AddObserver adds an observer to the manager
func (om *ObserverManager[T]) AddObserver(observer T) {
	om.mutex.Lock()
	defer om.mutex.Unlock()
	om.observers = append(om.observers, observer)
}

// RemoveObserver removes an observer from the manager
func (om *ObserverManager[T]) RemoveObserver(observer T) {
	om.mutex.Lock()
	defer om.mutex.Unlock()
	for i, obs := range om.observers {
		if obs == observer {
			om.observers = append(om.observers[:i], om.observers[i+1:]...)
			break
		}
	}
}

// Len returns the number of registered observers
func (om *ObserverManager[T]) Len() int {
	om.mutex.RLock()
	defer om.mutex.RUnlock()
	return len(om.observers)
}

// Notify calls fn for every observer. A panicking observer is reported to
// observers implementing ErrorObserver and never reaches the caller.
func (om *ObserverManager[T]) Notify(name string, fn func(T)) {
	om.mutex.RLock()
	observers := make([]T, len(om.observers))
	copy(observers, om.observers)
	om.mutex.RUnlock()

	for _, observer := range observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					om.reportPanic(observers, fmt.Errorf("observer panic in %s: %v", name, r))
				}
			}()
			fn(observer)
		}()
	}
}

func (om *ObserverManager[T]) reportPanic(observers []T, err error) {
	for _, observer := range observers {
		if errObs, ok := any(observer).(ErrorObserver); ok {
			func() {
				defer func() { recover() }()
				errObs.OnError(err)
			}()
		}
	}
}
