package kernel

import (
	"sync"

	"github.com/anggasct/rendezvous/pkg/core"
)

// pidAllocator hands out pids from [first, max], increment-first with
// wrap-around, skipping pids still in use. At most limit pids are in use
// at once.
type pidAllocator struct {
	mutex sync.Mutex
	first core.PID
	max   core.PID
	next  core.PID
	limit int
	inUse map[core.PID]struct{}
}

func newPIDAllocator(first, max core.PID, limit int) *pidAllocator {
	return &pidAllocator{
		first: first,
		max:   max,
		next:  first,
		limit: limit,
		inUse: make(map[core.PID]struct{}),
	}
}

// alloc returns the next free pid, or false when the space is exhausted
func (a *pidAllocator) alloc() (core.PID, bool) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.limit > 0 && len(a.inUse) >= a.limit {
		return core.NoPID, false
	}

	start := a.next
	for {
		p := a.next

		a.next++
		if a.next > a.max {
			a.next = a.first
		}

		if _, used := a.inUse[p]; !used {
			a.inUse[p] = struct{}{}
			return p, true
		}

		// wrapped fully
		if a.next == start {
			return core.NoPID, false
		}
	}
}

// release returns pid to the free pool; unknown pids are ignored
func (a *pidAllocator) release(pid core.PID) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	delete(a.inUse, pid)
}

func (a *pidAllocator) inUseCount() int {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return len(a.inUse)
}
