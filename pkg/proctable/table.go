// Package proctable tracks parent/child relationships between processes and
// hands exit status from an exiting process to the parent waiting for it.
//
// Entries live from Register until the status is collected, or until the
// process exits with nobody left who could collect it. All state is guarded
// by one mutex; one condition variable, broadcast on every exit, serves all
// waiters, so waiters recheck their own pid after every wakeup.
package proctable

import (
	"sort"
	"sync"

	"github.com/anggasct/rendezvous/pkg/core"
	"github.com/anggasct/rendezvous/pkg/utils"
)

const component = "proctable"

// Info is the bookkeeping record kept for one process
type Info struct {
	PID    core.PID
	Parent core.PID
	Alive  bool
	// ExitCode is meaningful only once Alive is false
	ExitCode int
}

// Table is the process table shared by every process in the system
type Table struct {
	mutex     sync.Mutex
	exited    *sync.Cond
	procs     map[core.PID]*Info
	observers *core.ObserverManager[core.ProcessObserver]
}

// NewTable creates an empty process table
func NewTable() *Table {
	t := &Table{
		procs:     make(map[core.PID]*Info),
		observers: core.NewObserverManager[core.ProcessObserver](),
	}
	t.exited = sync.NewCond(&t.mutex)
	return t
}

// AddObserver registers an observer
func (t *Table) AddObserver(observer core.ProcessObserver) {
	t.observers.AddObserver(observer)
}

// RemoveObserver unregisters an observer
func (t *Table) RemoveObserver(observer core.ProcessObserver) {
	t.observers.RemoveObserver(observer)
}

// Register adds a live process with the given parent. A parent other than
// NoPID must be registered and alive: once a parent has exited its pid may
// already belong to an unrelated process.
func (t *Table) Register(pid, parent core.PID) error {
	if pid == core.NoPID {
		return utils.ErrInvalidArgument.WithOperation("register").WithDetail("pid", int(pid))
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	if _, exists := t.procs[pid]; exists {
		return utils.ErrPIDInUse.WithPID(int(pid)).WithOperation("register")
	}
	if parent != core.NoPID {
		if p, ok := t.procs[parent]; !ok || !p.Alive {
			return utils.ErrNoSuchProcess.WithPID(int(parent)).WithOperation("register").WithDetail("child", int(pid))
		}
	}
	t.procs[pid] = &Info{PID: pid, Parent: parent, Alive: true}
	t.observers.Notify("OnRegister", func(o core.ProcessObserver) { o.OnRegister(pid, parent) })
	return nil
}

// Abort removes a live process that never ran, undoing Register
func (t *Table) Abort(pid core.PID) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	info, exists := t.procs[pid]
	if !exists {
		return utils.ErrNoSuchProcess.WithPID(int(pid)).WithOperation("abort")
	}
	if !info.Alive {
		return utils.ErrInvalidArgument.WithPID(int(pid)).WithOperation("abort").WithDetail("reason", "process already exited")
	}
	t.remove(pid, core.ReapAborted)
	return nil
}

// OnExit records that pid terminated with code. It must be called exactly
// once per process and never blocks.
func (t *Table) OnExit(pid core.PID, code int) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	me, exists := t.procs[pid]
	utils.Assert(exists, component, "exit of unregistered pid %d", pid)
	utils.Assert(me.Alive, component, "pid %d exited twice", pid)

	// Nobody can collect our zombie children once we are gone, and live
	// children must not be adopted by whoever reuses our pid.
	detached := false
	for childPID, child := range t.procs {
		if child.Parent != pid {
			continue
		}
		detached = true
		if child.Alive {
			child.Parent = core.NoPID
		} else {
			t.remove(childPID, core.ReapAbandoned)
		}
	}

	parent, hasParent := t.procs[me.Parent]
	if !hasParent || !parent.Alive {
		t.remove(pid, core.ReapOrphaned)
		if detached {
			// waiters for our children must notice they are gone
			t.exited.Broadcast()
		}
		return
	}

	me.Alive = false
	me.ExitCode = code
	t.observers.Notify("OnZombie", func(o core.ProcessObserver) { o.OnZombie(pid, code) })
	t.exited.Broadcast()
}

// Wait blocks until pid, a child of caller, has exited, then returns its
// exit code and removes its entry. It fails immediately if pid does not
// exist or belongs to another parent.
func (t *Table) Wait(pid, caller core.PID) (int, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	blocked := false
	for {
		info, exists := t.procs[pid]
		if !exists {
			return 0, utils.ErrNoSuchProcess.WithPID(int(pid)).WithOperation("wait")
		}
		if info.Parent != caller {
			return 0, utils.ErrNotAChild.WithPID(int(pid)).WithOperation("wait").WithDetail("caller", int(caller))
		}
		if !info.Alive {
			code := info.ExitCode
			t.remove(pid, core.ReapCollected)
			return code, nil
		}

		if !blocked {
			blocked = true
			t.observers.Notify("OnWaitBlocked", func(o core.ProcessObserver) { o.OnWaitBlocked(pid, caller) })
		}
		t.exited.Wait()
	}
}

// Lookup returns a copy of the entry for pid
func (t *Table) Lookup(pid core.PID) (Info, bool) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	info, exists := t.procs[pid]
	if !exists {
		return Info{}, false
	}
	return *info, true
}

// Contains reports whether pid has an entry
func (t *Table) Contains(pid core.PID) bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	_, exists := t.procs[pid]
	return exists
}

// Children returns copies of the entries whose parent is pid, sorted by pid
func (t *Table) Children(pid core.PID) []Info {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	var children []Info
	for _, info := range t.procs {
		if info.Parent == pid {
			children = append(children, *info)
		}
	}
	sortInfos(children)
	return children
}

// Len returns the number of entries
func (t *Table) Len() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return len(t.procs)
}

// Snapshot returns copies of all entries sorted by pid
func (t *Table) Snapshot() []Info {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	infos := make([]Info, 0, len(t.procs))
	for _, info := range t.procs {
		infos = append(infos, *info)
	}
	sortInfos(infos)
	return infos
}

// caller holds lock
func (t *Table) remove(pid core.PID, reason core.ReapReason) {
	_, exists := t.procs[pid]
	utils.Assert(exists, component, "pid %d removed twice", pid)
	delete(t.procs, pid)
	t.observers.Notify("OnReap", func(o core.ProcessObserver) { o.OnReap(pid, reason) })
}

func sortInfos(infos []Info) {
	sort.Slice(infos, func(i, j int) bool { return infos[i].PID < infos[j].PID })
}
