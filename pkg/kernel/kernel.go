// Package kernel implements the process lifecycle system calls (fork,
// exec, exit, waitpid, getpid) on top of the process table. Address
// spaces, program loading and thread creation are collaborators supplied
// by the caller.
package kernel

import (
	"sync"

	"github.com/anggasct/rendezvous/pkg/core"
	"github.com/anggasct/rendezvous/pkg/proctable"
	"github.com/anggasct/rendezvous/pkg/utils"
)

const component = "kernel"

// Config holds the kernel resource limits
type Config struct {
	// FirstPID and MaxPID bound the pid space
	FirstPID core.PID
	MaxPID   core.PID
	// MaxProcesses bounds the pids in use, zombies included
	MaxProcesses int
	// MaxArgs and MaxArgBytes bound exec arguments
	MaxArgs     int
	MaxArgBytes int
}

// DefaultConfig returns the default kernel limits
func DefaultConfig() Config {
	return Config{
		FirstPID:     2,
		MaxPID:       32767,
		MaxProcesses: 256,
		MaxArgs:      64,
		MaxArgBytes:  64 * 1024,
	}
}

// Option configures a Kernel
type Option func(*Kernel)

// WithLoader sets the program loader used by Exec
func WithLoader(loader Loader) Option {
	return func(k *Kernel) {
		k.loader = loader
	}
}

// WithSpawner sets the thread creator used by Fork
func WithSpawner(spawner Spawner) Option {
	return func(k *Kernel) {
		k.spawner = spawner
	}
}

// WithObserver registers a process table observer
func WithObserver(observer core.ProcessObserver) Option {
	return func(k *Kernel) {
		k.table.AddObserver(observer)
	}
}

// Kernel owns the process table and the live process descriptors
type Kernel struct {
	config  Config
	table   *proctable.Table
	pids    *pidAllocator
	loader  Loader
	spawner Spawner

	mutex sync.Mutex
	procs map[core.PID]*Process
}

// pidReleaser frees a pid once its table entry is gone for good
type pidReleaser struct {
	core.BaseObserver
	pids *pidAllocator
}

func (r *pidReleaser) OnReap(pid core.PID, reason core.ReapReason) {
	r.pids.release(pid)
}

// New creates a kernel with an empty process table
func New(config Config, options ...Option) *Kernel {
	k := &Kernel{
		config: config,
		table:  proctable.NewTable(),
		pids:   newPIDAllocator(config.FirstPID, config.MaxPID, config.MaxProcesses),
		procs:  make(map[core.PID]*Process),
	}
	k.table.AddObserver(&pidReleaser{pids: k.pids})

	for _, opt := range options {
		opt(k)
	}
	return k
}

// Table returns the process table
func (k *Kernel) Table() *proctable.Table {
	return k.table
}

// Config returns the kernel limits
func (k *Kernel) Config() Config {
	return k.config
}

// Process returns the live descriptor for pid
func (k *Kernel) Process(pid core.PID) (*Process, bool) {
	k.mutex.Lock()
	defer k.mutex.Unlock()
	p, ok := k.procs[pid]
	return p, ok
}

// NumProcesses returns the number of live descriptors
func (k *Kernel) NumProcesses() int {
	k.mutex.Lock()
	defer k.mutex.Unlock()
	return len(k.procs)
}

// Boot creates the first process, which has no parent
func (k *Kernel) Boot(name string) (*Process, error) {
	pid, ok := k.pids.alloc()
	if !ok {
		return nil, utils.ErrOutOfMemory.WithOperation("boot").WithDetail("reason", "pid space exhausted")
	}

	p := &Process{pid: pid, parent: core.NoPID, name: name}
	if err := k.table.Register(pid, core.NoPID); err != nil {
		k.pids.release(pid)
		return nil, err
	}
	k.track(p)
	return p, nil
}

// GetPID returns the pid of p
func (k *Kernel) GetPID(p *Process) core.PID {
	return p.PID()
}

// Fork creates a child of parent with a copy of its address space and
// image, registers it and starts its thread. On any failure the partially
// built child is torn down before the error is returned.
func (k *Kernel) Fork(parent *Process) (*Process, error) {
	if parent == nil || parent.Exited() {
		return nil, utils.ErrNoSuchProcess.WithOperation("fork")
	}

	pid, ok := k.pids.alloc()
	if !ok {
		return nil, utils.ErrOutOfMemory.WithOperation("fork").WithDetail("reason", "process limit reached")
	}

	child, err := parent.cloneFor(pid)
	if err != nil {
		k.pids.release(pid)
		return nil, utils.ErrOutOfMemory.WithOperation("fork").WithCause(err)
	}

	if err := k.table.Register(pid, parent.PID()); err != nil {
		if child.space != nil {
			child.space.Destroy()
		}
		k.pids.release(pid)
		return nil, err
	}
	k.track(child)

	if k.spawner != nil {
		if err := k.spawner.Spawn(child); err != nil {
			k.abort(child)
			return nil, utils.ErrOutOfMemory.WithOperation("fork").WithPID(int(pid)).WithCause(err)
		}
	}
	return child, nil
}

// Exec replaces the program running in p. On failure the old image stays
// in place; on success the old address space is destroyed.
func (k *Kernel) Exec(p *Process, path string, args []string) error {
	if p == nil || p.Exited() {
		return utils.ErrNoSuchProcess.WithOperation("exec")
	}
	if path == "" {
		return utils.ErrInvalidArgument.WithOperation("exec").WithPID(int(p.PID())).WithDetail("reason", "empty path")
	}
	if err := k.checkArgs(path, args); err != nil {
		return err.WithPID(int(p.PID()))
	}
	if k.loader == nil {
		return utils.ErrNoLoader.WithOperation("exec").WithPID(int(p.PID()))
	}

	kargs := append([]string(nil), args...)
	img, err := k.loader.Load(path, kargs)
	if err != nil {
		return err
	}
	if img == nil {
		return utils.ErrInvalidArgument.WithOperation("exec").WithPID(int(p.PID())).WithDetail("reason", "loader returned no image")
	}
	if img.Path == "" {
		img.Path = path
	}
	if img.Args == nil {
		img.Args = kargs
	}

	if old := p.replaceImage(img); old != nil {
		old.Destroy()
	}
	return nil
}

// Exit terminates p with code. The exit status is posted to the process
// table before the address space is destroyed. The calling goroutine must
// not use p afterwards.
func (k *Kernel) Exit(p *Process, code int) {
	space, first := p.markExited()
	utils.Assert(first, component, "pid %d exited twice", p.PID())

	k.table.OnExit(p.PID(), code)
	if space != nil {
		space.Destroy()
	}
	k.untrack(p)
}

// Waitpid blocks until pid, a child of caller, exits and returns its exit
// code. Only options == 0 is supported.
func (k *Kernel) Waitpid(caller *Process, pid core.PID, options int) (int, core.PID, error) {
	if options != 0 {
		return 0, core.NoPID, utils.ErrInvalidOption.WithOperation("waitpid").WithDetail("options", options)
	}
	code, err := k.table.Wait(pid, caller.PID())
	if err != nil {
		return 0, core.NoPID, err
	}
	return code, pid, nil
}

func (k *Kernel) checkArgs(path string, args []string) *utils.KernelError {
	if k.config.MaxArgs > 0 && len(args) > k.config.MaxArgs {
		return utils.ErrArgListTooLong.WithOperation("exec").WithDetail("args", len(args))
	}
	total := len(path) + 1
	for _, arg := range args {
		total += len(arg) + 1
	}
	if k.config.MaxArgBytes > 0 && total > k.config.MaxArgBytes {
		return utils.ErrArgListTooLong.WithOperation("exec").WithDetail("bytes", total)
	}
	return nil
}

// abort undoes a fork whose child never ran
func (k *Kernel) abort(child *Process) {
	space, _ := child.markExited()
	err := k.table.Abort(child.PID())
	utils.Assert(err == nil, component, "abort of pid %d: %v", child.PID(), err)
	if space != nil {
		space.Destroy()
	}
	k.untrack(child)
}

func (k *Kernel) track(p *Process) {
	k.mutex.Lock()
	defer k.mutex.Unlock()
	k.procs[p.pid] = p
}

// untrack drops p's descriptor. The pid may already have been reaped and
// handed to a new process, whose descriptor must stay.
func (k *Kernel) untrack(p *Process) {
	k.mutex.Lock()
	defer k.mutex.Unlock()
	if k.procs[p.pid] == p {
		delete(k.procs, p.pid)
	}
}
