package kernel

import (
	"sync"

	"github.com/anggasct/rendezvous/pkg/core"
)

// AddressSpace is the virtual memory of a process. The kernel only clones
// it on fork and destroys it on exec and exit.
type AddressSpace interface {
	Clone() (AddressSpace, error)
	Destroy()
}

// Image is a loaded program ready to run
type Image struct {
	Path         string
	Args         []string
	Entry        uintptr
	StackPointer uintptr
	Space        AddressSpace
}

// Loader turns a program path and its arguments into an Image
type Loader interface {
	Load(path string, args []string) (*Image, error)
}

// LoaderFunc adapts a function to the Loader interface
type LoaderFunc func(path string, args []string) (*Image, error)

// Load calls f(path, args)
func (f LoaderFunc) Load(path string, args []string) (*Image, error) {
	return f(path, args)
}

// Spawner starts the thread that runs a freshly forked child
type Spawner interface {
	Spawn(child *Process) error
}

// SpawnFunc adapts a function to the Spawner interface
type SpawnFunc func(child *Process) error

// Spawn calls f(child)
func (f SpawnFunc) Spawn(child *Process) error {
	return f(child)
}

// Process is the kernel descriptor of a running process
type Process struct {
	pid    core.PID
	parent core.PID
	name   string

	mutex  sync.Mutex
	image  *Image
	space  AddressSpace
	exited bool
}

// PID returns the process identifier
func (p *Process) PID() core.PID {
	return p.pid
}

// Parent returns the pid of the process that created p
func (p *Process) Parent() core.PID {
	return p.parent
}

// Name returns the process name
func (p *Process) Name() string {
	return p.name
}

// Image returns a copy of the currently loaded program image, or nil
func (p *Process) Image() *Image {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.image == nil {
		return nil
	}
	img := *p.image
	img.Args = append([]string(nil), p.image.Args...)
	return &img
}

// Exited reports whether Exit has been called for p
func (p *Process) Exited() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.exited
}

// cloneFor builds the execution context of a child forked from p
func (p *Process) cloneFor(pid core.PID) (*Process, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	child := &Process{
		pid:    pid,
		parent: p.pid,
		name:   p.name,
	}
	if p.space != nil {
		space, err := p.space.Clone()
		if err != nil {
			return nil, err
		}
		child.space = space
	}
	if p.image != nil {
		img := *p.image
		img.Args = append([]string(nil), p.image.Args...)
		img.Space = child.space
		child.image = &img
	}
	return child, nil
}

// replaceImage installs img and returns the address space it replaces
func (p *Process) replaceImage(img *Image) AddressSpace {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	old := p.space
	p.image = img
	p.space = img.Space
	if old == img.Space {
		return nil
	}
	return old
}

// markExited flags p as exited and hands back its address space for teardown
func (p *Process) markExited() (AddressSpace, bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.exited {
		return nil, false
	}
	p.exited = true
	space := p.space
	p.space = nil
	return space, true
}
