// Package rendezvous provides two small concurrency kernels built on the
// monitor pattern: a four-way intersection that admits vehicles one
// direction at a time in round-robin batches, and a process table that
// hands exit status from exiting children to parents blocked in wait.
package rendezvous

import (
	"github.com/anggasct/rendezvous/pkg/builders"
	"github.com/anggasct/rendezvous/pkg/core"
	"github.com/anggasct/rendezvous/pkg/intersection"
	"github.com/anggasct/rendezvous/pkg/kernel"
	"github.com/anggasct/rendezvous/pkg/observers"
	"github.com/anggasct/rendezvous/pkg/proctable"
	"github.com/anggasct/rendezvous/pkg/utils"
)

// Core types
type (
	// Direction is one of the four approaches to the intersection
	Direction = core.Direction

	// Vehicle is a single crossing request
	Vehicle = core.Vehicle

	// PID identifies a process
	PID = core.PID

	// ReapReason tells why a process table entry was removed
	ReapReason = core.ReapReason

	// TrafficObserver receives intersection events
	TrafficObserver = core.TrafficObserver

	// ProcessObserver receives process table events
	ProcessObserver = core.ProcessObserver
)

// Intersection types
type (
	// Scheduler admits vehicles into the intersection
	Scheduler = intersection.Scheduler

	// SchedulerOptions configures a Scheduler
	SchedulerOptions = intersection.Options

	// SchedulerState is the admission state: Unset or Admitted(direction, remaining)
	SchedulerState = intersection.State

	// Policy decides when an arrival may join the admitted direction
	Policy = intersection.Policy
)

// Process types
type (
	// ProcessTable tracks parent/child relationships and exit status
	ProcessTable = proctable.Table

	// ProcessInfo is one process table entry
	ProcessInfo = proctable.Info

	// Kernel implements fork, exec, exit and waitpid on top of a ProcessTable
	Kernel = kernel.Kernel

	// KernelConfig holds kernel limits
	KernelConfig = kernel.Config

	// Process is a process created by a Kernel
	Process = kernel.Process

	// Image is a loaded program
	Image = kernel.Image
)

// Re-export builder types
type (
	// SimulationBuilder provides a fluent interface for building traffic simulations
	SimulationBuilder = builders.SimulationBuilder

	// Simulation is a configured traffic workload
	Simulation = builders.Simulation

	// Report summarizes a simulation run
	Report = builders.Report
)

// Re-export observer types
type (
	// LoggingObserver logs intersection and process events
	LoggingObserver = observers.LoggingObserver

	// LogLevel represents the logging level
	LogLevel = observers.LogLevel

	// MetricsObserver collects admission and process metrics
	MetricsObserver = observers.MetricsObserver

	// ValidationObserver checks invariants from the event stream
	ValidationObserver = observers.ValidationObserver
)

// Re-export error types
type (
	// KernelError is an errno-style error returned by kernel operations
	KernelError = utils.KernelError

	// InvariantViolation is the panic value raised on internal inconsistency
	InvariantViolation = utils.InvariantViolation

	// ErrorCollector collects multiple errors
	ErrorCollector = utils.ErrorCollector
)

// Re-export constants
const (
	North = core.North
	East  = core.East
	South = core.South
	West  = core.West

	// NoPID is the parent of processes nobody can wait for
	NoPID = core.NoPID

	ReapCollected = core.ReapCollected
	ReapOrphaned  = core.ReapOrphaned
	ReapAbandoned = core.ReapAbandoned
	ReapAborted   = core.ReapAborted

	JoinActive      = intersection.JoinActive
	JoinUncontended = intersection.JoinUncontended
	JoinNever       = intersection.JoinNever

	LogError   = observers.LogError
	LogWarning = observers.LogWarning
	LogInfo    = observers.LogInfo
	LogDebug   = observers.LogDebug
)

// Re-export errors
var (
	ErrNoSuchProcess   = utils.ErrNoSuchProcess
	ErrNotAChild       = utils.ErrNotAChild
	ErrInvalidOption   = utils.ErrInvalidOption
	ErrInvalidArgument = utils.ErrInvalidArgument
	ErrOutOfMemory     = utils.ErrOutOfMemory
	ErrArgListTooLong  = utils.ErrArgListTooLong
	ErrPIDInUse        = utils.ErrPIDInUse
	ErrNoLoader        = utils.ErrNoLoader
)

// Re-export constructors
var (
	// NewScheduler creates an intersection scheduler
	NewScheduler = intersection.NewScheduler

	// NewProcessTable creates an empty process table
	NewProcessTable = proctable.NewTable

	// NewKernel creates a kernel with its own process table
	NewKernel = kernel.New

	// DefaultKernelConfig returns the default kernel limits
	DefaultKernelConfig = kernel.DefaultConfig

	// ParseDirection parses a direction name
	ParseDirection = core.ParseDirection

	// NewSimulationBuilder creates a new simulation builder
	NewSimulationBuilder = builders.NewSimulationBuilder

	NewLoggingObserver        = observers.NewLoggingObserver
	NewDefaultLoggingObserver = observers.NewDefaultLoggingObserver
	NewMetricsObserver        = observers.NewMetricsObserver
	NewValidationObserver     = observers.NewValidationObserver
)
