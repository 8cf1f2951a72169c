// Package builders provides fluent builders for intersection traffic workloads
package builders

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/anggasct/rendezvous/pkg/core"
	"github.com/anggasct/rendezvous/pkg/intersection"
	"github.com/anggasct/rendezvous/pkg/observers"
	"github.com/anggasct/rendezvous/pkg/utils"
)

// SimulationBuilder provides a fluent interface for building traffic simulations
type SimulationBuilder struct {
	name          string
	vehicles      []*core.Vehicle
	randomCount   int
	seed          int64
	crossingTime  time.Duration
	arrivalJitter time.Duration
	concurrency   int
	policy        intersection.Policy
	observers     []core.TrafficObserver
	errors        *utils.ErrorCollector
}

// NewSimulationBuilder creates a new simulation builder
func NewSimulationBuilder(name string) *SimulationBuilder {
	return &SimulationBuilder{
		name:         name,
		vehicles:     make([]*core.Vehicle, 0),
		seed:         1,
		crossingTime: time.Millisecond,
		concurrency:  0,
		policy:       intersection.JoinActive,
		observers:    make([]core.TrafficObserver, 0),
		errors:       utils.NewErrorCollector(),
	}
}

// WithVehicle adds a vehicle with a fixed route
func (b *SimulationBuilder) WithVehicle(origin, destination core.Direction) *SimulationBuilder {
	if !origin.Valid() || !destination.Valid() {
		b.errors.Add(fmt.Errorf("vehicle route %s -> %s is invalid", origin, destination))
		return b
	}
	b.vehicles = append(b.vehicles, core.NewVehicle(origin, destination))
	return b
}

// WithRandomVehicles adds n vehicles with routes drawn from the seeded generator
func (b *SimulationBuilder) WithRandomVehicles(n int) *SimulationBuilder {
	if n < 0 {
		b.errors.Add(fmt.Errorf("random vehicle count %d is negative", n))
		return b
	}
	b.randomCount += n
	return b
}

// WithSeed sets the seed for random routes and arrival jitter
func (b *SimulationBuilder) WithSeed(seed int64) *SimulationBuilder {
	b.seed = seed
	return b
}

// WithCrossingTime sets how long each vehicle stays inside the intersection
func (b *SimulationBuilder) WithCrossingTime(d time.Duration) *SimulationBuilder {
	if d < 0 {
		b.errors.Add(fmt.Errorf("crossing time %s is negative", d))
		return b
	}
	b.crossingTime = d
	return b
}

// WithArrivalJitter delays each arrival by a random duration up to d
func (b *SimulationBuilder) WithArrivalJitter(d time.Duration) *SimulationBuilder {
	if d < 0 {
		b.errors.Add(fmt.Errorf("arrival jitter %s is negative", d))
		return b
	}
	b.arrivalJitter = d
	return b
}

// WithConcurrency limits how many vehicles are on the road at once; 0 means unlimited
func (b *SimulationBuilder) WithConcurrency(n int) *SimulationBuilder {
	if n < 0 {
		b.errors.Add(fmt.Errorf("concurrency %d is negative", n))
		return b
	}
	b.concurrency = n
	return b
}

// WithPolicy sets the scheduler join policy
func (b *SimulationBuilder) WithPolicy(policy intersection.Policy) *SimulationBuilder {
	b.policy = policy
	return b
}

// WithObserver attaches an additional observer to the scheduler
func (b *SimulationBuilder) WithObserver(observer core.TrafficObserver) *SimulationBuilder {
	b.observers = append(b.observers, observer)
	return b
}

// Build validates the configuration and returns the simulation
func (b *SimulationBuilder) Build() (*Simulation, error) {
	if b.errors.HasErrors() {
		return nil, b.errors.Err()
	}

	rng := rand.New(rand.NewSource(b.seed))
	vehicles := make([]*core.Vehicle, 0, len(b.vehicles)+b.randomCount)
	vehicles = append(vehicles, b.vehicles...)
	for i := 0; i < b.randomCount; i++ {
		origin := core.Direction(rng.Intn(core.NumDirections))
		destination := core.Direction(rng.Intn(core.NumDirections))
		vehicles = append(vehicles, core.NewVehicle(origin, destination))
	}
	if len(vehicles) == 0 {
		return nil, fmt.Errorf("simulation %q has no vehicles", b.name)
	}

	delays := make([]time.Duration, len(vehicles))
	if b.arrivalJitter > 0 {
		for i := range delays {
			delays[i] = time.Duration(rng.Int63n(int64(b.arrivalJitter) + 1))
		}
	}

	return &Simulation{
		ID:           uuid.New().String(),
		Name:         b.name,
		Vehicles:     vehicles,
		delays:       delays,
		crossingTime: b.crossingTime,
		concurrency:  b.concurrency,
		policy:       b.policy,
		observers:    append([]core.TrafficObserver(nil), b.observers...),
	}, nil
}

// Simulation is a configured traffic workload
type Simulation struct {
	ID       string
	Name     string
	Vehicles []*core.Vehicle

	delays       []time.Duration
	crossingTime time.Duration
	concurrency  int
	policy       intersection.Policy
	observers    []core.TrafficObserver
}

// Report summarizes a finished simulation run
type Report struct {
	SimulationID string
	Vehicles     int
	Entries      map[core.Direction]int
	Batches      map[core.Direction]int
	PeakWaiting  map[core.Direction]int
	Violations   []string
	Elapsed      time.Duration
}

// Run drives every vehicle through a fresh scheduler, one goroutine per
// vehicle, and tears the scheduler down once all have left. A cancelled
// context stops vehicles that have not arrived yet; vehicles already
// waiting for admission always complete.
func (s *Simulation) Run(ctx context.Context) (*Report, error) {
	scheduler := intersection.NewScheduler(intersection.Options{Name: s.Name, Policy: s.policy})
	metrics := observers.NewMetricsObserver()
	validator := observers.NewValidationObserver()
	scheduler.AddObserver(metrics)
	scheduler.AddObserver(validator)
	for _, o := range s.observers {
		scheduler.AddObserver(o)
	}

	limit := int64(s.concurrency)
	if limit == 0 {
		limit = int64(len(s.Vehicles))
	}
	road := semaphore.NewWeighted(limit)

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for i, v := range s.Vehicles {
		v, delay := v, s.delays[i]
		g.Go(func() error {
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			if err := road.Acquire(gctx, 1); err != nil {
				return err
			}
			defer road.Release(1)

			v.Arrival = time.Now()
			scheduler.RequestEntry(v.Origin, v.Destination)
			if s.crossingTime > 0 {
				time.Sleep(s.crossingTime)
			}
			scheduler.ExitEntry(v.Origin, v.Destination)
			return nil
		})
	}
	err := g.Wait()
	elapsed := time.Since(start)

	scheduler.Teardown()

	report := &Report{
		SimulationID: s.ID,
		Vehicles:     len(s.Vehicles),
		Entries:      metrics.GetEntryCounts(),
		Batches:      metrics.GetBatchCounts(),
		PeakWaiting:  metrics.GetPeakWaiting(),
		Violations:   validator.Violations(),
		Elapsed:      elapsed,
	}
	if err != nil {
		return report, err
	}
	return report, validator.Err()
}

// TotalEntries returns the number of vehicles that crossed
func (r *Report) TotalEntries() int {
	total := 0
	for _, n := range r.Entries {
		total += n
	}
	return total
}
