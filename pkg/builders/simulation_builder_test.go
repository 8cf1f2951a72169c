package builders

import (
	"context"
	"testing"
	"time"

	"github.com/anggasct/rendezvous/pkg/core"
	"github.com/anggasct/rendezvous/pkg/intersection"
	"github.com/anggasct/rendezvous/pkg/observers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulationBuilder(t *testing.T) {
	t.Run("Builds fixed and random vehicles", func(t *testing.T) {
		sim, err := NewSimulationBuilder("mixed").
			WithVehicle(core.North, core.South).
			WithVehicle(core.East, core.West).
			WithRandomVehicles(6).
			WithSeed(42).
			Build()
		require.NoError(t, err)

		assert.Equal(t, "mixed", sim.Name)
		assert.NotEmpty(t, sim.ID)
		require.Len(t, sim.Vehicles, 8)
		assert.Equal(t, core.North, sim.Vehicles[0].Origin)
		assert.Equal(t, core.West, sim.Vehicles[1].Destination)
		for _, v := range sim.Vehicles {
			assert.True(t, v.Origin.Valid())
			assert.True(t, v.Destination.Valid())
		}
	})

	t.Run("Same seed gives same routes", func(t *testing.T) {
		a, err := NewSimulationBuilder("a").WithRandomVehicles(20).WithSeed(7).Build()
		require.NoError(t, err)
		b, err := NewSimulationBuilder("b").WithRandomVehicles(20).WithSeed(7).Build()
		require.NoError(t, err)

		for i := range a.Vehicles {
			assert.Equal(t, a.Vehicles[i].Origin, b.Vehicles[i].Origin)
			assert.Equal(t, a.Vehicles[i].Destination, b.Vehicles[i].Destination)
		}
		assert.NotEqual(t, a.ID, b.ID)
	})

	t.Run("Collects configuration errors", func(t *testing.T) {
		_, err := NewSimulationBuilder("bad").
			WithVehicle(core.Direction(9), core.North).
			WithRandomVehicles(-1).
			WithCrossingTime(-time.Second).
			WithConcurrency(-2).
			Build()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "4 errors occurred")
		assert.Contains(t, err.Error(), "concurrency -2 is negative")
	})

	t.Run("Rejects empty simulation", func(t *testing.T) {
		_, err := NewSimulationBuilder("empty").Build()
		assert.Error(t, err)
	})
}

func TestSimulationRun(t *testing.T) {
	for _, policy := range []intersection.Policy{intersection.JoinActive, intersection.JoinUncontended, intersection.JoinNever} {
		t.Run(policy.String(), func(t *testing.T) {
			metrics := observers.NewMetricsObserver()
			sim, err := NewSimulationBuilder("run").
				WithRandomVehicles(80).
				WithSeed(3).
				WithCrossingTime(100 * time.Microsecond).
				WithArrivalJitter(2 * time.Millisecond).
				WithConcurrency(16).
				WithPolicy(policy).
				WithObserver(metrics).
				Build()
			require.NoError(t, err)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			report, err := sim.Run(ctx)
			require.NoError(t, err)

			assert.Equal(t, sim.ID, report.SimulationID)
			assert.Equal(t, 80, report.Vehicles)
			assert.Equal(t, 80, report.TotalEntries())
			assert.Empty(t, report.Violations)
			assert.Equal(t, report.Entries, metrics.GetEntryCounts())
			assert.Greater(t, report.Elapsed, time.Duration(0))

			expected := make(map[core.Direction]int)
			for _, v := range sim.Vehicles {
				expected[v.Origin]++
			}
			assert.Equal(t, expected, report.Entries)
		})
	}

	t.Run("Cancelled before arrival", func(t *testing.T) {
		sim, err := NewSimulationBuilder("cancelled").
			WithRandomVehicles(10).
			WithArrivalJitter(time.Hour).
			Build()
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		report, err := sim.Run(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		require.NotNil(t, report)
		assert.LessOrEqual(t, report.TotalEntries(), 10)
	})
}
