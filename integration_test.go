package rendezvous_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/anggasct/rendezvous"
	"github.com/anggasct/rendezvous/pkg/kernel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Vehicles and processes share one validator to check both subsystems end to end
func TestIntegration_TrafficAndProcesses(t *testing.T) {
	validator := rendezvous.NewValidationObserver()
	metrics := rendezvous.NewMetricsObserver()

	scheduler := rendezvous.NewScheduler(rendezvous.SchedulerOptions{Name: "integration", Policy: rendezvous.JoinActive})
	scheduler.AddObserver(validator)
	scheduler.AddObserver(metrics)

	var k *rendezvous.Kernel
	var running sync.WaitGroup
	spawner := kernel.SpawnFunc(func(child *rendezvous.Process) error {
		running.Add(1)
		go func() {
			defer running.Done()
			origin := rendezvous.Direction(int(child.PID()) % 4)
			scheduler.RequestEntry(origin, origin.Next())
			time.Sleep(50 * time.Microsecond)
			scheduler.ExitEntry(origin, origin.Next())
			k.Exit(child, int(origin))
		}()
		return nil
	})
	k = rendezvous.NewKernel(rendezvous.DefaultKernelConfig(),
		kernel.WithSpawner(spawner),
		kernel.WithObserver(validator),
		kernel.WithObserver(metrics),
	)

	init, err := k.Boot("init")
	require.NoError(t, err)

	pids := make([]rendezvous.PID, 0, 40)
	for i := 0; i < 40; i++ {
		child, err := k.Fork(init)
		require.NoError(t, err)
		pids = append(pids, child.PID())
	}

	for _, pid := range pids {
		code, got, err := k.Waitpid(init, pid, 0)
		require.NoError(t, err)
		assert.Equal(t, pid, got)
		assert.Equal(t, int(pid)%4, code)
	}
	running.Wait()

	scheduler.Teardown()
	k.Exit(init, 0)

	assert.True(t, validator.IsValid(), validator.Violations())
	assert.Equal(t, 41, metrics.GetRegisteredCount())
	assert.Equal(t, 40, metrics.GetReapCounts()[rendezvous.ReapCollected])
	total := 0
	for _, n := range metrics.GetEntryCounts() {
		total += n
	}
	assert.Equal(t, 40, total)
	assert.Equal(t, 0, k.NumProcesses())
}

func TestIntegration_WaitErrors(t *testing.T) {
	k := rendezvous.NewKernel(rendezvous.DefaultKernelConfig())
	init, err := k.Boot("init")
	require.NoError(t, err)

	_, _, err = k.Waitpid(init, 999, 0)
	assert.True(t, errors.Is(err, rendezvous.ErrNoSuchProcess))

	_, _, err = k.Waitpid(init, 999, 1)
	assert.True(t, errors.Is(err, rendezvous.ErrInvalidOption), "options are checked before lookup")

	other, err := k.Boot("other")
	require.NoError(t, err)
	_, _, err = k.Waitpid(init, other.PID(), 0)
	assert.True(t, errors.Is(err, rendezvous.ErrNotAChild))
}
