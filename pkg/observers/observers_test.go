package observers_test

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/anggasct/rendezvous/pkg/core"
	"github.com/anggasct/rendezvous/pkg/intersection"
	"github.com/anggasct/rendezvous/pkg/kernel"
	"github.com/anggasct/rendezvous/pkg/observers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggingObserver(t *testing.T) {
	t.Run("Respects log level", func(t *testing.T) {
		var buf bytes.Buffer
		logger := observers.NewLoggingObserver(observers.LogInfo, "test")
		logger.SetOutput(&buf)

		logger.OnArrive(core.North, core.South)
		assert.Empty(t, buf.String(), "debug lines are filtered at info level")

		logger.OnAdmit(core.East, 3)
		assert.Equal(t, "[test] [INFO] Admitting East: batch of 3\n", buf.String())
	})

	t.Run("Custom formatter", func(t *testing.T) {
		var buf bytes.Buffer
		logger := observers.NewLoggingObserver(observers.LogDebug, "")
		logger.SetOutput(&buf)
		logger.SetFormatter(func(level observers.LogLevel, format string, args ...interface{}) string {
			return fmt.Sprintf("%d|%s", level, fmt.Sprintf(format, args...))
		})

		logger.OnReap(4, core.ReapAborted)
		logger.OnError(errors.New("boom"))
		assert.Equal(t, "1|Process 4 reaped (aborted)\n0|Error: boom\n", buf.String())
	})

	t.Run("Logs a process lifecycle", func(t *testing.T) {
		var buf bytes.Buffer
		logger := observers.NewDefaultLoggingObserver()
		logger.SetOutput(&buf)

		k := kernel.New(kernel.DefaultConfig(), kernel.WithObserver(logger))
		init, err := k.Boot("init")
		require.NoError(t, err)
		child, err := k.Fork(init)
		require.NoError(t, err)
		k.Exit(child, 5)
		_, _, err = k.Waitpid(init, child.PID(), 0)
		require.NoError(t, err)

		out := buf.String()
		assert.Contains(t, out, fmt.Sprintf("Process %d registered (parent %d)", child.PID(), init.PID()))
		assert.Contains(t, out, fmt.Sprintf("Process %d exited with code 5", child.PID()))
		assert.Contains(t, out, fmt.Sprintf("Process %d reaped (collected)", child.PID()))
		assert.True(t, strings.HasPrefix(out, "[rendezvous] "))
	})
}

func TestMetricsObserver(t *testing.T) {
	t.Run("Counts admissions", func(t *testing.T) {
		metrics := observers.NewMetricsObserver()
		s := intersection.NewScheduler()
		s.AddObserver(metrics)

		s.RequestEntry(core.North, core.South)
		s.RequestEntry(core.North, core.West)

		done := make(chan struct{})
		go func() {
			s.RequestEntry(core.South, core.North)
			close(done)
		}()
		require.Eventually(t, func() bool { return s.Waiting(core.South) == 1 }, 2*time.Second, time.Millisecond)

		s.ExitEntry(core.North, core.South)
		s.ExitEntry(core.North, core.West)
		<-done
		s.ExitEntry(core.South, core.North)
		s.Teardown()

		assert.Equal(t, map[core.Direction]int{core.North: 2, core.South: 1}, metrics.GetEntryCounts())
		assert.Equal(t, map[core.Direction]int{core.South: 1}, metrics.GetBatchCounts())
		assert.Equal(t, map[core.Direction]int{core.South: 1}, metrics.GetWaitCounts())
		assert.Equal(t, 1, metrics.GetPeakWaiting()[core.South])
		assert.Equal(t, 1, metrics.GetIdleCount())
		assert.Contains(t, metrics.GetHoldTime(), core.North)
		assert.Contains(t, metrics.GetHoldTime(), core.South)

		metrics.Reset()
		assert.Empty(t, metrics.GetEntryCounts())
		assert.Zero(t, metrics.GetIdleCount())
	})

	t.Run("Counts process lifecycle", func(t *testing.T) {
		metrics := observers.NewMetricsObserver()
		k := kernel.New(kernel.DefaultConfig(), kernel.WithObserver(metrics))

		init, err := k.Boot("init")
		require.NoError(t, err)
		a, err := k.Fork(init)
		require.NoError(t, err)
		b, err := k.Fork(a)
		require.NoError(t, err)

		k.Exit(a, 0)
		k.Exit(b, 0)
		_, _, err = k.Waitpid(init, a.PID(), 0)
		require.NoError(t, err)

		assert.Equal(t, 3, metrics.GetRegisteredCount())
		assert.Equal(t, 1, metrics.GetZombieCount())
		assert.Equal(t, map[core.ReapReason]int{
			core.ReapOrphaned:  1,
			core.ReapCollected: 1,
		}, metrics.GetReapCounts())
		assert.Zero(t, metrics.GetBlockedWaitCount())
	})
}

func TestValidationObserver(t *testing.T) {
	t.Run("Clean run has no violations", func(t *testing.T) {
		validator := observers.NewValidationObserver()
		s := intersection.NewScheduler(intersection.Options{Policy: intersection.JoinNever})
		s.AddObserver(validator)

		var wg sync.WaitGroup
		for i := 0; i < 64; i++ {
			origin := core.Direction(i % core.NumDirections)
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.RequestEntry(origin, origin.Next())
				s.ExitEntry(origin, origin.Next())
			}()
		}
		wg.Wait()
		s.Teardown()

		assert.True(t, validator.IsValid(), validator.Violations())
		assert.NoError(t, validator.Err())
	})

	t.Run("Detects overlapping directions", func(t *testing.T) {
		validator := observers.NewValidationObserver()

		validator.OnArrive(core.North, core.South)
		validator.OnEnter(core.North, core.South)
		validator.OnArrive(core.East, core.West)
		validator.OnEnter(core.East, core.West)

		require.False(t, validator.IsValid())
		assert.Contains(t, validator.Violations()[0], "East vehicle entered while 1 North vehicles are inside")
		assert.Error(t, validator.Err())

		validator.Reset()
		assert.True(t, validator.IsValid())
	})

	t.Run("Detects leave without enter", func(t *testing.T) {
		validator := observers.NewValidationObserver()
		validator.OnLeave(core.West, core.East, 0)
		assert.Equal(t, []string{"West vehicle left without entering"}, validator.Violations())
	})

	t.Run("Detects double reap", func(t *testing.T) {
		validator := observers.NewValidationObserver()
		validator.OnRegister(5, 1)
		validator.OnZombie(5, 0)
		validator.OnReap(5, core.ReapCollected)
		validator.OnReap(5, core.ReapCollected)

		violations := validator.Violations()
		require.Len(t, violations, 2)
		assert.Equal(t, "pid 5 reaped twice", violations[0])
		assert.Equal(t, "pid 5 collected before it exited", violations[1])
	})

	t.Run("Process table run has no violations", func(t *testing.T) {
		validator := observers.NewValidationObserver()
		k := kernel.New(kernel.DefaultConfig(), kernel.WithObserver(validator))

		init, err := k.Boot("init")
		require.NoError(t, err)
		for i := 0; i < 10; i++ {
			child, err := k.Fork(init)
			require.NoError(t, err)
			k.Exit(child, i)
			_, _, err = k.Waitpid(init, child.PID(), 0)
			require.NoError(t, err)
		}
		k.Exit(init, 0)

		assert.True(t, validator.IsValid(), validator.Violations())
	})
}
