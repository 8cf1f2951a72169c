package intersection

import (
	"testing"

	"github.com/anggasct/rendezvous/pkg/core"
	"github.com/stretchr/testify/assert"
)

func TestNext(t *testing.T) {
	tests := []struct {
		name     string
		current  core.Direction
		waiting  [core.NumDirections]int
		expected State
	}{
		{"nobody waiting", core.North, [4]int{}, Unset},
		{"next direction waits", core.North, [4]int{0, 2, 0, 0}, Admitted(core.East, 2)},
		{"skips empty directions", core.North, [4]int{0, 0, 0, 3}, Admitted(core.West, 3)},
		{"wraps around", core.West, [4]int{0, 1, 1, 0}, Admitted(core.East, 1)},
		{"current direction served last", core.East, [4]int{0, 4, 0, 0}, Admitted(core.East, 4)},
		{"closest after current wins", core.South, [4]int{5, 5, 5, 5}, Admitted(core.West, 5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Next(tt.current, tt.waiting))
		})
	}
}

func TestNextNeverSkipsWaitingDirection(t *testing.T) {
	// Whatever direction is admitted, a waiting direction is reached within
	// NumDirections batch transitions.
	for _, start := range core.Directions() {
		for _, target := range core.Directions() {
			waiting := [core.NumDirections]int{1, 1, 1, 1}
			current := start
			served := false
			for i := 0; i < core.NumDirections; i++ {
				next := Next(current, waiting)
				assert.Equal(t, PhaseAdmitted, next.Phase)
				if next.Direction == target {
					served = true
					break
				}
				current = next.Direction
			}
			assert.True(t, served, "%s not served starting from %s", target, start)
		}
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "Unset", Unset.String())
	assert.Equal(t, "Admitted(South, 3)", Admitted(core.South, 3).String())
	assert.False(t, Unset.Blocked())
	assert.True(t, Admitted(core.North, 1).Blocked())
}

func TestPolicyCanJoin(t *testing.T) {
	live := Admitted(core.North, 1)
	contended := [core.NumDirections]int{0, 1, 0, 0}
	quiet := [core.NumDirections]int{}

	assert.True(t, JoinNever.canJoin(Unset, core.East, quiet), "bootstrap admits any direction")

	assert.True(t, JoinActive.canJoin(live, core.North, contended))
	assert.False(t, JoinActive.canJoin(live, core.East, quiet))

	assert.True(t, JoinUncontended.canJoin(live, core.North, quiet))
	assert.False(t, JoinUncontended.canJoin(live, core.North, contended))

	assert.False(t, JoinNever.canJoin(live, core.North, quiet))
}
