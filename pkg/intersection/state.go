package intersection

import (
	"fmt"

	"github.com/anggasct/rendezvous/pkg/core"
)

// Phase is the coarse state of the intersection
type Phase int

const (
	// PhaseUnset means no direction is admitted; the next arrival of any
	// direction is admitted unconditionally
	PhaseUnset Phase = iota
	// PhaseAdmitted means one direction owns the intersection
	PhaseAdmitted
)

// String returns the phase name
func (p Phase) String() string {
	switch p {
	case PhaseUnset:
		return "Unset"
	case PhaseAdmitted:
		return "Admitted"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// State is the admission state machine: Unset, or Admitted(Direction, Remaining).
// Remaining counts vehicles of Direction that were admitted and have not
// exited yet, including woken waiters that have not resumed.
type State struct {
	Phase     Phase
	Direction core.Direction
	Remaining int
}

// Unset is the bootstrap and idle state
var Unset = State{Phase: PhaseUnset}

// Admitted returns the state in which direction owns the intersection
func Admitted(direction core.Direction, remaining int) State {
	return State{Phase: PhaseAdmitted, Direction: direction, Remaining: remaining}
}

// Blocked reports whether some direction currently owns the intersection
func (s State) Blocked() bool {
	return s.Phase == PhaseAdmitted
}

// String returns a compact form such as "Admitted(North, 2)"
func (s State) String() string {
	if s.Phase == PhaseUnset {
		return "Unset"
	}
	return fmt.Sprintf("Admitted(%s, %d)", s.Direction, s.Remaining)
}

// Next is the transition taken when the admitted batch of current has fully
// exited. Directions are scanned round-robin starting after current, with
// current itself considered last. The first direction with waiters is admitted
// with its whole queue as the new batch; if nobody waits the state is Unset.
func Next(current core.Direction, waiting [core.NumDirections]int) State {
	d := current
	for i := 0; i < core.NumDirections; i++ {
		d = d.Next()
		if waiting[d] > 0 {
			return Admitted(d, waiting[d])
		}
	}
	return Unset
}

// Policy decides whether a vehicle arriving from the admitted direction may
// join the live batch instead of queueing
type Policy int

const (
	// JoinActive lets same-direction arrivals join while their direction is
	// admitted. An unbroken same-direction stream can starve other directions.
	JoinActive Policy = iota
	// JoinUncontended lets them join only while no other direction is waiting
	JoinUncontended
	// JoinNever queues every arrival while the intersection is occupied
	JoinNever
)

// String returns the policy name
func (p Policy) String() string {
	switch p {
	case JoinActive:
		return "JoinActive"
	case JoinUncontended:
		return "JoinUncontended"
	case JoinNever:
		return "JoinNever"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// canJoin reports whether a vehicle from origin is admitted without waiting
func (p Policy) canJoin(s State, origin core.Direction, waiting [core.NumDirections]int) bool {
	if s.Phase == PhaseUnset {
		return true
	}
	if s.Direction != origin {
		return false
	}
	switch p {
	case JoinActive:
		return true
	case JoinUncontended:
		for d, n := range waiting {
			if core.Direction(d) != origin && n > 0 {
				return false
			}
		}
		return true
	default:
		return false
	}
}
