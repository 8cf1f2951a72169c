// Package core provides the central types shared by the rendezvous subsystems.
package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Direction identifies the side of the intersection a vehicle arrives from
// or leaves towards. The numeric order defines the round-robin order.
type Direction int

const (
	// North is traffic from (or to) the north
	North Direction = iota
	// East is traffic from (or to) the east
	East
	// South is traffic from (or to) the south
	South
	// West is traffic from (or to) the west
	West
)

// NumDirections is the number of valid directions
const NumDirections = 4

var directionNames = [NumDirections]string{"North", "East", "South", "West"}

// String returns the direction name
func (d Direction) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Direction(%d)", int(d))
	}
	return directionNames[d]
}

// Valid reports whether d is one of the four directions
func (d Direction) Valid() bool {
	return d >= North && d <= West
}

// Next returns the direction following d in round-robin order
func (d Direction) Next() Direction {
	return (d + 1) % NumDirections
}

// Directions returns all directions in round-robin order
func Directions() []Direction {
	return []Direction{North, East, South, West}
}

// ParseDirection converts a name (case-insensitive, or its first letter) to a Direction
func ParseDirection(s string) (Direction, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	for i, name := range directionNames {
		lower := strings.ToLower(name)
		if s == lower || s == lower[:1] {
			return Direction(i), nil
		}
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

// Vehicle is a single simulated vehicle crossing the intersection
type Vehicle struct {
	ID          string
	Origin      Direction
	Destination Direction
	Arrival     time.Time
}

// NewVehicle creates a vehicle with a fresh identifier
func NewVehicle(origin, destination Direction) *Vehicle {
	return &Vehicle{
		ID:          uuid.New().String(),
		Origin:      origin,
		Destination: destination,
	}
}

// String returns a short human readable form of the vehicle
func (v *Vehicle) String() string {
	id := v.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s[%s->%s]", id, v.Origin, v.Destination)
}

// PID identifies a process
type PID int

// NoPID is the parent of processes that have no (surviving) parent
const NoPID PID = 0

// ReapReason tells why a process table entry was removed
type ReapReason int

const (
	// ReapCollected means the parent collected the exit status with wait
	ReapCollected ReapReason = iota
	// ReapOrphaned means the process exited with no surviving parent
	ReapOrphaned
	// ReapAbandoned means a zombie was discarded because its parent exited
	ReapAbandoned
	// ReapAborted means the process was torn down before it ever ran
	ReapAborted
)

// String returns the reason name
func (r ReapReason) String() string {
	switch r {
	case ReapCollected:
		return "collected"
	case ReapOrphaned:
		return "orphaned"
	case ReapAbandoned:
		return "abandoned"
	case ReapAborted:
		return "aborted"
	default:
		return fmt.Sprintf("ReapReason(%d)", int(r))
	}
}
