// Package reservation implements admission control for end-to-end
// entanglement requests.
//
// A request becomes a Reservation that walks hop by hop from the initiator
// to the responder. Every node on the path reserves a time interval on
// enough memory time cards or rejects the request. Approval and rejection
// retrace the same path back, so the reservation is either held by every
// node or by none. Approved nodes load the rules that serve the
// reservation for the duration of its interval.
package reservation

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sarchlab/qnet/sim"
)

// ErrInvalidInterval is returned when a reservation does not end after it
// starts.
var ErrInvalidInterval = errors.New("reservation must end after it starts")

// ErrInvalidMemorySize is returned when a reservation asks for no memory.
var ErrInvalidMemorySize = errors.New("memory size must be positive")

// ErrInvalidFidelity is returned for a target fidelity outside (0, 1].
var ErrInvalidFidelity = errors.New("fidelity must be in (0, 1]")

// ErrSameEndpoints is returned when a node reserves entanglement with
// itself.
var ErrSameEndpoints = errors.New("initiator and responder must differ")

// Reservation is a request for end-to-end entanglement between two nodes
// during the half-open interval [StartTime, EndTime).
type Reservation struct {
	ID string

	Initiator string
	Responder string
	StartTime sim.VTimeInSec
	EndTime   sim.VTimeInSec

	// MemorySize is the number of memories reserved per link. Intermediate
	// nodes reserve twice as many.
	MemorySize int
	Fidelity   float64

	EntanglementNumber int
	Identity           int

	// Path is filled in once the reservation is approved.
	Path []string
}

// Key identifies what a reservation asks for, independent of its ID.
type Key struct {
	Initiator  string
	Responder  string
	StartTime  sim.VTimeInSec
	EndTime    sim.VTimeInSec
	MemorySize int
	Fidelity   float64
}

// NewReservation validates a request and creates a reservation with a fresh
// ID.
func NewReservation(
	initiator, responder string,
	startTime, endTime sim.VTimeInSec,
	memorySize int,
	fidelity float64,
	entanglementNumber, identity int,
) (*Reservation, error) {
	if startTime >= endTime {
		return nil, fmt.Errorf("%w: [%v, %v)",
			ErrInvalidInterval, startTime, endTime)
	}

	if memorySize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMemorySize, memorySize)
	}

	if fidelity <= 0 || fidelity > 1 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFidelity, fidelity)
	}

	if initiator == responder {
		return nil, fmt.Errorf("%w: %s", ErrSameEndpoints, initiator)
	}

	return &Reservation{
		ID:                 uuid.NewString(),
		Initiator:          initiator,
		Responder:          responder,
		StartTime:          startTime,
		EndTime:            endTime,
		MemorySize:         memorySize,
		Fidelity:           fidelity,
		EntanglementNumber: entanglementNumber,
		Identity:           identity,
	}, nil
}

// ReservationID returns the ID of the reservation.
func (r *Reservation) ReservationID() string {
	return r.ID
}

// Key returns what the reservation asks for.
func (r *Reservation) Key() Key {
	return Key{
		Initiator:  r.Initiator,
		Responder:  r.Responder,
		StartTime:  r.StartTime,
		EndTime:    r.EndTime,
		MemorySize: r.MemorySize,
		Fidelity:   r.Fidelity,
	}
}

// Overlaps reports whether the intervals of two reservations intersect.
func (r *Reservation) Overlaps(other *Reservation) bool {
	return r.StartTime < other.EndTime && other.StartTime < r.EndTime
}

// PathIndex returns the position of a node on the approved path, or -1.
func (r *Reservation) PathIndex(node string) int {
	for i, n := range r.Path {
		if n == node {
			return i
		}
	}

	return -1
}

func (r *Reservation) String() string {
	return fmt.Sprintf("%s->%s [%v, %v) size=%d fidelity=%.3f",
		r.Initiator, r.Responder, r.StartTime, r.EndTime,
		r.MemorySize, r.Fidelity)
}
