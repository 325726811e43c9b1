// Package app provides applications that consume end-to-end entanglement.
package app

import (
	"github.com/sarchlab/qnet/reservation"
	"github.com/sarchlab/qnet/resource"
	"github.com/sarchlab/qnet/sim"
	"github.com/sirupsen/logrus"
)

// Node is where an application runs.
type Node interface {
	sim.Named
	sim.TimeTeller

	ResourceManager() *resource.Manager
	ReservationProtocol() *reservation.Protocol
}

// Result is the outcome of a reservation the application requested.
type Result struct {
	Reservation *reservation.Reservation
	Approved    bool
	Time        sim.VTimeInSec
}

// Delivery is an end-to-end pair handed to the application.
type Delivery struct {
	Reservation *reservation.Reservation
	Memory      string
	Remote      string
	Fidelity    float64
	Time        sim.VTimeInSec
}

// RequestApp requests entanglement with another node and consumes the
// pairs that reach the target fidelity. It also serves as the responder
// side of requests from other nodes.
type RequestApp struct {
	node   Node
	logger logrus.FieldLogger

	results    []Result
	active     []*reservation.Reservation
	deliveries []Delivery
	counts     map[*reservation.Reservation]int
}

// NewRequestApp creates an application on node.
func NewRequestApp(node Node) *RequestApp {
	return &RequestApp{
		node:   node,
		logger: logrus.WithField("node", node.Name()),
		counts: make(map[*reservation.Reservation]int),
	}
}

// Start requests entanglement with responder.
func (a *RequestApp) Start(
	responder string,
	startTime, endTime sim.VTimeInSec,
	memorySize int,
	fidelity float64,
	entanglementNumber int,
) error {
	_, err := a.node.ReservationProtocol().Push(responder,
		startTime, endTime, memorySize, fidelity, entanglementNumber, 0)

	return err
}

// GetReservationResult records the outcome of a requested reservation.
func (a *RequestApp) GetReservationResult(
	r *reservation.Reservation,
	approved bool,
) {
	a.results = append(a.results, Result{
		Reservation: r,
		Approved:    approved,
		Time:        a.node.CurrentTime(),
	})

	if approved {
		a.active = append(a.active, r)
	}
}

// GetOtherReservation starts consuming pairs of a reservation another node
// requested.
func (a *RequestApp) GetOtherReservation(r *reservation.Reservation) {
	a.active = append(a.active, r)
}

// MemoryIdle consumes an entangled memory that belongs to one of the
// application's reservations, links the two endpoints and reaches the
// target fidelity. The memory goes back to RAW for the next pair.
func (a *RequestApp) MemoryIdle(info *resource.MemoryInfo) {
	if info.State != resource.StateEntangled {
		return
	}

	r := a.reservationOf(info)
	if r == nil {
		return
	}

	if info.RemoteNode != a.farEnd(r) || info.Fidelity < r.Fidelity {
		return
	}

	a.counts[r]++
	a.deliveries = append(a.deliveries, Delivery{
		Reservation: r,
		Memory:      info.Memory.Name(),
		Remote:      info.RemoteMemo,
		Fidelity:    info.Fidelity,
		Time:        a.node.CurrentTime(),
	})

	a.logger.WithFields(logrus.Fields{
		"memory":   info.Memory.Name(),
		"remote":   info.RemoteNode + "/" + info.RemoteMemo,
		"fidelity": info.Fidelity,
	}).Debug("entanglement delivered")

	a.node.ResourceManager().Update(nil, info.Memory, resource.StateRaw)
}

func (a *RequestApp) reservationOf(
	info *resource.MemoryInfo,
) *reservation.Reservation {
	now := a.node.CurrentTime()
	rsvp := a.node.ReservationProtocol()

	for _, r := range a.active {
		if now < r.StartTime || now >= r.EndTime {
			continue
		}

		for _, i := range rsvp.Scheduled(r) {
			if i == info.Index {
				return r
			}
		}
	}

	return nil
}

func (a *RequestApp) farEnd(r *reservation.Reservation) string {
	if r.Initiator == a.node.Name() {
		return r.Responder
	}

	return r.Initiator
}

// Results returns the outcomes of the requested reservations.
func (a *RequestApp) Results() []Result {
	return a.results
}

// Deliveries returns every pair the application consumed.
func (a *RequestApp) Deliveries() []Delivery {
	return a.deliveries
}

// Delivered returns how many pairs of r the application consumed.
func (a *RequestApp) Delivered(r *reservation.Reservation) int {
	return a.counts[r]
}
