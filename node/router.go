// Package node assembles quantum routers, the nodes of a simulated quantum
// network.
package node

import (
	"github.com/sarchlab/qnet/entanglement"
	"github.com/sarchlab/qnet/network"
	"github.com/sarchlab/qnet/qmem"
	"github.com/sarchlab/qnet/reservation"
	"github.com/sarchlab/qnet/resource"
	"github.com/sarchlab/qnet/sim"
	"github.com/sirupsen/logrus"
)

// An App runs on a router and receives memories no rule wants.
type App interface {
	MemoryIdle(info *resource.MemoryInfo)
}

// QuantumRouter is a node with a memory array, a resource manager and a
// reservation protocol.
type QuantumRouter struct {
	name    string
	engine  sim.Engine
	network *network.Network
	logger  logrus.FieldLogger

	array       *qmem.Array
	rm          *resource.Manager
	reservation *reservation.Protocol
	routing     network.Table

	app App
}

// A Builder can build quantum routers.
type Builder struct {
	engine        sim.Engine
	network       *network.Network
	physics       *entanglement.Physics
	memorySize    int
	rawFidelity   float64
	coherenceTime sim.VTimeInSec
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		memorySize:  10,
		rawFidelity: 0.85,
	}
}

// WithEngine sets the engine the router schedules events on.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithNetwork sets the classical network the router joins.
func (b Builder) WithNetwork(n *network.Network) Builder {
	b.network = n
	return b
}

// WithPhysics sets the model that resolves entanglement protocols.
func (b Builder) WithPhysics(p *entanglement.Physics) Builder {
	b.physics = p
	return b
}

// WithMemorySize sets the number of memories.
func (b Builder) WithMemorySize(n int) Builder {
	b.memorySize = n
	return b
}

// WithRawFidelity sets the fidelity of freshly generated pairs.
func (b Builder) WithRawFidelity(f float64) Builder {
	b.rawFidelity = f
	return b
}

// WithCoherenceTime sets how long the memories hold entanglement. Zero
// means forever.
func (b Builder) WithCoherenceTime(t sim.VTimeInSec) Builder {
	b.coherenceTime = t
	return b
}

// Build creates the router and adds it to the network.
func (b Builder) Build(name string) *QuantumRouter {
	b.engineMustBeGiven()

	r := &QuantumRouter{
		name:    name,
		engine:  b.engine,
		network: b.network,
		logger:  logrus.WithField("node", name),
	}

	r.array = qmem.MakeBuilder().
		WithEngine(b.engine).
		WithSize(b.memorySize).
		WithRawFidelity(b.rawFidelity).
		WithCoherenceTime(b.coherenceTime).
		Build(name + ".memo")
	r.rm = resource.NewManager(r, r.array)
	r.reservation = reservation.MakeBuilder().
		WithOwner(r).
		WithPhysics(b.physics).
		Build(name + ".RSVP")

	b.network.AddNode(r)

	return r
}

func (b Builder) engineMustBeGiven() {
	if b.engine == nil {
		panic("engine is not given")
	}

	if b.network == nil {
		panic("network is not given")
	}
}

// Name returns the name of the router.
func (r *QuantumRouter) Name() string {
	return r.name
}

// CurrentTime returns the simulation time.
func (r *QuantumRouter) CurrentTime() sim.VTimeInSec {
	return r.engine.CurrentTime()
}

// Schedule schedules an event on the engine.
func (r *QuantumRouter) Schedule(e sim.Event) {
	r.engine.Schedule(e)
}

// MemoryArray returns the memories of the router.
func (r *QuantumRouter) MemoryArray() *qmem.Array {
	return r.array
}

// ResourceManager returns the resource manager of the router.
func (r *QuantumRouter) ResourceManager() *resource.Manager {
	return r.rm
}

// ReservationProtocol returns the reservation protocol of the router.
func (r *QuantumRouter) ReservationProtocol() *reservation.Protocol {
	return r.reservation
}

// SetApp installs the application. An application that implements
// reservation.Listener also receives reservation outcomes.
func (r *QuantumRouter) SetApp(app App) {
	r.app = app

	if l, ok := app.(reservation.Listener); ok {
		r.reservation.SetListener(l)
	}
}

// App returns the installed application.
func (r *QuantumRouter) App() App {
	return r.app
}

// UpdateRoutingTable recomputes the next hops of the router. It must be
// called after the topology changes.
func (r *QuantumRouter) UpdateRoutingTable() {
	r.routing = r.network.RoutingTable(r.name)
}

// NextHop returns the neighbor toward dst.
func (r *QuantumRouter) NextHop(dst string) string {
	if r.routing == nil {
		r.UpdateRoutingTable()
	}

	return r.routing.FindNextHop(dst)
}

// SendMessage sends a classical message to another node.
func (r *QuantumRouter) SendMessage(dst string, msg network.Msg) {
	err := r.network.Send(r.name, dst, msg)
	if err != nil {
		r.logger.WithError(err).Warn("message dropped")
	}
}

// ReceiveMessage dispatches a message to the resource manager, the
// reservation protocol or the entanglement protocol it is addressed to.
func (r *QuantumRouter) ReceiveMessage(src string, msg network.Msg) {
	switch msg := msg.(type) {
	case *resource.Message:
		r.rm.ReceivedMessage(src, msg)
	case *reservation.Message:
		r.reservation.Pop(src, msg)
	case *entanglement.Message:
		r.deliverToProtocol(src, msg)
	default:
		r.logger.Panicf("cannot handle message of type %T", msg)
	}
}

func (r *QuantumRouter) deliverToProtocol(
	src string,
	msg *entanglement.Message,
) {
	for _, p := range r.rm.Protocols() {
		if p.Name() != msg.Receiver {
			continue
		}

		if receiver, ok := p.(entanglement.Receiver); ok {
			receiver.ReceivedMessage(src, msg)
			return
		}
	}

	r.logger.WithField("protocol", msg.Receiver).
		Debug("message for a finished protocol dropped")
}

// MemoryIdle hands a memory no rule wants to the application.
func (r *QuantumRouter) MemoryIdle(info *resource.MemoryInfo) {
	if r.app != nil {
		r.app.MemoryIdle(info)
	}
}
