package reservation

import (
	"github.com/sarchlab/qnet/entanglement"
	"github.com/sarchlab/qnet/network"
	"github.com/sarchlab/qnet/qmem"
	"github.com/sarchlab/qnet/resource"
	"github.com/sarchlab/qnet/sim"
)

type envelope struct {
	src, dst string
	msg      network.Msg
}

// fabric connects fake nodes in a line. Messages queue up until deliver
// is called.
type fabric struct {
	engine *sim.SerialEngine
	order  []string
	nodes  map[string]*fakeOwner
	queue  []envelope
}

func newFabric(sizes map[string]int, order ...string) *fabric {
	f := &fabric{
		engine: sim.NewSerialEngine(),
		order:  order,
		nodes:  make(map[string]*fakeOwner),
	}

	for _, name := range order {
		o := &fakeOwner{name: name, fabric: f}
		o.array = qmem.MakeBuilder().
			WithEngine(f.engine).
			WithSize(sizes[name]).
			Build(name + ".memo")
		o.rm = resource.NewManager(o, o.array)
		o.protocol = MakeBuilder().
			WithOwner(o).
			WithPhysics(entanglement.MakePhysicsBuilder().Build()).
			Build(name + ".RSVP")
		o.protocol.SetListener(o)
		f.nodes[name] = o
	}

	return f
}

// deliverReservations hands every queued reservation message to its
// destination, including the ones sent while delivering. Other messages
// are dropped.
func (f *fabric) deliverReservations() {
	for len(f.queue) > 0 {
		e := f.queue[0]
		f.queue = f.queue[1:]

		if msg, ok := e.msg.(*Message); ok {
			f.nodes[e.dst].protocol.Pop(e.src, msg)
		}
	}
}

type fakeOwner struct {
	name     string
	fabric   *fabric
	array    *qmem.Array
	rm       *resource.Manager
	protocol *Protocol

	results []bool
	others  []*Reservation
}

func (o *fakeOwner) Name() string {
	return o.name
}

func (o *fakeOwner) CurrentTime() sim.VTimeInSec {
	return o.fabric.engine.CurrentTime()
}

func (o *fakeOwner) Schedule(e sim.Event) {
	o.fabric.engine.Schedule(e)
}

func (o *fakeOwner) SendMessage(dst string, msg network.Msg) {
	o.fabric.queue = append(o.fabric.queue,
		envelope{src: o.name, dst: dst, msg: msg})
}

func (o *fakeOwner) ResourceManager() *resource.Manager {
	return o.rm
}

func (o *fakeOwner) MemoryIdle(*resource.MemoryInfo) {}

func (o *fakeOwner) NextHop(dst string) string {
	self, target := -1, -1
	for i, n := range o.fabric.order {
		if n == o.name {
			self = i
		}

		if n == dst {
			target = i
		}
	}

	switch {
	case target < 0 || target == self:
		return ""
	case target > self:
		return o.fabric.order[self+1]
	default:
		return o.fabric.order[self-1]
	}
}

func (o *fakeOwner) GetReservationResult(r *Reservation, approved bool) {
	o.results = append(o.results, approved)
}

func (o *fakeOwner) GetOtherReservation(r *Reservation) {
	o.others = append(o.others, r)
}

func (o *fakeOwner) reservedCards() int {
	n := 0
	for _, c := range o.protocol.TimeCards() {
		n += c.Len()
	}

	return n
}
