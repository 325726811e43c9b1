package entanglement

import (
	"fmt"

	"github.com/sarchlab/qnet/qmem"
	"github.com/sarchlab/qnet/resource"
	"github.com/sarchlab/qnet/sim"
	"github.com/sirupsen/logrus"
)

type other struct {
	protocol string
	node     string
	memories []string
}

// protocolBase implements the bookkeeping every protocol shares.
type protocolBase struct {
	self resource.Protocol

	name        string
	node        Node
	physics     *Physics
	memories    []*qmem.Memory
	reservation string
	rule        *resource.Rule

	expectedOthers int
	others         []other

	released bool
}

func (p *protocolBase) init(
	self resource.Protocol,
	kind string,
	node Node,
	physics *Physics,
	reservation string,
	expectedOthers int,
	memories ...*qmem.Memory,
) {
	p.self = self
	p.name = fmt.Sprintf("%s.%s.%s",
		kind, memories[0].Name(), sim.GetIDGenerator().Generate())
	p.node = node
	p.physics = physics
	p.reservation = reservation
	p.expectedOthers = expectedOthers
	p.memories = memories
}

// Name returns the name of the protocol.
func (p *protocolBase) Name() string {
	return p.name
}

// Memories returns the memories the protocol works on.
func (p *protocolBase) Memories() []*qmem.Memory {
	return p.memories
}

// Rule returns the rule that created the protocol.
func (p *protocolBase) Rule() *resource.Rule {
	return p.rule
}

// SetRule records the rule that created the protocol.
func (p *protocolBase) SetRule(r *resource.Rule) {
	p.rule = r
}

// Reservation returns the ID of the reservation the protocol serves.
func (p *protocolBase) Reservation() string {
	return p.reservation
}

// SetOthers records a partner.
func (p *protocolBase) SetOthers(protocol, node string, memories []string) {
	p.others = append(p.others, other{
		protocol: protocol,
		node:     node,
		memories: memories,
	})
}

// IsReady reports whether every partner has been recorded.
func (p *protocolBase) IsReady() bool {
	return len(p.others) >= p.expectedOthers
}

// Release stops the protocol. Pending results are dropped.
func (p *protocolBase) Release() {
	p.released = true
}

// MemoryExpired gives up on the protocol when one of its memories loses
// its entanglement.
func (p *protocolBase) MemoryExpired(m *qmem.Memory) {
	if p.released {
		return
	}

	p.logger().WithField("memory", m.Name()).Debug("memory expired")

	p.released = true
	for _, memory := range p.memories {
		p.giveBack(memory)
	}
}

// giveBack returns a memory the protocol still owns, keeping a valid
// entanglement if it has one.
func (p *protocolBase) giveBack(m *qmem.Memory) {
	if m.Owner() != qmem.Observer(p.self) {
		return
	}

	state := resource.StateRaw
	if m.Entangled().IsSet() && m.Fidelity() > 0 {
		state = resource.StateEntangled
	}

	p.node.ResourceManager().Update(p.self, m, state)
}

// finish returns a memory in the given state.
func (p *protocolBase) finish(m *qmem.Memory, state resource.MemoryState) {
	p.node.ResourceManager().Update(p.self, m, state)
}

// otherOf finds the partner that holds the remote memory of m.
func (p *protocolBase) otherOf(m *qmem.Memory) (other, bool) {
	remote := m.Entangled()
	for _, o := range p.others {
		if o.node != remote.Node {
			continue
		}

		for _, name := range o.memories {
			if name == remote.Memo {
				return o, true
			}
		}
	}

	return other{}, false
}

func (p *protocolBase) send(o other, msg *Message) {
	msg.Receiver = o.protocol
	p.node.SendMessage(o.node, msg)
}

func (p *protocolBase) schedule(delay sim.VTimeInSec, fn func()) {
	now := p.node.CurrentTime()
	p.node.Schedule(sim.NewCallbackEvent(now+delay, p.name, func() {
		if p.released {
			return
		}

		fn()
	}))
}

func (p *protocolBase) matches(kind string, req resource.PairingRequest) bool {
	return req.Args[ArgKind] == kind &&
		req.Args[ArgReservation] == p.reservation
}

func (p *protocolBase) logger() logrus.FieldLogger {
	return logrus.WithFields(logrus.Fields{
		"node":     p.node.Name(),
		"protocol": p.name,
	})
}
