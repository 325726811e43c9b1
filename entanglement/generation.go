package entanglement

import (
	"github.com/sarchlab/qnet/qmem"
	"github.com/sarchlab/qnet/resource"
)

// Generation entangles one memory with a memory of a neighbor. The primary
// side requests the pairing and draws the outcome. The other side waits for
// the request and learns the outcome from a result message.
type Generation struct {
	protocolBase

	remoteNode string
	primary    bool
}

// NewGeneration creates a generation protocol on memory that entangles it
// with a memory of remoteNode.
func NewGeneration(
	node Node,
	physics *Physics,
	reservation string,
	memory *qmem.Memory,
	remoteNode string,
	primary bool,
) *Generation {
	p := &Generation{remoteNode: remoteNode, primary: primary}
	p.init(p, KindGeneration, node, physics, reservation, 1, memory)

	return p
}

// IsPrimary reports whether this side draws the outcome.
func (p *Generation) IsPrimary() bool {
	return p.primary
}

// Matches accepts generation requests of the same reservation from the
// expected neighbor.
func (p *Generation) Matches(req resource.PairingRequest) bool {
	return !p.primary &&
		p.matches(KindGeneration, req) &&
		req.Node == p.remoteNode
}

// Start begins the generation attempt.
func (p *Generation) Start() {
	if !p.primary {
		return
	}

	p.schedule(p.physics.GenerationDelay, p.attempt)
}

func (p *Generation) attempt() {
	memory := p.memories[0]
	o := p.others[0]

	msg := newMessage(MsgGeneration)
	msg.Memo = memory.Name()
	msg.Success = p.physics.Generate()

	if !msg.Success {
		p.logger().Debug("generation failed")
		p.send(o, msg)
		p.finish(memory, resource.StateRaw)

		return
	}

	msg.Fidelity = memory.RawFidelity
	memory.SetEntangled(
		qmem.EntangledMemory{Node: o.node, Memo: o.memories[0]},
		msg.Fidelity, p.node.CurrentTime())

	p.send(o, msg)
	p.finish(memory, resource.StateEntangled)
}

// ReceivedMessage applies the outcome drawn by the primary side.
func (p *Generation) ReceivedMessage(src string, msg *Message) {
	if p.released {
		return
	}

	memory := p.memories[0]
	if !msg.Success {
		p.finish(memory, resource.StateRaw)
		return
	}

	memory.SetEntangled(qmem.EntangledMemory{Node: src, Memo: msg.Memo},
		msg.Fidelity, p.node.CurrentTime())
	p.finish(memory, resource.StateEntangled)
}
