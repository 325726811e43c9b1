package entanglement

import (
	"github.com/sarchlab/qnet/qmem"
	"github.com/sarchlab/qnet/resource"
)

// Purification sacrifices one entangled pair to raise the fidelity of
// another pair that shares the same two nodes. The initiating side holds
// both local memories. Each remote memory is held by a waiting protocol.
type Purification struct {
	protocolBase
}

// NewPurification creates the initiating side, which keeps kept and
// measures meas.
func NewPurification(
	node Node,
	physics *Physics,
	reservation string,
	kept, meas *qmem.Memory,
) *Purification {
	p := &Purification{}
	p.init(p, KindPurification, node, physics, reservation, 2, kept, meas)

	return p
}

// NewPurificationWaiter creates the waiting side on a single memory.
func NewPurificationWaiter(
	node Node,
	physics *Physics,
	reservation string,
	memory *qmem.Memory,
) *Purification {
	p := &Purification{}
	p.init(p, KindPurification, node, physics, reservation, 0, memory)

	return p
}

// Matches accepts purification requests that target the waiting memory.
func (p *Purification) Matches(req resource.PairingRequest) bool {
	return len(p.memories) == 1 &&
		p.matches(KindPurification, req) &&
		req.Args[ArgMemory] == p.memories[0].Name()
}

// Start runs the purification on the initiating side.
func (p *Purification) Start() {
	if len(p.memories) != 2 {
		return
	}

	p.schedule(p.physics.OperationDelay, p.purify)
}

func (p *Purification) purify() {
	kept, meas := p.memories[0], p.memories[1]
	keptOther, keptFound := p.otherOf(kept)
	measOther, measFound := p.otherOf(meas)

	success, fidelity := p.physics.Purify(kept.Fidelity(), meas.Fidelity())
	p.logger().WithField("success", success).Debug("purified")

	if keptFound {
		msg := newMessage(MsgPurification)
		msg.Success = success
		msg.Fidelity = fidelity
		p.send(keptOther, msg)
	}

	if measFound {
		msg := newMessage(MsgPurification)
		msg.Measured = true
		p.send(measOther, msg)
	}

	p.finish(meas, resource.StateRaw)

	if !success {
		p.finish(kept, resource.StateRaw)
		return
	}

	kept.UpdateFidelity(fidelity)
	p.finish(kept, resource.StateEntangled)
}

// ReceivedMessage applies the outcome on the waiting side.
func (p *Purification) ReceivedMessage(src string, msg *Message) {
	if p.released {
		return
	}

	memory := p.memories[0]
	if msg.Measured || !msg.Success {
		p.finish(memory, resource.StateRaw)
		return
	}

	memory.UpdateFidelity(msg.Fidelity)
	p.finish(memory, resource.StateEntangled)
}
