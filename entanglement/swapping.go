package entanglement

import (
	"github.com/sarchlab/qnet/qmem"
	"github.com/sarchlab/qnet/resource"
)

// SwappingA joins the pair held by its left memory and the pair held by
// its right memory into one pair between the two far ends.
type SwappingA struct {
	protocolBase
}

// NewSwappingA creates the swapping side on an intermediate node.
func NewSwappingA(
	node Node,
	physics *Physics,
	reservation string,
	left, right *qmem.Memory,
) *SwappingA {
	p := &SwappingA{}
	p.init(p, KindSwapping, node, physics, reservation, 2, left, right)

	return p
}

// Start performs the swap.
func (p *SwappingA) Start() {
	p.schedule(p.physics.OperationDelay, p.swap)
}

func (p *SwappingA) swap() {
	left, right := p.memories[0], p.memories[1]
	leftRemote, rightRemote := left.Entangled(), right.Entangled()
	leftOther, leftFound := p.otherOf(left)
	rightOther, rightFound := p.otherOf(right)

	success, fidelity := p.physics.Swap(left.Fidelity(), right.Fidelity())
	p.logger().WithField("success", success).Debug("swapped")

	if leftFound {
		msg := newMessage(MsgSwapping)
		msg.Success = success
		msg.Fidelity = fidelity
		msg.Remote = rightRemote
		p.send(leftOther, msg)
	}

	if rightFound {
		msg := newMessage(MsgSwapping)
		msg.Success = success
		msg.Fidelity = fidelity
		msg.Remote = leftRemote
		p.send(rightOther, msg)
	}

	p.finish(left, resource.StateRaw)
	p.finish(right, resource.StateRaw)
}

// Matches never accepts a request. The swapping side always initiates.
func (p *SwappingA) Matches(resource.PairingRequest) bool {
	return false
}

// ReceivedMessage ignores messages.
func (p *SwappingA) ReceivedMessage(string, *Message) {}

// SwappingB is the end of a swap. It waits with one memory and takes over
// the new partner the swapping side reports.
type SwappingB struct {
	protocolBase
}

// NewSwappingB creates a waiting end of a swap.
func NewSwappingB(
	node Node,
	physics *Physics,
	reservation string,
	memory *qmem.Memory,
) *SwappingB {
	p := &SwappingB{}
	p.init(p, KindSwapping, node, physics, reservation, 0, memory)

	return p
}

// Matches accepts swapping requests that target the waiting memory.
func (p *SwappingB) Matches(req resource.PairingRequest) bool {
	return p.matches(KindSwapping, req) &&
		req.Args[ArgMemory] == p.memories[0].Name()
}

// Start does nothing. The end waits for the swap result.
func (p *SwappingB) Start() {}

// ReceivedMessage applies the swap result.
func (p *SwappingB) ReceivedMessage(src string, msg *Message) {
	if p.released {
		return
	}

	memory := p.memories[0]
	if !msg.Success {
		p.finish(memory, resource.StateRaw)
		return
	}

	memory.SetEntangled(msg.Remote, msg.Fidelity, p.node.CurrentTime())
	p.finish(memory, resource.StateEntangled)
}
