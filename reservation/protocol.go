package reservation

import (
	"github.com/sarchlab/qnet/entanglement"
	"github.com/sarchlab/qnet/resource"
	"github.com/sarchlab/qnet/sim"
	"github.com/sirupsen/logrus"
)

// HookPosReservationResult marks the initiator learning the outcome of a
// reservation. Item is the reservation and Detail is whether it was
// approved.
var HookPosReservationResult = &sim.HookPos{Name: "Reservation Result"}

// HookPosReservationPushed marks an initiator starting a valid
// reservation. Item is the reservation.
var HookPosReservationPushed = &sim.HookPos{Name: "Reservation Pushed"}

// HookPosReservationAccepted marks a node committing to a reservation.
// Item is the reservation and Detail is the memory indices it holds.
var HookPosReservationAccepted = &sim.HookPos{Name: "Reservation Accepted"}

// Same-time ordering of the events of a reservation. At the boundary
// between two reservations the old rules are gone and the old memories are
// RAW before the new rules load.
const (
	priorityExpire = iota
	priorityRelease
	priorityLoad
)

// Owner is the node a Protocol runs on.
type Owner interface {
	entanglement.Node

	// NextHop returns the neighbor toward dst, or "" if dst cannot be
	// reached.
	NextHop(dst string) string
}

// Listener is told about reservations that concern the application of a
// node.
type Listener interface {
	// GetReservationResult reports the outcome of a reservation the node
	// initiated.
	GetReservationResult(r *Reservation, approved bool)

	// GetOtherReservation reports an approved reservation for which the
	// node is the responder.
	GetOtherReservation(r *Reservation)
}

// Protocol is the resource reservation protocol of a node.
type Protocol struct {
	sim.HookableBase

	name     string
	owner    Owner
	physics  *entanglement.Physics
	listener Listener
	logger   logrus.FieldLogger

	timeCards []*MemoryTimeCard
	scheduled map[*Reservation][]int
	accepted  []*Reservation
}

// A Builder can build reservation protocols.
type Builder struct {
	owner   Owner
	physics *entanglement.Physics
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{}
}

// WithOwner sets the node the protocol runs on.
func (b Builder) WithOwner(owner Owner) Builder {
	b.owner = owner
	return b
}

// WithPhysics sets the model used by the protocols the generated rules
// create.
func (b Builder) WithPhysics(physics *entanglement.Physics) Builder {
	b.physics = physics
	return b
}

// Build creates the protocol with one time card per memory of the owner.
func (b Builder) Build(name string) *Protocol {
	if b.owner == nil {
		panic("reservation protocol requires an owner")
	}

	physics := b.physics
	if physics == nil {
		physics = entanglement.MakePhysicsBuilder().Build()
	}

	p := &Protocol{
		name:      name,
		owner:     b.owner,
		physics:   physics,
		logger:    logrus.WithField("node", b.owner.Name()),
		scheduled: make(map[*Reservation][]int),
	}

	n := b.owner.ResourceManager().MemoryManager().Len()
	for i := 0; i < n; i++ {
		p.timeCards = append(p.timeCards, NewMemoryTimeCard(i))
	}

	return p
}

// Name returns the name of the protocol.
func (p *Protocol) Name() string {
	return p.name
}

// SetListener sets who learns about reservation outcomes.
func (p *Protocol) SetListener(l Listener) {
	p.listener = l
}

// TimeCards returns one time card per memory, in slot order.
func (p *Protocol) TimeCards() []*MemoryTimeCard {
	return p.timeCards
}

// Accepted returns the approved reservations that have not ended.
func (p *Protocol) Accepted() []*Reservation {
	return p.accepted
}

// Scheduled returns the memory indices r holds on this node.
func (p *Protocol) Scheduled(r *Reservation) []int {
	return p.scheduled[r]
}

// Schedule reserves r on the first time cards that can take it. Endpoints
// need MemorySize cards and intermediate nodes twice as many. If not enough
// cards are free, nothing is reserved.
func (p *Protocol) Schedule(r *Reservation) bool {
	if _, found := p.scheduled[r]; found {
		return true
	}

	required := r.MemorySize
	if p.isIntermediate(r) {
		required *= 2
	}

	indices := make([]int, 0, required)
	for _, card := range p.timeCards {
		if len(indices) == required {
			break
		}

		if card.Add(r) {
			indices = append(indices, card.Index)
		}
	}

	if len(indices) < required {
		for _, i := range indices {
			p.timeCards[i].Remove(r)
		}

		return false
	}

	p.scheduled[r] = indices

	return true
}

// Unschedule releases every time card r holds on this node.
func (p *Protocol) Unschedule(r *Reservation) {
	for _, i := range p.scheduled[r] {
		p.timeCards[i].Remove(r)
	}

	delete(p.scheduled, r)
}

// Push starts a reservation from this node to responder. Invalid requests
// return an error. Admission failures are reported to the listener.
func (p *Protocol) Push(
	responder string,
	startTime, endTime sim.VTimeInSec,
	memorySize int,
	fidelity float64,
	entanglementNumber, identity int,
) (*Reservation, error) {
	r, err := NewReservation(p.owner.Name(), responder,
		startTime, endTime, memorySize, fidelity,
		entanglementNumber, identity)
	if err != nil {
		return nil, err
	}

	p.logger.WithField("reservation", r.String()).Debug("reservation pushed")

	p.InvokeHook(sim.HookCtx{
		Domain: p,
		Now:    p.owner.CurrentTime(),
		Pos:    HookPosReservationPushed,
		Item:   r,
	})

	if !p.Schedule(r) {
		p.reportResult(r, false)
		return r, nil
	}

	next := p.owner.NextHop(responder)
	if next == "" {
		p.Unschedule(r)
		p.reportResult(r, false)

		return r, nil
	}

	p.send(next, newMessage(MsgRequest, r, []string{p.owner.Name()}))

	return r, nil
}

// Pop handles a reservation message from a neighbor.
func (p *Protocol) Pop(src string, msg *Message) {
	p.logger.WithFields(logrus.Fields{
		"src":         src,
		"type":        msg.Type.String(),
		"reservation": msg.Reservation.ID,
	}).Debug("reservation message received")

	switch msg.Type {
	case MsgRequest:
		p.handleRequest(src, msg)
	case MsgReject:
		p.handleReject(msg)
	case MsgApprove:
		p.handleApprove(msg)
	default:
		p.logger.Panicf("unknown reservation message type %s", msg.Type)
	}
}

func (p *Protocol) handleRequest(src string, msg *Message) {
	r := msg.Reservation
	self := p.owner.Name()
	path := append(append([]string(nil), msg.Path...), self)

	if !p.Schedule(r) {
		p.send(src, newMessage(MsgReject, r, path))
		return
	}

	if self == r.Responder {
		r.Path = path
		p.accept(r)

		if p.listener != nil {
			p.listener.GetOtherReservation(r)
		}

		p.send(path[len(path)-2], newMessage(MsgApprove, r, path))

		return
	}

	next := p.owner.NextHop(r.Responder)
	if next == "" {
		p.Unschedule(r)
		p.send(src, newMessage(MsgReject, r, path))

		return
	}

	p.send(next, newMessage(MsgRequest, r, path))
}

func (p *Protocol) handleReject(msg *Message) {
	r := msg.Reservation
	p.Unschedule(r)

	if p.owner.Name() == r.Initiator {
		p.reportResult(r, false)
		return
	}

	p.forwardBack(msg)
}

func (p *Protocol) handleApprove(msg *Message) {
	r := msg.Reservation
	r.Path = append([]string(nil), msg.Path...)
	p.accept(r)

	if p.owner.Name() == r.Initiator {
		p.reportResult(r, true)
		return
	}

	p.forwardBack(msg)
}

// forwardBack sends msg one hop toward the initiator along its path.
func (p *Protocol) forwardBack(msg *Message) {
	i := indexOf(msg.Path, p.owner.Name())
	if i <= 0 {
		p.logger.Panicf("node is not on the path %v", msg.Path)
	}

	p.send(msg.Path[i-1], newMessage(msg.Type, msg.Reservation, msg.Path))
}

func (p *Protocol) accept(r *Reservation) {
	p.accepted = append(p.accepted, r)

	p.InvokeHook(sim.HookCtx{
		Domain: p,
		Now:    p.owner.CurrentTime(),
		Pos:    HookPosReservationAccepted,
		Item:   r,
		Detail: p.scheduled[r],
	})

	p.loadRules(r)
}

func (p *Protocol) reportResult(r *Reservation, approved bool) {
	p.logger.WithFields(logrus.Fields{
		"reservation": r.String(),
		"approved":    approved,
	}).Info("reservation result")

	p.InvokeHook(sim.HookCtx{
		Domain: p,
		Now:    p.owner.CurrentTime(),
		Pos:    HookPosReservationResult,
		Item:   r,
		Detail: approved,
	})

	if p.listener != nil {
		p.listener.GetReservationResult(r, approved)
	}
}

// loadRules installs the rules of r for its interval. At the end of the
// interval the rules expire, the memories return to RAW and the time cards
// are freed.
func (p *Protocol) loadRules(r *Reservation) {
	rules := p.generateRules(r)
	rm := p.owner.ResourceManager()
	now := p.owner.CurrentTime()

	start := r.StartTime
	if start < now {
		start = now
	}

	end := r.EndTime
	if end < start {
		end = start
	}

	p.owner.Schedule(sim.NewCallbackEvent(start, p.name+".load", func() {
		for _, rule := range rules {
			rm.Load(rule)
		}
	}).WithPriority(priorityLoad))

	p.owner.Schedule(sim.NewCallbackEvent(end, p.name+".expire", func() {
		for _, rule := range rules {
			rm.Expire(rule)
		}
	}).WithPriority(priorityExpire))

	p.owner.Schedule(sim.NewCallbackEvent(end, p.name+".release", func() {
		p.release(r)
	}).WithPriority(priorityRelease))
}

func (p *Protocol) release(r *Reservation) {
	rm := p.owner.ResourceManager()
	array := rm.MemoryManager().Array()

	for _, i := range p.scheduled[r] {
		memory := array.At(i)
		if memory.IsOwnedByArray() {
			rm.Update(nil, memory, resource.StateRaw)
		}
	}

	p.Unschedule(r)

	for i, a := range p.accepted {
		if a == r {
			p.accepted = append(p.accepted[:i], p.accepted[i+1:]...)
			break
		}
	}

	p.logger.WithField("reservation", r.String()).Debug("reservation ended")
}

func (p *Protocol) isIntermediate(r *Reservation) bool {
	self := p.owner.Name()
	return self != r.Initiator && self != r.Responder
}

func (p *Protocol) send(dst string, msg *Message) {
	p.owner.SendMessage(dst, msg)
}

func indexOf(path []string, node string) int {
	for i, n := range path {
		if n == node {
			return i
		}
	}

	return -1
}
