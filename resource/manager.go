package resource

import (
	"github.com/sarchlab/qnet/network"
	"github.com/sarchlab/qnet/qmem"
	"github.com/sarchlab/qnet/sim"
	"github.com/sirupsen/logrus"
)

// HookPosRuleFired marks a rule creating a protocol. Item is the rule and
// Detail is the protocol.
var HookPosRuleFired = &sim.HookPos{Name: "Rule Fired"}

// HookPosProtocolPaired marks a protocol being paired with a remote one.
// Item is the local protocol and Detail is the message that paired it.
var HookPosProtocolPaired = &sim.HookPos{Name: "Protocol Paired"}

// HookPosPairingRejected marks a pairing that failed. Item is the
// protocol name and Detail is the message.
var HookPosPairingRejected = &sim.HookPos{Name: "Pairing Rejected"}

// HookPosProtocolReleased marks a protocol being force-released. Item is
// the protocol.
var HookPosProtocolReleased = &sim.HookPos{Name: "Protocol Released"}

// Owner is the node a Manager runs on.
type Owner interface {
	sim.Named
	sim.TimeTeller

	// SendMessage transmits a message to another node.
	SendMessage(dst string, msg network.Msg)

	// MemoryIdle tells the application that no rule wants the memory.
	MemoryIdle(info *MemoryInfo)
}

// Manager is the resource manager of a node.
type Manager struct {
	sim.HookableBase

	owner         Owner
	memoryManager *MemoryManager
	ruleManager   *RuleManager
	logger        logrus.FieldLogger

	protocols        []Protocol
	pendingProtocols []Protocol
	waitingProtocols []Protocol

	// checkouts remembers the generation of each memory of a pending
	// protocol at the time its request was sent.
	checkouts map[Protocol][]uint64

	// peers lists the remote protocols that already approved a pending
	// protocol that needs more than one partner.
	peers map[Protocol][]peer
}

type peer struct {
	node     string
	protocol string
}

// NewManager creates the resource manager for the owner's memory array.
func NewManager(owner Owner, array *qmem.Array) *Manager {
	m := &Manager{
		owner:         owner,
		memoryManager: NewMemoryManager(array),
		ruleManager:   NewRuleManager(),
		logger:        logrus.WithField("node", owner.Name()),
		checkouts:     make(map[Protocol][]uint64),
		peers:         make(map[Protocol][]peer),
	}

	m.ruleManager.SetManager(m)
	array.SetListener(m)

	return m
}

// Name returns the name of the resource manager.
func (m *Manager) Name() string {
	return m.owner.Name() + ".ResourceManager"
}

// MemoryManager returns the memory table.
func (m *Manager) MemoryManager() *MemoryManager {
	return m.memoryManager
}

// RuleManager returns the installed rules.
func (m *Manager) RuleManager() *RuleManager {
	return m.ruleManager
}

// Protocols returns the protocols that are paired and running.
func (m *Manager) Protocols() []Protocol {
	return m.protocols
}

// PendingProtocols returns the protocols waiting for a RESPONSE.
func (m *Manager) PendingProtocols() []Protocol {
	return m.pendingProtocols
}

// WaitingProtocols returns the protocols waiting for a REQUEST.
func (m *Manager) WaitingProtocols() []Protocol {
	return m.waitingProtocols
}

// Load installs a rule and fires it on every memory it already applies to.
func (m *Manager) Load(rule *Rule) bool {
	m.ruleManager.Load(rule)

	for _, info := range m.memoryManager.Infos() {
		if info.State == StateOccupied {
			continue
		}

		infos := rule.IsValid(info)
		if len(infos) > 0 {
			m.fire(rule, infos)
		}
	}

	return true
}

// Expire removes a rule and unwinds every protocol it still has in flight.
// The unwound protocols are returned.
func (m *Manager) Expire(rule *Rule) []Protocol {
	protocols := m.ruleManager.Expire(rule)

	for _, p := range protocols {
		m.release(p)
	}

	return protocols
}

// Update is called when a protocol finishes with a memory, or by the
// application to hand a memory back. The memory moves to state, returns to
// the array, and the rules get a chance to claim it. At most one rule fires.
// If no rule claims it, the memory is reported idle.
func (m *Manager) Update(p Protocol, memory *qmem.Memory, state MemoryState) {
	err := m.memoryManager.Update(memory, state)
	if err != nil {
		m.logger.WithError(err).Panic("invalid memory update")
	}

	if p != nil {
		if memory.Detach(p) {
			memory.Attach(memory.Array())
		}

		m.forget(p)
	}

	m.logger.WithFields(logrus.Fields{
		"memory": memory.Name(),
		"state":  string(state),
	}).Debug("memory updated")

	if state == StateOccupied || !memory.IsOwnedByArray() {
		return
	}

	info := m.memoryManager.InfoByMemory(memory)
	for _, rule := range m.ruleManager.Rules() {
		infos := rule.IsValid(info)
		if len(infos) > 0 {
			m.fire(rule, infos)
			return
		}
	}

	m.owner.MemoryIdle(info)
}

// MemoryExpired handles the expiration of a memory that no protocol owns.
func (m *Manager) MemoryExpired(memory *qmem.Memory) {
	m.Update(nil, memory, StateRaw)
}

func (m *Manager) fire(rule *Rule, infos []*MemoryInfo) {
	rule.Do(infos)

	for _, info := range infos {
		info.toOccupied()
	}

	p := rule.protocols[len(rule.protocols)-1]
	m.logger.WithFields(logrus.Fields{
		"protocol": p.Name(),
		"priority": rule.Priority,
	}).Debug("rule fired")

	m.InvokeHook(sim.HookCtx{
		Domain: m,
		Now:    m.owner.CurrentTime(),
		Pos:    HookPosRuleFired,
		Item:   rule,
		Detail: p,
	})
}

// SendRequest pairs a protocol with a remote one. Without a destination
// the protocol waits for a request from another node.
func (m *Manager) SendRequest(
	p Protocol,
	dst string,
	selector Selector,
	args Args,
) {
	if dst == "" {
		if !contains(m.waitingProtocols, p) {
			m.waitingProtocols = append(m.waitingProtocols, p)
		}

		return
	}

	if !contains(m.pendingProtocols, p) {
		m.pendingProtocols = append(m.pendingProtocols, p)
		m.checkouts[p] = generations(p)
	}

	msg := NewRequestMessage(p, m.owner.Name(), selector, args)
	m.owner.SendMessage(dst, msg)
}

// ReleaseRemoteProtocol asks dst to force-release a protocol.
func (m *Manager) ReleaseRemoteProtocol(dst, protocol string) {
	m.owner.SendMessage(dst, NewReleaseProtocolMessage(m.owner.Name(), protocol))
}

// ReleaseRemoteMemory asks dst to release whatever holds a memory.
func (m *Manager) ReleaseRemoteMemory(dst, memory string) {
	m.owner.SendMessage(dst, NewReleaseMemoryMessage(m.owner.Name(), memory))
}

// ReceivedMessage handles a message from another resource manager.
func (m *Manager) ReceivedMessage(src string, msg *Message) {
	m.logger.WithFields(logrus.Fields{
		"src":      src,
		"type":     msg.Type.String(),
		"protocol": msg.IniProtocol,
	}).Debug("message received")

	switch msg.Type {
	case MsgRequest:
		m.handleRequest(src, msg)
	case MsgResponse:
		m.handleResponse(src, msg)
	case MsgReleaseProtocol:
		m.handleReleaseProtocol(msg)
	case MsgReleaseMemory:
		m.handleReleaseMemory(msg)
	default:
		m.logger.Panicf("unknown resource manager message type %s", msg.Type)
	}
}

func (m *Manager) handleRequest(src string, msg *Message) {
	selector := msg.Selector
	if selector == nil {
		selector = MatchFirst
	}

	req := PairingRequest{
		Protocol: msg.IniProtocol,
		Node:     msg.IniNode,
		Memories: msg.IniMemories,
		Args:     msg.Args,
	}

	p := selector.Select(m.waitingProtocols, req)
	if p == nil {
		m.owner.SendMessage(src,
			NewResponseMessage(msg, false, nil, m.owner.Name()))
		return
	}

	m.waitingProtocols = remove(m.waitingProtocols, p)
	m.protocols = append(m.protocols, p)
	p.SetOthers(msg.IniProtocol, msg.IniNode, msg.IniMemories)
	m.invokePaired(p, msg)
	p.Start()

	m.owner.SendMessage(src, NewResponseMessage(msg, true, p, m.owner.Name()))
}

func (m *Manager) handleResponse(src string, msg *Message) {
	p := findByName(m.pendingProtocols, msg.IniProtocol)

	if msg.IsApproved {
		if p == nil {
			m.ReleaseRemoteProtocol(src, msg.PairedProtocol)
			return
		}

		p.SetOthers(msg.PairedProtocol, msg.PairedNode, msg.PairedMemories)
		m.invokePaired(p, msg)

		if p.IsReady() {
			m.pendingProtocols = remove(m.pendingProtocols, p)
			delete(m.checkouts, p)
			delete(m.peers, p)
			m.protocols = append(m.protocols, p)
			p.Start()

			return
		}

		m.peers[p] = append(m.peers[p],
			peer{node: msg.PairedNode, protocol: msg.PairedProtocol})

		return
	}

	m.InvokeHook(sim.HookCtx{
		Domain: m,
		Now:    m.owner.CurrentTime(),
		Pos:    HookPosPairingRejected,
		Item:   msg.IniProtocol,
		Detail: msg,
	})

	if p == nil {
		return
	}

	if m.isStale(p) {
		m.pendingProtocols = remove(m.pendingProtocols, p)
		delete(m.checkouts, p)
		delete(m.peers, p)

		return
	}

	for _, approved := range m.peers[p] {
		m.ReleaseRemoteProtocol(approved.node, approved.protocol)
	}

	m.unwind(p)
}

func (m *Manager) handleReleaseProtocol(msg *Message) {
	p := findByName(m.protocols, msg.ReleaseTarget)
	if p == nil {
		p = findByName(m.pendingProtocols, msg.ReleaseTarget)
	}

	if p == nil {
		p = findByName(m.waitingProtocols, msg.ReleaseTarget)
	}

	if p == nil {
		return
	}

	m.release(p)
}

func (m *Manager) handleReleaseMemory(msg *Message) {
	memory, found := m.memoryManager.Array().MemoryByName(msg.ReleaseTarget)
	if !found {
		return
	}

	if p, ok := memory.Owner().(Protocol); ok {
		m.release(p)
		return
	}

	info := m.memoryManager.InfoByMemory(memory)
	if info.State != StateRaw {
		m.Update(nil, memory, StateRaw)
	}
}

func (m *Manager) invokePaired(p Protocol, msg *Message) {
	m.InvokeHook(sim.HookCtx{
		Domain: m,
		Now:    m.owner.CurrentTime(),
		Pos:    HookPosProtocolPaired,
		Item:   p,
		Detail: msg,
	})
}

// release force-stops a protocol and hands its memories back.
func (m *Manager) release(p Protocol) {
	m.InvokeHook(sim.HookCtx{
		Domain: m,
		Now:    m.owner.CurrentTime(),
		Pos:    HookPosProtocolReleased,
		Item:   p,
	})

	p.Release()
	m.unwind(p)
}

// unwind drops every reference to p and restores the memories it still
// owns to RAW, or to ENTANGLED if they hold a valid link.
func (m *Manager) unwind(p Protocol) {
	m.forget(p)

	for _, memory := range p.Memories() {
		if !memory.Detach(p) {
			continue
		}

		memory.Attach(memory.Array())

		state := StateRaw
		if memory.Entangled().IsSet() && memory.Fidelity() > 0 {
			state = StateEntangled
		}

		m.Update(nil, memory, state)
	}
}

func (m *Manager) forget(p Protocol) {
	m.protocols = remove(m.protocols, p)
	m.pendingProtocols = remove(m.pendingProtocols, p)
	m.waitingProtocols = remove(m.waitingProtocols, p)
	delete(m.checkouts, p)
	delete(m.peers, p)

	if r := p.Rule(); r != nil {
		r.removeProtocol(p)
	}
}

func (m *Manager) isStale(p Protocol) bool {
	gens := m.checkouts[p]
	for i, memory := range p.Memories() {
		if memory.Owner() != qmem.Observer(p) {
			return true
		}

		if i < len(gens) && memory.Generation() != gens[i] {
			return true
		}
	}

	return false
}

func generations(p Protocol) []uint64 {
	gens := make([]uint64, 0, len(p.Memories()))
	for _, memory := range p.Memories() {
		gens = append(gens, memory.Generation())
	}

	return gens
}

func contains(list []Protocol, p Protocol) bool {
	for _, existing := range list {
		if existing == p {
			return true
		}
	}

	return false
}

func remove(list []Protocol, p Protocol) []Protocol {
	for i, existing := range list {
		if existing == p {
			return append(list[:i], list[i+1:]...)
		}
	}

	return list
}

func findByName(list []Protocol, name string) Protocol {
	for _, p := range list {
		if p.Name() == name {
			return p
		}
	}

	return nil
}
