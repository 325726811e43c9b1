// Package qmem models the physical quantum memories of a node.
//
// The quantum state itself lives outside this package. A Memory only keeps
// what the control plane needs: fidelity, the identity of the remote memory
// it is entangled with, and which observer currently owns it. Every memory
// has exactly one owner at a time. When no protocol has checked the memory
// out, the owner is the Array the memory belongs to.
package qmem

import (
	"fmt"

	"github.com/sarchlab/qnet/sim"
)

// An Observer owns a memory and is told when the memory's entanglement
// expires.
type Observer interface {
	MemoryExpired(m *Memory)
}

// EntangledMemory names the memory on the other side of an entangled pair.
type EntangledMemory struct {
	Node string
	Memo string
}

// IsSet reports whether the memory points to a remote partner.
func (e EntangledMemory) IsSet() bool {
	return e.Node != ""
}

// Memory is a single quantum memory slot.
type Memory struct {
	name  string
	index int
	array *Array

	RawFidelity   float64
	CoherenceTime sim.VTimeInSec

	fidelity     float64
	entangled    EntangledMemory
	entangleTime sim.VTimeInSec

	owner      Observer
	generation uint64
	expiry     uint64
}

// Name returns the name of the memory.
func (m *Memory) Name() string {
	return m.name
}

// Index returns the slot position of the memory in its array.
func (m *Memory) Index() int {
	return m.index
}

// Array returns the memory array the memory belongs to.
func (m *Memory) Array() *Array {
	return m.array
}

// Fidelity returns the fidelity of the stored entanglement, or 0.
func (m *Memory) Fidelity() float64 {
	return m.fidelity
}

// Entangled returns the remote partner of the memory.
func (m *Memory) Entangled() EntangledMemory {
	return m.entangled
}

// EntangleTime returns when the current entanglement was established, or -1.
func (m *Memory) EntangleTime() sim.VTimeInSec {
	return m.entangleTime
}

// Owner returns the observer that currently owns the memory.
func (m *Memory) Owner() Observer {
	return m.owner
}

// Observers returns the observers attached to the memory. There is at most
// one.
func (m *Memory) Observers() []Observer {
	if m.owner == nil {
		return nil
	}

	return []Observer{m.owner}
}

// IsOwnedByArray reports whether no protocol has the memory checked out.
func (m *Memory) IsOwnedByArray() bool {
	return m.owner == Observer(m.array)
}

// Generation counts how many times the memory has been checked out to an
// observer other than its array. It lets callers tell whether an ownership
// they remember is still current.
func (m *Memory) Generation() uint64 {
	return m.generation
}

// Attach makes o the owner of the memory. The memory must be detached first
// unless o already owns it.
func (m *Memory) Attach(o Observer) {
	if m.owner == o {
		return
	}

	if m.owner != nil {
		panic(fmt.Sprintf("memory %s is already owned by %T", m.name, m.owner))
	}

	m.owner = o
	if o != Observer(m.array) {
		m.generation++
	}
}

// Detach removes o as the owner of the memory. It returns false if o was not
// the owner.
func (m *Memory) Detach(o Observer) bool {
	if m.owner != o {
		return false
	}

	m.owner = nil

	return true
}

// Reset clears the stored entanglement.
func (m *Memory) Reset() {
	m.fidelity = 0
	m.entangled = EntangledMemory{}
	m.entangleTime = -1
	m.expiry++
}

// SetEntangled records a new entanglement with a remote memory. If the
// memory has a coherence time and its array has an engine, the entanglement
// expires after that time.
func (m *Memory) SetEntangled(
	remote EntangledMemory,
	fidelity float64,
	now sim.VTimeInSec,
) {
	m.entangled = remote
	m.fidelity = fidelity
	m.entangleTime = now
	m.expiry++

	m.scheduleExpiry(now)
}

// UpdateFidelity changes the fidelity of the stored entanglement.
func (m *Memory) UpdateFidelity(fidelity float64) {
	m.fidelity = fidelity
}

// Expire tells the owner that the entanglement is gone.
func (m *Memory) Expire() {
	m.Reset()

	if m.owner != nil {
		m.owner.MemoryExpired(m)
	}
}

func (m *Memory) scheduleExpiry(now sim.VTimeInSec) {
	if m.CoherenceTime <= 0 || m.array == nil || m.array.engine == nil {
		return
	}

	token := m.expiry
	evt := sim.NewCallbackEvent(now+m.CoherenceTime, m.name+".expire",
		func() {
			if m.expiry != token {
				return
			}

			m.Expire()
		})
	m.array.engine.Schedule(evt)
}
