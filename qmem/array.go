package qmem

import (
	"fmt"

	"github.com/sarchlab/qnet/sim"
)

// Array is the ordered collection of memories on a node. It is the default
// owner of every memory that no protocol has checked out.
type Array struct {
	name     string
	engine   sim.EventScheduler
	memories []*Memory
	byName   map[string]*Memory
	listener Observer
}

// A Builder can build memory arrays.
type Builder struct {
	engine        sim.EventScheduler
	size          int
	rawFidelity   float64
	coherenceTime sim.VTimeInSec
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		size:        1,
		rawFidelity: 0.85,
	}
}

// WithEngine sets the engine used to schedule memory expiration.
func (b Builder) WithEngine(engine sim.EventScheduler) Builder {
	b.engine = engine
	return b
}

// WithSize sets the number of memories.
func (b Builder) WithSize(size int) Builder {
	b.size = size
	return b
}

// WithRawFidelity sets the fidelity of freshly generated entanglement.
func (b Builder) WithRawFidelity(f float64) Builder {
	b.rawFidelity = f
	return b
}

// WithCoherenceTime sets how long entanglement survives in a memory. Zero
// means forever.
func (b Builder) WithCoherenceTime(t sim.VTimeInSec) Builder {
	b.coherenceTime = t
	return b
}

// Build creates the memory array. Memories are named "<name>[i]".
func (b Builder) Build(name string) *Array {
	a := &Array{
		name:   name,
		engine: b.engine,
		byName: make(map[string]*Memory, b.size),
	}

	for i := 0; i < b.size; i++ {
		m := &Memory{
			name:          fmt.Sprintf("%s[%d]", name, i),
			index:         i,
			array:         a,
			RawFidelity:   b.rawFidelity,
			CoherenceTime: b.coherenceTime,
			entangleTime:  -1,
		}
		m.owner = a

		a.memories = append(a.memories, m)
		a.byName[m.name] = m
	}

	return a
}

// Name returns the name of the array.
func (a *Array) Name() string {
	return a.name
}

// Len returns the number of memories.
func (a *Array) Len() int {
	return len(a.memories)
}

// At returns the i-th memory.
func (a *Array) At(i int) *Memory {
	return a.memories[i]
}

// Memories returns all memories in slot order.
func (a *Array) Memories() []*Memory {
	return a.memories
}

// MemoryByName finds a memory by its name.
func (a *Array) MemoryByName(name string) (*Memory, bool) {
	m, found := a.byName[name]
	return m, found
}

// SetListener sets who hears about expirations of memories the array owns.
func (a *Array) SetListener(l Observer) {
	a.listener = l
}

// MemoryExpired forwards the expiration of an unowned memory to the
// listener.
func (a *Array) MemoryExpired(m *Memory) {
	if a.listener != nil {
		a.listener.MemoryExpired(m)
	}
}
