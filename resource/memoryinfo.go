// Package resource decides which local quantum memories serve which
// entanglement task and pairs local protocols with their remote
// counterparts.
//
// A Manager watches the MemoryInfo table of its node. Whenever a memory
// changes state, the installed Rules are consulted in priority order. The
// first rule whose condition holds creates a Protocol, takes the memories
// out of the array and, when the protocol needs a partner, asks a peer
// Manager to pair it with one of its waiting protocols.
package resource

import (
	"errors"
	"fmt"

	"github.com/sarchlab/qnet/qmem"
	"github.com/sarchlab/qnet/sim"
)

// MemoryState is the control-plane view of a memory.
type MemoryState string

// The states a memory can be in.
const (
	StateRaw       MemoryState = "RAW"
	StateOccupied  MemoryState = "OCCUPIED"
	StateEntangled MemoryState = "ENTANGLED"
)

// ErrUnknownState is returned for a state token that is not RAW, OCCUPIED or
// ENTANGLED.
var ErrUnknownState = errors.New("unknown state")

// ErrNotEntangled is returned when a memory is marked ENTANGLED but holds no
// entanglement.
var ErrNotEntangled = errors.New("memory holds no entanglement")

// ErrUnknownMemory is returned when a memory does not belong to the
// manager's array.
var ErrUnknownMemory = errors.New("memory not managed")

// IsValid reports whether s is one of the known states.
func (s MemoryState) IsValid() bool {
	switch s {
	case StateRaw, StateOccupied, StateEntangled:
		return true
	}

	return false
}

// ParseMemoryState converts a token into a MemoryState.
func ParseMemoryState(token string) (MemoryState, error) {
	s := MemoryState(token)
	if !s.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownState, token)
	}

	return s, nil
}

// MemoryInfo tracks the state of one memory slot.
//
// RemoteNode, RemoteMemo, Fidelity and EntangleTime are only meaningful in
// the ENTANGLED state, and while a memory that was ENTANGLED is OCCUPIED by
// a protocol that consumes the entanglement.
type MemoryInfo struct {
	Memory *qmem.Memory
	Index  int
	State  MemoryState

	RemoteNode   string
	RemoteMemo   string
	Fidelity     float64
	EntangleTime sim.VTimeInSec
}

func newMemoryInfo(m *qmem.Memory) *MemoryInfo {
	info := &MemoryInfo{Memory: m, Index: m.Index()}
	info.toRaw()

	return info
}

func (i *MemoryInfo) toRaw() {
	i.State = StateRaw
	i.RemoteNode = ""
	i.RemoteMemo = ""
	i.Fidelity = 0
	i.EntangleTime = -1
}

func (i *MemoryInfo) toOccupied() {
	i.State = StateOccupied
}

func (i *MemoryInfo) toEntangled() error {
	remote := i.Memory.Entangled()
	if !remote.IsSet() || i.Memory.Fidelity() <= 0 {
		return fmt.Errorf("%w: %s", ErrNotEntangled, i.Memory.Name())
	}

	i.State = StateEntangled
	i.RemoteNode = remote.Node
	i.RemoteMemo = remote.Memo
	i.Fidelity = i.Memory.Fidelity()
	i.EntangleTime = i.Memory.EntangleTime()

	return nil
}
