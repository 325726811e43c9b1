package resource

import (
	"fmt"

	"github.com/sarchlab/qnet/qmem"
)

// MemoryManager keeps one MemoryInfo per memory of an array, in slot order.
type MemoryManager struct {
	array *qmem.Array
	infos []*MemoryInfo
}

// NewMemoryManager creates a MemoryManager with every memory RAW.
func NewMemoryManager(array *qmem.Array) *MemoryManager {
	m := &MemoryManager{array: array}

	for _, memory := range array.Memories() {
		m.infos = append(m.infos, newMemoryInfo(memory))
	}

	return m
}

// Array returns the memory array being managed.
func (m *MemoryManager) Array() *qmem.Array {
	return m.array
}

// Len returns the number of memories.
func (m *MemoryManager) Len() int {
	return len(m.infos)
}

// At returns the MemoryInfo of the i-th slot.
func (m *MemoryManager) At(i int) *MemoryInfo {
	return m.infos[i]
}

// Infos returns all MemoryInfo in slot order.
func (m *MemoryManager) Infos() []*MemoryInfo {
	return m.infos
}

// InfoByMemory finds the MemoryInfo of a memory.
func (m *MemoryManager) InfoByMemory(memory *qmem.Memory) *MemoryInfo {
	for _, info := range m.infos {
		if info.Memory == memory {
			return info
		}
	}

	return nil
}

// InfoByName finds the MemoryInfo of the memory with the given name.
func (m *MemoryManager) InfoByName(name string) *MemoryInfo {
	for _, info := range m.infos {
		if info.Memory.Name() == name {
			return info
		}
	}

	return nil
}

// Update moves a memory into a new state. Moving to RAW also resets the
// physical memory. Update does not consult any rule.
func (m *MemoryManager) Update(memory *qmem.Memory, state MemoryState) error {
	info := m.InfoByMemory(memory)
	if info == nil {
		return fmt.Errorf("%w: %s", ErrUnknownMemory, memory.Name())
	}

	switch state {
	case StateRaw:
		info.toRaw()
		memory.Reset()
	case StateOccupied:
		info.toOccupied()
	case StateEntangled:
		return info.toEntangled()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownState, state)
	}

	return nil
}
