package entanglement

import (
	"github.com/sarchlab/qnet/network"
	"github.com/sarchlab/qnet/qmem"
)

// MessageType tells which protocol produced a result message.
type MessageType int

// Result message types.
const (
	MsgGeneration MessageType = iota
	MsgPurification
	MsgSwapping
)

// Message carries the outcome of a protocol to its partners. The
// receiver of the message is the name of the partner protocol.
type Message struct {
	network.MsgMeta

	Type     MessageType
	Success  bool
	Fidelity float64

	// Memo is the memory of the sender, for generation.
	Memo string

	// Measured tells a purification partner that its memory was consumed.
	Measured bool

	// Remote is the new partner of the receiver's memory, for swapping.
	Remote qmem.EntangledMemory
}

func newMessage(t MessageType) *Message {
	return &Message{Type: t}
}
