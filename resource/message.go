package resource

import (
	"fmt"

	"github.com/sarchlab/qnet/network"
)

// ReceiverName is the receiver used by resource manager messages.
const ReceiverName = "resource_manager"

// MessageType distinguishes resource manager messages.
type MessageType int

// The resource manager message types.
const (
	MsgRequest MessageType = iota
	MsgResponse
	MsgReleaseProtocol
	MsgReleaseMemory
)

func (t MessageType) String() string {
	switch t {
	case MsgRequest:
		return "REQUEST"
	case MsgResponse:
		return "RESPONSE"
	case MsgReleaseProtocol:
		return "RELEASE_PROTOCOL"
	case MsgReleaseMemory:
		return "RELEASE_MEMORY"
	}

	return fmt.Sprintf("MessageType(%d)", int(t))
}

// Message is exchanged between resource managers to pair and release
// protocols.
type Message struct {
	network.MsgMeta

	Type MessageType

	// The protocol that started the exchange.
	IniProtocol string
	IniNode     string
	IniMemories []string

	// REQUEST only.
	Selector Selector
	Args     Args

	// RESPONSE only.
	IsApproved     bool
	PairedProtocol string
	PairedNode     string
	PairedMemories []string

	// RELEASE_PROTOCOL and RELEASE_MEMORY only.
	ReleaseTarget string
}

func newMessage(t MessageType) *Message {
	msg := &Message{Type: t}
	msg.Receiver = ReceiverName

	return msg
}

// NewRequestMessage creates a REQUEST asking the destination to pair a
// waiting protocol with p.
func NewRequestMessage(
	p Protocol,
	node string,
	selector Selector,
	args Args,
) *Message {
	msg := newMessage(MsgRequest)
	msg.IniProtocol = p.Name()
	msg.IniNode = node
	msg.IniMemories = memoryNames(p)
	msg.Selector = selector
	msg.Args = args

	return msg
}

// NewResponseMessage answers a REQUEST. When approved, paired names the
// local protocol chosen for the pairing.
func NewResponseMessage(
	req *Message,
	approved bool,
	paired Protocol,
	node string,
) *Message {
	msg := newMessage(MsgResponse)
	msg.IniProtocol = req.IniProtocol
	msg.IniNode = req.IniNode
	msg.IniMemories = req.IniMemories
	msg.IsApproved = approved

	if approved {
		msg.PairedProtocol = paired.Name()
		msg.PairedNode = node
		msg.PairedMemories = memoryNames(paired)
	}

	return msg
}

// NewReleaseProtocolMessage asks the destination to force-release a
// protocol by name.
func NewReleaseProtocolMessage(node, protocol string) *Message {
	msg := newMessage(MsgReleaseProtocol)
	msg.IniNode = node
	msg.ReleaseTarget = protocol

	return msg
}

// NewReleaseMemoryMessage asks the destination to release whatever holds a
// memory.
func NewReleaseMemoryMessage(node, memory string) *Message {
	msg := newMessage(MsgReleaseMemory)
	msg.IniNode = node
	msg.ReleaseTarget = memory

	return msg
}
