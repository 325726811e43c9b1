package reservation

import (
	"fmt"

	"github.com/sarchlab/qnet/network"
)

// ReceiverName is the receiver used by reservation messages.
const ReceiverName = "reservation"

// MessageType distinguishes reservation messages.
type MessageType int

// The reservation message types.
const (
	MsgRequest MessageType = iota
	MsgReject
	MsgApprove
)

func (t MessageType) String() string {
	switch t {
	case MsgRequest:
		return "REQUEST"
	case MsgReject:
		return "REJECT"
	case MsgApprove:
		return "APPROVE"
	}

	return fmt.Sprintf("MessageType(%d)", int(t))
}

// Message carries a reservation along its path. A REQUEST accumulates the
// nodes it visited in Path. REJECT and APPROVE carry the path they retrace.
type Message struct {
	network.MsgMeta

	Type        MessageType
	Reservation *Reservation
	Path        []string
}

func newMessage(t MessageType, r *Reservation, path []string) *Message {
	msg := &Message{
		Type:        t,
		Reservation: r,
		Path:        append([]string(nil), path...),
	}
	msg.Receiver = ReceiverName

	return msg
}
