// Package network delivers classical messages between quantum-network nodes.
//
// Messages are in-process values. Sending one schedules a delivery event on
// the simulation engine; the receiving node sees the message after the
// propagation delay of the route between the two nodes.
package network

import "github.com/sarchlab/qnet/sim"

// A Msg is a piece of information that is transferred between nodes.
type Msg interface {
	Meta() *MsgMeta
}

// MsgMeta contains the meta data that is attached to every message.
type MsgMeta struct {
	ID       string
	Src, Dst string

	// Receiver names the protocol on the destination node that consumes the
	// message.
	Receiver string

	SendTime, RecvTime sim.VTimeInSec
}

// Meta returns the meta data itself so that MsgMeta can be embedded to
// satisfy Msg.
func (m *MsgMeta) Meta() *MsgMeta {
	return m
}

// A Receiver is a node that can accept messages from the network.
type Receiver interface {
	sim.Named

	ReceiveMessage(src string, msg Msg)
}

// DeliveryEvent carries a message to its destination node.
type DeliveryEvent struct {
	*sim.EventBase

	Msg Msg
}
