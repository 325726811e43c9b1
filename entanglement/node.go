// Package entanglement provides stand-in entanglement protocols.
//
// The protocols do not model photons or quantum states. They follow the
// control-plane life cycle of the real protocols: they are created by
// rules, paired by the resource manager, exchange one classical result
// message with their partners, and hand their memories back through
// resource.Manager.Update. Outcomes are drawn from a Physics model.
package entanglement

import (
	"github.com/sarchlab/qnet/network"
	"github.com/sarchlab/qnet/resource"
	"github.com/sarchlab/qnet/sim"
)

// Node is where a protocol runs.
type Node interface {
	sim.Named
	sim.EventScheduler

	SendMessage(dst string, msg network.Msg)
	ResourceManager() *resource.Manager
}

// Kinds of protocols, carried in pairing arguments.
const (
	KindGeneration   = "EG"
	KindPurification = "EP"
	KindSwapping     = "ES"
)

// Keys of pairing arguments.
const (
	ArgKind        = "kind"
	ArgReservation = "reservation"
	ArgMemory      = "memory"
)

// GenerationArgs are the pairing arguments of a generation request.
func GenerationArgs(reservation string) resource.Args {
	return resource.Args{
		ArgKind:        KindGeneration,
		ArgReservation: reservation,
	}
}

// MemoryArgs are the pairing arguments of a request that targets a
// specific remote memory.
func MemoryArgs(kind, reservation, memory string) resource.Args {
	return resource.Args{
		ArgKind:        kind,
		ArgReservation: reservation,
		ArgMemory:      memory,
	}
}

// A Receiver is a protocol that consumes result messages.
type Receiver interface {
	ReceivedMessage(src string, msg *Message)
}
