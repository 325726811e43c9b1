package resource

import "github.com/sarchlab/qnet/qmem"

// Protocol is an entanglement protocol created by a rule. The physical
// behavior lives elsewhere; the resource manager only needs to track,
// pair, start and release it.
type Protocol interface {
	qmem.Observer

	Name() string
	Memories() []*qmem.Memory

	Rule() *Rule
	SetRule(r *Rule)

	// SetOthers records the identity of a paired remote protocol. Protocols
	// that pair with several remotes are called once per remote.
	SetOthers(protocol, node string, memories []string)

	// IsReady reports whether every expected remote has been recorded.
	IsReady() bool

	Start()

	// Release force-stops the protocol. It must tolerate being called on a
	// protocol that has already finished.
	Release()
}

// Args carries the arguments of rule conditions, rule actions and pairing
// requests.
type Args map[string]any

// PairingRequest describes a remote protocol looking for a partner.
type PairingRequest struct {
	Protocol string
	Node     string
	Memories []string
	Args     Args
}

// A Matcher is a protocol that can tell whether it should pair with a
// remote request.
type Matcher interface {
	Matches(req PairingRequest) bool
}

// A Selector picks the waiting protocol that pairs with a request, or
// returns nil.
type Selector interface {
	Select(waiting []Protocol, req PairingRequest) Protocol
}

// SelectorFunc adapts a function into a Selector.
type SelectorFunc func(waiting []Protocol, req PairingRequest) Protocol

// Select calls f.
func (f SelectorFunc) Select(waiting []Protocol, req PairingRequest) Protocol {
	return f(waiting, req)
}

// MatchFirst selects the first waiting protocol that implements Matcher and
// matches the request.
var MatchFirst Selector = SelectorFunc(
	func(waiting []Protocol, req PairingRequest) Protocol {
		for _, p := range waiting {
			m, ok := p.(Matcher)
			if ok && m.Matches(req) {
				return p
			}
		}

		return nil
	})

func memoryNames(p Protocol) []string {
	names := make([]string, 0, len(p.Memories()))
	for _, m := range p.Memories() {
		names = append(names, m.Name())
	}

	return names
}
