package resource

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Condition inspects a memory and returns the memories a rule should act
// on, or nothing. A condition must not change any state.
type Condition func(info *MemoryInfo, mm *MemoryManager, args Args) []*MemoryInfo

// Action creates the protocol that serves the memories a condition
// selected.
type Action func(infos []*MemoryInfo, args Args) ActionResult

// ActionResult is what an Action returns. Destinations, Selectors and Args
// are parallel lists with one entry per pairing the protocol needs. An
// empty destination means the protocol waits for a remote request instead
// of sending one.
type ActionResult struct {
	Protocol     Protocol
	Destinations []string
	Selectors    []Selector
	Args         []Args
}

// Reservation is the admission grant a rule was generated for.
type Reservation interface {
	ReservationID() string
}

// Rule maps a memory condition to the protocol that should run on it.
type Rule struct {
	Priority      int
	Condition     Condition
	Action        Action
	ConditionArgs Args
	ActionArgs    Args
	Reservation   Reservation

	manager   *Manager
	protocols []Protocol
}

// NewRule creates a rule. Lower priorities are checked first.
func NewRule(
	priority int,
	action Action,
	condition Condition,
	actionArgs, conditionArgs Args,
) *Rule {
	return &Rule{
		Priority:      priority,
		Action:        action,
		Condition:     condition,
		ActionArgs:    actionArgs,
		ConditionArgs: conditionArgs,
	}
}

// Protocols returns the protocols the rule created that are still in
// flight.
func (r *Rule) Protocols() []Protocol {
	return r.protocols
}

// IsValid returns the memories the rule wants to act on given a change in
// info.
func (r *Rule) IsValid(info *MemoryInfo) []*MemoryInfo {
	if r.manager == nil {
		panic("rule is not loaded")
	}

	return r.Condition(info, r.manager.memoryManager, r.ConditionArgs)
}

// Do runs the action on the given memories. The created protocol takes
// ownership of its memories and pairing requests are sent for it.
func (r *Rule) Do(infos []*MemoryInfo) {
	for _, info := range infos {
		if info.State == StateOccupied {
			logrus.Panicf("memory %s is already occupied", info.Memory.Name())
		}
	}

	result := r.Action(infos, r.ActionArgs)
	actionResultMustBeConsistent(result)

	p := result.Protocol
	p.SetRule(r)
	r.protocols = append(r.protocols, p)

	for _, m := range p.Memories() {
		m.Detach(m.Array())
		m.Attach(p)
	}

	for i, dst := range result.Destinations {
		r.manager.SendRequest(p, dst, result.Selectors[i], result.Args[i])
	}
}

func (r *Rule) removeProtocol(p Protocol) {
	for i, existing := range r.protocols {
		if existing == p {
			r.protocols = append(r.protocols[:i], r.protocols[i+1:]...)
			return
		}
	}
}

func actionResultMustBeConsistent(result ActionResult) {
	if result.Protocol == nil {
		panic("action did not create a protocol")
	}

	n := len(result.Destinations)
	if len(result.Selectors) != n || len(result.Args) != n {
		panic(fmt.Sprintf(
			"action returned %d destinations, %d selectors and %d args",
			n, len(result.Selectors), len(result.Args)))
	}

	if n == 0 {
		panic("action must return at least one destination, " +
			"use an empty destination to wait for a request")
	}
}
