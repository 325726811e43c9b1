package reservation

import (
	"github.com/sarchlab/qnet/entanglement"
	"github.com/sarchlab/qnet/resource"
)

const rulePriority = 10

// Condition arguments shared by the rules of a reservation.
const (
	argIndices  = "memory_indices"
	argFidelity = "target_fidelity"
	argPath     = "path"
	argPosition = "position"
)

// generateRules creates the rules r needs on this node.
//
// Memories face the neighbors of the node: the initiator's face the next
// node, the responder's face the previous one, and an intermediate node
// splits its memories into a left half and a right half. Each link is
// generated by its left node requesting its right node. Pairs below the
// target fidelity are purified, the node nearer the initiator requesting.
// Intermediate nodes then swap in path order, so that the pair held by the
// initiator grows one hop at a time toward the responder.
func (p *Protocol) generateRules(r *Reservation) []*resource.Rule {
	indices := p.scheduled[r]
	path := r.Path
	pos := r.PathIndex(p.owner.Name())
	last := len(path) - 1

	var left, right []int

	switch pos {
	case 0:
		right = indices
	case last:
		left = indices
	default:
		left = indices[:r.MemorySize]
		right = indices[r.MemorySize:]
	}

	var rules []*resource.Rule

	if len(left) > 0 {
		rules = append(rules, p.newRule(r,
			p.generationAction(r, path[pos-1], false),
			generationCondition,
			conditionArgs(r, pos, left)))
	}

	if len(right) > 0 {
		rules = append(rules, p.newRule(r,
			p.generationAction(r, path[pos+1], true),
			generationCondition,
			conditionArgs(r, pos, right)))
	}

	all := conditionArgs(r, pos, indices)
	rules = append(rules,
		p.newRule(r, p.purificationAction(r),
			purificationCondition, all),
		p.newRule(r, p.purificationWaiterAction(r),
			purificationWaiterCondition, all),
	)

	if len(path) > 2 {
		if pos > 0 && pos < last {
			rules = append(rules, p.newRule(r, p.swappingAction(r),
				swappingCondition, all))
		}

		rules = append(rules, p.newRule(r, p.swappingWaiterAction(r),
			swappingWaiterCondition, all))
	}

	return rules
}

func (p *Protocol) newRule(
	r *Reservation,
	action resource.Action,
	condition resource.Condition,
	args resource.Args,
) *resource.Rule {
	rule := resource.NewRule(rulePriority, action, condition, nil, args)
	rule.Reservation = r

	return rule
}

func conditionArgs(r *Reservation, pos int, indices []int) resource.Args {
	set := make(map[int]bool, len(indices))
	for _, i := range indices {
		set[i] = true
	}

	return resource.Args{
		argIndices:  set,
		argFidelity: r.Fidelity,
		argPath:     r.Path,
		argPosition: pos,
	}
}

func inRange(info *resource.MemoryInfo, args resource.Args) bool {
	return args[argIndices].(map[int]bool)[info.Index]
}

func entangledInRange(info *resource.MemoryInfo, args resource.Args) bool {
	return info.State == resource.StateEntangled && inRange(info, args)
}

func belowTarget(info *resource.MemoryInfo, args resource.Args) bool {
	return info.Fidelity < args[argFidelity].(float64)
}

func remoteIndex(info *resource.MemoryInfo, args resource.Args) int {
	return indexOf(args[argPath].([]string), info.RemoteNode)
}

// findPartner returns another entangled memory in range whose remote node
// is remote and whose fidelity is on the same side of the target as
// wantBelow.
func findPartner(
	info *resource.MemoryInfo,
	mm *resource.MemoryManager,
	args resource.Args,
	remote string,
	wantBelow bool,
) *resource.MemoryInfo {
	for _, other := range mm.Infos() {
		if other == info || !entangledInRange(other, args) {
			continue
		}

		if other.RemoteNode == remote && belowTarget(other, args) == wantBelow {
			return other
		}
	}

	return nil
}

func generationCondition(
	info *resource.MemoryInfo,
	_ *resource.MemoryManager,
	args resource.Args,
) []*resource.MemoryInfo {
	if info.State == resource.StateRaw && inRange(info, args) {
		return []*resource.MemoryInfo{info}
	}

	return nil
}

// purificationCondition pairs two low-fidelity memories that share a remote
// node farther along the path.
func purificationCondition(
	info *resource.MemoryInfo,
	mm *resource.MemoryManager,
	args resource.Args,
) []*resource.MemoryInfo {
	if !entangledInRange(info, args) || !belowTarget(info, args) {
		return nil
	}

	if remoteIndex(info, args) <= args[argPosition].(int) {
		return nil
	}

	other := findPartner(info, mm, args, info.RemoteNode, true)
	if other == nil {
		return nil
	}

	return []*resource.MemoryInfo{info, other}
}

// purificationWaiterCondition parks a low-fidelity memory whose remote node
// is nearer the initiator.
func purificationWaiterCondition(
	info *resource.MemoryInfo,
	_ *resource.MemoryManager,
	args resource.Args,
) []*resource.MemoryInfo {
	if !entangledInRange(info, args) || !belowTarget(info, args) {
		return nil
	}

	ri := remoteIndex(info, args)
	if ri < 0 || ri >= args[argPosition].(int) {
		return nil
	}

	return []*resource.MemoryInfo{info}
}

// swappingCondition finds, on an intermediate node, a memory entangled with
// the initiator and a memory entangled with the next node. The left memory
// comes first.
func swappingCondition(
	info *resource.MemoryInfo,
	mm *resource.MemoryManager,
	args resource.Args,
) []*resource.MemoryInfo {
	if !entangledInRange(info, args) || belowTarget(info, args) {
		return nil
	}

	path := args[argPath].([]string)
	pos := args[argPosition].(int)
	first, next := path[0], path[pos+1]

	switch info.RemoteNode {
	case first:
		if other := findPartner(info, mm, args, next, false); other != nil {
			return []*resource.MemoryInfo{info, other}
		}
	case next:
		if other := findPartner(info, mm, args, first, false); other != nil {
			return []*resource.MemoryInfo{other, info}
		}
	}

	return nil
}

// swappingWaiterCondition parks a memory whose remote node is an
// intermediate node that will swap it.
func swappingWaiterCondition(
	info *resource.MemoryInfo,
	_ *resource.MemoryManager,
	args resource.Args,
) []*resource.MemoryInfo {
	if !entangledInRange(info, args) || belowTarget(info, args) {
		return nil
	}

	last := len(args[argPath].([]string)) - 1
	pos := args[argPosition].(int)
	ri := remoteIndex(info, args)

	if pos == 0 && ri >= 1 && ri < last {
		return []*resource.MemoryInfo{info}
	}

	if ri >= 1 && ri == pos-1 {
		return []*resource.MemoryInfo{info}
	}

	return nil
}

func waitForRequest(p resource.Protocol) resource.ActionResult {
	return resource.ActionResult{
		Protocol:     p,
		Destinations: []string{""},
		Selectors:    []resource.Selector{nil},
		Args:         []resource.Args{nil},
	}
}

func (p *Protocol) generationAction(
	r *Reservation,
	remote string,
	primary bool,
) resource.Action {
	return func(
		infos []*resource.MemoryInfo,
		_ resource.Args,
	) resource.ActionResult {
		proto := entanglement.NewGeneration(p.owner, p.physics, r.ID,
			infos[0].Memory, remote, primary)

		if !primary {
			return waitForRequest(proto)
		}

		return resource.ActionResult{
			Protocol:     proto,
			Destinations: []string{remote},
			Selectors:    []resource.Selector{resource.MatchFirst},
			Args:         []resource.Args{entanglement.GenerationArgs(r.ID)},
		}
	}
}

func (p *Protocol) purificationAction(r *Reservation) resource.Action {
	return func(
		infos []*resource.MemoryInfo,
		_ resource.Args,
	) resource.ActionResult {
		kept, meas := infos[0], infos[1]
		proto := entanglement.NewPurification(p.owner, p.physics, r.ID,
			kept.Memory, meas.Memory)

		return resource.ActionResult{
			Protocol:     proto,
			Destinations: []string{kept.RemoteNode, meas.RemoteNode},
			Selectors: []resource.Selector{
				resource.MatchFirst,
				resource.MatchFirst,
			},
			Args: []resource.Args{
				entanglement.MemoryArgs(entanglement.KindPurification,
					r.ID, kept.RemoteMemo),
				entanglement.MemoryArgs(entanglement.KindPurification,
					r.ID, meas.RemoteMemo),
			},
		}
	}
}

func (p *Protocol) purificationWaiterAction(r *Reservation) resource.Action {
	return func(
		infos []*resource.MemoryInfo,
		_ resource.Args,
	) resource.ActionResult {
		return waitForRequest(entanglement.NewPurificationWaiter(
			p.owner, p.physics, r.ID, infos[0].Memory))
	}
}

func (p *Protocol) swappingAction(r *Reservation) resource.Action {
	return func(
		infos []*resource.MemoryInfo,
		_ resource.Args,
	) resource.ActionResult {
		left, right := infos[0], infos[1]
		proto := entanglement.NewSwappingA(p.owner, p.physics, r.ID,
			left.Memory, right.Memory)

		return resource.ActionResult{
			Protocol:     proto,
			Destinations: []string{left.RemoteNode, right.RemoteNode},
			Selectors: []resource.Selector{
				resource.MatchFirst,
				resource.MatchFirst,
			},
			Args: []resource.Args{
				entanglement.MemoryArgs(entanglement.KindSwapping,
					r.ID, left.RemoteMemo),
				entanglement.MemoryArgs(entanglement.KindSwapping,
					r.ID, right.RemoteMemo),
			},
		}
	}
}

func (p *Protocol) swappingWaiterAction(r *Reservation) resource.Action {
	return func(
		infos []*resource.MemoryInfo,
		_ resource.Args,
	) resource.ActionResult {
		return waitForRequest(entanglement.NewSwappingB(
			p.owner, p.physics, r.ID, infos[0].Memory))
	}
}
