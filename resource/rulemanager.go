package resource

import "sort"

// RuleManager keeps the rules of a node sorted by priority. Rules of equal
// priority keep the order in which they were loaded.
type RuleManager struct {
	rules   []*Rule
	manager *Manager
}

// NewRuleManager creates an empty RuleManager.
func NewRuleManager() *RuleManager {
	return &RuleManager{}
}

// SetManager sets the resource manager that evaluates the rules.
func (rm *RuleManager) SetManager(m *Manager) {
	rm.manager = m
}

// Load inserts a rule.
func (rm *RuleManager) Load(rule *Rule) bool {
	idx := sort.Search(len(rm.rules), func(i int) bool {
		return rm.rules[i].Priority > rule.Priority
	})

	rm.rules = append(rm.rules, nil)
	copy(rm.rules[idx+1:], rm.rules[idx:])
	rm.rules[idx] = rule
	rule.manager = rm.manager

	return true
}

// Expire removes a rule and returns the protocols it still had in flight.
// Expiring a rule that is not loaded returns nothing.
func (rm *RuleManager) Expire(rule *Rule) []Protocol {
	for i, r := range rm.rules {
		if r != rule {
			continue
		}

		rm.rules = append(rm.rules[:i], rm.rules[i+1:]...)

		protocols := rule.protocols
		rule.protocols = nil

		return protocols
	}

	return nil
}

// Len returns the number of rules.
func (rm *RuleManager) Len() int {
	return len(rm.rules)
}

// At returns the i-th rule in priority order.
func (rm *RuleManager) At(i int) *Rule {
	return rm.rules[i]
}

// Rules returns the rules in priority order.
func (rm *RuleManager) Rules() []*Rule {
	return rm.rules
}
