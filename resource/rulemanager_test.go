package resource

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("RuleManager", func() {
	var rm *RuleManager

	BeforeEach(func() {
		rm = NewRuleManager()
	})

	It("should keep rules sorted by priority", func() {
		r10 := NewRule(10, fakeAction("a"), rawCondition, nil, nil)
		r1 := NewRule(1, fakeAction("a"), rawCondition, nil, nil)
		r5 := NewRule(5, fakeAction("a"), rawCondition, nil, nil)

		Expect(rm.Load(r10)).To(BeTrue())
		Expect(rm.Load(r1)).To(BeTrue())
		Expect(rm.Load(r5)).To(BeTrue())

		Expect(rm.Rules()).To(Equal([]*Rule{r1, r5, r10}))
	})

	It("should keep load order among equal priorities", func() {
		first := NewRule(3, fakeAction("a"), rawCondition, nil, nil)
		second := NewRule(3, fakeAction("a"), rawCondition, nil, nil)
		low := NewRule(1, fakeAction("a"), rawCondition, nil, nil)

		rm.Load(first)
		rm.Load(low)
		rm.Load(second)

		Expect(rm.Len()).To(Equal(3))
		Expect(rm.At(0)).To(BeIdenticalTo(low))
		Expect(rm.At(1)).To(BeIdenticalTo(first))
		Expect(rm.At(2)).To(BeIdenticalTo(second))
	})

	It("should return in-flight protocols on expire", func() {
		r := NewRule(1, fakeAction("a"), rawCondition, nil, nil)
		rm.Load(r)
		p := &fakeProtocol{name: "p"}
		r.protocols = append(r.protocols, p)

		Expect(rm.Expire(r)).To(Equal([]Protocol{p}))
		Expect(rm.Len()).To(BeZero())
		Expect(r.Protocols()).To(BeEmpty())
	})

	It("should return nothing when expiring an unknown rule", func() {
		r := NewRule(1, fakeAction("a"), rawCondition, nil, nil)

		Expect(rm.Expire(r)).To(BeNil())
	})

	It("should refuse to evaluate a rule that is not loaded", func() {
		r := NewRule(1, fakeAction("a"), rawCondition, nil, nil)

		Expect(func() { r.IsValid(&MemoryInfo{}) }).To(Panic())
	})
})
