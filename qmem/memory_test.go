package qmem

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/qnet/sim"
)

type countingObserver struct {
	expired []*Memory
}

func (o *countingObserver) MemoryExpired(m *Memory) {
	o.expired = append(o.expired, m)
}

var _ = Describe("Memory", func() {
	var (
		engine *sim.SerialEngine
		array  *Array
	)

	BeforeEach(func() {
		engine = sim.NewSerialEngine()
		array = MakeBuilder().
			WithEngine(engine).
			WithSize(3).
			WithRawFidelity(0.9).
			Build("n1.memo")
	})

	It("should build named memories owned by the array", func() {
		Expect(array.Len()).To(Equal(3))
		for i, m := range array.Memories() {
			Expect(m.Index()).To(Equal(i))
			Expect(m.IsOwnedByArray()).To(BeTrue())
			Expect(m.EntangleTime()).To(Equal(sim.VTimeInSec(-1)))
			Expect(m.RawFidelity).To(Equal(0.9))
		}

		m, found := array.MemoryByName("n1.memo[2]")
		Expect(found).To(BeTrue())
		Expect(m).To(BeIdenticalTo(array.At(2)))
	})

	It("should move ownership and count checkouts", func() {
		m := array.At(0)
		o := &countingObserver{}

		Expect(m.Detach(array)).To(BeTrue())
		m.Attach(o)

		Expect(m.Owner()).To(BeIdenticalTo(o))
		Expect(m.Generation()).To(Equal(uint64(1)))

		Expect(m.Detach(array)).To(BeFalse())
		Expect(m.Detach(o)).To(BeTrue())
		m.Attach(array)

		Expect(m.Observers()).To(HaveLen(1))
		Expect(m.Generation()).To(Equal(uint64(1)))
	})

	It("should refuse a second owner", func() {
		m := array.At(0)

		Expect(func() { m.Attach(&countingObserver{}) }).To(Panic())
	})

	It("should reset entanglement", func() {
		m := array.At(1)
		m.SetEntangled(EntangledMemory{Node: "n2", Memo: "n2.memo[0]"}, 0.9, 5)

		Expect(m.Entangled().IsSet()).To(BeTrue())
		Expect(m.Fidelity()).To(Equal(0.9))

		m.Reset()

		Expect(m.Entangled().IsSet()).To(BeFalse())
		Expect(m.Fidelity()).To(BeZero())
		Expect(m.EntangleTime()).To(Equal(sim.VTimeInSec(-1)))
	})

	It("should expire entanglement after the coherence time", func() {
		listener := &countingObserver{}
		array.SetListener(listener)
		m := array.At(0)
		m.CoherenceTime = 2

		m.SetEntangled(EntangledMemory{Node: "n2", Memo: "n2.memo[0]"}, 0.9, 0)
		Expect(engine.Run()).To(Succeed())

		Expect(listener.expired).To(ConsistOf(m))
		Expect(m.Fidelity()).To(BeZero())
	})

	It("should not expire entanglement that was replaced", func() {
		listener := &countingObserver{}
		array.SetListener(listener)
		m := array.At(0)
		m.CoherenceTime = 2

		m.SetEntangled(EntangledMemory{Node: "n2", Memo: "n2.memo[0]"}, 0.9, 0)
		engine.Schedule(sim.NewCallbackEvent(1, "replace", func() {
			m.Reset()
		}))
		Expect(engine.Run()).To(Succeed())

		Expect(listener.expired).To(BeEmpty())
	})
})
