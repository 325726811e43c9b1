package reservation

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/qnet/resource"
	"github.com/sarchlab/qnet/sim"
)

var _ = Describe("Protocol", func() {
	var (
		f       *fabric
		a, b, c *fakeOwner
	)

	BeforeEach(func() {
		f = newFabric(map[string]int{"a": 10, "b": 10, "c": 5},
			"a", "b", "c")
		a, b, c = f.nodes["a"], f.nodes["b"], f.nodes["c"]
	})

	Context("when scheduling", func() {
		It("should hold memory size cards on an endpoint", func() {
			r := mustReservation(1, 10)
			r.MemorySize = 3

			Expect(a.protocol.Schedule(r)).To(BeTrue())

			Expect(a.reservedCards()).To(Equal(3))
			Expect(a.protocol.Scheduled(r)).To(Equal([]int{0, 1, 2}))
		})

		It("should hold twice the memory size on an intermediate node", func() {
			r := mustReservation(1, 10)
			r.MemorySize = 4

			Expect(b.protocol.Schedule(r)).To(BeTrue())

			Expect(b.reservedCards()).To(Equal(8))
		})

		It("should hold nothing when it cannot fit", func() {
			r := mustReservation(1, 10)
			r.MemorySize = 6

			Expect(b.protocol.Schedule(r)).To(BeFalse())

			Expect(b.reservedCards()).To(BeZero())
			Expect(b.protocol.Scheduled(r)).To(BeEmpty())
		})

		It("should fill the first free cards", func() {
			first := mustReservation(1, 10)
			first.MemorySize = 2
			second := mustReservation(5, 15)
			second.MemorySize = 2

			Expect(a.protocol.Schedule(first)).To(BeTrue())
			Expect(a.protocol.Schedule(second)).To(BeTrue())

			Expect(a.protocol.Scheduled(second)).To(Equal([]int{2, 3}))
			for _, card := range a.protocol.TimeCards() {
				Expect(cardIsOrdered(card)).To(BeTrue())
			}
		})
	})

	Context("when pushing", func() {
		It("should refuse invalid requests", func() {
			r, err := a.protocol.Push("c", 10, 1, 5, 0.9, 1, 0)

			Expect(err).To(MatchError(ErrInvalidInterval))
			Expect(r).To(BeNil())
			Expect(f.queue).To(BeEmpty())
		})

		It("should reject at once when the initiator is full", func() {
			r, err := c.protocol.Push("a", 1, 10, 6, 0.9, 1, 0)

			Expect(err).NotTo(HaveOccurred())
			Expect(c.results).To(Equal([]bool{false}))
			Expect(r.Path).To(BeEmpty())
			Expect(f.queue).To(BeEmpty())
		})

		It("should reject when the responder is unreachable", func() {
			_, err := a.protocol.Push("z", 1, 10, 1, 0.9, 1, 0)

			Expect(err).NotTo(HaveOccurred())
			Expect(a.results).To(Equal([]bool{false}))
			Expect(a.reservedCards()).To(BeZero())
		})
	})

	Context("with two endpoints and one intermediate node", func() {
		var r *Reservation

		BeforeEach(func() {
			var err error
			r, err = a.protocol.Push("c", 1, 10, 5, 0.9, 1, 0)
			Expect(err).NotTo(HaveOccurred())

			f.deliverReservations()
		})

		It("should approve along a three hop path", func() {
			Expect(a.results).To(Equal([]bool{true}))
			Expect(c.others).To(Equal([]*Reservation{r}))
			Expect(r.Path).To(Equal([]string{"a", "b", "c"}))

			Expect(a.reservedCards()).To(Equal(5))
			Expect(b.reservedCards()).To(Equal(10))
			Expect(c.reservedCards()).To(Equal(5))

			for _, o := range []*fakeOwner{a, b, c} {
				Expect(o.protocol.Accepted()).To(Equal([]*Reservation{r}))
			}
		})

		It("should reject an overlapping request without leaks", func() {
			r2, err := a.protocol.Push("c", 5, 15, 5, 0.9, 1, 0)
			Expect(err).NotTo(HaveOccurred())

			f.deliverReservations()

			Expect(a.results).To(Equal([]bool{true, false}))
			Expect(a.reservedCards()).To(Equal(5))
			Expect(b.reservedCards()).To(Equal(10))
			Expect(c.reservedCards()).To(Equal(5))
			Expect(a.protocol.Scheduled(r2)).To(BeEmpty())
		})

		It("should load rules for the interval only", func() {
			counts := map[string]int{}
			f.engine.Schedule(sim.NewCallbackEvent(5, "probe", func() {
				for name, o := range f.nodes {
					counts[name] = o.rm.RuleManager().Len()
				}
			}))

			Expect(f.engine.Run()).To(Succeed())

			Expect(counts).To(Equal(map[string]int{"a": 4, "b": 6, "c": 4}))

			for _, o := range []*fakeOwner{a, b, c} {
				Expect(o.rm.RuleManager().Len()).To(BeZero())
				Expect(o.reservedCards()).To(BeZero())
				Expect(o.protocol.Accepted()).To(BeEmpty())

				for _, info := range o.rm.MemoryManager().Infos() {
					Expect(info.State).To(Equal(resource.StateRaw))
					Expect(info.Memory.IsOwnedByArray()).To(BeTrue())
				}
			}
		})

		It("should occupy the reserved memories once the rules load", func() {
			occupied := map[string]int{}
			f.engine.Schedule(sim.NewCallbackEvent(5, "probe", func() {
				for name, o := range f.nodes {
					for _, info := range o.rm.MemoryManager().Infos() {
						if info.State == resource.StateOccupied {
							occupied[name]++
						}
					}
				}
			}))

			Expect(f.engine.Run()).To(Succeed())

			Expect(occupied).To(Equal(map[string]int{"a": 5, "b": 10, "c": 5}))
		})
	})

	Context("when a node in the middle is full", func() {
		BeforeEach(func() {
			f = newFabric(map[string]int{"a": 10, "b": 4, "c": 10},
				"a", "b", "c")
			a, b, c = f.nodes["a"], f.nodes["b"], f.nodes["c"]
		})

		It("should roll back every node", func() {
			_, err := a.protocol.Push("c", 1, 10, 3, 0.9, 1, 0)
			Expect(err).NotTo(HaveOccurred())

			Expect(a.reservedCards()).To(Equal(3))
			f.deliverReservations()

			Expect(a.results).To(Equal([]bool{false}))
			Expect(a.reservedCards()).To(BeZero())
			Expect(b.reservedCards()).To(BeZero())
			Expect(c.reservedCards()).To(BeZero())
			Expect(c.others).To(BeEmpty())
		})
	})

	Context("when the responder is full", func() {
		BeforeEach(func() {
			f = newFabric(map[string]int{"a": 10, "b": 10, "c": 2},
				"a", "b", "c")
			a, b, c = f.nodes["a"], f.nodes["b"], f.nodes["c"]
		})

		It("should roll back every node", func() {
			_, err := a.protocol.Push("c", 1, 10, 3, 0.9, 1, 0)
			Expect(err).NotTo(HaveOccurred())

			f.deliverReservations()

			Expect(a.results).To(Equal([]bool{false}))
			Expect(a.reservedCards()).To(BeZero())
			Expect(b.reservedCards()).To(BeZero())
			Expect(c.reservedCards()).To(BeZero())
		})
	})
})
