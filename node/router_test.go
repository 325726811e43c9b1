package node_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/qnet/app"
	"github.com/sarchlab/qnet/entanglement"
	"github.com/sarchlab/qnet/network"
	"github.com/sarchlab/qnet/node"
	"github.com/sarchlab/qnet/reservation"
	"github.com/sarchlab/qnet/resource"
	"github.com/sarchlab/qnet/sim"
)

type unknownMsg struct {
	network.MsgMeta
}

var _ = Describe("QuantumRouter", func() {
	var (
		engine  *sim.SerialEngine
		net     *network.Network
		routers map[string]*node.QuantumRouter
		apps    map[string]*app.RequestApp
	)

	BeforeEach(func() {
		engine = sim.NewSerialEngine()
		net = network.NewNetwork(engine)
		physics := entanglement.MakePhysicsBuilder().
			WithSeed(42).
			WithGenerationDelay(0.1).
			Build()

		routers = make(map[string]*node.QuantumRouter)
		apps = make(map[string]*app.RequestApp)
		for _, name := range []string{"a", "b", "c"} {
			r := node.MakeBuilder().
				WithEngine(engine).
				WithNetwork(net).
				WithPhysics(physics).
				WithMemorySize(10).
				WithRawFidelity(0.85).
				Build(name)
			a := app.NewRequestApp(r)
			r.SetApp(a)

			routers[name] = r
			apps[name] = a
		}

		net.Connect("a", "b", 0.1)
		net.Connect("b", "c", 0.1)
	})

	It("should route toward the responder", func() {
		Expect(routers["a"].NextHop("c")).To(Equal("b"))
		Expect(routers["c"].NextHop("a")).To(Equal("b"))
		Expect(routers["b"].NextHop("c")).To(Equal("c"))
	})

	It("should refuse messages it does not understand", func() {
		Expect(func() {
			routers["a"].ReceiveMessage("b", &unknownMsg{})
		}).To(Panic())
	})

	It("should drop results for finished protocols", func() {
		msg := &entanglement.Message{Type: entanglement.MsgGeneration}
		msg.Receiver = "EG.gone"

		Expect(func() {
			routers["a"].ReceiveMessage("b", msg)
		}).NotTo(Panic())
	})

	Context("with two endpoints and one intermediate node", func() {
		It("should admit the request and deliver entanglement", func() {
			Expect(apps["a"].Start("c", 1, 10, 5, 0.9, 1)).To(Succeed())

			var rules []int
			engine.Schedule(sim.NewCallbackEvent(5, "probe", func() {
				for _, name := range []string{"a", "b", "c"} {
					rm := routers[name].ResourceManager()
					rules = append(rules, rm.RuleManager().Len())
				}
			}))

			Expect(engine.Run()).To(Succeed())

			results := apps["a"].Results()
			Expect(results).To(HaveLen(1))
			Expect(results[0].Approved).To(BeTrue())

			r := results[0].Reservation
			Expect(r.Path).To(Equal([]string{"a", "b", "c"}))
			Expect(rules).To(Equal([]int{4, 6, 4}))

			Expect(apps["a"].Delivered(r)).To(BeNumerically(">", 0))
			Expect(apps["c"].Delivered(r)).To(BeNumerically(">", 0))
			for _, d := range apps["a"].Deliveries() {
				Expect(d.Fidelity).To(BeNumerically(">=", 0.9))
				Expect(d.Time).To(BeNumerically(">=", 1))
				Expect(d.Time).To(BeNumerically("<", 10))
			}

			for _, name := range []string{"a", "b", "c"} {
				rm := routers[name].ResourceManager()
				Expect(rm.RuleManager().Len()).To(BeZero())
				Expect(rm.Protocols()).To(BeEmpty())
				Expect(rm.PendingProtocols()).To(BeEmpty())
				Expect(rm.WaitingProtocols()).To(BeEmpty())

				for _, info := range rm.MemoryManager().Infos() {
					Expect(info.State).To(Equal(resource.StateRaw))
				}

				rsvp := routers[name].ReservationProtocol()
				Expect(rsvp.Accepted()).To(BeEmpty())
				for _, card := range rsvp.TimeCards() {
					Expect(card.Len()).To(BeZero())
				}
			}
		})

		It("should reject a second request on the same interval", func() {
			Expect(apps["a"].Start("c", 1, 10, 5, 0.9, 1)).To(Succeed())
			Expect(apps["a"].Start("c", 1, 10, 5, 0.9, 1)).To(Succeed())

			var results []app.Result
			counts := map[string]int{}
			engine.Schedule(sim.NewCallbackEvent(0.5, "probe", func() {
				results = append(results, apps["a"].Results()...)
				for name, r := range routers {
					for _, card := range r.ReservationProtocol().TimeCards() {
						counts[name] += card.Len()
					}
				}
			}))
			Expect(engine.Run()).To(Succeed())

			Expect(results).To(HaveLen(2))

			approved := 0
			for _, res := range results {
				if res.Approved {
					approved++
				}
			}
			Expect(approved).To(Equal(1))

			Expect(counts).To(Equal(map[string]int{"a": 5, "b": 10, "c": 5}))
		})
	})

	It("should report an invalid request", func() {
		err := apps["a"].Start("c", 5, 1, 5, 0.9, 1)

		Expect(err).To(MatchError(reservation.ErrInvalidInterval))
	})
})
