package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/qnet/config"
	"github.com/sarchlab/qnet/sim"
)

const lineScenario = `
seed: 7
physics:
  generation_delay: 0.1
  swap_degradation: 1
nodes:
  - name: a
    memory_size: 6
    raw_fidelity: 0.95
  - name: b
    memory_size: 12
    raw_fidelity: 0.95
  - name: c
    memory_size: 6
    raw_fidelity: 0.95
links:
  - {a: a, b: b, delay: 0.01}
  - {a: b, b: c, delay: 0.01}
requests:
  - initiator: a
    responder: c
    push_time: 0
    start: 1
    end: 4
    memory_size: 3
    fidelity: 0.9
    entanglement_number: 1
`

var _ = Describe("Scenario", func() {
	It("should parse a scenario", func() {
		s, err := config.Parse([]byte(lineScenario))

		Expect(err).NotTo(HaveOccurred())
		Expect(*s.Seed).To(Equal(int64(7)))
		Expect(s.Nodes).To(HaveLen(3))
		Expect(*s.Nodes[1].MemorySize).To(Equal(12))
		Expect(s.Nodes[1].CoherenceTime).To(BeNil())
		Expect(s.Links[1].Delay).To(Equal(0.01))
		Expect(s.Requests[0].Responder).To(Equal("c"))
		Expect(*s.Physics.GenerationDelay).To(Equal(0.1))
		Expect(s.Physics.SwapSuccess).To(BeNil())
	})

	It("should load a scenario from a file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "scenario.yaml")
		Expect(os.WriteFile(path, []byte(lineScenario), 0o600)).To(Succeed())

		s, err := config.Load(path)

		Expect(err).NotTo(HaveOccurred())
		Expect(s.Nodes[0].Name).To(Equal("a"))
	})

	It("should report missing files", func() {
		_, err := config.Load(filepath.Join(GinkgoT().TempDir(), "none.yaml"))

		Expect(err).To(MatchError(ContainSubstring("reading scenario")))
	})

	It("should report malformed YAML", func() {
		_, err := config.Parse([]byte("nodes: ["))

		Expect(err).To(MatchError(ContainSubstring("parsing scenario")))
	})

	DescribeTable("invalid scenarios",
		func(doc string) {
			_, err := config.Parse([]byte(doc))

			Expect(err).To(MatchError(config.ErrInvalidScenario))
		},
		Entry("no nodes", `nodes: []`),
		Entry("duplicate node", `
nodes: [{name: a}, {name: a}]`),
		Entry("unnamed node", `
nodes: [{memory_size: 2}]`),
		Entry("zero memories", `
nodes: [{name: a, memory_size: 0}]`),
		Entry("fidelity above one", `
nodes: [{name: a, raw_fidelity: 1.5}]`),
		Entry("zero link delay", `
nodes: [{name: a}, {name: b}]
links: [{a: a, b: b, delay: 0}]`),
		Entry("unknown link endpoint", `
nodes: [{name: a}]
links: [{a: a, b: x, delay: 1}]`),
		Entry("loop link", `
nodes: [{name: a}]
links: [{a: a, b: a, delay: 1}]`),
		Entry("unknown requester", `
nodes: [{name: a}]
requests: [{initiator: x, responder: a}]`),
		Entry("swap success of zero", `
nodes: [{name: a}]
physics: {swap_success: 0}`),
		Entry("negative generation delay", `
nodes: [{name: a}]
physics: {generation_delay: -1}`),
	)

	Context("when built", func() {
		It("should assemble routers with the configured memories", func() {
			s, err := config.Parse([]byte(lineScenario))
			Expect(err).NotTo(HaveOccurred())

			simulation, err := s.Build(sim.NewSerialEngine(), nil)

			Expect(err).NotTo(HaveOccurred())
			Expect(simulation.Routers).To(HaveLen(3))
			Expect(simulation.Router("b").MemoryArray().Len()).To(Equal(12))
			Expect(simulation.Router("x")).To(BeNil())
			Expect(simulation.Router("a").NextHop("c")).To(Equal("b"))
		})

		It("should run the requests", func() {
			s, err := config.Parse([]byte(lineScenario))
			Expect(err).NotTo(HaveOccurred())

			seed := int64(3)
			simulation, err := s.Build(sim.NewSerialEngine(), &seed)
			Expect(err).NotTo(HaveOccurred())

			Expect(simulation.Engine.Run()).To(Succeed())

			results := simulation.Apps["a"].Results()
			Expect(results).To(HaveLen(1))
			Expect(results[0].Approved).To(BeTrue())
			Expect(simulation.Apps["a"].Deliveries()).NotTo(BeEmpty())
			Expect(simulation.Apps["c"].Deliveries()).NotTo(BeEmpty())
		})
	})
})
