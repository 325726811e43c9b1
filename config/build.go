package config

import (
	"fmt"

	"github.com/sarchlab/qnet/app"
	"github.com/sarchlab/qnet/entanglement"
	"github.com/sarchlab/qnet/network"
	"github.com/sarchlab/qnet/node"
	"github.com/sarchlab/qnet/sim"
	"github.com/sirupsen/logrus"
)

// Simulation is a scenario assembled on an engine.
type Simulation struct {
	Engine  sim.Engine
	Network *network.Network
	Physics *entanglement.Physics
	Routers []*node.QuantumRouter
	Apps    map[string]*app.RequestApp
}

// Router returns the router with the given name, or nil.
func (s *Simulation) Router(name string) *node.QuantumRouter {
	for _, r := range s.Routers {
		if r.Name() == name {
			return r
		}
	}

	return nil
}

// Build creates the routers, links and request events of the scenario on
// engine. A non-nil seed overrides the one in the scenario.
func (s *Scenario) Build(engine sim.Engine, seed *int64) (*Simulation, error) {
	if seed == nil {
		seed = s.Seed
	}

	physics := s.Physics.builder(seed).Build()
	simulation := &Simulation{
		Engine:  engine,
		Network: network.NewNetwork(engine),
		Physics: physics,
		Apps:    make(map[string]*app.RequestApp),
	}

	for _, n := range s.Nodes {
		r := n.builder().
			WithEngine(engine).
			WithNetwork(simulation.Network).
			WithPhysics(physics).
			Build(n.Name)

		a := app.NewRequestApp(r)
		r.SetApp(a)

		simulation.Routers = append(simulation.Routers, r)
		simulation.Apps[n.Name] = a
	}

	for _, l := range s.Links {
		simulation.Network.Connect(l.A, l.B, sim.VTimeInSec(l.Delay))
	}

	for i, req := range s.Requests {
		if err := simulation.schedulePush(i, req); err != nil {
			return nil, err
		}
	}

	return simulation, nil
}

func (s *Simulation) schedulePush(i int, req RequestConfig) error {
	a, found := s.Apps[req.Initiator]
	if !found {
		return fmt.Errorf("%w: request %d names an unknown node",
			ErrInvalidScenario, i)
	}

	evt := sim.NewCallbackEvent(
		sim.VTimeInSec(req.PushTime),
		fmt.Sprintf("request-%d", i),
		func() {
			err := a.Start(req.Responder,
				sim.VTimeInSec(req.Start), sim.VTimeInSec(req.End),
				req.MemorySize, req.Fidelity, req.EntanglementNumber)
			if err != nil {
				logrus.WithError(err).
					WithField("request", i).
					Error("request rejected before admission")
			}
		})
	s.Engine.Schedule(evt)

	return nil
}

func (p PhysicsConfig) builder(seed *int64) entanglement.PhysicsBuilder {
	b := entanglement.MakePhysicsBuilder()

	if seed != nil {
		b = b.WithSeed(*seed)
	}

	if p.GenerationDelay != nil {
		b = b.WithGenerationDelay(sim.VTimeInSec(*p.GenerationDelay))
	}

	if p.GenerationSuccess != nil {
		b = b.WithGenerationSuccess(*p.GenerationSuccess)
	}

	if p.OperationDelay != nil {
		b = b.WithOperationDelay(sim.VTimeInSec(*p.OperationDelay))
	}

	if p.SwapSuccess != nil {
		b = b.WithSwapSuccess(*p.SwapSuccess)
	}

	if p.SwapDegradation != nil {
		b = b.WithSwapDegradation(*p.SwapDegradation)
	}

	return b
}

func (n NodeConfig) builder() node.Builder {
	b := node.MakeBuilder()

	if n.MemorySize != nil {
		b = b.WithMemorySize(*n.MemorySize)
	}

	if n.RawFidelity != nil {
		b = b.WithRawFidelity(*n.RawFidelity)
	}

	if n.CoherenceTime != nil {
		b = b.WithCoherenceTime(sim.VTimeInSec(*n.CoherenceTime))
	}

	return b
}
