// Package config loads simulation scenarios from YAML files.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidScenario is wrapped by every validation failure.
var ErrInvalidScenario = errors.New("invalid scenario")

// Scenario describes a network, its physics and the requests to run on it.
// Nil pointer fields mean "not set in YAML" and keep the builder defaults.
type Scenario struct {
	Seed     *int64          `yaml:"seed"`
	Physics  PhysicsConfig   `yaml:"physics"`
	Nodes    []NodeConfig    `yaml:"nodes"`
	Links    []LinkConfig    `yaml:"links"`
	Requests []RequestConfig `yaml:"requests"`
}

// PhysicsConfig holds the parameters of the stand-in physics.
type PhysicsConfig struct {
	GenerationDelay   *float64 `yaml:"generation_delay"`
	GenerationSuccess *float64 `yaml:"generation_success"`
	OperationDelay    *float64 `yaml:"operation_delay"`
	SwapSuccess       *float64 `yaml:"swap_success"`
	SwapDegradation   *float64 `yaml:"swap_degradation"`
}

// NodeConfig describes a quantum router.
type NodeConfig struct {
	Name          string   `yaml:"name"`
	MemorySize    *int     `yaml:"memory_size"`
	RawFidelity   *float64 `yaml:"raw_fidelity"`
	CoherenceTime *float64 `yaml:"coherence_time"`
}

// LinkConfig connects two nodes with a classical channel.
type LinkConfig struct {
	A     string  `yaml:"a"`
	B     string  `yaml:"b"`
	Delay float64 `yaml:"delay"`
}

// RequestConfig is a reservation pushed by an initiator at PushTime.
type RequestConfig struct {
	Initiator          string  `yaml:"initiator"`
	Responder          string  `yaml:"responder"`
	PushTime           float64 `yaml:"push_time"`
	Start              float64 `yaml:"start"`
	End                float64 `yaml:"end"`
	MemorySize         int     `yaml:"memory_size"`
	Fidelity           float64 `yaml:"fidelity"`
	EntanglementNumber int     `yaml:"entanglement_number"`
}

// Load reads, parses and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}

	return Parse(data)
}

// Parse parses and validates a scenario.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario

	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return &s, nil
}

// Validate checks node names, link endpoints and parameter ranges.
func (s *Scenario) Validate() error {
	if len(s.Nodes) == 0 {
		return fmt.Errorf("%w: no nodes", ErrInvalidScenario)
	}

	names := make(map[string]bool)
	for _, n := range s.Nodes {
		if err := n.validate(); err != nil {
			return err
		}

		if names[n.Name] {
			return fmt.Errorf("%w: duplicate node %q", ErrInvalidScenario, n.Name)
		}

		names[n.Name] = true
	}

	for _, l := range s.Links {
		if !names[l.A] || !names[l.B] {
			return fmt.Errorf("%w: link %s-%s names an unknown node",
				ErrInvalidScenario, l.A, l.B)
		}

		if l.A == l.B {
			return fmt.Errorf("%w: link %s-%s is a loop",
				ErrInvalidScenario, l.A, l.B)
		}

		if l.Delay <= 0 {
			return fmt.Errorf("%w: link %s-%s must have a positive delay, got %v",
				ErrInvalidScenario, l.A, l.B, l.Delay)
		}
	}

	for i, r := range s.Requests {
		if !names[r.Initiator] || !names[r.Responder] {
			return fmt.Errorf("%w: request %d names an unknown node",
				ErrInvalidScenario, i)
		}

		if r.PushTime < 0 {
			return fmt.Errorf("%w: request %d has a negative push_time",
				ErrInvalidScenario, i)
		}
	}

	return s.Physics.validate()
}

func (n NodeConfig) validate() error {
	if n.Name == "" {
		return fmt.Errorf("%w: node without a name", ErrInvalidScenario)
	}

	if n.MemorySize != nil && *n.MemorySize <= 0 {
		return fmt.Errorf("%w: node %s: memory_size must be positive, got %d",
			ErrInvalidScenario, n.Name, *n.MemorySize)
	}

	if n.RawFidelity != nil && !inUnitInterval(*n.RawFidelity) {
		return fmt.Errorf("%w: node %s: raw_fidelity must be in (0, 1], got %v",
			ErrInvalidScenario, n.Name, *n.RawFidelity)
	}

	if n.CoherenceTime != nil && *n.CoherenceTime < 0 {
		return fmt.Errorf("%w: node %s: coherence_time must be non-negative",
			ErrInvalidScenario, n.Name)
	}

	return nil
}

func (p PhysicsConfig) validate() error {
	delays := map[string]*float64{
		"generation_delay": p.GenerationDelay,
		"operation_delay":  p.OperationDelay,
	}
	for name, d := range delays {
		if d != nil && *d < 0 {
			return fmt.Errorf("%w: %s must be non-negative, got %v",
				ErrInvalidScenario, name, *d)
		}
	}

	probabilities := map[string]*float64{
		"generation_success": p.GenerationSuccess,
		"swap_success":       p.SwapSuccess,
		"swap_degradation":   p.SwapDegradation,
	}
	for name, v := range probabilities {
		if v != nil && !inUnitInterval(*v) {
			return fmt.Errorf("%w: %s must be in (0, 1], got %v",
				ErrInvalidScenario, name, *v)
		}
	}

	return nil
}

func inUnitInterval(v float64) bool {
	return v > 0 && v <= 1
}
