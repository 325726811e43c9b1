package entanglement

import (
	"math/rand"

	"github.com/sarchlab/qnet/sim"
)

// Physics draws the outcomes of entanglement operations.
type Physics struct {
	GenerationDelay   sim.VTimeInSec
	GenerationSuccess float64
	OperationDelay    sim.VTimeInSec
	SwapSuccess       float64
	SwapDegradation   float64

	rand *rand.Rand
}

// PhysicsBuilder builds Physics models.
type PhysicsBuilder struct {
	seed              int64
	generationDelay   sim.VTimeInSec
	generationSuccess float64
	operationDelay    sim.VTimeInSec
	swapSuccess       float64
	swapDegradation   float64
}

// MakePhysicsBuilder creates a builder of a lossless model.
func MakePhysicsBuilder() PhysicsBuilder {
	return PhysicsBuilder{
		seed:              1,
		generationDelay:   0.001,
		generationSuccess: 1,
		swapSuccess:       1,
		swapDegradation:   1,
	}
}

// WithSeed sets the seed of the random source.
func (b PhysicsBuilder) WithSeed(seed int64) PhysicsBuilder {
	b.seed = seed
	return b
}

// WithGenerationDelay sets how long a generation attempt takes.
func (b PhysicsBuilder) WithGenerationDelay(d sim.VTimeInSec) PhysicsBuilder {
	b.generationDelay = d
	return b
}

// WithGenerationSuccess sets the probability that a generation attempt
// succeeds.
func (b PhysicsBuilder) WithGenerationSuccess(p float64) PhysicsBuilder {
	b.generationSuccess = p
	return b
}

// WithOperationDelay sets how long purification and swapping take.
func (b PhysicsBuilder) WithOperationDelay(d sim.VTimeInSec) PhysicsBuilder {
	b.operationDelay = d
	return b
}

// WithSwapSuccess sets the probability that a swap succeeds.
func (b PhysicsBuilder) WithSwapSuccess(p float64) PhysicsBuilder {
	b.swapSuccess = p
	return b
}

// WithSwapDegradation sets the factor applied to the fidelity of a swapped
// pair.
func (b PhysicsBuilder) WithSwapDegradation(d float64) PhysicsBuilder {
	b.swapDegradation = d
	return b
}

// Build creates the model.
func (b PhysicsBuilder) Build() *Physics {
	return &Physics{
		GenerationDelay:   b.generationDelay,
		GenerationSuccess: b.generationSuccess,
		OperationDelay:    b.operationDelay,
		SwapSuccess:       b.swapSuccess,
		SwapDegradation:   b.swapDegradation,
		rand:              rand.New(rand.NewSource(b.seed)),
	}
}

// Generate reports whether a generation attempt succeeds.
func (p *Physics) Generate() bool {
	return p.rand.Float64() < p.GenerationSuccess
}

// Purify consumes a pair of fidelity f2 to improve a pair of fidelity f1.
// It returns whether the kept pair survives and its new fidelity.
func (p *Physics) Purify(f1, f2 float64) (bool, float64) {
	success := f1*f2 + (1-f1)*(1-f2)
	if p.rand.Float64() >= success {
		return false, 0
	}

	return true, f1 * f2 / success
}

// Swap joins two pairs into one. It returns whether the swap succeeds and
// the fidelity of the joined pair.
func (p *Physics) Swap(f1, f2 float64) (bool, float64) {
	if p.rand.Float64() >= p.SwapSuccess {
		return false, 0
	}

	return true, f1 * f2 * p.SwapDegradation
}
