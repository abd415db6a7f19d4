// Package quantum produces the simulated quantum threat-detection results:
// a Grover's search measurement distribution and an entropy score.
package quantum

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"qsec/internal/models"
)

// Limits on the simulated register.
const (
	DefaultQubits = 3
	MaxQubits     = 10
)

const (
	algorithmName  = "Grover's Search"
	targetMass     = 0.90
	targetJitter   = 0.05
	backgroundLow  = 0.8
	backgroundHigh = 1.2
)

var (
	// ErrTooManyQubits is returned when the register exceeds the simulator limit.
	ErrTooManyQubits = errors.New("too many qubits for simulation")
	// ErrInvalidQubits is returned for a register smaller than one qubit.
	ErrInvalidQubits = errors.New("qubits must be at least 1")
	// ErrInvalidTarget is returned when the target is not an n-bit binary string.
	ErrInvalidTarget = errors.New("invalid target state")
)

// Engine simulates the output of an ideal Grover run with measurement noise.
type Engine struct {
	maxQubits int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewEngine returns an engine allowing up to maxQubits (MaxQubits when <= 0).
// A nil rng is seeded from the clock.
func NewEngine(maxQubits int, rng *rand.Rand) *Engine {
	if maxQubits <= 0 {
		maxQubits = MaxQubits
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x2545f4914f6cdd1d))
	}
	return &Engine{maxQubits: maxQubits, rng: rng}
}

// MaxQubits returns the configured register limit.
func (e *Engine) MaxQubits() int {
	return e.maxQubits
}

// Grover searches a space of 2^qubits states for target (a random state when
// empty). The target keeps roughly 90% of the probability mass; the rest is
// spread with ±20% noise and the distribution is normalized to sum to 1.
func (e *Engine) Grover(qubits int, target string) (*models.GroverResult, error) {
	if qubits < 1 {
		return nil, ErrInvalidQubits
	}
	if qubits > e.maxQubits {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyQubits, qubits, e.maxQubits)
	}
	size := 1 << qubits

	e.mu.Lock()
	defer e.mu.Unlock()

	if target == "" {
		target = formatState(e.rng.IntN(size), qubits)
	} else if !validState(target, qubits) {
		return nil, fmt.Errorf("%w: %q is not a %d-bit state", ErrInvalidTarget, target, qubits)
	}

	probs := make(map[string]float64, size)
	var total float64
	for i := 0; i < size; i++ {
		state := formatState(i, qubits)
		var p float64
		if state == target {
			p = targetMass + e.uniform(-targetJitter, targetJitter)
		} else {
			p = (1 - targetMass) / float64(size-1) * e.uniform(backgroundLow, backgroundHigh)
		}
		probs[state] = p
		total += p
	}
	for state := range probs {
		probs[state] /= total
	}

	return &models.GroverResult{
		Algorithm:             algorithmName,
		Qubits:                qubits,
		SearchSpaceSize:       size,
		TargetThreatSignature: target,
		Iterations:            Iterations(size),
		MeasurementResults:    probs,
		CollapsedState:        target,
	}, nil
}

// Entropy returns a risk factor drawn uniformly from [0, 1).
func (e *Engine) Entropy() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Float64()
}

// Iterations is the optimal Grover iteration count for a space of size n.
func Iterations(n int) int {
	return int(math.Floor(math.Pi / 4 * math.Sqrt(float64(n))))
}

func (e *Engine) uniform(lo, hi float64) float64 {
	return lo + e.rng.Float64()*(hi-lo)
}

func formatState(i, width int) string {
	s := strconv.FormatInt(int64(i), 2)
	for len(s) < width {
		s = "0" + s
	}
	return s
}

func validState(s string, width int) bool {
	if len(s) != width {
		return false
	}
	for _, r := range s {
		if r != '0' && r != '1' {
			return false
		}
	}
	return true
}
