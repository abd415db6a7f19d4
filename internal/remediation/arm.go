package remediation

import "sync/atomic"

// ArmState is the state of the auto-remediation switch.
type ArmState int

const (
	Disarmed ArmState = iota
	Armed
)

func (s ArmState) String() string {
	if s == Armed {
		return "ARMED"
	}
	return "DISARMED"
}

// Arm is the operator-controlled auto-remediation switch. It starts disarmed
// and only changes through Toggle or Set; nothing disarms it automatically.
type Arm struct {
	armed atomic.Bool
}

// Toggle flips the switch and returns the new state.
func (a *Arm) Toggle() ArmState {
	for {
		cur := a.armed.Load()
		if a.armed.CompareAndSwap(cur, !cur) {
			return stateOf(!cur)
		}
	}
}

// Set forces the switch into the given state.
func (a *Arm) Set(state ArmState) {
	a.armed.Store(state == Armed)
}

// State returns the current state.
func (a *Arm) State() ArmState {
	return stateOf(a.armed.Load())
}

// IsArmed reports whether auto-remediation may fire.
func (a *Arm) IsArmed() bool {
	return a.armed.Load()
}

func stateOf(armed bool) ArmState {
	if armed {
		return Armed
	}
	return Disarmed
}
