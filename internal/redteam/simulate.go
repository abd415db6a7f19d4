package redteam

import (
	"fmt"
	"strings"

	"qsec/internal/models"
)

// SuccessProbability is reported for every simulated attack.
const SuccessProbability = 0.85

const unknownOutcome = "Unknown attack type"

var outcomes = map[models.AttackType]string{
	models.AttackSQLInjection: "Vulnerability Found: Input field 'username' not sanitized.",
	models.AttackDDoS:         "Stress Test: Server latency increased by 400ms.",
	models.AttackBruteForce:   "Weak Password Found: '123456' for user 'root'.",
}

// LogSink receives the detection entry a simulated attack leaves behind.
// *blueteam.Monitor satisfies it.
type LogSink interface {
	Inject(level, source, message string) models.LogEntry
}

// Simulator runs canned attacks and reports them to the blue-team feed.
type Simulator struct {
	sink LogSink
}

// NewSimulator returns a simulator that reports to sink (may be nil).
func NewSimulator(sink LogSink) *Simulator {
	return &Simulator{sink: sink}
}

// Simulate returns the canned outcome for attack and injects a CRITICAL
// RED_TEAM_OPS detection into the sink. Unknown attack types are reported
// too, with a generic outcome.
func (s *Simulator) Simulate(attack models.AttackType) models.SimulationResult {
	outcome, ok := outcomes[attack]
	if !ok {
		outcome = unknownOutcome
	}
	if s.sink != nil {
		message := fmt.Sprintf("Attack Detected: %s - %s", strings.ToUpper(string(attack)), outcome)
		s.sink.Inject(models.LevelCritical, models.SourceRedTeamOps, message)
	}
	return models.SimulationResult{
		Attack:             attack,
		Result:             outcome,
		SuccessProbability: SuccessProbability,
	}
}

// Known reports whether attack has a canned outcome.
func Known(attack models.AttackType) bool {
	_, ok := outcomes[attack]
	return ok
}
