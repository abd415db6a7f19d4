package remediation

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"qsec/internal/models"
	"qsec/internal/utils"
)

// Remediator issues a remediation request for an attack type.
type Remediator interface {
	Remediate(ctx context.Context, attack models.AttackType) (*models.RemediationAck, error)
}

// Trigger inspects the newest log entry of a poll tick and, while armed, asks
// the Remediator to answer red-team CRITICAL events.
type Trigger struct {
	arm        *Arm
	classifier *Classifier
	remediator Remediator
	log        *utils.Logger

	// Dedupe suppresses a second request for an entry identical to the last one fired on.
	Dedupe bool

	mu      sync.Mutex
	lastKey string
	fired   uint64
}

// NewTrigger wires a trigger. A nil classifier selects DefaultRules.
func NewTrigger(arm *Arm, classifier *Classifier, remediator Remediator, log *utils.Logger) *Trigger {
	if arm == nil {
		arm = &Arm{}
	}
	if classifier == nil {
		classifier = NewClassifier(nil)
	}
	return &Trigger{arm: arm, classifier: classifier, remediator: remediator, log: log}
}

// Arm exposes the switch gating this trigger.
func (t *Trigger) Arm() *Arm {
	return t.arm
}

// Decide reports which attack type entry would be remediated as, ignoring the
// arm state. Only CRITICAL entries from RED_TEAM_OPS are eligible.
func (t *Trigger) Decide(entry models.LogEntry) (models.AttackType, bool) {
	if entry.Level != models.LevelCritical || entry.Source != models.SourceRedTeamOps {
		return "", false
	}
	return t.classifier.Classify(entry.Message)
}

// Handle evaluates entry and, when armed and eligible, issues exactly one
// remediation request. The request outcome is logged and otherwise ignored.
// It returns the attack type requested and whether a request was issued.
func (t *Trigger) Handle(ctx context.Context, entry models.LogEntry) (models.AttackType, bool) {
	if !t.arm.IsArmed() {
		return "", false
	}
	attack, ok := t.Decide(entry)
	if !ok {
		return "", false
	}
	if t.Dedupe && !t.markFresh(entry) {
		t.log.Writef("Auto-remediation skipped duplicate %s entry at %.3f", attack, entry.Timestamp)
		return "", false
	}
	t.mu.Lock()
	t.fired++
	t.mu.Unlock()
	if t.remediator == nil {
		return attack, true
	}
	ack, err := t.remediator.Remediate(ctx, attack)
	if err != nil {
		t.log.Writef("Auto-remediation request for %s failed: %v", attack, err)
		return attack, true
	}
	if ack != nil {
		t.log.Writef("Auto-remediation requested for %s: %s", attack, ack.Action)
	}
	return attack, true
}

// Fired returns how many remediation requests have been issued.
func (t *Trigger) Fired() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired
}

func (t *Trigger) markFresh(entry models.LogEntry) bool {
	key := entryKey(entry)
	t.mu.Lock()
	defer t.mu.Unlock()
	if key == t.lastKey {
		return false
	}
	t.lastKey = key
	return true
}

func entryKey(entry models.LogEntry) string {
	return fmt.Sprintf("%s|%s|%s", strconv.FormatFloat(entry.Timestamp, 'f', -1, 64), entry.Source, entry.Message)
}
