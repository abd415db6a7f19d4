// Package remediation decides when a security log entry warrants an automatic
// remediation request and which attack type it should name.
package remediation

import (
	"strings"

	"qsec/internal/models"
)

// Rule maps a message substring to an attack type.
type Rule struct {
	Pattern string
	Attack  models.AttackType
}

// DefaultRules is the ordered rule list used by the trigger. Order matters:
// every rule is evaluated and the last matching rule decides the attack type.
var DefaultRules = []Rule{
	{Pattern: "SQL", Attack: models.AttackSQLInjection},
	{Pattern: "Stress", Attack: models.AttackDDoS},
	{Pattern: "Password", Attack: models.AttackBruteForce},
}

// Classifier evaluates rules in order without short-circuiting.
type Classifier struct {
	rules []Rule
}

// NewClassifier copies rules; a nil slice selects DefaultRules.
func NewClassifier(rules []Rule) *Classifier {
	if rules == nil {
		rules = DefaultRules
	}
	cp := make([]Rule, len(rules))
	copy(cp, rules)
	return &Classifier{rules: cp}
}

// Classify returns the attack type of the last rule whose pattern occurs in
// message (case-sensitive). ok is false when no rule matched.
func (c *Classifier) Classify(message string) (attack models.AttackType, ok bool) {
	for _, r := range c.rules {
		if strings.Contains(message, r.Pattern) {
			attack, ok = r.Attack, true
		}
	}
	return attack, ok
}
