package remediation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"qsec/internal/models"
)

type recordingRemediator struct {
	mu    sync.Mutex
	calls []models.AttackType
	err   error
}

func (r *recordingRemediator) Remediate(_ context.Context, attack models.AttackType) (*models.RemediationAck, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, attack)
	if r.err != nil {
		return nil, r.err
	}
	return &models.RemediationAck{AttackType: attack, Action: "patched"}, nil
}

func (r *recordingRemediator) Calls() []models.AttackType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.AttackType(nil), r.calls...)
}

func redTeam(level, message string) models.LogEntry {
	return models.LogEntry{Timestamp: 1700000000.5, Level: level, Source: models.SourceRedTeamOps, Message: message}
}

func TestClassifyLastMatchWins(t *testing.T) {
	c := NewClassifier(nil)
	cases := []struct {
		msg    string
		want   models.AttackType
		wantOK bool
	}{
		{"SQL injection attempt detected", models.AttackSQLInjection, true},
		{"Stress Test: Server latency increased by 400ms.", models.AttackDDoS, true},
		{"Weak Password Found: '123456' for user 'root'.", models.AttackBruteForce, true},
		{"Stress and Password both present", models.AttackBruteForce, true},
		{"SQL under Stress", models.AttackDDoS, true},
		{"sql lowercase does not match", "", false},
		{"Connection established", "", false},
	}
	for _, tc := range cases {
		got, ok := c.Classify(tc.msg)
		if ok != tc.wantOK || got != tc.want {
			t.Fatalf("Classify(%q) = (%q, %v), want (%q, %v)", tc.msg, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestArmStartsDisarmedAndToggles(t *testing.T) {
	var a Arm
	if a.State() != Disarmed {
		t.Fatalf("expected initial state DISARMED, got %s", a.State())
	}
	if got := a.Toggle(); got != Armed || !a.IsArmed() {
		t.Fatalf("expected ARMED after toggle, got %s", got)
	}
	if got := a.Toggle(); got != Disarmed || a.IsArmed() {
		t.Fatalf("expected DISARMED after second toggle, got %s", got)
	}
	a.Set(Armed)
	if a.State().String() != "ARMED" {
		t.Fatalf("expected Set(Armed) to arm, got %s", a.State())
	}
}

func TestDisarmedNeverRemediates(t *testing.T) {
	rem := &recordingRemediator{}
	tr := NewTrigger(&Arm{}, nil, rem, nil)
	for _, msg := range []string{"SQL injection attempt detected", "Stress Test", "Weak Password Found"} {
		if _, fired := tr.Handle(context.Background(), redTeam(models.LevelCritical, msg)); fired {
			t.Fatalf("disarmed trigger fired for %q", msg)
		}
	}
	if len(rem.Calls()) != 0 {
		t.Fatalf("expected no remediation requests, got %v", rem.Calls())
	}
}

func TestArmedSQLInjectionFiresOnce(t *testing.T) {
	rem := &recordingRemediator{}
	arm := &Arm{}
	arm.Set(Armed)
	tr := NewTrigger(arm, nil, rem, nil)

	attack, fired := tr.Handle(context.Background(), redTeam(models.LevelCritical, "SQL injection attempt detected"))
	if !fired || attack != models.AttackSQLInjection {
		t.Fatalf("expected sql_injection to fire, got (%q, %v)", attack, fired)
	}
	calls := rem.Calls()
	if len(calls) != 1 || calls[0] != models.AttackSQLInjection {
		t.Fatalf("expected exactly one sql_injection request, got %v", calls)
	}
	if tr.Fired() != 1 {
		t.Fatalf("expected fired counter 1, got %d", tr.Fired())
	}
}

func TestArmedIgnoresNonCriticalAndOtherSources(t *testing.T) {
	rem := &recordingRemediator{}
	arm := &Arm{}
	arm.Set(Armed)
	tr := NewTrigger(arm, nil, rem, nil)

	tr.Handle(context.Background(), redTeam(models.LevelWarning, "SQL injection attempt detected"))
	tr.Handle(context.Background(), redTeam(models.LevelInfo, "Weak Password Found"))
	tr.Handle(context.Background(), models.LogEntry{Level: models.LevelCritical, Source: "Firewall", Message: "SQL injection"})
	tr.Handle(context.Background(), redTeam(models.LevelCritical, "Unknown attack type"))

	if len(rem.Calls()) != 0 {
		t.Fatalf("expected no remediation requests, got %v", rem.Calls())
	}
}

func TestArmedAmbiguousMessageResolvesToBruteForce(t *testing.T) {
	rem := &recordingRemediator{}
	arm := &Arm{}
	arm.Set(Armed)
	tr := NewTrigger(arm, nil, rem, nil)

	tr.Handle(context.Background(), redTeam(models.LevelCritical, "Stress Test revealed Password reuse"))
	calls := rem.Calls()
	if len(calls) != 1 || calls[0] != models.AttackBruteForce {
		t.Fatalf("expected tie-break to brute_force, got %v", calls)
	}
}

func TestRepeatedEntryFiresEachTimeWithoutDedupe(t *testing.T) {
	rem := &recordingRemediator{}
	arm := &Arm{}
	arm.Set(Armed)
	tr := NewTrigger(arm, nil, rem, nil)
	entry := redTeam(models.LevelCritical, "Attack Detected: SQL_INJECTION - Vulnerability Found")

	tr.Handle(context.Background(), entry)
	tr.Handle(context.Background(), entry)
	if len(rem.Calls()) != 2 {
		t.Fatalf("expected two requests for a persisting entry, got %d", len(rem.Calls()))
	}
}

func TestDedupeSuppressesIdenticalEntry(t *testing.T) {
	rem := &recordingRemediator{}
	arm := &Arm{}
	arm.Set(Armed)
	tr := NewTrigger(arm, nil, rem, nil)
	tr.Dedupe = true
	entry := redTeam(models.LevelCritical, "Attack Detected: SQL_INJECTION - Vulnerability Found")

	tr.Handle(context.Background(), entry)
	if _, fired := tr.Handle(context.Background(), entry); fired {
		t.Fatalf("expected duplicate entry to be suppressed")
	}
	next := entry
	next.Timestamp++
	tr.Handle(context.Background(), next)
	if len(rem.Calls()) != 2 {
		t.Fatalf("expected two requests (original + new timestamp), got %d", len(rem.Calls()))
	}
}

func TestRemediatorErrorIsSwallowed(t *testing.T) {
	rem := &recordingRemediator{err: errors.New("connection refused")}
	arm := &Arm{}
	arm.Set(Armed)
	tr := NewTrigger(arm, nil, rem, nil)

	attack, fired := tr.Handle(context.Background(), redTeam(models.LevelCritical, "Weak Password Found"))
	if !fired || attack != models.AttackBruteForce {
		t.Fatalf("expected request to be issued despite failure, got (%q, %v)", attack, fired)
	}
}
