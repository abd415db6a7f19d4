package blueteam

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"qsec/internal/models"
)

func fixedClock() func() time.Time {
	t := time.Unix(1700000000, 0)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newTestMonitor(synthetic bool, sampler SamplerFunc) *Monitor {
	return NewMonitor(Options{
		HistorySize: 5,
		Synthetic:   synthetic,
		Sampler:     sampler,
		Rand:        rand.New(rand.NewPCG(1, 2)),
		Now:         fixedClock(),
	})
}

func TestStatsRecordsBoundedHistory(t *testing.T) {
	cpu := 0.0
	m := newTestMonitor(false, func(context.Context) (models.StatSample, error) {
		cpu++
		return models.StatSample{CPU: cpu, MemoryPercent: 50}, nil
	})
	for i := 0; i < 8; i++ {
		sample, err := m.Stats(context.Background())
		if err != nil {
			t.Fatalf("Stats: %v", err)
		}
		if sample.Timestamp == 0 {
			t.Fatalf("expected timestamp to be filled in")
		}
	}
	history := m.StatsHistory()
	if len(history) != 5 || history[0].CPU != 4 || history[4].CPU != 8 {
		t.Fatalf("unexpected history %+v", history)
	}
}

func TestStatsWrapsSamplerError(t *testing.T) {
	boom := errors.New("no /proc")
	m := newTestMonitor(false, func(context.Context) (models.StatSample, error) {
		return models.StatSample{}, boom
	})
	if _, err := m.Stats(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped sampler error, got %v", err)
	}
	if len(m.StatsHistory()) != 0 {
		t.Fatalf("failed samples must not be recorded")
	}
}

func TestNextLogServesInjectedBeforeSynthetic(t *testing.T) {
	m := newTestMonitor(true, nil)
	m.Inject(models.LevelCritical, models.SourceRedTeamOps, "Attack Detected: SQL_INJECTION - x")

	first, ok := m.NextLog()
	if !ok || first.Source != models.SourceRedTeamOps || first.Level != models.LevelCritical {
		t.Fatalf("expected injected entry first, got %+v", first)
	}
	second, ok := m.NextLog()
	if !ok {
		t.Fatalf("expected synthetic entry")
	}
	if second.Source == models.SourceRedTeamOps || second.Message == "" {
		t.Fatalf("unexpected synthetic entry %+v", second)
	}
	if got := m.LogHistory(); len(got) != 2 || got[0] != second {
		t.Fatalf("expected history newest first, got %+v", got)
	}
}

func TestNextLogEmptyWithoutSynthetic(t *testing.T) {
	m := newTestMonitor(false, nil)
	if entry, ok := m.NextLog(); ok {
		t.Fatalf("expected no entry, got %+v", entry)
	}
}

func TestInjectQueueIsBounded(t *testing.T) {
	m := newTestMonitor(false, nil)
	for i := 0; i < 9; i++ {
		m.Inject(models.LevelInfo, "Kernel", strings.Repeat("x", i+1))
	}
	if m.Pending() != 5 {
		t.Fatalf("expected 5 pending entries, got %d", m.Pending())
	}
	entry, _ := m.NextLog()
	if entry.Message != "xxxxx" {
		t.Fatalf("expected oldest surviving entry, got %q", entry.Message)
	}
}

func TestRemediateAppliesPatchAndLogs(t *testing.T) {
	cases := map[models.AttackType]string{
		models.AttackSQLInjection: "Applied WAF Rule ID: 942100 (SQLi Block)",
		models.AttackDDoS:         "Enabled Rate Limiting (1000 req/s)",
		models.AttackBruteForce:   "Account Locked: 'root'. IP Banned.",
		"zero_day":                "General Patch Applied",
	}
	for attack, want := range cases {
		m := newTestMonitor(false, nil)
		ack, err := m.Remediate(context.Background(), attack)
		if err != nil {
			t.Fatalf("Remediate(%s): %v", attack, err)
		}
		if ack.Action != want || ack.AttackType != attack || ack.ID == "" {
			t.Fatalf("unexpected ack for %s: %+v", attack, ack)
		}
		entry, ok := m.NextLog()
		if !ok || entry.Source != models.SourceAIAgent || entry.Level != models.LevelInfo || entry.Message != "Auto-Remediation: "+want {
			t.Fatalf("unexpected feed entry for %s: %+v", attack, entry)
		}
	}
}

func TestOnLogObservesServedEntries(t *testing.T) {
	m := newTestMonitor(false, nil)
	var seen []models.LogEntry
	m.OnLog(func(e models.LogEntry) { seen = append(seen, e) })
	m.OnLog(nil)

	m.Inject(models.LevelWarning, "Firewall", "Packet dropped")
	if len(seen) != 0 {
		t.Fatalf("hook must fire on serve, not on inject")
	}
	m.NextLog()
	if len(seen) != 1 || seen[0].Message != "Packet dropped" {
		t.Fatalf("unexpected hook calls %+v", seen)
	}
}
