package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"qsec/internal/dashboard"
	"qsec/internal/models"
	"qsec/internal/remediation"
)

// scriptedSource answers the n-th call (1-based) with the configured func.
type scriptedSource struct {
	mu        sync.Mutex
	statCalls int
	logCalls  int
	stats     func(call int) (models.StatSample, error)
	logs      func(call int) ([]models.LogEntry, error)
}

func (s *scriptedSource) Stats(ctx context.Context) (models.StatSample, error) {
	s.mu.Lock()
	s.statCalls++
	n := s.statCalls
	s.mu.Unlock()
	if s.stats == nil {
		return models.StatSample{Timestamp: float64(n)}, nil
	}
	return s.stats(n)
}

func (s *scriptedSource) Logs(ctx context.Context) ([]models.LogEntry, error) {
	s.mu.Lock()
	s.logCalls++
	n := s.logCalls
	s.mu.Unlock()
	if s.logs == nil {
		return nil, nil
	}
	return s.logs(n)
}

type countingRemediator struct {
	mu    sync.Mutex
	calls []models.AttackType
}

func (c *countingRemediator) Remediate(_ context.Context, attack models.AttackType) (*models.RemediationAck, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, attack)
	return &models.RemediationAck{Action: "ok"}, nil
}

func (c *countingRemediator) Calls() []models.AttackType {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.AttackType(nil), c.calls...)
}

// mountedPoller starts a poller whose ticker never fires during the test so
// ticks can be driven by hand.
func mountedPoller(t *testing.T, src Source, trigger *remediation.Trigger) (*Poller, *dashboard.State) {
	t.Helper()
	var arm *remediation.Arm
	if trigger != nil {
		arm = trigger.Arm()
	}
	state := dashboard.NewState(arm)
	p := New(src, state, trigger, time.Hour, time.Second, nil)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(p.Stop)
	return p, state
}

func runTicks(p *Poller, n int) {
	for i := 0; i < n; i++ {
		p.tick(context.Background())
		p.Wait()
	}
}

func TestTickAppliesStatsAndLogs(t *testing.T) {
	src := &scriptedSource{
		logs: func(n int) ([]models.LogEntry, error) {
			return []models.LogEntry{{Timestamp: float64(n), Level: models.LevelInfo, Source: "Kernel", Message: "heartbeat"}}, nil
		},
	}
	p, state := mountedPoller(t, src, nil)
	runTicks(p, 3)

	snap := state.Snapshot()
	if len(snap.Stats) != 3 || len(snap.Logs) != 3 {
		t.Fatalf("expected 3 stats and 3 logs, got %d and %d", len(snap.Stats), len(snap.Logs))
	}
	if snap.Logs[0].Timestamp != 3 {
		t.Fatalf("expected newest log first, got %v", snap.Logs[0].Timestamp)
	}
	if c := p.Counters(); c.Ticks != 3 || c.Failures != 0 {
		t.Fatalf("unexpected counters %+v", c)
	}
}

func TestWindowsStayBounded(t *testing.T) {
	src := &scriptedSource{
		logs: func(n int) ([]models.LogEntry, error) {
			return []models.LogEntry{{Timestamp: float64(n), Level: models.LevelInfo, Source: "Firewall", Message: "ok"}}, nil
		},
	}
	p, state := mountedPoller(t, src, nil)
	runTicks(p, 75)

	snap := state.Snapshot()
	if len(snap.Stats) != dashboard.StatsWindowSize {
		t.Fatalf("expected %d stats, got %d", dashboard.StatsWindowSize, len(snap.Stats))
	}
	if latest, _ := snap.Latest(); latest.Timestamp != 75 {
		t.Fatalf("expected most recent sample last, got %v", latest.Timestamp)
	}
	if len(snap.Logs) != dashboard.LogWindowSize || snap.Logs[0].Timestamp != 75 {
		t.Fatalf("expected %d logs newest-first, got %d (first=%v)", dashboard.LogWindowSize, len(snap.Logs), snap.Logs[0].Timestamp)
	}
}

func TestFetchFailureKeepsPreviousState(t *testing.T) {
	src := &scriptedSource{
		stats: func(n int) (models.StatSample, error) {
			if n > 1 {
				return models.StatSample{}, errors.New("connection refused")
			}
			return models.StatSample{Timestamp: 1, CPU: 10}, nil
		},
		logs: func(n int) ([]models.LogEntry, error) {
			return nil, errors.New("503")
		},
	}
	p, state := mountedPoller(t, src, nil)
	runTicks(p, 3)

	snap := state.Snapshot()
	if len(snap.Stats) != 1 || snap.Stats[0].CPU != 10 {
		t.Fatalf("expected last good sample to be retained, got %+v", snap.Stats)
	}
	if len(snap.Logs) != 0 {
		t.Fatalf("expected no logs, got %d", len(snap.Logs))
	}
	if c := p.Counters(); c.Failures != 5 {
		t.Fatalf("expected 5 swallowed failures, got %d", c.Failures)
	}
}

func TestOutOfOrderCompletionIsDiscarded(t *testing.T) {
	gates := map[int]chan struct{}{1: make(chan struct{}), 2: make(chan struct{})}
	src := &scriptedSource{
		stats: func(n int) (models.StatSample, error) {
			<-gates[n]
			return models.StatSample{Timestamp: float64(n)}, nil
		},
	}
	p, state := mountedPoller(t, src, nil)

	p.tick(context.Background())
	waitForCalls(t, src, 1)
	p.tick(context.Background())
	waitForCalls(t, src, 2)

	close(gates[2])
	waitFor(t, func() bool { return len(state.Snapshot().Stats) == 1 })
	close(gates[1])
	p.Wait()

	snap := state.Snapshot()
	if len(snap.Stats) != 1 || snap.Stats[0].Timestamp != 2 {
		t.Fatalf("expected only the newer sample, got %+v", snap.Stats)
	}
	if p.Counters().Discarded != 1 {
		t.Fatalf("expected one discarded completion, got %d", p.Counters().Discarded)
	}
}

func TestNoMutationAfterTeardown(t *testing.T) {
	release := make(chan struct{})
	src := &scriptedSource{
		stats: func(n int) (models.StatSample, error) {
			<-release
			return models.StatSample{Timestamp: 1}, nil
		},
		logs: func(n int) ([]models.LogEntry, error) {
			<-release
			return []models.LogEntry{{Timestamp: 1, Level: models.LevelCritical, Source: models.SourceRedTeamOps, Message: "SQL injection attempt detected"}}, nil
		},
	}
	rem := &countingRemediator{}
	arm := &remediation.Arm{}
	arm.Set(remediation.Armed)
	trigger := remediation.NewTrigger(arm, nil, rem, nil)

	p, state := mountedPoller(t, src, trigger)
	updates := 0
	p.OnUpdate = func() { updates++ }

	p.tick(context.Background())
	p.Stop()
	if p.Running() {
		t.Fatalf("expected poller to be unmounted")
	}
	close(release)
	p.Wait()

	snap := state.Snapshot()
	if len(snap.Stats) != 0 || len(snap.Logs) != 0 {
		t.Fatalf("state mutated after teardown: %d stats, %d logs", len(snap.Stats), len(snap.Logs))
	}
	if len(rem.Calls()) != 0 || updates != 0 {
		t.Fatalf("expected no remediation or updates after teardown, got %v / %d", rem.Calls(), updates)
	}
}

func TestStopDuringUpdateSkipsRemediation(t *testing.T) {
	src := &scriptedSource{
		stats: func(int) (models.StatSample, error) {
			return models.StatSample{}, errors.New("connection refused")
		},
		logs: func(n int) ([]models.LogEntry, error) {
			return []models.LogEntry{{Timestamp: float64(n), Level: models.LevelCritical, Source: models.SourceRedTeamOps, Message: "SQL injection attempt detected"}}, nil
		},
	}
	rem := &countingRemediator{}
	arm := &remediation.Arm{}
	arm.Set(remediation.Armed)
	p, state := mountedPoller(t, src, remediation.NewTrigger(arm, nil, rem, nil))
	p.OnUpdate = p.Stop

	runTicks(p, 1)
	if p.Running() {
		t.Fatalf("expected poller to be unmounted by the update callback")
	}
	if len(state.Snapshot().Logs) != 1 {
		t.Fatalf("expected the entry applied before teardown to remain")
	}
	if calls := rem.Calls(); len(calls) != 0 {
		t.Fatalf("remediation issued after teardown: %v", calls)
	}
}

func TestOutOfOrderLogCompletionIsDiscarded(t *testing.T) {
	gates := map[int]chan struct{}{1: make(chan struct{}), 2: make(chan struct{})}
	src := &scriptedSource{
		stats: func(int) (models.StatSample, error) {
			return models.StatSample{}, errors.New("connection refused")
		},
		logs: func(n int) ([]models.LogEntry, error) {
			<-gates[n]
			return []models.LogEntry{{Timestamp: float64(n), Level: models.LevelCritical, Source: models.SourceRedTeamOps, Message: "SQL injection attempt detected"}}, nil
		},
	}
	rem := &countingRemediator{}
	arm := &remediation.Arm{}
	arm.Set(remediation.Armed)
	p, state := mountedPoller(t, src, remediation.NewTrigger(arm, nil, rem, nil))

	p.tick(context.Background())
	waitForLogCalls(t, src, 1)
	p.tick(context.Background())
	waitForLogCalls(t, src, 2)

	close(gates[2])
	waitFor(t, func() bool { return len(rem.Calls()) == 1 })
	close(gates[1])
	p.Wait()

	snap := state.Snapshot()
	if len(snap.Logs) != 1 || snap.Logs[0].Timestamp != 2 {
		t.Fatalf("expected only the newer entry, got %+v", snap.Logs)
	}
	if c := p.Counters(); c.Discarded != 1 {
		t.Fatalf("expected one discarded completion, got %d", c.Discarded)
	}
	if calls := rem.Calls(); len(calls) != 1 {
		t.Fatalf("stale entry triggered remediation: %v", calls)
	}
}

func TestEmptyLogResultDoesNotDiscardOlderEntry(t *testing.T) {
	release := make(chan struct{})
	src := &scriptedSource{
		stats: func(int) (models.StatSample, error) {
			return models.StatSample{}, errors.New("connection refused")
		},
		logs: func(n int) ([]models.LogEntry, error) {
			if n == 2 {
				return nil, nil
			}
			<-release
			return []models.LogEntry{{Timestamp: 1, Level: models.LevelInfo, Source: "Firewall", Message: "Port scan blocked"}}, nil
		},
	}
	p, state := mountedPoller(t, src, nil)

	p.tick(context.Background())
	waitForLogCalls(t, src, 1)
	p.tick(context.Background())
	waitForLogCalls(t, src, 2)
	close(release)
	p.Wait()

	if logs := state.Snapshot().Logs; len(logs) != 1 || logs[0].Timestamp != 1 {
		t.Fatalf("expected the older non-empty entry to be applied, got %+v", logs)
	}
	if c := p.Counters(); c.Discarded != 0 {
		t.Fatalf("expected no discards, got %d", c.Discarded)
	}
}

func TestArmedTickRemediatesNewestEntry(t *testing.T) {
	src := &scriptedSource{
		logs: func(n int) ([]models.LogEntry, error) {
			return []models.LogEntry{{Timestamp: float64(n), Level: models.LevelCritical, Source: models.SourceRedTeamOps, Message: "SQL injection attempt detected"}}, nil
		},
	}
	rem := &countingRemediator{}
	trigger := remediation.NewTrigger(&remediation.Arm{}, nil, rem, nil)
	p, _ := mountedPoller(t, src, trigger)

	runTicks(p, 1)
	if len(rem.Calls()) != 0 {
		t.Fatalf("disarmed poller issued remediation: %v", rem.Calls())
	}

	trigger.Arm().Toggle()
	runTicks(p, 1)
	calls := rem.Calls()
	if len(calls) != 1 || calls[0] != models.AttackSQLInjection {
		t.Fatalf("expected exactly one sql_injection request, got %v", calls)
	}
}

func TestWarningNeverRemediates(t *testing.T) {
	src := &scriptedSource{
		logs: func(n int) ([]models.LogEntry, error) {
			return []models.LogEntry{{Timestamp: float64(n), Level: models.LevelWarning, Source: models.SourceRedTeamOps, Message: "Weak Password Found"}}, nil
		},
	}
	rem := &countingRemediator{}
	arm := &remediation.Arm{}
	arm.Set(remediation.Armed)
	p, _ := mountedPoller(t, src, remediation.NewTrigger(arm, nil, rem, nil))
	runTicks(p, 4)
	if len(rem.Calls()) != 0 {
		t.Fatalf("expected no requests for WARNING entries, got %v", rem.Calls())
	}
}

func TestStartTwiceAndTickerFires(t *testing.T) {
	src := &scriptedSource{}
	state := dashboard.NewState(nil)
	p := New(src, state, nil, 10*time.Millisecond, time.Second, nil)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop()
	if err := p.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
	waitFor(t, func() bool { return len(state.Snapshot().Stats) >= 2 })
	p.Stop()
	p.Stop()
}

func TestContextCancelUnmounts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := New(&scriptedSource{}, dashboard.NewState(nil), nil, time.Hour, 0, nil)
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()
	waitFor(t, func() bool { return !p.Running() })
	p.Stop()
}

func waitForCalls(t *testing.T, src *scriptedSource, n int) {
	t.Helper()
	waitFor(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.statCalls >= n
	})
}

func waitForLogCalls(t *testing.T, src *scriptedSource, n int) {
	t.Helper()
	waitFor(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.logCalls >= n
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}
