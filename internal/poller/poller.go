// Package poller drives the agent's fetch-and-render loop: every tick it
// fetches a stat sample and the latest log entry, feeds the dashboard state,
// and hands the newest entry to the remediation trigger.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"qsec/internal/dashboard"
	"qsec/internal/models"
	"qsec/internal/remediation"
	"qsec/internal/utils"
)

// DefaultInterval is the poll cadence.
const DefaultInterval = 1500 * time.Millisecond

// ErrAlreadyStarted is returned by Start on a running poller.
var ErrAlreadyStarted = errors.New("poller already started")

// Source supplies telemetry; *client.Client satisfies it.
type Source interface {
	Stats(ctx context.Context) (models.StatSample, error)
	Logs(ctx context.Context) ([]models.LogEntry, error)
}

// Counters summarize poller activity since construction.
type Counters struct {
	Ticks     uint64
	Failures  uint64
	Discarded uint64
}

// Poller issues ticks on a fixed cadence. Ticks are not serialized: a slow
// fetch never delays the next tick. Each tick carries a generation number and
// a completion older than the newest one already applied to the same window
// is dropped, as is anything that completes after Stop.
type Poller struct {
	source   Source
	state    *dashboard.State
	trigger  *remediation.Trigger
	log      *utils.Logger
	interval time.Duration
	timeout  time.Duration

	// OnUpdate, when set, runs after every applied state change.
	OnUpdate func()

	mu           sync.Mutex
	mounted      bool
	cancel       context.CancelFunc
	done         chan struct{}
	gen          uint64
	statsApplied uint64
	logsApplied  uint64
	counters     Counters

	inflight sync.WaitGroup
}

// New builds a poller. interval <= 0 selects DefaultInterval; timeout <= 0
// leaves fetch deadlines to the source.
func New(source Source, state *dashboard.State, trigger *remediation.Trigger, interval, timeout time.Duration, log *utils.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		source:   source,
		state:    state,
		trigger:  trigger,
		log:      log,
		interval: interval,
		timeout:  timeout,
	}
}

// Start mounts the poller and begins ticking until Stop or ctx is done.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.mounted {
		p.mu.Unlock()
		return ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	p.mounted = true
	p.cancel = cancel
	p.done = make(chan struct{})
	done := p.done
	p.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.tick(ctx)
			case <-ctx.Done():
				p.unmount()
				return
			}
		}
	}()
	return nil
}

// Stop cancels the recurring timer and unmounts. In-flight fetches are left
// to finish on their own; their results are discarded.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mounted = false
	p.cancel = nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Wait blocks until every fetch issued so far has returned. Stop does not
// wait; call Wait after it to drain late completions before releasing
// resources they log to.
func (p *Poller) Wait() {
	p.inflight.Wait()
}

// Running reports whether the poller is mounted.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mounted
}

// Counters returns a copy of the activity counters.
func (p *Poller) Counters() Counters {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counters
}

func (p *Poller) unmount() {
	p.mu.Lock()
	p.mounted = false
	p.mu.Unlock()
}

// tick issues both fetches concurrently and returns without waiting for them.
func (p *Poller) tick(ctx context.Context) {
	p.mu.Lock()
	p.gen++
	gen := p.gen
	p.counters.Ticks++
	p.mu.Unlock()

	// Teardown must not abort fetches already in flight; the lifetime guard
	// in apply* drops their results instead.
	fetchCtx := context.WithoutCancel(ctx)

	p.inflight.Add(2)
	go func() {
		defer p.inflight.Done()
		c, cancel := p.fetchContext(fetchCtx)
		defer cancel()
		sample, err := p.source.Stats(c)
		if err != nil {
			p.fail("stats", err)
			return
		}
		p.applyStat(gen, sample)
	}()
	go func() {
		defer p.inflight.Done()
		c, cancel := p.fetchContext(fetchCtx)
		defer cancel()
		entries, err := p.source.Logs(c)
		if err != nil {
			p.fail("logs", err)
			return
		}
		if p.applyLogs(gen, entries) {
			p.remediate(ctx, entries[0])
		}
	}()
}

// remediate hands the newest entry to the trigger unless the poller was
// unmounted after the entry was applied. The request is bound to the poller
// lifetime, so a Stop racing with it aborts the call.
func (p *Poller) remediate(ctx context.Context, entry models.LogEntry) {
	if p.trigger == nil || !p.Running() {
		return
	}
	c, cancel := p.fetchContext(ctx)
	defer cancel()
	p.trigger.Handle(c, entry)
}

func (p *Poller) fetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout > 0 {
		return context.WithTimeout(ctx, p.timeout)
	}
	return context.WithCancel(ctx)
}

func (p *Poller) fail(stream string, err error) {
	p.mu.Lock()
	p.counters.Failures++
	p.mu.Unlock()
	p.log.Writef("Blue Team API error (%s): %v", stream, err)
}

func (p *Poller) applyStat(gen uint64, sample models.StatSample) bool {
	p.mu.Lock()
	if !p.mounted || gen <= p.statsApplied {
		p.counters.Discarded++
		p.mu.Unlock()
		return false
	}
	p.statsApplied = gen
	p.state.PushStat(sample)
	p.mu.Unlock()
	p.notify()
	return true
}

// applyLogs reports whether entries were applied. Empty results never
// advance the applied generation, so they cannot cause an older non-empty
// result to be dropped.
func (p *Poller) applyLogs(gen uint64, entries []models.LogEntry) bool {
	if len(entries) == 0 {
		return false
	}
	p.mu.Lock()
	if !p.mounted || gen <= p.logsApplied {
		p.counters.Discarded++
		p.mu.Unlock()
		return false
	}
	p.logsApplied = gen
	p.state.PushLogs(entries)
	p.mu.Unlock()
	p.notify()
	return true
}

func (p *Poller) notify() {
	if p.OnUpdate != nil {
		p.OnUpdate()
	}
}
