// Package dashboard holds the agent's view state: the rolling telemetry and
// log windows plus the auto-remediation switch.
package dashboard

import (
	"sync"

	"qsec/internal/models"
	"qsec/internal/remediation"
	"qsec/internal/window"
)

// Window capacities.
const (
	StatsWindowSize = 20
	LogWindowSize   = 50
)

// State is the mutable view model fed by the poller.
type State struct {
	mu    sync.RWMutex
	stats *window.Ring[models.StatSample]
	logs  *window.Ring[models.LogEntry]
	arm   *remediation.Arm
}

// NewState returns empty windows bound to arm (a fresh disarmed switch when nil).
func NewState(arm *remediation.Arm) *State {
	if arm == nil {
		arm = &remediation.Arm{}
	}
	return &State{
		stats: window.New[models.StatSample](StatsWindowSize),
		logs:  window.New[models.LogEntry](LogWindowSize),
		arm:   arm,
	}
}

// Arm returns the auto-remediation switch shown by this view.
func (s *State) Arm() *remediation.Arm {
	return s.arm
}

// PushStat appends a sample; the oldest is dropped past StatsWindowSize.
func (s *State) PushStat(sample models.StatSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Push(sample)
}

// PushLogs prepends entries (given newest first) to the log window.
func (s *State) PushLogs(entries []models.LogEntry) {
	if len(entries) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(entries) - 1; i >= 0; i-- {
		s.logs.Push(entries[i])
	}
}

// Snapshot is a consistent copy of the view state.
type Snapshot struct {
	Stats []models.StatSample // oldest first
	Logs  []models.LogEntry   // newest first
	Arm   remediation.ArmState
}

// Latest returns the newest stat sample, if any.
func (s Snapshot) Latest() (models.StatSample, bool) {
	if len(s.Stats) == 0 {
		return models.StatSample{}, false
	}
	return s.Stats[len(s.Stats)-1], true
}

// Snapshot copies the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Stats: s.stats.Items(),
		Logs:  s.logs.Newest(),
		Arm:   s.arm.State(),
	}
}

// Reset clears both windows. The arm switch is left untouched.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Reset()
	s.logs.Reset()
}
