// Package blueteam implements the defensive side of the backend: host
// telemetry, the security log feed and the simulated auto-remediation agent.
package blueteam

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/net"

	"qsec/internal/models"
	"qsec/internal/utils"
	"qsec/internal/window"
)

// DefaultHistorySize bounds both the stats and log histories.
const DefaultHistorySize = 100

// Synthetic feed tables.
var (
	syntheticLevels  = []string{models.LevelInfo, models.LevelWarning, models.LevelError, models.LevelCritical}
	syntheticSources = []string{"Firewall", "AuthService", "Kernel", "Network"}

	syntheticMessages = []string{
		"Connection established",
		"Packet dropped from 192.168.1.55",
		"Failed login attempt for user 'admin'",
		"Unexpected port scanning detected",
		"Service heartbeat received",
		"Buffer overflow attempt blocked",
	}
)

var patches = map[models.AttackType]string{
	models.AttackSQLInjection: "Applied WAF Rule ID: 942100 (SQLi Block)",
	models.AttackDDoS:         "Enabled Rate Limiting (1000 req/s)",
	models.AttackBruteForce:   "Account Locked: 'root'. IP Banned.",
}

const genericPatch = "General Patch Applied"

// SamplerFunc reads one host telemetry sample.
type SamplerFunc func(ctx context.Context) (models.StatSample, error)

// Options configure a Monitor. Zero values select defaults.
type Options struct {
	HistorySize int
	Synthetic   bool
	Sampler     SamplerFunc
	Rand        *rand.Rand
	Now         func() time.Time
	Log         *utils.Logger
}

// Monitor owns the blue-team state shared by the HTTP handlers.
type Monitor struct {
	sampler   SamplerFunc
	now       func() time.Time
	log       *utils.Logger
	synthetic bool
	limit     int

	mu      sync.Mutex
	rng     *rand.Rand
	stats   *window.Ring[models.StatSample]
	history *window.Ring[models.LogEntry]
	pending []models.LogEntry
	hooks   []func(models.LogEntry)
}

// NewMonitor builds a monitor from opts.
func NewMonitor(opts Options) *Monitor {
	size := opts.HistorySize
	if size <= 0 {
		size = DefaultHistorySize
	}
	sampler := opts.Sampler
	if sampler == nil {
		sampler = HostSample
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15))
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Monitor{
		sampler:   sampler,
		now:       now,
		log:       opts.Log,
		synthetic: opts.Synthetic,
		limit:     size,
		rng:       rng,
		stats:     window.New[models.StatSample](size),
		history:   window.New[models.LogEntry](size),
	}
}

// OnLog registers fn to observe every entry handed out by NextLog.
func (m *Monitor) OnLog(fn func(models.LogEntry)) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.hooks = append(m.hooks, fn)
	m.mu.Unlock()
}

// Stats samples the host and records the result in the stats history.
func (m *Monitor) Stats(ctx context.Context) (models.StatSample, error) {
	sample, err := m.sampler(ctx)
	if err != nil {
		return models.StatSample{}, fmt.Errorf("sample host: %w", err)
	}
	if sample.Timestamp == 0 {
		sample.Timestamp = models.Epoch(m.now())
	}
	m.mu.Lock()
	m.stats.Push(sample)
	m.mu.Unlock()
	return sample, nil
}

// StatsHistory returns recorded samples, oldest first.
func (m *Monitor) StatsHistory() []models.StatSample {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats.Items()
}

// Inject queues an entry from another component (red-team ops, the
// remediation agent). Queued entries are served by NextLog before any
// synthetic traffic.
func (m *Monitor) Inject(level, source, message string) models.LogEntry {
	entry := models.LogEntry{
		Timestamp: models.Epoch(m.now()),
		Level:     level,
		Source:    source,
		Message:   message,
	}
	m.mu.Lock()
	m.pending = append(m.pending, entry)
	if over := len(m.pending) - m.limit; over > 0 {
		m.pending = append(m.pending[:0], m.pending[over:]...)
	}
	m.mu.Unlock()
	return entry
}

// Pending reports how many injected entries have not been served yet.
func (m *Monitor) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// NextLog returns the next feed entry. ok is false when nothing is queued and
// synthetic traffic is disabled.
func (m *Monitor) NextLog() (models.LogEntry, bool) {
	m.mu.Lock()
	var entry models.LogEntry
	switch {
	case len(m.pending) > 0:
		entry = m.pending[0]
		m.pending = m.pending[1:]
	case m.synthetic:
		entry = models.LogEntry{
			Timestamp: models.Epoch(m.now()),
			Level:     syntheticLevels[m.rng.IntN(len(syntheticLevels))],
			Source:    syntheticSources[m.rng.IntN(len(syntheticSources))],
			Message:   syntheticMessages[m.rng.IntN(len(syntheticMessages))],
		}
	default:
		m.mu.Unlock()
		return models.LogEntry{}, false
	}
	m.history.Push(entry)
	hooks := append([]func(models.LogEntry){}, m.hooks...)
	m.mu.Unlock()

	for _, fn := range hooks {
		fn(entry)
	}
	return entry, true
}

// LogHistory returns served entries, newest first.
func (m *Monitor) LogHistory() []models.LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history.Newest()
}

// Remediate applies the patch for attack and records it in the feed. Unknown
// attack types receive the generic patch.
func (m *Monitor) Remediate(_ context.Context, attack models.AttackType) (*models.RemediationAck, error) {
	action, ok := patches[attack]
	if !ok {
		action = genericPatch
	}
	m.Inject(models.LevelInfo, models.SourceAIAgent, "Auto-Remediation: "+action)
	m.log.Writef("Remediation %s: %s", attack, action)
	return &models.RemediationAck{
		ID:         uuid.NewString(),
		AttackType: attack,
		Action:     action,
	}, nil
}

// HostSample reads CPU, memory and network counters with gopsutil.
func HostSample(ctx context.Context) (models.StatSample, error) {
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return models.StatSample{}, fmt.Errorf("cpu: %w", err)
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return models.StatSample{}, fmt.Errorf("memory: %w", err)
	}

	sample := models.StatSample{
		Timestamp:     models.Epoch(time.Now()),
		MemoryPercent: round2(vm.UsedPercent),
		MemoryUsedGB:  round2(float64(vm.Used) / (1 << 30)),
	}
	if len(percents) > 0 {
		sample.CPU = round2(clamp(percents[0], 0, 100))
	}

	counters, _ := net.IOCountersWithContext(ctx, false)
	if len(counters) > 0 {
		sample.NetSentMB = round2(float64(counters[0].BytesSent) / (1 << 20))
		sample.NetRecvMB = round2(float64(counters[0].BytesRecv) / (1 << 20))
	}
	return sample, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
