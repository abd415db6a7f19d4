package models

import (
	"math"
	"time"
)

// Log levels emitted by the blue-team feed.
const (
	LevelInfo     = "INFO"
	LevelWarning  = "WARNING"
	LevelError    = "ERROR"
	LevelCritical = "CRITICAL"
)

// Well-known log sources.
const (
	SourceRedTeamOps = "RED_TEAM_OPS"
	SourceAIAgent    = "AI_AGENT"
)

// StatSample is a single host telemetry reading. Timestamp is epoch seconds.
type StatSample struct {
	Timestamp     float64 `json:"timestamp"`
	CPU           float64 `json:"cpu"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsedGB  float64 `json:"memory_used_gb,omitempty"`
	NetSentMB     float64 `json:"net_sent_mb,omitempty"`
	NetRecvMB     float64 `json:"net_recv_mb,omitempty"`
}

// Time converts the epoch-seconds timestamp into a time.Time.
func (s StatSample) Time() time.Time {
	return epochToTime(s.Timestamp)
}

// LogEntry is one security feed line.
type LogEntry struct {
	Timestamp float64 `json:"timestamp"`
	Level     string  `json:"level"`
	Source    string  `json:"source"`
	Message   string  `json:"message"`
}

// Time converts the epoch-seconds timestamp into a time.Time.
func (e LogEntry) Time() time.Time {
	return epochToTime(e.Timestamp)
}

// IsZero reports whether the entry carries no data (the backend sends `{}` for "no entry").
func (e LogEntry) IsZero() bool {
	return e.Timestamp == 0 && e.Level == "" && e.Source == "" && e.Message == ""
}

// Epoch returns t as fractional epoch seconds, the wire format used by the API.
func Epoch(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func epochToTime(ts float64) time.Time {
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}
