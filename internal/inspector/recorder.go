// Package inspector records SDK logs and lifecycle events for the developer
// inspector and exports them as JSON.
package inspector

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/hooks"
)

const (
	DefaultMaxLogs   = 100
	DefaultMaxEvents = 50
)

// Log levels used by inspector notes in addition to zap's.
const (
	LevelSuccess = "success"
	LevelError   = "error"
	LevelInfo    = "info"
)

// LogEntry is one captured log line.
type LogEntry struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Logger  string         `json:"logger,omitempty"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// EventEntry is one observed hook event.
type EventEntry struct {
	Time      time.Time      `json:"time"`
	Hook      string         `json:"hook"`
	Slot      string         `json:"slot,omitempty"`
	SessionID string         `json:"sessionId,omitempty"`
	AdID      string         `json:"adId,omitempty"`
	Error     string         `json:"error,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Export is the document produced by the inspector's export action.
type Export struct {
	Timestamp time.Time    `json:"timestamp"`
	Logs      []LogEntry   `json:"logs"`
	Events    []EventEntry `json:"events"`
	GameID    string       `json:"gameId,omitempty"`
	PlayerID  string       `json:"playerId,omitempty"`
}

// Recorder keeps the most recent logs and events in fixed-size rings.
type Recorder struct {
	maxLogs   int
	maxEvents int
	now       func() time.Time

	mu       sync.RWMutex
	logs     []LogEntry
	events   []EventEntry
	identity func() (gameID, playerID string)
}

// NewRecorder creates a recorder. Non-positive limits use the defaults.
func NewRecorder(maxLogs, maxEvents int) *Recorder {
	if maxLogs <= 0 {
		maxLogs = DefaultMaxLogs
	}
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	return &Recorder{
		maxLogs:   maxLogs,
		maxEvents: maxEvents,
		now:       time.Now,
	}
}

// SetIdentity sets where the export reads game and player ids from.
func (r *Recorder) SetIdentity(fn func() (string, string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.identity = fn
}

// ObserveHooks taps every event fired on reg.
func (r *Recorder) ObserveHooks(reg *hooks.Registry) {
	reg.Observe(r.recordHook)
}

func (r *Recorder) recordHook(e hooks.Event) {
	entry := EventEntry{
		Time:      e.At,
		Hook:      string(e.Hook),
		Slot:      string(e.Slot),
		SessionID: e.SessionID,
		AdID:      e.AdID,
		Metadata:  e.Metadata,
	}
	if e.Err != nil {
		entry.Error = e.Err.Error()
	}
	r.AddEvent(entry)
}

// AddEvent appends an event entry, evicting the oldest when full.
func (r *Recorder) AddEvent(e EventEntry) {
	if e.Time.IsZero() {
		e.Time = r.now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = appendRing(r.events, e, r.maxEvents)
}

// AddLog appends a log entry, evicting the oldest when full.
func (r *Recorder) AddLog(e LogEntry) {
	if e.Time.IsZero() {
		e.Time = r.now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = appendRing(r.logs, e, r.maxLogs)
}

// Note records an inspector message such as a test trigger result.
func (r *Recorder) Note(level, message string) {
	r.AddLog(LogEntry{Level: level, Logger: "inspector", Message: message})
}

func appendRing[T any](ring []T, v T, limit int) []T {
	if len(ring) >= limit {
		copy(ring, ring[1:])
		ring[len(ring)-1] = v
		return ring
	}
	return append(ring, v)
}

// Logs returns captured logs, oldest first.
func (r *Recorder) Logs() []LogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]LogEntry, len(r.logs))
	copy(out, r.logs)
	return out
}

// Events returns captured events, oldest first.
func (r *Recorder) Events() []EventEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]EventEntry, len(r.events))
	copy(out, r.events)
	return out
}

// Clear drops all captured logs and events.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = nil
	r.events = nil
}

// Snapshot builds the export document.
func (r *Recorder) Snapshot() Export {
	r.mu.RLock()
	identity := r.identity
	r.mu.RUnlock()

	exp := Export{
		Timestamp: r.now().UTC(),
		Logs:      r.Logs(),
		Events:    r.Events(),
	}
	if identity != nil {
		exp.GameID, exp.PlayerID = identity()
	}
	return exp
}

// ExportJSON renders Snapshot as indented JSON.
func (r *Recorder) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(r.Snapshot(), "", "  ")
}
