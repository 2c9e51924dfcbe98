package nsd

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// logRecord is one bounded entry in a SharedLog ring buffer.
type logRecord struct {
	at  time.Time
	tag string
	msg string
}

// SharedLog is a bounded ring-buffer logger that also forwards to slog,
// grounded on NsdService's SharedLog/forSubComponent/reverseDump trio: every
// component and every client gets its own tagged view over one shared
// capacity-bounded history, and Dump() walks it newest-first.
type SharedLog struct {
	mu       sync.Mutex
	capacity int
	records  []logRecord
}

// NewSharedLog returns a SharedLog bounded to capacity records.
func NewSharedLog(capacity int) *SharedLog {
	if capacity <= 0 {
		capacity = 200
	}
	return &SharedLog{capacity: capacity}
}

// ForSubComponent returns a tagged view that prefixes every line with tag,
// mirroring SharedLog.forSubComponent.
func (l *SharedLog) ForSubComponent(tag string) *TaggedLog {
	return &TaggedLog{log: l, tag: tag}
}

func (l *SharedLog) append(tag, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, logRecord{at: time.Now(), tag: tag, msg: msg})
	if len(l.records) > l.capacity {
		l.records = l.records[len(l.records)-l.capacity:]
	}
}

// ReverseDump returns the records newest-first, formatted as plain text.
func (l *SharedLog) ReverseDump() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.records))
	for i := len(l.records) - 1; i >= 0; i-- {
		r := l.records[i]
		out = append(out, fmt.Sprintf("%s [%s] %s", r.at.Format(time.RFC3339Nano), r.tag, r.msg))
	}
	return out
}

// TaggedLog is the per-component/per-client log handle referenced by
// spec.md's "per-client log" field.
type TaggedLog struct {
	log *SharedLog
	tag string
}

func (t *TaggedLog) Infof(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	t.log.append(t.tag, msg)
	slog.Info(msg, "component", t.tag)
}

func (t *TaggedLog) Warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	t.log.append(t.tag, msg)
	slog.Warn(msg, "component", t.tag)
}

func (t *TaggedLog) Errorf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	t.log.append(t.tag, msg)
	slog.Error(msg, "component", t.tag)
}

// Wtf logs a "should never happen" condition at error level, grounded on
// the original's Log.wtf call when an mDNS label sequence fails to
// terminate in "local".
func (t *TaggedLog) Wtf(format string, args ...any) {
	msg := "WTF: " + fmt.Sprintf(format, args...)
	t.log.append(t.tag, msg)
	slog.Error(msg, "component", t.tag)
}
