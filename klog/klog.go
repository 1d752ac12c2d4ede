// Package klog is PandaGen's structured logger, modeled directly on the
// teacher's ingest/log package: a mutex-guarded fan-out of io.Writers,
// formatted as RFC5424 syslog messages via github.com/crewjam/rfc5424.
// Unlike ingest/log, every call site also carries a component name
// (capability table, scheduler, ...) as the RFC5424 MSGID, since a
// kernel instance hosts many components logging concurrently.
package klog

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/crewjam/rfc5424"
)

type Level int

const (
	OFF Level = iota
	DEBUG
	INFO
	WARN
	ERROR
	CRITICAL
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case CRITICAL:
		return "CRITICAL"
	default:
		return "OFF"
	}
}

func (l Level) priority() rfc5424.Priority {
	switch l {
	case DEBUG:
		return rfc5424.User | rfc5424.Debug
	case INFO:
		return rfc5424.User | rfc5424.Info
	case WARN:
		return rfc5424.User | rfc5424.Warning
	case ERROR:
		return rfc5424.User | rfc5424.Error
	case CRITICAL:
		return rfc5424.User | rfc5424.Crit
	default:
		return rfc5424.User | rfc5424.Info
	}
}

const appname = "pandagen"

// Logger fans every formatted line out to a set of writers. Safe for
// concurrent use; the kernel itself is single-threaded, but host code
// and background CLI goroutines may log from multiple goroutines.
type Logger struct {
	mu       sync.Mutex
	wtrs     []io.Writer
	lvl      Level
	hostname string
}

// New wraps wtr as the logger's sole writer at level INFO.
func New(wtr io.Writer) *Logger {
	return &Logger{wtrs: []io.Writer{wtr}, lvl: INFO, hostname: "simkernel"}
}

// NewDiscard returns a logger that drops everything, for callers that
// pass no logger of their own into a kernel constructor.
func NewDiscard() *Logger { return New(io.Discard) }

func (l *Logger) SetLevel(lvl Level) { l.mu.Lock(); l.lvl = lvl; l.mu.Unlock() }

func (l *Logger) AddWriter(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.wtrs = append(l.wtrs, w)
}

func (l *Logger) log(lvl Level, component, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lvl < l.lvl || l.lvl == OFF {
		return
	}
	msg := fmt.Sprintf(format, args...)
	m := rfc5424.Message{
		Priority:  lvl.priority(),
		Timestamp: time.Now(),
		Hostname:  l.hostname,
		AppName:   appname,
		MessageID: trimPathLength(32, component),
		Message:   []byte(msg),
	}
	b, err := m.MarshalBinary()
	if err != nil {
		return
	}
	line := strings.TrimRight(string(b), "\n\t\r")
	for _, w := range l.wtrs {
		io.WriteString(w, line)
		io.WriteString(w, "\n")
	}
}

func (l *Logger) Debug(component, format string, args ...interface{}) {
	l.log(DEBUG, component, format, args...)
}

func (l *Logger) Info(component, format string, args ...interface{}) {
	l.log(INFO, component, format, args...)
}

func (l *Logger) Warn(component, format string, args ...interface{}) {
	l.log(WARN, component, format, args...)
}

func (l *Logger) Error(component, format string, args ...interface{}) {
	l.log(ERROR, component, format, args...)
}

func trimPathLength(n int, s string) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
