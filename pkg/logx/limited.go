package logx

import (
	"log/slog"
	"sync"
	"time"
)

const maxTracked = 512

// Limited logs errors, demoting a message to debug level when the same
// text was already logged within the window.
type Limited struct {
	mx     sync.Mutex
	log    *slog.Logger
	window time.Duration
	now    func() time.Time
	seen   map[string]time.Time
}

func NewLimited(log *slog.Logger, window time.Duration) *Limited {
	if log == nil {
		log = slog.Default()
	}
	return &Limited{
		log:    log,
		window: window,
		now:    time.Now,
		seen:   make(map[string]time.Time),
	}
}

// Error reports whether the error was logged at error level.
func (l *Limited) Error(process string, err error, attrs ...any) bool {
	if err == nil {
		return false
	}
	msg := process + ": " + err.Error()
	now := l.now()

	l.mx.Lock()
	last, ok := l.seen[msg]
	suppressed := ok && now.Sub(last) < l.window
	if !suppressed {
		l.seen[msg] = now
		l.pruneLocked(now)
	}
	l.mx.Unlock()

	args := append([]any{slog.String("process", process), slog.Any("err", err)}, attrs...)
	if suppressed {
		l.log.Debug("repeated error", args...)
		return false
	}
	l.log.Error(process+" failed", args...)
	return true
}

func (l *Limited) pruneLocked(now time.Time) {
	if len(l.seen) <= maxTracked {
		return
	}
	for msg, at := range l.seen {
		if now.Sub(at) >= l.window {
			delete(l.seen, msg)
		}
	}
}
