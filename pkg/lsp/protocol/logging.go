package protocol

import (
	"context"
	"encoding/json"
	"sync"
	"weak"

	"github.com/rs/zerolog"
)

// Notifier sends notifications to the client. Long lived components hold it through
// a weak pointer so that they never keep a finished connection alive.
type Notifier struct {
	notify func(ctx context.Context, method string, params any) error
}

func NewNotifier(fn func(ctx context.Context, method string, params any) error) *Notifier {
	return &Notifier{notify: fn}
}

func (n *Notifier) Notify(ctx context.Context, method string, params any) error {
	return n.notify(ctx, method, params)
}

// NotifyWeak sends through a weakly held notifier. It reports false, without error, when
// the notifier is gone.
func NotifyWeak(ctx context.Context, ptr weak.Pointer[Notifier], method string, params any) (bool, error) {
	n := ptr.Value()
	if n == nil {
		return false, nil
	}
	return true, n.Notify(ctx, method, params)
}

// LogWriter forwards zerolog json lines to the client as window/logMessage.
type LogWriter struct {
	mu       sync.Mutex
	ctx      context.Context
	notifier weak.Pointer[Notifier]
}

func NewLogWriter(ctx context.Context, n *Notifier) *LogWriter {
	return &LogWriter{ctx: context.WithoutCancel(ctx), notifier: weak.Make(n)}
}

func (w *LogWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var entry map[string]any
	if err := json.Unmarshal(p, &entry); err != nil {
		return len(p), nil
	}
	level, _ := entry[zerolog.LevelFieldName].(string)
	msg, _ := entry[zerolog.MessageFieldName].(string)
	delete(entry, zerolog.LevelFieldName)
	delete(entry, zerolog.MessageFieldName)
	if len(entry) > 0 {
		if extra, err := json.Marshal(entry); err == nil {
			msg += " " + string(extra)
		}
	}

	if _, err := NotifyWeak(w.ctx, w.notifier, MethodLogMessage, &LogMessageParams{
		Type:    MessageTypeFromZerolog(level),
		Message: msg,
	}); err != nil {
		return 0, err
	}
	return len(p), nil
}

func MessageTypeFromZerolog(level string) MessageType {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return Log
	}
	switch lvl {
	case zerolog.PanicLevel, zerolog.FatalLevel, zerolog.ErrorLevel:
		return Error
	case zerolog.WarnLevel:
		return Warning
	case zerolog.InfoLevel:
		return Info
	case zerolog.DebugLevel, zerolog.TraceLevel:
		return Debug
	}
	return Log
}
