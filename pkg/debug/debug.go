// Package debug holds the zerolog hooks and logger setup shared by the commands.
package debug

import (
	"fmt"
	"io"
	"reflect"
	"runtime"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

const TimeFormat = "2006-01-02T15:04:05.0000Z"

// skipFrames reads the event's unexported skipFrame counter so the caller hook reports
// the frame the event was created in.
func skipFrames(e *zerolog.Event) int {
	field := reflect.ValueOf(e).Elem().FieldByName("skipFrame")
	if field.IsValid() {
		return int(field.Int())
	}
	return 0
}

type CustomTimeHook struct {
	WithColor bool
	Format    string
}

func (t CustomTimeHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	format := t.Format
	if format == "" {
		format = TimeFormat
	}
	str := time.Now().UTC().Format(format)
	if t.WithColor {
		str = color.New(color.Faint).Sprint(str)
	}
	e.Str("time", str)
}

type CustomCallerHook struct {
	WithColor bool
}

func (c CustomCallerHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	pc, file, line, ok := runtime.Caller(skipFrames(e) + 3)
	if !ok {
		return
	}
	pkg := "?"
	if fn := runtime.FuncForPC(pc); fn != nil {
		pkg, _ = SplitFuncName(fn.Name())
	}
	e.Str("caller", FormatCaller(pkg, file, line, c.WithColor))
}

// SplitFuncName splits a qualified function name such as
// "github.com/a/b.(*T).Method" into its package and function parts.
func SplitFuncName(name string) (pkg, function string) {
	lastSlash := strings.LastIndexByte(name, '/')
	if lastSlash < 0 {
		lastSlash = 0
	}
	dot := strings.IndexByte(name[lastSlash:], '.')
	if dot < 0 {
		return name, ""
	}
	dot += lastSlash
	return name[:dot], name[dot+1:]
}

func FormatCaller(pkg, path string, line int, colorize bool) string {
	file := path
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		file = path[i+1:]
	}
	if colorize {
		sep := color.New(color.Faint).Sprint(":")
		return fmt.Sprintf("%s%s%s%s%s", pkg, sep, color.New(color.Bold).Sprint(file), sep, color.New(color.FgHiRed, color.Bold).Sprintf("%d", line))
	}
	return fmt.Sprintf("%s:%s:%d", pkg, file, line)
}

// NewLogger builds the process logger. Console output is colored and human readable;
// anything else gets json lines.
func NewLogger(w io.Writer, level zerolog.Level, console bool) zerolog.Logger {
	if console {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: TimeFormat,
			PartsOrder: []string{zerolog.TimestampFieldName, zerolog.LevelFieldName, "caller", zerolog.MessageFieldName},
			FieldsExclude: []string{
				"caller",
			},
		}
	}
	return zerolog.New(w).
		Level(level).
		Hook(CustomTimeHook{WithColor: false}).
		Hook(CustomCallerHook{WithColor: console})
}
