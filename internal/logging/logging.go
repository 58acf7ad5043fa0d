package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/wailsapp/wails/v2/pkg/logger"
)

// Switch is a logger.Logger that fans out to its sinks while enabled and
// drops everything while disabled. Level filtering applies to enabled output.
type Switch struct {
	sinks   []logger.Logger
	enabled atomic.Bool
	level   atomic.Uint32
}

var _ logger.Logger = (*Switch)(nil)

// New writes to logPath and the console. An empty logPath keeps console
// output only. When the log directory cannot be created the returned switch
// still logs to the console and the error explains why the file is missing.
func New(logPath string, enabled bool) (*Switch, error) {
	sinks := []logger.Logger{logger.NewDefaultLogger()}
	if logPath == "" {
		return NewSwitch(enabled, sinks...), nil
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return NewSwitch(enabled, sinks...), fmt.Errorf("create log directory: %w", err)
	}
	sinks = append(sinks, logger.NewFileLogger(logPath))
	return NewSwitch(enabled, sinks...), nil
}

// NewSwitch builds a switch over explicit sinks.
func NewSwitch(enabled bool, sinks ...logger.Logger) *Switch {
	s := &Switch{sinks: sinks}
	s.enabled.Store(enabled)
	s.level.Store(uint32(logger.INFO))
	return s
}

// Discard returns a permanently disabled logger.
func Discard() *Switch {
	return NewSwitch(false)
}

// SetEnabled toggles output at runtime.
func (s *Switch) SetEnabled(enabled bool) {
	s.enabled.Store(enabled)
}

// Enabled reports whether messages are currently forwarded.
func (s *Switch) Enabled() bool {
	return s.enabled.Load()
}

// SetLevel sets the minimum level forwarded to sinks.
func (s *Switch) SetLevel(level logger.LogLevel) {
	s.level.Store(uint32(level))
}

func (s *Switch) Print(message string)   { s.emit(logger.ERROR, message, logger.Logger.Print) }
func (s *Switch) Trace(message string)   { s.emit(logger.TRACE, message, logger.Logger.Trace) }
func (s *Switch) Debug(message string)   { s.emit(logger.DEBUG, message, logger.Logger.Debug) }
func (s *Switch) Info(message string)    { s.emit(logger.INFO, message, logger.Logger.Info) }
func (s *Switch) Warning(message string) { s.emit(logger.WARNING, message, logger.Logger.Warning) }
func (s *Switch) Error(message string)   { s.emit(logger.ERROR, message, logger.Logger.Error) }

// Fatal is forwarded as an error; the switch never exits the process.
func (s *Switch) Fatal(message string) { s.emit(logger.ERROR, message, logger.Logger.Error) }

func (s *Switch) emit(level logger.LogLevel, message string, write func(logger.Logger, string)) {
	if !s.enabled.Load() || uint32(level) < s.level.Load() {
		return
	}
	for _, sink := range s.sinks {
		write(sink, message)
	}
}
