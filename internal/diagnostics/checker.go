package diagnostics

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"auto-typer/internal/config"
	"auto-typer/internal/domain"
)

// Check IDs understood by the fix actions.
const (
	CheckDisplay = "display"
	CheckLogDir  = "log_dir"
	CheckTiming  = "timing"
)

// Checker validates the input session and required filesystem paths.
type Checker struct {
	goos       string
	getenv     func(string) string
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker() *Checker {
	return &Checker{
		goos:       runtime.GOOS,
		getenv:     os.Getenv,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
	}
}

// Run executes all startup checks and returns a combined report.
func (c *Checker) Run(settings domain.Settings) domain.DiagnosticReport {
	items := []domain.DiagnosticItem{
		c.checkDisplay(),
		c.checkLogDir(settings),
		c.checkTiming(settings),
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// checkDisplay verifies a session that can receive synthetic key events.
func (c *Checker) checkDisplay() domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   CheckDisplay,
		Name: "Input session",
	}

	if c.goos != "linux" {
		item.Status = domain.DiagnosticStatusPass
		item.Message = fmt.Sprintf("Native input injection on %s", c.goos)
		return item
	}

	display := c.getenv("DISPLAY")
	wayland := c.getenv("WAYLAND_DISPLAY")
	switch {
	case display != "" && wayland != "":
		item.Status = domain.DiagnosticStatusWarn
		item.Message = fmt.Sprintf("Wayland session with XWayland on %s", display)
		item.Hint = "Keystrokes only reach X11 windows; focus an XWayland application before typing starts."
	case display != "":
		item.Status = domain.DiagnosticStatusPass
		item.Message = fmt.Sprintf("X11 display %s", display)
	case wayland != "":
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Wayland session without an X11 display."
		item.Hint = "Enable XWayland or run an X11 session; synthetic input is injected through X11."
	default:
		item.Status = domain.DiagnosticStatusFail
		item.Message = "No graphical display found."
		item.Hint = "Set DISPLAY or start the application from a desktop session."
	}
	return item
}

// checkLogDir validates log directory existence and write access.
func (c *Checker) checkLogDir(settings domain.Settings) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   CheckLogDir,
		Name: "Log file",
	}

	if !settings.LoggingEnabled {
		item.Status = domain.DiagnosticStatusPass
		item.Message = "Logging disabled."
		return item
	}
	if strings.TrimSpace(settings.LogPath) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Log path is empty."
		item.Hint = "Set a log file path or disable logging."
		return item
	}

	logDir := filepath.Dir(settings.LogPath)
	if err := c.mkdirAll(logDir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create log directory: %s", logDir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		return item
	}

	tmpFile, err := c.createTemp(logDir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Log directory is not writable: %s", logDir)
		item.Hint = "Choose a writable directory for the log file."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", logDir)
	return item
}

// checkTiming validates persisted delays and volume.
func (c *Checker) checkTiming(settings domain.Settings) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   CheckTiming,
		Name: "Timing settings",
	}

	if err := config.Validate(settings); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = err.Error()
		item.Hint = "Delays must be non-negative numbers and volume between 0 and 1."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf(
		"Start %.2fs, per character %.2fs, per line %.2fs",
		settings.StartDelaySeconds,
		settings.InterCharDelaySeconds,
		settings.LineEndDelaySeconds,
	)
	return item
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	goos string,
	getenv func(string) string,
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		goos:       goos,
		getenv:     getenv,
		mkdirAll:   mkdirAll,
		createTemp: createTemp,
		remove:     remove,
	}
}
