package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"auto-typer/internal/config"
	"auto-typer/internal/diagnostics"
	"auto-typer/internal/domain"
)

// FixDiagnostic applies a remediation for one failed diagnostic item.
func (a *App) FixDiagnostic(itemID string) (domain.DiagnosticReport, error) {
	if a.Store == nil {
		return domain.DiagnosticReport{}, fmt.Errorf("settings store is not configured")
	}

	id := strings.TrimSpace(itemID)
	if id == "" {
		return domain.DiagnosticReport{}, fmt.Errorf("diagnostic item id is required")
	}

	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}

	settingsChanged := false
	var fixErr error

	switch id {
	case diagnostics.CheckLogDir:
		settings, settingsChanged, fixErr = fixLogDir(settings)
	case diagnostics.CheckTiming:
		settings, settingsChanged = fixTiming(settings)
	case diagnostics.CheckDisplay:
		fixErr = fmt.Errorf("the input session cannot be fixed from the application; start it from an X11 desktop")
	default:
		return domain.DiagnosticReport{}, fmt.Errorf("unsupported diagnostic item id: %s", id)
	}

	if settingsChanged {
		if saveErr := a.Store.Save(settings); saveErr != nil {
			report := a.refreshDiagnosticsFromSettings(settings)
			return report, fmt.Errorf("save settings after fix: %w", saveErr)
		}
	}

	report := a.refreshDiagnosticsFromSettings(settings)
	if fixErr != nil {
		return report, fixErr
	}
	return report, nil
}

func (a *App) refreshDiagnosticsFromSettings(settings domain.Settings) domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Settings = settings
	if a.checker != nil {
		a.Diagnostics = a.checker.Run(settings)
	}
	return a.Diagnostics
}

// fixLogDir restores the default log path when empty and creates its directory.
func fixLogDir(settings domain.Settings) (domain.Settings, bool, error) {
	logPath := strings.TrimSpace(settings.LogPath)
	changed := false
	if logPath == "" {
		logPath = config.DefaultSettings().LogPath
		settings.LogPath = logPath
		changed = true
	}

	logDir := filepath.Dir(logPath)
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return settings, changed, fmt.Errorf("create log directory %s: %w", logDir, err)
	}
	return settings, changed, nil
}

// fixTiming resets every invalid delay or volume to its default.
func fixTiming(settings domain.Settings) (domain.Settings, bool) {
	defaults := config.DefaultSettings()
	changed := false
	reset := func(value *float64, fallback float64, valid func(float64) bool) {
		if !valid(*value) {
			*value = fallback
			changed = true
		}
	}
	validDelay := func(v float64) bool {
		return config.CheckDelay("delay", v) == nil
	}

	reset(&settings.StartDelaySeconds, defaults.StartDelaySeconds, validDelay)
	reset(&settings.InterCharDelaySeconds, defaults.InterCharDelaySeconds, validDelay)
	reset(&settings.LineEndDelaySeconds, defaults.LineEndDelaySeconds, validDelay)
	reset(&settings.Volume, defaults.Volume, func(v float64) bool { return v >= 0 && v <= 1 })
	return settings, changed
}
