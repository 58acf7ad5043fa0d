package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/atotto/clipboard"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/logger"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"auto-typer/internal/config"
	"auto-typer/internal/diagnostics"
	"auto-typer/internal/domain"
	"auto-typer/internal/emitter"
	"auto-typer/internal/jobs"
	"auto-typer/internal/logging"
	"auto-typer/internal/typing"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

var textDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Text and source files",
		Pattern:     "*.txt;*.md;*.php;*.go;*.py;*.js;*.ts;*.html;*.css;*.json;*.sql",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// App wires configuration, the typing controller, and UI runtime callbacks.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Typist      typist
	Diagnostics domain.DiagnosticReport
	Log         *logging.Switch
	assets      fs.FS
	checker     *diagnostics.Checker
	readClip    func() (string, error)

	mu         sync.Mutex
	events     *jobs.EventBus
	runtimeCtx context.Context
}

// typist isolates the typing controller behind an interface.
type typist interface {
	Start(job domain.TypingJob, hooks typing.Hooks) (domain.Job, error)
	Pause() error
	Resume() error
	Stop() error
	Acknowledge() error
	Current() domain.Job
}

// New builds the application with persisted settings and startup diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}

	store := config.NewJSONStore(config.SettingsPath(homeDir))
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	settings = config.Normalize(settings)

	log, logErr := logging.New(settings.LogPath, settings.LoggingEnabled)
	if logErr != nil {
		log.Warning(logErr.Error())
	}

	checker := diagnostics.NewChecker()
	report := checker.Run(settings)

	return &App{
		Settings:    settings,
		Store:       store,
		Typist:      typing.New(emitter.NewRobot(), typing.WithLogger(log)),
		Diagnostics: report,
		Log:         log,
		assets:      assets,
		checker:     checker,
		readClip:    clipboard.ReadAll,
		events:      jobs.NewEventBus(1000),
	}, nil
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Auto Typer",
		Width:       520,
		Height:      460,
		AssetServer: assetOptions,
		Logger:      a.Log,
		LogLevel:    logger.INFO,
		OnStartup:   a.Startup,
		OnShutdown: func(ctx context.Context) {
			_ = a.Typist.Stop()
			a.mu.Lock()
			defer a.mu.Unlock()
			a.runtimeCtx = nil
		},
		Bind: []interface{}{a},
	})
}

// Startup stores Wails runtime context for push events.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings validates, normalizes and persists settings, then refreshes diagnostics.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := config.Normalize(settings)
	if err := config.Validate(normalized); err != nil {
		return domain.Settings{}, err
	}
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.applyLogging(normalized.LoggingEnabled)
	a.refreshDiagnosticsFromSettings(normalized)
	return normalized, nil
}

// ValidateDelayField checks one delay while the user is still editing it.
func (a *App) ValidateDelayField(field, raw string) error {
	_, err := config.ParseDelay(field, raw, true)
	return err
}

// SetLogging toggles the log file at runtime and persists the choice.
func (a *App) SetLogging(enabled bool) (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	settings.LoggingEnabled = enabled
	return a.SaveSettings(settings)
}

// PickTextFile opens a native file dialog and remembers the selection.
func (a *App) PickTextFile() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	lastDir := ""
	if a.Settings.LastFilePath != "" {
		lastDir = filepath.Dir(a.Settings.LastFilePath)
	}
	a.mu.Unlock()

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:            "Select text file",
		DefaultDirectory: lastDir,
		Filters:          textDialogFilter,
	})
	if err != nil {
		return "", err
	}
	path = strings.TrimSpace(path)
	if path == "" {
		a.Log.Warning("file selection cancelled")
		return "", nil
	}

	a.Log.Info("selected file: " + path)
	settings, err := a.Store.Load()
	if err == nil {
		settings.LastFilePath = path
		if _, err := a.SaveSettings(settings); err != nil {
			a.Log.Warning(fmt.Sprintf("remember selected file: %v", err))
		}
	}
	return path, nil
}

// PasteFromClipboard returns the current clipboard text for inline typing.
func (a *App) PasteFromClipboard() (string, error) {
	text, err := a.readClip()
	if err != nil {
		return "", fmt.Errorf("read clipboard: %w", err)
	}
	return text, nil
}

// RefreshDiagnostics reloads settings and reruns environment checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}
	return a.refreshDiagnosticsFromSettings(settings), nil
}

// StartTypingFile types the contents of path with the persisted settings.
func (a *App) StartTypingFile(path string) (domain.Job, error) {
	return a.startTyping(domain.FileRef(path))
}

// StartTypingText types text with the persisted settings.
func (a *App) StartTypingText(text string) (domain.Job, error) {
	return a.startTyping(domain.InlineText(text))
}

// PauseTyping pauses the running job.
func (a *App) PauseTyping() error {
	if err := a.Typist.Pause(); err != nil {
		return err
	}
	job := a.Typist.Current()
	a.publishStatus(job.ID, domain.RunStatePaused, "Paused")
	return nil
}

// ResumeTyping resumes the paused job after the start delay.
func (a *App) ResumeTyping() error {
	if err := a.Typist.Resume(); err != nil {
		return err
	}
	job := a.Typist.Current()
	a.publishStatus(job.ID, domain.RunStateResuming, "Get ready, resuming")
	return nil
}

// StopTyping stops the active job.
func (a *App) StopTyping() error {
	job := a.Typist.Current()
	if err := a.Typist.Stop(); err != nil {
		return err
	}
	a.publishStatus(job.ID, domain.RunStateStopped, "Stop requested")
	return nil
}

// AcknowledgeJob clears a finished job so the UI returns to idle.
func (a *App) AcknowledgeJob() (domain.Job, error) {
	if err := a.Typist.Acknowledge(); err != nil {
		return domain.Job{}, err
	}
	return a.Typist.Current(), nil
}

// CurrentJob returns current job metadata and state.
func (a *App) CurrentJob() domain.Job {
	return a.Typist.Current()
}

// JobEvents returns all events with sequence greater than sinceSeq.
func (a *App) JobEvents(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// startTyping snapshots settings into a job and hands it to the controller.
func (a *App) startTyping(src domain.Source) (domain.Job, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Job{}, fmt.Errorf("load settings: %w", err)
	}
	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	job, err := a.Typist.Start(domain.JobFromSettings(src, settings), typing.Hooks{
		OnProgress: func(progress domain.ProgressEvent) {
			a.publishEvent(jobs.ProgressEvent(progress))
		},
		OnTick: func() {
			a.publishTick(settings.Volume)
		},
		OnFinish: func(result typing.Result) {
			a.publishResult(result)
		},
	})
	if err != nil {
		if !errors.Is(err, jobs.ErrJobAlreadyRunning) {
			a.Log.Error(fmt.Sprintf("start typing: %v", err))
		}
		return domain.Job{}, err
	}

	a.publishStatus(job.ID, domain.RunStateCountingDown, "Get ready")
	return job, nil
}

// publishResult maps a terminal controller result to job events.
func (a *App) publishResult(result typing.Result) {
	switch result.State {
	case domain.RunStateCompleted:
		a.publishStatus(result.JobID, result.State, "Typing finished")
		a.publishEvent(jobs.Event{
			JobID:      result.JobID,
			Type:       jobs.EventTypeResult,
			State:      result.State,
			Message:    fmt.Sprintf("Typed %d lines", result.Lines),
			TotalLines: result.Lines,
			CharsTyped: result.Chars,
		})
	case domain.RunStateFailed:
		a.publishStatus(result.JobID, result.State, "Typing failed")
		message := "typing failed"
		if result.Err != nil {
			message = result.Err.Error()
		}
		a.publishEvent(jobs.Event{
			JobID:      result.JobID,
			Type:       jobs.EventTypeError,
			State:      result.State,
			Message:    message,
			CharsTyped: result.Chars,
		})
	default:
		a.publishStatus(result.JobID, result.State, fmt.Sprintf("Typing stopped after %d lines", result.Lines))
	}
}

// publishStatus sends a normalized status event.
func (a *App) publishStatus(jobID string, state domain.RunState, message string) {
	a.publishEvent(jobs.Event{
		JobID:   jobID,
		Type:    jobs.EventTypeStatus,
		State:   state,
		Message: message,
	})
}

// publishTick forwards per-character feedback to the frontend audio player.
// Ticks are pushed but not kept in the event history.
func (a *App) publishTick(volume float64) {
	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, "typing:tick", jobs.Event{
			Type:   jobs.EventTypeTick,
			Volume: math.Round(volume*100) / 100,
		})
	}
}

// publishEvent stores event history and emits runtime push notifications.
func (a *App) publishEvent(event jobs.Event) {
	published := a.events.Publish(event)

	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, "job:event", published)
	}
}

// applyLogging flips the runtime log switch.
func (a *App) applyLogging(enabled bool) {
	if a.Log == nil || a.Log.Enabled() == enabled {
		return
	}
	if enabled {
		a.Log.SetEnabled(true)
		a.Log.Info("logging enabled")
		return
	}
	a.Log.Info("logging disabled")
	a.Log.SetEnabled(false)
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}
