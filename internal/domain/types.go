package domain

// RunState tracks the lifecycle of a single typing job.
type RunState string

const (
	RunStateIdle         RunState = "idle"
	RunStateCountingDown RunState = "counting_down"
	RunStateRunning      RunState = "running"
	RunStatePaused       RunState = "paused"
	RunStateResuming     RunState = "resuming"
	RunStateStopped      RunState = "stopped"
	RunStateCompleted    RunState = "completed"
	RunStateFailed       RunState = "failed"
)

// Terminal reports whether the state ends a job.
func (s RunState) Terminal() bool {
	switch s {
	case RunStateStopped, RunStateCompleted, RunStateFailed:
		return true
	default:
		return false
	}
}

// Settings contains user-selectable runtime configuration.
type Settings struct {
	StartDelaySeconds     float64 `json:"startDelaySeconds"`
	InterCharDelaySeconds float64 `json:"interCharDelaySeconds"`
	LineEndDelaySeconds   float64 `json:"lineEndDelaySeconds"`
	SoundEnabled          bool    `json:"soundEnabled"`
	Volume                float64 `json:"volume"`
	LoggingEnabled        bool    `json:"loggingEnabled"`
	LogPath               string  `json:"logPath"`
	LastFilePath          string  `json:"lastFilePath,omitempty"`
}

// Job stores the current job identity and lifecycle state.
type Job struct {
	ID    string   `json:"id"`
	State RunState `json:"state"`
}

// SourceKind distinguishes where the text of a job comes from.
type SourceKind string

const (
	SourceFile   SourceKind = "file"
	SourceInline SourceKind = "inline"
)

// Source is either a file reference or inline text.
type Source struct {
	Kind    SourceKind `json:"kind"`
	Path    string     `json:"path,omitempty"`
	Content string     `json:"content,omitempty"`
}

// FileRef builds a source read from disk when the job starts.
func FileRef(path string) Source {
	return Source{Kind: SourceFile, Path: path}
}

// InlineText builds a source from typed or pasted text.
func InlineText(content string) Source {
	return Source{Kind: SourceInline, Content: content}
}

// TypingJob is one unit of work handed to the typing controller.
type TypingJob struct {
	Source                Source  `json:"source"`
	StartDelaySeconds     float64 `json:"startDelaySeconds"`
	InterCharDelaySeconds float64 `json:"interCharDelaySeconds"`
	LineEndDelaySeconds   float64 `json:"lineEndDelaySeconds"`
	SoundEnabled          bool    `json:"soundEnabled"`
	Volume                float64 `json:"volume"`
}

// JobFromSettings copies timing and feedback options onto a job for src.
func JobFromSettings(src Source, settings Settings) TypingJob {
	return TypingJob{
		Source:                src,
		StartDelaySeconds:     settings.StartDelaySeconds,
		InterCharDelaySeconds: settings.InterCharDelaySeconds,
		LineEndDelaySeconds:   settings.LineEndDelaySeconds,
		SoundEnabled:          settings.SoundEnabled,
		Volume:                settings.Volume,
	}
}

// ProgressEvent is a read-only snapshot handed to progress sinks.
type ProgressEvent struct {
	JobID            string   `json:"jobId"`
	LineIndex        int      `json:"lineIndex"`
	TotalLines       int      `json:"totalLines"`
	Phase            RunState `json:"phase"`
	RemainingSeconds float64  `json:"remainingSeconds,omitempty"`
}
