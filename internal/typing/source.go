package typing

import (
	"fmt"
	"math"
	"os"
	"strings"

	"auto-typer/internal/domain"
)

// loadText resolves the job source into its text payload.
func loadText(src domain.Source, readFile func(string) ([]byte, error)) (string, error) {
	switch src.Kind {
	case domain.SourceInline:
		return src.Content, nil
	case domain.SourceFile:
		if strings.TrimSpace(src.Path) == "" {
			return "", &JobError{Field: "source", Message: "file path is required"}
		}
		data, err := readFile(src.Path)
		if err != nil {
			return "", &JobError{
				Field:   "source",
				Message: fmt.Sprintf("cannot read %s", src.Path),
				Err:     fmt.Errorf("%w: %w", ErrSourceUnavailable, err),
			}
		}
		return string(data), nil
	default:
		return "", &JobError{Field: "source", Message: fmt.Sprintf("unknown source kind %q", src.Kind)}
	}
}

// SplitLines splits on universal newlines. A trailing terminator does not
// start an extra empty line.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimSuffix(text, "\n")
	return strings.Split(text, "\n")
}

// validateJob checks timing and feedback fields.
func validateJob(job domain.TypingJob) error {
	delays := []struct {
		field string
		value float64
	}{
		{"startDelaySeconds", job.StartDelaySeconds},
		{"interCharDelaySeconds", job.InterCharDelaySeconds},
		{"lineEndDelaySeconds", job.LineEndDelaySeconds},
	}
	for _, d := range delays {
		if math.IsNaN(d.value) || math.IsInf(d.value, 0) {
			return &JobError{Field: d.field, Message: "must be a finite number"}
		}
		if d.value < 0 {
			return &JobError{Field: d.field, Message: "must not be negative"}
		}
	}
	if math.IsNaN(job.Volume) || job.Volume < 0 || job.Volume > 1 {
		return &JobError{Field: "volume", Message: "must be between 0 and 1"}
	}
	return nil
}

// readFileDefault is the production file reader.
var readFileDefault = os.ReadFile
