package config

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"auto-typer/internal/domain"
)

// ErrInvalidSetting is returned for settings that cannot start a job.
var ErrInvalidSetting = errors.New("invalid setting")

// ParseDelay parses a user-entered delay in seconds. Empty input is accepted
// as unset only while the field is being edited (live), and yields 0.
func ParseDelay(field, raw string, live bool) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if live {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %s is required", ErrInvalidSetting, field)
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", ErrInvalidSetting, field)
	}
	if err := CheckDelay(field, value); err != nil {
		return 0, err
	}
	return value, nil
}

// Validate checks every timing and feedback field of settings.
func Validate(settings domain.Settings) error {
	var errs []error
	for field, value := range map[string]float64{
		"startDelaySeconds":     settings.StartDelaySeconds,
		"interCharDelaySeconds": settings.InterCharDelaySeconds,
		"lineEndDelaySeconds":   settings.LineEndDelaySeconds,
	} {
		if err := CheckDelay(field, value); err != nil {
			errs = append(errs, err)
		}
	}
	if math.IsNaN(settings.Volume) || settings.Volume < 0 || settings.Volume > 1 {
		errs = append(errs, fmt.Errorf("%w: volume must be between 0 and 1", ErrInvalidSetting))
	}
	return errors.Join(errs...)
}

// Normalize trims paths, clamps volume, and fills an empty log path.
func Normalize(settings domain.Settings) domain.Settings {
	settings.LogPath = strings.TrimSpace(settings.LogPath)
	if settings.LogPath == "" {
		settings.LogPath = DefaultSettings().LogPath
	}
	settings.LastFilePath = strings.TrimSpace(settings.LastFilePath)
	if math.IsNaN(settings.Volume) {
		settings.Volume = DefaultSettings().Volume
	}
	settings.Volume = lo.Clamp(settings.Volume, 0, 1)
	return settings
}

// CheckDelay rejects negative and non-finite delays.
func CheckDelay(field string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%w: %s must be a finite number", ErrInvalidSetting, field)
	}
	if value < 0 {
		return fmt.Errorf("%w: %s must not be negative", ErrInvalidSetting, field)
	}
	return nil
}
