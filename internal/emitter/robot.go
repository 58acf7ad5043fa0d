package emitter

import (
	"fmt"

	"github.com/go-vgo/robotgo"
)

// Robot injects synthetic key events into the focused window through robotgo.
type Robot struct {
	keyToggle func(key string, args ...interface{}) error
	keyTap    func(key string, args ...interface{}) error
	typeStr   func(str string, args ...int)
}

// NewRobot creates the native emission backend.
func NewRobot() *Robot {
	return &Robot{
		keyToggle: robotgo.KeyToggle,
		keyTap:    robotgo.KeyTap,
		typeStr:   robotgo.TypeStr,
	}
}

// PressKey holds name down until ReleaseKey.
func (r *Robot) PressKey(name string) error {
	if err := r.keyToggle(name, "down"); err != nil {
		return fmt.Errorf("press %s: %w", name, err)
	}
	return nil
}

// ReleaseKey lets name go.
func (r *Robot) ReleaseKey(name string) error {
	if err := r.keyToggle(name, "up"); err != nil {
		return fmt.Errorf("release %s: %w", name, err)
	}
	return nil
}

// WriteLiteral inserts one character as text.
func (r *Robot) WriteLiteral(ch rune) error {
	r.typeStr(string(ch))
	return nil
}

// CommitLine presses enter.
func (r *Robot) CommitLine() error {
	if err := r.keyTap("enter"); err != nil {
		return fmt.Errorf("commit line: %w", err)
	}
	return nil
}
