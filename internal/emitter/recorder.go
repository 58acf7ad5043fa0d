package emitter

import (
	"fmt"
	"strings"
	"sync"
)

// Recorder is a backend that records calls instead of emitting them. It is
// used for dry runs and tests.
type Recorder struct {
	mu    sync.Mutex
	calls []string
	fail  func(call string) error
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// FailOn makes every call for which fail returns an error fail with it.
// Failed calls are still recorded.
func (r *Recorder) FailOn(fail func(call string) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = fail
}

func (r *Recorder) PressKey(name string) error   { return r.record("press:" + name) }
func (r *Recorder) ReleaseKey(name string) error { return r.record("release:" + name) }
func (r *Recorder) WriteLiteral(ch rune) error   { return r.record("write:" + string(ch)) }
func (r *Recorder) CommitLine() error            { return r.record("commit") }

// Calls returns a copy of the recorded calls in order.
func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// Text approximates what the calls typed: literal writes, bare key presses
// and line breaks. Chorded keys are rendered as name in braces.
func (r *Recorder) Text() string {
	var b strings.Builder
	held := 0
	for _, call := range r.Calls() {
		kind, arg, _ := strings.Cut(call, ":")
		switch kind {
		case "write":
			b.WriteString(arg)
		case "commit":
			b.WriteByte('\n')
		case "press":
			if held > 0 {
				fmt.Fprintf(&b, "{%s}", arg)
			} else if isModifier(arg) {
				held++
			} else {
				b.WriteString(arg)
			}
		case "release":
			if isModifier(arg) && held > 0 {
				held--
			}
		}
	}
	return b.String()
}

func (r *Recorder) record(call string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
	if r.fail != nil {
		return r.fail(call)
	}
	return nil
}

func isModifier(name string) bool {
	switch name {
	case "shift", "ctrl", "alt", "cmd", "lshift", "rshift", "lctrl", "rctrl", "lalt", "ralt":
		return true
	default:
		return false
	}
}
