package keymap

import "fmt"

// ActionKind identifies one primitive key action.
type ActionKind string

const (
	PressModifier   ActionKind = "press_modifier"
	ReleaseModifier ActionKind = "release_modifier"
	PressKey        ActionKind = "press_key"
	WriteLiteral    ActionKind = "write_literal"
	CommitLine      ActionKind = "commit_line"
)

// LineBreak terminates a typed line. The resolver never produces it; the
// controller emits it after every line.
var LineBreak = Action{Kind: CommitLine}

// Action is one primitive instruction for the emission backend.
// Key is set for modifier and key actions, Char for literal writes.
type Action struct {
	Kind ActionKind `json:"kind"`
	Key  string     `json:"key,omitempty"`
	Char rune       `json:"char,omitempty"`
}

// String renders the action for logs and test failures.
func (a Action) String() string {
	switch a.Kind {
	case WriteLiteral:
		return fmt.Sprintf("write(%q)", a.Char)
	case PressModifier:
		return fmt.Sprintf("pressModifier(%s)", a.Key)
	case ReleaseModifier:
		return fmt.Sprintf("releaseModifier(%s)", a.Key)
	case PressKey:
		return fmt.Sprintf("pressKey(%s)", a.Key)
	case CommitLine:
		return "commitLine()"
	default:
		return string(a.Kind)
	}
}

func pressModifier(name string) Action   { return Action{Kind: PressModifier, Key: name} }
func releaseModifier(name string) Action { return Action{Kind: ReleaseModifier, Key: name} }
func pressKey(name string) Action        { return Action{Kind: PressKey, Key: name} }
func writeLiteral(r rune) Action         { return Action{Kind: WriteLiteral, Char: r} }
