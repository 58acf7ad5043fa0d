package keymap

import (
	"sort"

	"github.com/samber/lo"
)

// Resolver turns characters into ordered primitive key actions.
type Resolver struct {
	table Table
}

// NewResolver builds a resolver over a private copy of table.
func NewResolver(table Table) *Resolver {
	own := make(Table, len(table))
	for ch, entry := range table {
		own[ch] = Entry{
			Modifiers: append([]string(nil), entry.Modifiers...),
			Key:       entry.Key,
		}
	}
	return &Resolver{table: own}
}

// Default returns a resolver over DefaultTable.
func Default() *Resolver {
	return NewResolver(DefaultTable())
}

// Resolve returns the actions that type r. Modifiers are pressed in table
// order and released in reverse order around the primary key.
func (r *Resolver) Resolve(ch rune) []Action {
	entry, ok := r.table[ch]
	if !ok {
		return []Action{writeLiteral(ch)}
	}

	n := len(entry.Modifiers)
	actions := make([]Action, 0, 2*n+1)
	actions = append(actions, lo.Map(entry.Modifiers, func(name string, _ int) Action {
		return pressModifier(name)
	})...)
	actions = append(actions, pressKey(entry.Key))
	for i := n - 1; i >= 0; i-- {
		actions = append(actions, releaseModifier(entry.Modifiers[i]))
	}
	return actions
}

// Mapping pairs a character with its table entry.
type Mapping struct {
	Char  rune  `json:"char"`
	Entry Entry `json:"entry"`
}

// Entries lists the table sorted by character.
func (r *Resolver) Entries() []Mapping {
	chars := lo.Keys(r.table)
	sort.Slice(chars, func(i, j int) bool { return chars[i] < chars[j] })
	return lo.Map(chars, func(ch rune, _ int) Mapping {
		entry := r.table[ch]
		entry.Modifiers = append([]string(nil), entry.Modifiers...)
		return Mapping{Char: ch, Entry: entry}
	})
}
