package keymap

// Entry maps one character to the physical key that produces it.
type Entry struct {
	Modifiers []string `json:"modifiers,omitempty"`
	Key       string   `json:"key"`
}

// Table maps source characters to physical key entries.
type Table map[rune]Entry

const shift = "shift"

// DefaultTable returns the built-in US layout table. Each call returns a
// fresh copy so callers cannot mutate the shared data.
func DefaultTable() Table {
	table := make(Table, len(shiftedSymbols)+len(accentedVowels)*2)
	for ch, key := range shiftedSymbols {
		table[ch] = Entry{Modifiers: []string{shift}, Key: key}
	}
	for ch, key := range accentedVowels {
		table[ch] = Entry{Key: key}
	}
	for ch, key := range upperAccentedVowels {
		table[ch] = Entry{Modifiers: []string{shift}, Key: key}
	}
	return table
}

var shiftedSymbols = map[rune]string{
	'!': "1",
	'@': "2",
	'#': "3",
	'$': "4",
	'%': "5",
	'^': "6",
	'&': "7",
	'*': "8",
	'(': "9",
	')': "0",
	'_': "-",
	'+': "=",
	'{': "[",
	'}': "]",
	'|': "\\",
	':': ";",
	'"': "'",
	'<': ",",
	'>': ".",
	'?': "/",
	'~': "`",
}

// The backend cannot compose diacritics, so accented vowels degrade to the
// bare letter.
var accentedVowels = map[rune]string{
	'á': "a", 'à': "a", 'â': "a", 'ä': "a",
	'é': "e", 'è': "e", 'ê': "e", 'ë': "e",
	'í': "i", 'ì': "i", 'î': "i", 'ï': "i",
	'ó': "o", 'ò': "o", 'ô': "o", 'ö': "o",
	'ú': "u", 'ù': "u", 'û': "u", 'ü': "u",
}

var upperAccentedVowels = map[rune]string{
	'Á': "a", 'À': "a", 'Â': "a", 'Ä': "a",
	'É': "e", 'È': "e", 'Ê': "e", 'Ë': "e",
	'Í': "i", 'Ì': "i", 'Î': "i", 'Ï': "i",
	'Ó': "o", 'Ò': "o", 'Ô': "o", 'Ö': "o",
	'Ú': "u", 'Ù': "u", 'Û': "u", 'Ü': "u",
}
