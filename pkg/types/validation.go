package types

import "unicode/utf8"

// GameIDLength is the fixed length of a session identifier. Short uppercase
// tokens keep IDs human-typable for manual matchmaking entry.
const GameIDLength = 6

// IsValidPlayerName reports whether name is acceptable as a display name.
func IsValidPlayerName(name string) bool {
	n := utf8.RuneCountInString(name)
	return n >= 1 && n <= 50
}

// IsValidGameID reports whether id is a well-formed session identifier:
// exactly 6 characters drawn from A-Z and 0-9.
func IsValidGameID(id string) bool {
	if len(id) != GameIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
