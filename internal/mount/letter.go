// Package mount attaches remote shares at local drive letters.
package mount

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoFreeLetter is returned when every drive letter is assigned.
var ErrNoFreeLetter = errors.New("no available drive letters")

// DriveLetter is one of the 26 mount points A through Z.
type DriveLetter rune

// ParseDriveLetter accepts "e", "E" or "E:".
func ParseDriveLetter(s string) (DriveLetter, error) {
	trimmed := strings.ToUpper(strings.TrimSuffix(strings.TrimSpace(s), ":"))
	if len(trimmed) != 1 {
		return 0, fmt.Errorf("invalid drive letter %q", s)
	}
	if l := DriveLetter(trimmed[0]); l.Valid() {
		return l, nil
	}
	return 0, fmt.Errorf("invalid drive letter %q", s)
}

// String renders the letter with its colon, e.g. "E:".
func (d DriveLetter) String() string {
	return string(rune(d)) + ":"
}

// Valid reports whether d is within A to Z.
func (d DriveLetter) Valid() bool {
	return d >= 'A' && d <= 'Z'
}

// lowestFree returns the smallest letter not in assigned.
func lowestFree(assigned []DriveLetter) (DriveLetter, error) {
	used := make(map[DriveLetter]bool, len(assigned))
	for _, l := range assigned {
		used[l] = true
	}
	for l := DriveLetter('A'); l <= 'Z'; l++ {
		if !used[l] {
			return l, nil
		}
	}
	return 0, ErrNoFreeLetter
}
