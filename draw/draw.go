// Package draw picks a random winner among names given to the draw command.
package draw

import (
	"errors"
	"math/rand/v2"
	"strings"
)

// ErrNoNames is returned when there is nobody to draw from
var ErrNoNames = errors.New("no names to draw from")

// ParseNames splits command arguments on whitespace and commas, dropping duplicates
func ParseNames(args string) []string {
	fields := strings.FieldsFunc(args, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\n' || r == '\t'
	})

	seen := make(map[string]bool, len(fields))
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimPrefix(strings.TrimSpace(f), "@")
		key := strings.ToLower(f)
		if f == "" || seen[key] {
			continue
		}
		seen[key] = true
		names = append(names, f)
	}
	return names
}

// Pick returns one name chosen uniformly. A nil r uses the global source.
func Pick(names []string, r *rand.Rand) (string, error) {
	if len(names) == 0 {
		return "", ErrNoNames
	}
	if r == nil {
		return names[rand.IntN(len(names))], nil
	}
	return names[r.IntN(len(names))], nil
}
