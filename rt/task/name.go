package task

import (
	"errors"
	"strings"
)

func normalizeName(name string) string { return strings.TrimSpace(name) }

// validateName accepts "" (unnamed) and names made of [A-Za-z0-9._-], which are
// safe in log attributes, metric labels and URL paths.
func validateName(name string) error {
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.' || r == '_' || r == '-':
		case r == '/':
			return errors.New("contains '/'")
		case r == ' ' || r == '\t' || r == '\r' || r == '\n':
			return errors.New("contains whitespace")
		default:
			return errors.New("contains a character outside [A-Za-z0-9._-]")
		}
	}
	return nil
}
