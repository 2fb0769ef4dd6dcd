package command

import (
	"fmt"
	"strings"

	"github.com/google/shlex"
)

// Quote wraps s in double quotes so Split yields it back as one argument.
// Backslashes and quotes are escaped; Windows paths and UNC shares survive.
func Quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// Split tokenizes a command line the way a non-shell Run does.
func Split(command string) ([]string, error) {
	tokens, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("tokenize command: %w", err)
	}
	if len(tokens) == 0 {
		return nil, ErrEmptyCommand
	}
	return tokens, nil
}
