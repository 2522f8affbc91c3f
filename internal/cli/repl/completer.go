package repl

import (
	"sort"
	"strings"
)

var builtins = []string{"exit", "help", "history", "quit"}

// Completer provides command completion for the REPL.
type Completer struct {
	commands []string
}

// NewCompleter creates a Completer over names plus the shell builtins.
func NewCompleter(names ...string) *Completer {
	seen := make(map[string]struct{}, len(names)+len(builtins))
	var commands []string
	for _, n := range append(append([]string{}, names...), builtins...) {
		if _, ok := seen[n]; ok || n == "" {
			continue
		}
		seen[n] = struct{}{}
		commands = append(commands, n)
	}
	sort.Strings(commands)
	return &Completer{commands: commands}
}

// Complete returns the commands starting with prefix, sorted.
func (c *Completer) Complete(prefix string) []string {
	var suggestions []string
	for _, cmd := range c.commands {
		if strings.HasPrefix(cmd, prefix) {
			suggestions = append(suggestions, cmd)
		}
	}
	return suggestions
}
