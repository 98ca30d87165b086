package commands

import "strings"

// Invocation is a parsed slash command line.
type Invocation struct {
	// Name is the command name without the slash, as typed
	Name string

	// Args are the whitespace-separated arguments
	Args []string

	// RawArgs is everything after the command name, untrimmed inside
	RawArgs string
}

// IsCommand reports whether input is a slash command.
// "//text" escapes a literal message starting with a slash.
func IsCommand(input string) bool {
	input = strings.TrimSpace(input)
	return strings.HasPrefix(input, "/") && !strings.HasPrefix(input, "//")
}

// Parse splits "/name arg1 arg2" into an Invocation.
func Parse(input string) (Invocation, bool) {
	if !IsCommand(input) {
		return Invocation{}, false
	}
	input = strings.TrimSpace(input)[1:]

	parts := strings.Fields(input)
	if len(parts) == 0 {
		return Invocation{}, false
	}

	inv := Invocation{Name: parts[0], Args: parts[1:]}
	if idx := strings.IndexFunc(input, isSpace); idx >= 0 {
		inv.RawArgs = strings.TrimSpace(input[idx:])
	}
	return inv, true
}

// Unescape strips the escaping slash from "//text".
func Unescape(input string) string {
	trimmed := strings.TrimSpace(input)
	if strings.HasPrefix(trimmed, "//") {
		return trimmed[1:]
	}
	return input
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t'
}

// rest joins args from index i, the trailing parameter of most IRC commands.
func rest(args []string, i int) string {
	if i >= len(args) {
		return ""
	}
	return strings.Join(args[i:], " ")
}
