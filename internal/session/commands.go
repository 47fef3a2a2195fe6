package session

import "strings"

// Local control words are matched exactly (not as substrings) so an
// analytical question mentioning "stop" never ends the session.
var (
	exitCommands  = map[string]struct{}{"exit": {}, "quit": {}, "stop": {}, "terminate": {}}
	resetCommands = map[string]struct{}{"reset": {}, "clear": {}}
	helpCommands  = map[string]struct{}{"help": {}, "?": {}}
)

// IsExitCommand reports whether the input is exactly one of the local
// exit words.
func IsExitCommand(text string) bool {
	_, ok := exitCommands[normalize(text)]
	return ok
}

// IsResetCommand reports whether the input asks to clear local state.
func IsResetCommand(text string) bool {
	_, ok := resetCommands[normalize(text)]
	return ok
}

// IsHelpCommand reports whether the input asks for local help.
func IsHelpCommand(text string) bool {
	_, ok := helpCommands[normalize(text)]
	return ok
}

func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
