package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsExitCommand(t *testing.T) {
	for _, word := range []string{"exit", "quit", "stop", "terminate", "  EXIT  ", "Quit"} {
		assert.True(t, IsExitCommand(word), "word %q", word)
	}

	// Exact-match only: analytical questions mentioning a control word
	// must not end the session.
	for _, text := range []string{"", "should we stop the campaign?", "exit strategy", "quitting"} {
		assert.False(t, IsExitCommand(text), "text %q", text)
	}
}

func TestIsResetCommand(t *testing.T) {
	assert.True(t, IsResetCommand("reset"))
	assert.True(t, IsResetCommand("Clear"))
	assert.False(t, IsResetCommand("reset the filters"))
}

func TestIsHelpCommand(t *testing.T) {
	assert.True(t, IsHelpCommand("help"))
	assert.True(t, IsHelpCommand("?"))
	assert.False(t, IsHelpCommand("help me rank campaigns"))
}
