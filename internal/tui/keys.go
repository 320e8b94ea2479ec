package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// handleKeyMsg reports whether the key was consumed. Unconsumed keys go to the
// textarea.
func (m *ChatModel) handleKeyMsg(msg tea.KeyMsg) (bool, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return true, tea.Quit
	}

	if m.session.Thinking() {
		// Input is disabled until the in-flight request settles.
		return true, nil
	}

	switch msg.String() {
	case "shift+enter", "alt+enter":
		return false, nil
	case "enter":
		text := m.textarea.Value()
		if strings.TrimSpace(text) == "" {
			return true, nil
		}
		return true, sendMessage(text)
	}

	return false, nil
}
