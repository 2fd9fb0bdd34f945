// Package prompt assembles the chat messages sent to the model.
package prompt

import (
	"strings"

	"github.com/arin/mimir/internal/ai"
)

// Preamble opens every user prompt.
const Preamble = "You are a friendly Linux assistant. Be concise, clear, step-by-step."

// SystemMessage is sent as the system role message.
const SystemMessage = "You help troubleshoot Linux commands."

// Build embeds the collected context and the user's input in the fixed
// template. context is used verbatim; input is trimmed.
func Build(context, input string) string {
	var sb strings.Builder
	sb.Grow(len(Preamble) + len(context) + len(input) + 24)
	sb.WriteString(Preamble)
	sb.WriteString("\n\nContext:")
	sb.WriteString(context)
	sb.WriteString("\n\nInput:\n")
	sb.WriteString(strings.TrimSpace(input))
	return sb.String()
}

// Messages returns the system and user messages for one question.
func Messages(context, input string) []ai.Message {
	return []ai.Message{
		{Role: ai.RoleSystem, Content: SystemMessage},
		{Role: ai.RoleUser, Content: Build(context, input)},
	}
}
