package ai

import (
	_ "embed"
)

//go:embed system_prompt.md
var systemPrompt string

// SystemPrompt returns the base system prompt for the assistant.
func SystemPrompt() string {
	return systemPrompt
}
