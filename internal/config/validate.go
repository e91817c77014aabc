package config

import (
	"fmt"
)

// Validate rejects configurations that would only fail later, at the first
// wrapped call.
func (c *Config) Validate() error {
	switch c.Provider.Name {
	case "openai", "anthropic", "gemini":
	case "":
		return fmt.Errorf("provider.name must be set")
	default:
		return fmt.Errorf("unsupported provider %q (want openai, anthropic or gemini)", c.Provider.Name)
	}

	if c.Provider.DefaultModel == "" {
		return fmt.Errorf("provider.default_model must be set")
	}
	if c.Chat.MaxTurns < 1 {
		return fmt.Errorf("chat.max_turns must be at least 1, got %d", c.Chat.MaxTurns)
	}
	if c.Chat.MaxMessageLength < 1 {
		return fmt.Errorf("chat.max_message_length must be at least 1, got %d", c.Chat.MaxMessageLength)
	}
	if c.Telemetry.LogFile == "" {
		return fmt.Errorf("telemetry.log_file must be set")
	}
	return nil
}
