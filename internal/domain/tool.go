package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// ToolRegistration identifies an MCP server by label and endpoint, plus the
// capability names currently offered to the executor. An empty allow-list
// offers every capability the server advertises.
type ToolRegistration struct {
	ServerLabel  string
	ServerURL    string
	AllowedTools []string
}

func (t ToolRegistration) Validate() error {
	if strings.TrimSpace(t.ServerLabel) == "" {
		return fmt.Errorf("server label is required")
	}
	if strings.TrimSpace(t.ServerURL) == "" {
		return fmt.Errorf("server url is required")
	}

	parsed, err := url.Parse(t.ServerURL)
	if err != nil {
		return fmt.Errorf("parse server url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("server url must use http or https")
	}
	if parsed.Host == "" {
		return fmt.Errorf("server url host is required")
	}

	return nil
}

func (t *ToolRegistration) NormalizeAllowed() {
	if t == nil {
		return
	}

	allowed := make([]string, 0, len(t.AllowedTools))
	seen := make(map[string]struct{}, len(t.AllowedTools))
	for _, name := range t.AllowedTools {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		allowed = append(allowed, trimmed)
	}

	t.AllowedTools = allowed
}
