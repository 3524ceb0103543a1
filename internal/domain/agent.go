package domain

import (
	"fmt"
	"strings"
	"time"
)

type AgentID string

type Agent struct {
	ID           AgentID
	Name         string
	Model        string
	Instructions string
	Tools        []ToolRegistration
	CreatedAt    time.Time
}

// AgentDefinition is what the caller supplies to create a remote agent.
type AgentDefinition struct {
	Name         string
	Model        string
	Instructions string
	Tool         ToolRegistration
}

func (d AgentDefinition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("agent name is required")
	}
	if strings.TrimSpace(d.Model) == "" {
		return fmt.Errorf("model deployment is required")
	}
	if err := d.Tool.Validate(); err != nil {
		return fmt.Errorf("tool registration: %w", err)
	}

	return nil
}

// AgentRecord is the locally persisted name→agent mapping, including the
// MCP registration the agent was created with.
type AgentRecord struct {
	Name      string
	ID        AgentID
	Model     string
	Tool      ToolRegistration
	CreatedAt time.Time
}
