package toml

import "fmt"

const currentSchemaVersion = 1

type fileSchema struct {
	Version int           `toml:"version"`
	Agents  []agentSchema `toml:"agents"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported agents schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type agentSchema struct {
	Name      string     `toml:"name"`
	ID        string     `toml:"id"`
	Model     string     `toml:"model"`
	Tool      toolSchema `toml:"tool"`
	CreatedAt string     `toml:"created_at,omitempty"`
}

type toolSchema struct {
	ServerLabel  string   `toml:"server_label"`
	ServerURL    string   `toml:"server_url"`
	AllowedTools []string `toml:"allowed_tools,omitempty"`
}
