package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/bnema/foundry-agents-cli/internal/domain"
	"github.com/bnema/foundry-agents-cli/internal/ports"
)

const (
	configName      = "config"
	configType      = "toml"
	agentsPathKey   = "agents.path"
	agentsFileMode  = 0o600
	agentsDirMode   = 0o700
	agentsConfigDir = ".foundry"
	agentsFile      = "agents.toml"
	tempFilePattern = ".agents-*.toml.tmp"
)

// Repository keeps the name→agent mapping in a TOML file so a later
// session can reuse an agent created earlier.
type Repository struct {
	agentsPath string
	mu         *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.AgentStore = (*Repository)(nil)

func NewRepository(cfg *viper.Viper) (*Repository, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	defaultPath := filepath.Join(homeDir, agentsConfigDir, agentsFile)

	cfg.SetConfigName(configName)
	cfg.SetConfigType(configType)
	cfg.AddConfigPath(filepath.Join(homeDir, agentsConfigDir))
	cfg.SetDefault(agentsPathKey, defaultPath)

	err = cfg.ReadInConfig()
	if err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	agentsPath := cfg.GetString(agentsPathKey)
	if agentsPath == "" {
		return nil, errors.New("agents path is empty")
	}
	agentsPath, err = normalizeAgentsPath(agentsPath)
	if err != nil {
		return nil, err
	}

	return &Repository{agentsPath: agentsPath, mu: lockForPath(agentsPath)}, nil
}

// Path reports where the repository keeps its agents file.
func (r *Repository) Path() string { return r.agentsPath }

func (r *Repository) Save(ctx context.Context, record domain.AgentRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if record.Name == "" {
		return errors.New("agent name is required")
	}
	if record.ID == "" {
		return errors.New("agent id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}
	file.applyDefaults()

	encoded := toSchema(record)
	updated := false
	for i := range file.Agents {
		if file.Agents[i].Name == encoded.Name {
			file.Agents[i] = encoded
			updated = true
			break
		}
	}

	if !updated {
		file.Agents = append(file.Agents, encoded)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return r.writeSchema(file)
}

func (r *Repository) Lookup(ctx context.Context, name string) (domain.AgentRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.AgentRecord{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return domain.AgentRecord{}, err
	}
	file.applyDefaults()

	for _, entry := range file.Agents {
		if entry.Name == name {
			return fromSchema(entry), nil
		}
	}

	return domain.AgentRecord{}, domain.ErrAgentNotFound
}

func (r *Repository) List(ctx context.Context) ([]domain.AgentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return nil, err
	}
	file.applyDefaults()

	records := make([]domain.AgentRecord, 0, len(file.Agents))
	for _, entry := range file.Agents {
		records = append(records, fromSchema(entry))
	}

	return records, nil
}

func (r *Repository) readSchema() (fileSchema, error) {
	data, err := os.ReadFile(r.agentsPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileSchema{}, nil
		}
		return fileSchema{}, fmt.Errorf("read agents file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode agents file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func normalizeAgentsPath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve agents path: %w", err)
	}

	return filepath.Clean(absPath), nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

func (r *Repository) writeSchema(file fileSchema) error {
	file.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(r.agentsPath), agentsDirMode); err != nil {
		return fmt.Errorf("create agents directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode agents file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(r.agentsPath), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp agents file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp agents file: %w", err)
	}

	if err := tempFile.Chmod(agentsFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp agents file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp agents file: %w", err)
	}

	if err := os.Rename(tempName, r.agentsPath); err != nil {
		return fmt.Errorf("replace agents file: %w", err)
	}

	cleanup = false

	if err := os.Chmod(r.agentsPath, agentsFileMode); err != nil {
		return fmt.Errorf("chmod agents file: %w", err)
	}

	return nil
}

func toSchema(record domain.AgentRecord) agentSchema {
	return agentSchema{
		Name:  record.Name,
		ID:    string(record.ID),
		Model: record.Model,
		Tool: toolSchema{
			ServerLabel:  record.Tool.ServerLabel,
			ServerURL:    record.Tool.ServerURL,
			AllowedTools: record.Tool.AllowedTools,
		},
		CreatedAt: formatTime(record.CreatedAt),
	}
}

func fromSchema(entry agentSchema) domain.AgentRecord {
	return domain.AgentRecord{
		Name:  entry.Name,
		ID:    domain.AgentID(entry.ID),
		Model: entry.Model,
		Tool: domain.ToolRegistration{
			ServerLabel:  entry.Tool.ServerLabel,
			ServerURL:    entry.Tool.ServerURL,
			AllowedTools: entry.Tool.AllowedTools,
		},
		CreatedAt: parseTime(entry.CreatedAt),
	}
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}

	return parsed
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}

	return value.Format(time.RFC3339)
}
