package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	authadapter "github.com/bnema/foundry-agents-cli/internal/adapters/auth"
	"github.com/bnema/foundry-agents-cli/internal/adapters/render/report"
	tomlrepo "github.com/bnema/foundry-agents-cli/internal/adapters/repo/toml"
	"github.com/bnema/foundry-agents-cli/internal/adapters/rest"
	chainstore "github.com/bnema/foundry-agents-cli/internal/adapters/secrets/chain"
	"github.com/bnema/foundry-agents-cli/internal/domain"
	"github.com/bnema/foundry-agents-cli/internal/logging"
	"github.com/bnema/foundry-agents-cli/internal/ports"
)

const (
	defaultMCPServerURL   = "https://gitmcp.io/Azure/azure-rest-api-specs"
	defaultMCPServerLabel = "github"
)

type app struct {
	agents         ports.AgentStore
	agentsPath     string
	secretStore    ports.SecretStore
	tokens         *authadapter.TokenStore
	reportRenderer func(report.RunReport, report.RenderOptions) (string, error)
	auth           authConfig
	defaults       agentDefaults
	poll           pollDefaults
	endpoint       string
	httpClient     *http.Client
	log            zerolog.Logger
	now            func() time.Time
}

type authConfig struct {
	Endpoints  authadapter.Endpoints
	ClientID   string
	ListenAddr string
	Timeout    time.Duration
}

type agentDefaults struct {
	Model    string
	MCPURL   string
	MCPLabel string
}

type pollDefaults struct {
	Interval time.Duration
	Timeout  time.Duration
}

func wireApp() (*app, error) {
	repo, err := tomlrepo.NewRepository(viper.New())
	if err != nil {
		return nil, fmt.Errorf("wire agent repository: %w", err)
	}

	secretStore, err := chainstore.NewDefault()
	if err != nil {
		return nil, fmt.Errorf("wire secret store chain: %w", err)
	}

	endpoints := authadapter.EntraEndpoints(envOrDefault("FA_AUTH_TENANT", authadapter.DefaultTenant))
	if base := os.Getenv("FA_AUTH_BASE_URL"); base != "" {
		endpoints.BaseURL = base
	}

	return &app{
		agents:         repo,
		agentsPath:     repo.Path(),
		secretStore:    secretStore,
		tokens:         authadapter.NewTokenStore(secretStore),
		reportRenderer: report.Render,
		auth: authConfig{
			Endpoints:  endpoints,
			ClientID:   envOrDefault("FA_AUTH_CLIENT_ID", authadapter.DefaultClientID),
			ListenAddr: envOrDefault("FA_AUTH_LISTEN", "127.0.0.1:1455"),
			Timeout:    5 * time.Minute,
		},
		defaults: agentDefaults{
			Model:    os.Getenv("MODEL_DEPLOYMENT_NAME"),
			MCPURL:   envOrDefault("MCP_SERVER_URL", defaultMCPServerURL),
			MCPLabel: envOrDefault("MCP_SERVER_LABEL", defaultMCPServerLabel),
		},
		poll: pollDefaults{
			Interval: envDuration("FA_POLL_INTERVAL"),
			Timeout:  envDuration("FA_POLL_TIMEOUT"),
		},
		endpoint:   os.Getenv("PROJECT_ENDPOINT"),
		httpClient: http.DefaultClient,
		log:        logging.New(os.Getenv("FA_LOG_LEVEL"), os.Stderr),
		now:        time.Now,
	}, nil
}

// agentsAPI builds the REST client for commands that talk to the project.
// The token is resolved here so offline commands never pay for it.
func (a *app) agentsAPI(ctx context.Context) (ports.AgentsAPI, error) {
	if a.endpoint == "" {
		return nil, errors.New("PROJECT_ENDPOINT env var is required")
	}

	token, err := a.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	client, err := rest.NewClient(rest.Config{
		Endpoint:   a.endpoint,
		APIVersion: os.Getenv("FA_API_VERSION"),
		Token:      token,
		HTTPClient: a.httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("wire agents client: %w", err)
	}

	return client, nil
}

// accessToken resolves the bearer token: the FA_ACCESS_TOKEN override wins,
// otherwise the stored set is used, refreshed once when it has expired.
func (a *app) accessToken(ctx context.Context) (string, error) {
	if token := os.Getenv("FA_ACCESS_TOKEN"); token != "" {
		return token, nil
	}

	set, err := a.tokens.Load(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrTokenNotFound) {
			return "", errors.New("not signed in: run `fa auth login device` or set FA_ACCESS_TOKEN")
		}
		return "", err
	}

	if !set.Expired(a.now()) {
		return set.AccessToken, nil
	}
	if set.RefreshToken == "" {
		return "", errors.New("access token expired: run `fa auth login device`")
	}

	refreshed, err := authadapter.RefreshTokens(a.httpClient, authadapter.RefreshTokenRequest{
		Endpoints:    a.auth.Endpoints,
		ClientID:     a.auth.ClientID,
		RefreshToken: set.RefreshToken,
		Scopes:       authadapter.DefaultScopes(),
	})
	if err != nil {
		if errors.Is(err, authadapter.ErrRefreshTokenInvalid) {
			return "", fmt.Errorf("session expired, sign in again with `fa auth login device`: %w", err)
		}
		return "", err
	}

	next := authadapter.NewTokenSet(refreshed, a.now())
	if next.RefreshToken == "" {
		next.RefreshToken = set.RefreshToken
	}
	if err := a.tokens.Save(ctx, next); err != nil {
		return "", err
	}

	return next.AccessToken, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// envDuration parses key as a duration. Unset or malformed values yield
// zero, leaving the caller's own default in force.
func envDuration(key string) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return 0
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}
