package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/foundry-agents-cli/internal/ports"
)

// TokenKey is where the signed-in token set lives in the secret store.
const TokenKey = "foundry/access_token"

type TokenSet struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// NewTokenSet converts a token endpoint response into a storable set,
// pinning the relative expiry to an absolute instant.
func NewTokenSet(token TokenResult, now time.Time) TokenSet {
	set := TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
	}
	if token.ExpiresIn > 0 {
		set.ExpiresAt = now.Add(time.Duration(token.ExpiresIn) * time.Second).UTC()
	}

	return set
}

func (t TokenSet) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// TokenStore persists the token set through a secret store backend.
type TokenStore struct {
	secrets ports.SecretStore
}

func NewTokenStore(secrets ports.SecretStore) *TokenStore {
	return &TokenStore{secrets: secrets}
}

func (s *TokenStore) Save(ctx context.Context, set TokenSet) error {
	if set.AccessToken == "" {
		return errors.New("access token is empty")
	}

	data, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("encode token set: %w", err)
	}

	if err := s.secrets.Put(ctx, TokenKey, string(data)); err != nil {
		return fmt.Errorf("store token set: %w", err)
	}

	return nil
}

func (s *TokenStore) Load(ctx context.Context) (TokenSet, error) {
	raw, err := s.secrets.Get(ctx, TokenKey)
	if err != nil {
		return TokenSet{}, err
	}

	var set TokenSet
	if err := json.Unmarshal([]byte(raw), &set); err != nil {
		return TokenSet{}, fmt.Errorf("decode stored token set: %w", err)
	}
	if set.AccessToken == "" {
		return TokenSet{}, errors.New("stored token set has no access token")
	}

	return set, nil
}

func (s *TokenStore) Clear(ctx context.Context) error {
	if err := s.secrets.Delete(ctx, TokenKey); err != nil {
		return fmt.Errorf("clear token set: %w", err)
	}

	return nil
}
