package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// ErrRefreshTokenInvalid signals the refresh token was revoked or expired
// and the user has to sign in again.
var ErrRefreshTokenInvalid = errors.New("refresh token rejected")

type RefreshTokenRequest struct {
	Endpoints    Endpoints
	ClientID     string
	RefreshToken string
	Scopes       []string
}

func RefreshTokens(client *http.Client, req RefreshTokenRequest) (TokenResult, error) {
	if req.ClientID == "" {
		return TokenResult{}, errors.New("client id is required")
	}
	if req.RefreshToken == "" {
		return TokenResult{}, errors.New("refresh token is required")
	}

	if client == nil {
		client = http.DefaultClient
	}

	endpoint, err := buildAuthURL(req.Endpoints.BaseURL, req.Endpoints.TokenPath)
	if err != nil {
		return TokenResult{}, err
	}

	values := url.Values{}
	values.Set("grant_type", "refresh_token")
	values.Set("client_id", req.ClientID)
	values.Set("refresh_token", req.RefreshToken)
	if len(req.Scopes) > 0 {
		values.Set("scope", strings.Join(req.Scopes, " "))
	}

	httpReq, err := http.NewRequest(http.MethodPost, endpoint, strings.NewReader(values.Encode()))
	if err != nil {
		return TokenResult{}, fmt.Errorf("create refresh request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(httpReq)
	if err != nil {
		return TokenResult{}, fmt.Errorf("refresh tokens: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		var oauthErr oauthErrorResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxOAuthResponseBytes)).Decode(&oauthErr); err != nil {
			return TokenResult{}, fmt.Errorf("refresh tokens: status %d", resp.StatusCode)
		}
		if oauthErr.Error == "invalid_grant" {
			return TokenResult{}, fmt.Errorf("refresh tokens: %w: %s", ErrRefreshTokenInvalid, oauthErr.ErrorDescription)
		}
		return TokenResult{}, fmt.Errorf("refresh tokens: %s", formatOAuthError(resp.StatusCode, oauthErr))
	}

	var tokens TokenResult
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxOAuthResponseBytes)).Decode(&tokens); err != nil {
		return TokenResult{}, fmt.Errorf("decode refresh response: %w", err)
	}
	if tokens.AccessToken == "" {
		return TokenResult{}, errors.New("refresh response missing access token")
	}

	return tokens, nil
}
