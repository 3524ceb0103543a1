package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	authadapter "github.com/bnema/foundry-agents-cli/internal/adapters/auth"
	"github.com/bnema/foundry-agents-cli/internal/domain"
)

func newAuthCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the Azure access token",
	}

	cmd.AddCommand(
		newAuthLoginCmd(app),
		newAuthSetCmd(app),
		newAuthRemoveCmd(app),
		newAuthStatusCmd(app),
	)

	return cmd
}

func newAuthLoginCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to Azure",
	}

	cmd.AddCommand(newLoginDeviceCmd(app), newLoginBrowserCmd(app))

	return cmd
}

func newLoginDeviceCmd(app *app) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "device",
		Short: "Sign in with a device code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flow := authadapter.DeviceFlowAdapter{
				Endpoints:  app.auth.Endpoints,
				HTTPClient: app.httpClient,
			}

			code, err := flow.RequestDeviceCode(cmd.Context(), app.auth.ClientID, authadapter.DefaultScopes())
			if err != nil {
				return fmt.Errorf("request device code: %w", err)
			}

			out := cmd.OutOrStdout()
			if code.Message != "" {
				fmt.Fprintln(out, code.Message)
			} else {
				fmt.Fprintf(out, "To sign in, open %s and enter the code %s\n", code.VerificationURL, code.UserCode)
			}

			pollTimeout := timeout
			if pollTimeout <= 0 {
				pollTimeout = code.ExpiresIn
			}

			token, err := flow.PollToken(cmd.Context(), authadapter.DevicePollRequest{
				ClientID:     app.auth.ClientID,
				DeviceAuthID: code.DeviceAuthID,
				PollInterval: code.PollInterval,
				Timeout:      pollTimeout,
			})
			if err != nil {
				return fmt.Errorf("wait for device authorization: %w", err)
			}

			return saveTokens(cmd, app, token)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 0, "How long to wait for the device authorization")

	return cmd
}

func newLoginBrowserCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "browser",
		Short: "Sign in through the browser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBrowserLogin(cmd, app)
		},
	}
}

func runBrowserLogin(cmd *cobra.Command, app *app) error {
	pkce, err := authadapter.NewPKCEPair()
	if err != nil {
		return fmt.Errorf("generate pkce: %w", err)
	}
	state, err := authadapter.NewState()
	if err != nil {
		return fmt.Errorf("generate oauth state: %w", err)
	}

	server, err := authadapter.StartCallbackServer(app.auth.ListenAddr, state)
	if err != nil {
		return fmt.Errorf("start callback server: %w", err)
	}
	defer func() { _ = server.Close() }()

	authURL, err := authadapter.BuildAuthorizationURL(authadapter.AuthorizationRequest{
		Endpoints:     app.auth.Endpoints,
		ClientID:      app.auth.ClientID,
		RedirectURI:   server.RedirectURI(),
		Scopes:        authadapter.DefaultScopes(),
		State:         state,
		CodeChallenge: pkce.Challenge,
	})
	if err != nil {
		return fmt.Errorf("build authorization url: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Open this URL to sign in:\n%s\n", authURL)

	code, err := server.WaitForCode(app.auth.Timeout)
	if err != nil {
		return fmt.Errorf("wait for oauth callback: %w", err)
	}

	token, err := authadapter.ExchangeCodeForTokens(app.httpClient, authadapter.TokenExchangeRequest{
		Endpoints:    app.auth.Endpoints,
		ClientID:     app.auth.ClientID,
		RedirectURI:  server.RedirectURI(),
		Scopes:       authadapter.DefaultScopes(),
		Code:         code,
		CodeVerifier: pkce.Verifier,
	})
	if err != nil {
		return fmt.Errorf("exchange code for tokens: %w", err)
	}

	return saveTokens(cmd, app, token)
}

func saveTokens(cmd *cobra.Command, app *app, token authadapter.TokenResult) error {
	set := authadapter.NewTokenSet(token, app.now())
	if err := app.tokens.Save(cmd.Context(), set); err != nil {
		return fmt.Errorf("save token set: %w", err)
	}

	if set.ExpiresAt.IsZero() {
		fmt.Fprintln(cmd.OutOrStdout(), "Signed in.")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Signed in. Token expires at %s.\n", set.ExpiresAt.Format(time.RFC3339))
	return nil
}

func newAuthSetCmd(app *app) *cobra.Command {
	var token string
	var expiresIn time.Duration

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store an externally acquired access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			set := authadapter.TokenSet{AccessToken: token}
			if expiresIn > 0 {
				set.ExpiresAt = app.now().Add(expiresIn).UTC()
			}
			if err := app.tokens.Save(cmd.Context(), set); err != nil {
				return fmt.Errorf("save token set: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Token stored.")
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "Bearer access token")
	cmd.Flags().DurationVar(&expiresIn, "expires-in", 0, "Token lifetime from now (0 stores it without expiry)")
	_ = cmd.MarkFlagRequired("token")

	return cmd
}

func newAuthRemoveCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove",
		Short: "Forget the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.tokens.Clear(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Token removed.")
			return nil
		},
	}
}

func newAuthStatusCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether a usable token is stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if os.Getenv("FA_ACCESS_TOKEN") != "" {
				fmt.Fprintln(out, "Using FA_ACCESS_TOKEN from the environment.")
				return nil
			}

			set, err := app.tokens.Load(cmd.Context())
			if err != nil {
				if errors.Is(err, domain.ErrTokenNotFound) {
					fmt.Fprintln(out, "Not signed in. Run `fa auth login device` or set FA_ACCESS_TOKEN.")
					return nil
				}
				return err
			}

			switch {
			case set.ExpiresAt.IsZero():
				fmt.Fprintln(out, "Signed in (token has no recorded expiry).")
			case set.Expired(app.now()):
				if set.RefreshToken != "" {
					fmt.Fprintf(out, "Token expired at %s; it will be refreshed on next use.\n", set.ExpiresAt.Format(time.RFC3339))
				} else {
					fmt.Fprintf(out, "Token expired at %s. Run `fa auth login device`.\n", set.ExpiresAt.Format(time.RFC3339))
				}
			default:
				fmt.Fprintf(out, "Signed in. Token expires at %s.\n", set.ExpiresAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}
