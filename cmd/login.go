package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/prcommenter/internal/config"
	"github.com/danielolaszy/prcommenter/internal/logging"
	"github.com/danielolaszy/prcommenter/internal/session"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to GitHub",
	Long: `Log in to GitHub through the relay.

Without --code, the command prints the authorization URL and waits for the
provider to redirect back to CALLBACK_ADDR. With --code, an authorization code
obtained elsewhere is exchanged directly. If a session token is already
stored, nothing is exchanged.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newClientEnv()
		if err != nil {
			return err
		}
		if err := config.ValidateClientConfig(env.config); err != nil {
			return err
		}

		state, err := env.manager.State()
		if err != nil {
			return err
		}
		if state == session.LoggedIn {
			fmt.Fprintln(cmd.OutOrStdout(), "Already logged in.")
			return nil
		}

		code, err := cmd.Flags().GetString("code")
		if err != nil {
			return err
		}

		var stored bool
		if code != "" {
			stored, err = env.manager.HandleCode(cmd.Context(), code)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Open this URL to log in:\n\n  %s\n\n", env.manager.LoginURL())
			stored, err = awaitCallback(cmd.Context(), env.config.Client.CallbackAddr, env.manager)
		}
		if err != nil {
			return err
		}
		if stored {
			fmt.Fprintln(cmd.OutOrStdout(), "Logged in.")
		}
		return nil
	},
}

// awaitCallback listens on addr until the OAuth redirect arrives and hands
// it to m. Other requests are answered with 400 and the wait goes on.
func awaitCallback(ctx context.Context, addr string, m *session.Manager) (bool, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return false, fmt.Errorf("failed to listen for callback on %s: %w", addr, err)
	}

	type result struct {
		stored bool
		err    error
	}
	done := make(chan result, 1)

	srv := &http.Server{
		ReadHeaderTimeout: 10 * time.Second,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Favicon fetches and reloads of the bare page are not the redirect.
			if !isAuthorizationRedirect(r) {
				http.Error(w, "waiting for the authorization redirect", http.StatusBadRequest)
				return
			}

			stored, err := m.HandleCallback(r.Context(), r.URL.String())
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadGateway)
			} else {
				fmt.Fprintln(w, "Login complete. You can close this window.")
			}
			select {
			case done <- result{stored, err}:
			default:
			}
		}),
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("callback listener failed", "error", err)
		}
	}()
	defer func() {
		// Let the browser receive its answer before the listener goes away.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logging.Debug("waiting for oauth callback", "addr", addr)
	select {
	case res := <-done:
		return res.stored, res.err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// isAuthorizationRedirect reports whether r carries the provider's answer,
// either a code or an error.
func isAuthorizationRedirect(r *http.Request) bool {
	query := r.URL.Query()
	return query.Get("code") != "" || query.Get("error") != ""
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newClientEnv()
		if err != nil {
			return err
		}
		if err := env.manager.Logout(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newClientEnv()
		if err != nil {
			return err
		}
		token, err := env.manager.Token()
		if err != nil {
			return err
		}
		user, err := env.relay.GetUserData(cmd.Context(), token)
		if err != nil {
			return err
		}
		if user.Name != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", user.Login, user.Name)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), user.Login)
		}
		if user.AvatarURL != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Avatar: %s\n", user.AvatarURL)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd)
	loginCmd.Flags().String("code", "", "authorization code to exchange instead of waiting for the redirect")
	loginCmd.Flags().String("callback-addr", config.DefaultCallbackAddr, "address to receive the OAuth redirect on (env CALLBACK_ADDR)")
	v.BindPFlag("client.callback_addr", loginCmd.Flags().Lookup("callback-addr"))
}
