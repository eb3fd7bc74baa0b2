package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/prcommenter/internal/config"
	"github.com/danielolaszy/prcommenter/internal/relay"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the OAuth token-exchange relay",
	Long: `Run the relay that holds the OAuth client secret and the server token.

Endpoints:
  GET  /getAccessToken?code=...   exchange an authorization code for a token
  GET  /getUserData               return the profile for the Authorization header
  POST /createWorkflow            commit the auto-comment workflow to {owner, repo}
  GET  /up                        liveness

Requires GITHUB_CLIENT_ID, GITHUB_CLIENT_SECRET and GITHUB_TOKEN.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(v)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := config.ValidateRelayConfig(cfg); err != nil {
			return err
		}

		r, err := relay.New(relay.OptionsFromConfig(cfg))
		if err != nil {
			return fmt.Errorf("failed to initialize relay: %w", err)
		}
		return relay.NewServer(r).Run(cmd.Context(), cfg.Relay.ListenPort)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", config.DefaultListenPort, "port to listen on (env PORT)")
	v.BindPFlag("relay.port", serveCmd.Flags().Lookup("port"))
}
