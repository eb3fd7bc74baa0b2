// Package cmd provides the command-line interface for prcommenter.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/danielolaszy/prcommenter/internal/browser"
	"github.com/danielolaszy/prcommenter/internal/config"
	"github.com/danielolaszy/prcommenter/internal/github"
	"github.com/danielolaszy/prcommenter/internal/logging"
	"github.com/danielolaszy/prcommenter/internal/relay"
	"github.com/danielolaszy/prcommenter/internal/session"
)

// v collects flag bindings; environment variables are read through it too.
var v = viper.New()

var rootCmd = &cobra.Command{
	Use:   "prcommenter",
	Short: "Browse and comment on GitHub pull requests",
	Long: `prcommenter logs in to GitHub through a small OAuth relay, lists a repository's
pull requests and their changed files, posts review comments and installs an
auto-comment workflow.

Run 'prcommenter serve' on the machine holding the OAuth client secret, then
'prcommenter login' on the client side.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if level := v.GetString("log_level"); level != "" {
			logging.SetupLogger(cmd.ErrOrStderr(), logging.LogLevel(level))
		}
	},
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error (env LOG_LEVEL)")
	v.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	v.BindEnv("log_level", "LOG_LEVEL")
}

// clientEnv is everything a client-side command works with.
type clientEnv struct {
	config  *config.Config
	store   *session.FileStore
	manager *session.Manager
	relay   *relay.Client
	github  *github.Client
	view    *browser.View
}

func newClientEnv() (*clientEnv, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	path := cfg.Client.SessionFile
	if path == "" {
		path, err = session.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	store := session.NewFileStore(path)

	relayClient := relay.NewClient(cfg.Client.RelayURL, nil)
	ghClient, err := github.NewClient(store, github.Options{
		BaseURL:    cfg.GitHub.APIURL(),
		WriteToken: cfg.Client.Token,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize github client: %w", err)
	}

	return &clientEnv{
		config:  cfg,
		store:   store,
		manager: session.NewManager(store, relayClient, cfg.Client.ClientID, cfg.GitHub.OAuthEndpoint()),
		relay:   relayClient,
		github:  ghClient,
		view:    browser.New(ghClient),
	}, nil
}
