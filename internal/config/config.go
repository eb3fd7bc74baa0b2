// Package config provides centralized configuration management for the application.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"golang.org/x/oauth2"
	githuboauth "golang.org/x/oauth2/github"
)

const (
	// DefaultDomain is the public GitHub host.
	DefaultDomain = "github.com"
	// DefaultListenPort is the relay's port when PORT is unset.
	DefaultListenPort = 4000
	// DefaultRelayURL is where the client expects the relay.
	DefaultRelayURL = "http://localhost:4000"
	// DefaultCallbackAddr is where `login` waits for the OAuth redirect.
	DefaultCallbackAddr = "localhost:3000"
)

// Config holds all configuration parameters for the application.
type Config struct {
	GitHub GitHubConfig
	Relay  RelayConfig
	Client ClientConfig
}

// GitHubConfig holds GitHub host configuration shared by relay and client.
type GitHubConfig struct {
	Domain string
}

// RelayConfig holds the secrets only the relay may see.
type RelayConfig struct {
	ClientID     string
	ClientSecret string
	ServerToken  string
	ListenPort   int
}

// ClientConfig holds what the command-line client needs.
type ClientConfig struct {
	ClientID     string
	Token        string
	RelayURL     string
	CallbackAddr string
	SessionFile  string
}

// Load reads configuration through v. Flags bound to v by the caller take
// precedence over environment variables.
func Load(v *viper.Viper) (*Config, error) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.BindEnv("github.domain", "GITHUB_DOMAIN")
	v.BindEnv("relay.client_id", "GITHUB_CLIENT_ID")
	v.BindEnv("relay.client_secret", "GITHUB_CLIENT_SECRET")
	v.BindEnv("relay.server_token", "GITHUB_TOKEN")
	v.BindEnv("relay.port", "PORT")
	v.BindEnv("client.client_id", "GITHUB_CLIENT_ID")
	v.BindEnv("client.token", "CLIENT_GITHUB_TOKEN")
	v.BindEnv("client.relay_url", "RELAY_URL")
	v.BindEnv("client.callback_addr", "CALLBACK_ADDR")
	v.BindEnv("client.session_file", "SESSION_FILE")

	v.SetDefault("github.domain", DefaultDomain)
	v.SetDefault("relay.port", DefaultListenPort)
	v.SetDefault("client.relay_url", DefaultRelayURL)
	v.SetDefault("client.callback_addr", DefaultCallbackAddr)

	config := &Config{
		GitHub: GitHubConfig{
			Domain: v.GetString("github.domain"),
		},
		Relay: RelayConfig{
			ClientID:     v.GetString("relay.client_id"),
			ClientSecret: v.GetString("relay.client_secret"),
			ServerToken:  v.GetString("relay.server_token"),
			ListenPort:   v.GetInt("relay.port"),
		},
		Client: ClientConfig{
			ClientID:     v.GetString("client.client_id"),
			Token:        v.GetString("client.token"),
			RelayURL:     strings.TrimRight(v.GetString("client.relay_url"), "/"),
			CallbackAddr: v.GetString("client.callback_addr"),
			SessionFile:  v.GetString("client.session_file"),
		},
	}
	if config.GitHub.Domain == "" {
		config.GitHub.Domain = DefaultDomain
	}

	if config.Relay.ListenPort <= 0 || config.Relay.ListenPort > 65535 {
		return nil, fmt.Errorf("invalid listen port: %d", config.Relay.ListenPort)
	}

	return config, nil
}

// ValidateRelayConfig ensures the relay has its OAuth credentials and server token.
func ValidateRelayConfig(config *Config) error {
	var missingVars []string

	if config.Relay.ClientID == "" {
		missingVars = append(missingVars, "GITHUB_CLIENT_ID")
	}
	if config.Relay.ClientSecret == "" {
		missingVars = append(missingVars, "GITHUB_CLIENT_SECRET")
	}
	if config.Relay.ServerToken == "" {
		missingVars = append(missingVars, "GITHUB_TOKEN")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	return nil
}

// ValidateClientConfig ensures the client can start an OAuth login.
func ValidateClientConfig(config *Config) error {
	if config.Client.ClientID == "" {
		return fmt.Errorf("missing required environment variables: [GITHUB_CLIENT_ID]")
	}
	return nil
}

// APIURL returns the REST API base URL for the configured domain, with a
// trailing slash as go-github expects.
func (g GitHubConfig) APIURL() string {
	if g.Domain == "" || g.Domain == DefaultDomain {
		return "https://api.github.com/"
	}
	return fmt.Sprintf("https://%s/api/v3/", g.Domain)
}

// OAuthEndpoint returns the authorize and token endpoints for the configured domain.
func (g GitHubConfig) OAuthEndpoint() oauth2.Endpoint {
	if g.Domain == "" || g.Domain == DefaultDomain {
		return githuboauth.Endpoint
	}
	return oauth2.Endpoint{
		AuthURL:  fmt.Sprintf("https://%s/login/oauth/authorize", g.Domain),
		TokenURL: fmt.Sprintf("https://%s/login/oauth/access_token", g.Domain),
	}
}
