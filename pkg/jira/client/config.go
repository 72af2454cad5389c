package client

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/diwise/jira-client/pkg/jira/errors"
	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	yaml "gopkg.in/yaml.v2"
)

const (
	AuthTypeAnonymous string = "anonymous"
	AuthTypeBasic     string = "basic"
	AuthTypeToken     string = "token"
)

type AuthConfig struct {
	Type     string `yaml:"type"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Token    string `yaml:"token"`
}

type Config struct {
	BaseURL    string     `yaml:"url"`
	APIVersion string     `yaml:"apiVersion"`
	Debug      bool       `yaml:"debug"`
	Auth       AuthConfig `yaml:"auth"`
}

func LoadConfiguration(data io.Reader) (*Config, error) {

	buf, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	err = yaml.Unmarshal(buf, &cfg)

	return cfg, err
}

// ConfigFromEnvironment reads the connection settings from JIRA_* variables.
// The auth type is inferred: a token wins over a username and password.
func ConfigFromEnvironment(ctx context.Context) *Config {
	cfg := &Config{
		BaseURL:    env.GetVariableOrDefault(ctx, "JIRA_URL", ""),
		APIVersion: env.GetVariableOrDefault(ctx, "JIRA_API_VERSION", DefaultAPIVersion),
		Debug:      env.GetVariableOrDefault(ctx, "JIRA_DEBUG", "false") == "true",
		Auth: AuthConfig{
			Username: env.GetVariableOrDefault(ctx, "JIRA_USERNAME", ""),
			Password: env.GetVariableOrDefault(ctx, "JIRA_PASSWORD", ""),
			Token:    env.GetVariableOrDefault(ctx, "JIRA_TOKEN", ""),
		},
	}

	switch {
	case cfg.Auth.Token != "":
		cfg.Auth.Type = AuthTypeToken
	case cfg.Auth.Username != "":
		cfg.Auth.Type = AuthTypeBasic
	default:
		cfg.Auth.Type = AuthTypeAnonymous
	}

	return cfg
}

func (cfg *Config) Authenticator() (Authenticator, error) {
	switch strings.ToLower(cfg.Auth.Type) {
	case "", AuthTypeAnonymous:
		return AnonymousCredentials(), nil
	case AuthTypeBasic:
		return BasicCredentials(cfg.Auth.Username, cfg.Auth.Password), nil
	case AuthTypeToken:
		return TokenCredentials(cfg.Auth.Token), nil
	default:
		return nil, errors.NewConstructionError(fmt.Sprintf("unsupported auth type %q", cfg.Auth.Type), nil)
	}
}

func (cfg *Config) Options() ([]func(*jiraClient), error) {
	auth, err := cfg.Authenticator()
	if err != nil {
		return nil, err
	}

	return []func(*jiraClient){
		APIVersion(cfg.APIVersion),
		Credentials(auth),
		Debug(fmt.Sprintf("%t", cfg.Debug)),
	}, nil
}

func NewFromConfig(cfg *Config, options ...func(*jiraClient)) (Client, error) {
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}

	return New(cfg.BaseURL, append(opts, options...)...)
}
