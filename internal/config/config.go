package config

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sethvargo/go-envconfig"
)

// ConfigurationError is fatal at startup: a required secret or setting
// is missing or malformed. It is never produced at runtime.
type ConfigurationError struct {
	Setting string
	Err     error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %v", e.Setting, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Config holds runtime configuration for the bot process.
type Config struct {
	TelegramToken    string `env:"TELEGRAM_TOKEN,required"`
	DatabaseDSN      string `env:"DATABASE_DSN,required"`
	OAuthClientFile  string `env:"OAUTH_CREDENTIALS_PATH,required"`
	OAuthRedirectURI string `env:"OAUTH_REDIRECT_URI"`
	CallbackHost     string `env:"OAUTH_SERVER_HOST,default=localhost"`
	CallbackPort     int    `env:"OAUTH_SERVER_PORT,default=8000"`
	// TokenCipherKey is the base64-encoded 32-byte key encrypting stored
	// credentials.
	TokenCipherKey string `env:"TOKEN_CIPHER_KEY,required"`
	CategoriesPath string `env:"CATEGORIES_PATH,default=configs/categories.yaml"`
}

// Load returns a Config populated from environment variables. Missing
// required settings yield a ConfigurationError.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, &ConfigurationError{Setting: "environment", Err: err}
	}
	return &cfg, nil
}

// RedirectURI returns the configured redirect URI, or one built from the
// callback host and port when unset.
func (c *Config) RedirectURI() string {
	if c.OAuthRedirectURI != "" {
		return c.OAuthRedirectURI
	}
	return fmt.Sprintf("http://%s:%d/oauth2callback", c.CallbackHost, c.CallbackPort)
}

// CipherKey decodes the token cipher key and checks its length.
func (c *Config) CipherKey() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(c.TokenCipherKey)
	if err != nil {
		return nil, &ConfigurationError{Setting: "TOKEN_CIPHER_KEY", Err: err}
	}
	if len(key) != 32 {
		return nil, &ConfigurationError{
			Setting: "TOKEN_CIPHER_KEY",
			Err:     fmt.Errorf("want 32 bytes, got %d", len(key)),
		}
	}
	return key, nil
}

// ClientSecrets is the identity-provider client registration, in the
// shape Google's console exports for a web application.
type ClientSecrets struct {
	Web struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
		AuthURI      string `json:"auth_uri"`
		TokenURI     string `json:"token_uri"`
	} `json:"web"`
}

// LoadClientSecrets reads and validates the client registration file.
func LoadClientSecrets(path string) (*ClientSecrets, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigurationError{Setting: "OAUTH_CREDENTIALS_PATH", Err: err}
	}
	var cs ClientSecrets
	if err := json.Unmarshal(raw, &cs); err != nil {
		return nil, &ConfigurationError{Setting: "OAUTH_CREDENTIALS_PATH", Err: err}
	}
	if cs.Web.ClientID == "" || cs.Web.ClientSecret == "" {
		return nil, &ConfigurationError{
			Setting: "OAUTH_CREDENTIALS_PATH",
			Err:     fmt.Errorf("client_id or client_secret missing in %s", path),
		}
	}
	return &cs, nil
}
