package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/notionhugo/internal/notion"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Notion NotionConfig      `yaml:"notion"`
	Output OutputConfig      `yaml:"output"`
	Ledger LedgerConfig      `yaml:"ledger"`
	Auth   AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Notion.Validate(); err != nil {
		return err
	}
	if err := c.Output.Validate(); err != nil {
		return err
	}
	if err := c.Ledger.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	// Strict makes an export that matches no documents fail.
	Strict bool       `yaml:"strict"`
	HTTP   HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// NotionConfig holds the remote source settings.
type NotionConfig struct {
	Token             string        `yaml:"token"`
	BaseURL           string        `yaml:"base_url"`
	Version           string        `yaml:"version"`
	DatabaseID        string        `yaml:"database_id"`
	Status            string        `yaml:"status"`
	PageIDs           []string      `yaml:"page_ids"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	// Retries is how often a rate-limited or failed request is repeated.
	// Zero keeps every request to a single attempt.
	Retries           int           `yaml:"retries"`
	Timeout           time.Duration `yaml:"timeout"`
}

// Validate validates the source settings that apply to every command.
func (c *NotionConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required),
		validation.Field(&c.Version, validation.Required),
		validation.Field(&c.RequestsPerSecond, validation.Min(0.0)),
		validation.Field(&c.Retries, validation.Min(0), validation.Max(10)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// ValidateSource checks what an export needs: a token and something to
// export.
func (c *NotionConfig) ValidateSource() error {
	if c.Token == "" {
		return errors.New("notion: token is empty")
	}
	if c.DatabaseID == "" && len(c.PageIDs) == 0 {
		return errors.New("notion: either database_id or page_ids is required")
	}
	return nil
}

// OutputConfig holds where and how documents are written.
type OutputConfig struct {
	Root          string `yaml:"root"`
	CenterImages  bool   `yaml:"center_images"`
	MaxImageWidth int    `yaml:"max_image_width"`
	MaxAssetBytes int64  `yaml:"max_asset_bytes"`
}

// Validate validates the output configuration.
func (c *OutputConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.MaxImageWidth, validation.Min(0)),
		validation.Field(&c.MaxAssetBytes, validation.Min(int64(0))),
	)
}

// LedgerConfig holds the export ledger database configuration.
type LedgerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Validate validates the ledger configuration.
func (c *LedgerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.Enabled, validation.Required)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Notion: NotionConfig{
			BaseURL:           notion.DefaultBaseURL,
			Version:           notion.DefaultVersion,
			RequestsPerSecond: notion.DefaultRate,
			Timeout:           60 * time.Second,
		},
		Output: OutputConfig{
			Root:         "./site/content",
			CenterImages: true,
		},
		Ledger: LedgerConfig{
			Enabled: true,
			Path:    "./notionhugo.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
