package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models hireline.yml: the platform-level settings the engine consults.
type Config struct {
	Platform struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"platform"`
	Escrow struct {
		Currency   string `yaml:"currency"`
		GatewayURL string `yaml:"gateway_url"`
	} `yaml:"escrow"`
	Limits struct {
		// EngagementCooldownHours is the server-side cooldown between new
		// engagements per client, keyed (actor, action). Zero disables it.
		EngagementCooldownHours int `yaml:"engagement_cooldown_hours"`
	} `yaml:"limits"`
	Proposals struct {
		// AutoRejectOnAccept flips sibling proposals to rejected when one is
		// accepted. Off by default: they stay pending but can never be
		// accepted once the engagement leaves open.
		AutoRejectOnAccept bool `yaml:"auto_reject_on_accept"`
	} `yaml:"proposals"`
	Team struct {
		MinRoster int `yaml:"min_roster"`
	} `yaml:"team"`
	Categories map[string]struct {
		Description string `yaml:"description"`
	} `yaml:"categories"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled"`
}

// Load reads and validates config from the workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; import with hl platform config import --file <path>", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Platform.ID == "" {
		return fmt.Errorf("config.platform.id is required")
	}
	if c.Escrow.Currency == "" {
		return fmt.Errorf("config.escrow.currency is required")
	}
	if len(c.Escrow.Currency) != 3 {
		return fmt.Errorf("config.escrow.currency must be a 3-letter code, got %q", c.Escrow.Currency)
	}
	if c.Limits.EngagementCooldownHours < 0 {
		return fmt.Errorf("config.limits.engagement_cooldown_hours must not be negative")
	}
	if c.Team.MinRoster < 2 {
		return fmt.Errorf("config.team.min_roster must be at least 2")
	}
	for name := range c.Categories {
		if name == "" {
			return fmt.Errorf("config.categories contains an empty category name")
		}
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
	}
	return nil
}

// KnownCategory reports whether a category is in the catalog. An empty catalog
// accepts any category.
func (c *Config) KnownCategory(name string) bool {
	if len(c.Categories) == 0 || name == "" {
		return true
	}
	_, ok := c.Categories[name]
	return ok
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "hireline.yml")
}

// Default returns the default Config struct for a platform.
func Default(platformID string) *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, platformID))).Decode(&cfg)
	cfg.Platform.ID = platformID
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `platform:
  id: %s
  name: Hireline

escrow:
  currency: USD
  gateway_url: ""

limits:
  engagement_cooldown_hours: 0

proposals:
  auto_reject_on_accept: false

team:
  min_roster: 2

categories:
  development:
    description: "Software development"
  design:
    description: "Design and creative work"
  writing:
    description: "Writing and translation"
  marketing:
    description: "Marketing and sales"
  data:
    description: "Data and analytics"
`
