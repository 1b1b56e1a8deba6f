package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"pauta/internal/domain"
)

// FileName is the workspace configuration file.
const FileName = "pauta.yml"

// Config models pauta.yml.
type Config struct {
	Document     domain.DocumentConfig `yaml:"document"`
	SessionTypes []string              `yaml:"session_types"`
	Prosecutors  []string              `yaml:"prosecutors"`
	Webhooks     []WebhookConfig       `yaml:"webhooks"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url" json:"url"`
	Events         []string `yaml:"events" json:"events,omitempty"`
	Secret         string   `yaml:"secret" json:"-"`
	Enabled        *bool    `yaml:"enabled" json:"enabled,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds" json:"timeout_seconds,omitempty"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	for _, l := range []struct {
		name string
		v    domain.Letterhead
	}{{"header", c.Document.Header}, {"footer", c.Document.Footer}} {
		if l.v.Alignment != "" && !l.v.Alignment.Valid() {
			return fmt.Errorf("config.document.%s.alignment must be left, center or right", l.name)
		}
	}
	if c.Document.SummaryPageOffset < 0 {
		return fmt.Errorf("config.document.summary_page_offset must not be negative")
	}
	if u := strings.TrimSpace(c.Document.LogoURL); u != "" {
		if err := checkURL(u); err != nil {
			return fmt.Errorf("config.document.logo_url: %w", err)
		}
	}
	if err := checkList("session_types", c.SessionTypes); err != nil {
		return err
	}
	if err := checkList("prosecutors", c.Prosecutors); err != nil {
		return err
	}
	for i, hook := range c.Webhooks {
		if err := checkURL(hook.URL); err != nil {
			return fmt.Errorf("config.webhooks[%d].url: %w", i, err)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("config.webhooks[%d].timeout_seconds must not be negative", i)
		}
	}
	return nil
}

func checkList(name string, values []string) error {
	seen := map[string]bool{}
	for _, v := range values {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			return fmt.Errorf("config.%s contains an empty entry", name)
		}
		if seen[key] {
			return fmt.Errorf("config.%s contains %q twice", name, v)
		}
		seen[key] = true
	}
	return nil
}

func checkURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid url %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid url %q: missing host", raw)
	}
	return nil
}

// HasSessionType reports whether t is allowed. An empty list allows any.
func (c *Config) HasSessionType(t string) bool {
	return contains(c.SessionTypes, t)
}

// HasProsecutor reports whether name is allowed. An empty list allows any.
func (c *Config) HasProsecutor(name string) bool {
	return contains(c.Prosecutors, name)
}

func contains(list []string, v string) bool {
	if len(list) == 0 {
		return true
	}
	for _, item := range list {
		if strings.EqualFold(strings.TrimSpace(item), strings.TrimSpace(v)) {
			return true
		}
	}
	return false
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with pauta config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
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

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := FromYAML([]byte(DefaultYAML))
	if err != nil {
		panic(fmt.Sprintf("default config: %v", err))
	}
	return cfg
}

// DefaultYAML is written by pauta config init.
const DefaultYAML = `document:
  header:
    content: |
      <div><p><strong>MINISTÉRIO PÚBLICO DE CONTAS DO ESTADO DE GOIÁS</strong></p><p><strong>Controle Externo da Administração Pública Estadual</strong></p></div>
    alignment: center
  footer:
    content: ""
    alignment: center
  logo_url: ""
  summary_page_offset: 4

session_types:
  - Sessão Ordinária
  - Sessão Extraordinária Administrativa

prosecutors: []

webhooks: []
`
