package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"jobline/internal/aroflo"
)

// Config is the runtime configuration, sourced from the environment and an
// optional .env file. Environment variables win over the file.
type Config struct {
	OrgName   string `mapstructure:"aroflo_org_name"`
	Username  string `mapstructure:"aroflo_username"`
	Password  string `mapstructure:"aroflo_password"`
	SecretKey string `mapstructure:"aroflo_secret_key"`
	HostIP    string `mapstructure:"aroflo_host_ip"`
	BaseURL   string `mapstructure:"aroflo_base_url"`

	CallsPerMinute int    `mapstructure:"api_calls_per_minute"`
	PrimaryClient  string `mapstructure:"primary_client"`
	ScorecardPath  string `mapstructure:"scorecard_path"`

	LanguageToolURL string `mapstructure:"languagetool_url"`
	Language        string `mapstructure:"languagetool_language"`
	Dictionary      string `mapstructure:"spell_dictionary"`
	VocabularyFile  string `mapstructure:"vocabulary_file"`

	AuditLog string `mapstructure:"audit_log"`
	LogLevel string `mapstructure:"log_level"`
}

var defaults = map[string]any{
	"aroflo_org_name":       "",
	"aroflo_username":       "",
	"aroflo_password":       "",
	"aroflo_secret_key":     "",
	"aroflo_host_ip":        "",
	"aroflo_base_url":       aroflo.DefaultBaseURL,
	"api_calls_per_minute":  aroflo.DefaultCallsPerMinute,
	"primary_client":        "",
	"scorecard_path":        "scorecard.xlsx",
	"languagetool_url":      "https://api.languagetool.org/v2/check",
	"languagetool_language": "en-AU",
	"spell_dictionary":      "/usr/share/dict/words",
	"vocabulary_file":       "",
	"audit_log":             "",
	"log_level":             "info",
}

// Load reads configuration into v. envFile is read when it exists; a
// missing file is not an error.
func Load(v *viper.Viper, envFile string) (*Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			v.SetConfigFile(envFile)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read %s: %w", envFile, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.trim()
	return &cfg, nil
}

func (c *Config) trim() {
	for _, p := range []*string{
		&c.OrgName, &c.Username, &c.Password, &c.SecretKey, &c.HostIP, &c.BaseURL,
		&c.PrimaryClient, &c.ScorecardPath, &c.LanguageToolURL, &c.Language,
		&c.Dictionary, &c.VocabularyFile, &c.AuditLog, &c.LogLevel,
	} {
		*p = strings.TrimSpace(*p)
	}
}

// Validate reports every missing credential at once, and a non-positive
// rate limit.
func (c *Config) Validate() error {
	if err := c.Credentials().Validate(); err != nil {
		return err
	}
	if c.CallsPerMinute <= 0 {
		return &aroflo.ConfigError{Reason: fmt.Sprintf("API_CALLS_PER_MINUTE must be positive, got %d", c.CallsPerMinute)}
	}
	return nil
}

// Credentials returns the signing credentials.
func (c *Config) Credentials() aroflo.Credentials {
	return aroflo.Credentials{
		OrgEncoded: c.OrgName,
		UEncoded:   c.Username,
		PEncoded:   c.Password,
		SecretKey:  c.SecretKey,
		HostIP:     c.HostIP,
	}
}
