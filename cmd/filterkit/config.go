package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/filterkit/admin"
	"github.com/kbukum/filterkit/config"
	"github.com/kbukum/filterkit/journal"
	"github.com/kbukum/filterkit/validation"
)

// Config is the filterkit process configuration.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Admin     admin.Config    `yaml:"admin" mapstructure:"admin"`
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`
	Journal   journal.Config  `yaml:"journal" mapstructure:"journal"`
	Chains    []ChainConfig   `yaml:"chains" mapstructure:"chains" validate:"dive"`
}

// TelemetryConfig configures OTLP export of lifecycle spans and metrics.
type TelemetryConfig struct {
	Enabled    bool          `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string        `yaml:"endpoint" mapstructure:"endpoint" validate:"omitempty,hostname_port"`
	Insecure   bool          `yaml:"insecure" mapstructure:"insecure"`
	SampleRate float64       `yaml:"sample_rate" mapstructure:"sample_rate" validate:"gte=0,lte=1"`
	Interval   time.Duration `yaml:"interval" mapstructure:"interval" validate:"gte=0"`
}

// ChainConfig declares a chain built at startup from the shared filters.
type ChainConfig struct {
	Name    string   `yaml:"name" mapstructure:"name" validate:"required"`
	Filters []string `yaml:"filters" mapstructure:"filters" validate:"unique,dive,oneof=logging"`
}

// ApplyDefaults fills unset fields across all sections.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = serviceName
	}
	c.ServiceConfig.ApplyDefaults()
	c.Admin.ApplyDefaults()
	c.Journal.ApplyDefaults()
	if c.Telemetry.Endpoint == "" {
		c.Telemetry.Endpoint = "localhost:4318"
	}
	if c.Telemetry.SampleRate == 0 {
		c.Telemetry.SampleRate = 1.0
	}
	if c.Telemetry.Interval == 0 {
		c.Telemetry.Interval = 15 * time.Second
	}
}

// Validate checks the service section first, then the tagged sections,
// then the cross-field rules of admin and journal.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := validation.Validate(c); err != nil {
		return err
	}
	if err := c.Admin.Validate(); err != nil {
		return err
	}
	return c.Journal.Validate()
}

func defaults() map[string]any {
	return map[string]any{
		"name":          serviceName,
		"admin.enabled": true,
	}
}

// loadConfig reads, defaults and validates the process config, applying
// the -v override to the log level.
func loadConfig(opts *rootOptions) (*Config, error) {
	cfg := &Config{}
	loaderOpts := []config.LoaderOption{config.WithDefaults(defaults())}
	if opts.configFile != "" {
		loaderOpts = append(loaderOpts, config.WithConfigFile(opts.configFile))
	}
	if opts.envFile != "" {
		loaderOpts = append(loaderOpts, config.WithEnvFile(opts.envFile))
	}
	if err := config.LoadConfig(serviceName, cfg, loaderOpts...); err != nil {
		return nil, err
	}
	if level := levelFor(opts.verbosity); level != "" {
		cfg.Logging.Level = level
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Validate and print the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(cfg)
		},
	}
}
