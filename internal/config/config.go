// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"github.com/alfredjeanlab/quorum/internal/model"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "QUORUM_"

type Config struct {
	// DatabaseURL is a postgres:// URL or sqlite://path.
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	GRPCAddr    string `env:"GRPC_ADDR" envDefault:":9090"`
	NATSURL     string `env:"NATS_URL"`   // empty = no events
	AuthToken   string `env:"AUTH_TOKEN"` // empty = auth disabled

	SweepInterval  time.Duration `env:"SWEEP_INTERVAL" envDefault:"30s"` // 0 = disabled
	GovernanceFile string        `env:"GOVERNANCE_FILE"`

	// Archive settings
	ArchiveInterval   time.Duration `env:"ARCHIVE_INTERVAL" envDefault:"5m"` // 0 = disabled
	ArchiveS3Bucket   string        `env:"ARCHIVE_S3_BUCKET"`                // enables S3 when set
	ArchiveS3Endpoint string        `env:"ARCHIVE_S3_ENDPOINT"`              // custom endpoint for MinIO
	ArchiveS3Region   string        `env:"ARCHIVE_S3_REGION" envDefault:"us-east-1"`
	ArchiveS3Key      string        `env:"ARCHIVE_S3_KEY" envDefault:"quorum/ledger.jsonl"`
	ArchiveGitRepo    string        `env:"ARCHIVE_GIT_REPO"` // enables git when set; path to clone
	ArchiveGitFile    string        `env:"ARCHIVE_GIT_FILE" envDefault:"ledger.jsonl"`
	ArchiveGitBranch  string        `env:"ARCHIVE_GIT_BRANCH" envDefault:"main"`
}

// Load reads QUORUM_* environment variables.
func Load() (*Config, error) {
	var c Config
	if err := env.ParseWithOptions(&c, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if c.SweepInterval < 0 {
		return nil, fmt.Errorf("%sSWEEP_INTERVAL must not be negative", EnvPrefix)
	}
	if c.ArchiveInterval < 0 {
		return nil, fmt.Errorf("%sARCHIVE_INTERVAL must not be negative", EnvPrefix)
	}
	return &c, nil
}

// ArchiveEnabled reports whether any archive destination is configured.
func (c *Config) ArchiveEnabled() bool {
	return c.ArchiveInterval > 0 && (c.ArchiveS3Bucket != "" || c.ArchiveGitRepo != "")
}

// LoadGovernance reads a TOML file of governance defaults. Keys missing from
// the file keep their built-in default. An empty path returns the built-in
// defaults.
func LoadGovernance(path string) (model.GovernanceConfig, error) {
	cfg := model.DefaultGovernanceConfig()
	if path == "" {
		return cfg, nil
	}
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return model.GovernanceConfig{}, fmt.Errorf("decode governance file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return model.GovernanceConfig{}, fmt.Errorf("governance file %s: unknown key %q", path, undecoded[0].String())
	}
	if err := model.ValidateGovernanceConfig(&cfg); err != nil {
		return model.GovernanceConfig{}, fmt.Errorf("governance file %s: %w", path, err)
	}
	return cfg, nil
}
