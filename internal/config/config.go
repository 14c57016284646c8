// Package config loads service configuration from an optional YAML file
// and REPROC_ environment variables, environment taking precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Store selects and configures the document store backend.
type Store struct {
	// Backend is one of "sqlite", "mysql", "diskv" or "inmem".
	Backend string `mapstructure:"backend"`
	// Path is the database file (sqlite) or base directory (diskv).
	Path string `mapstructure:"path"`
	// DSN is the connection string for mysql.
	DSN string `mapstructure:"dsn"`
}

// Stats configures the workflow statistics service.
type Stats struct {
	URL string `mapstructure:"url"`
	// RefreshHost and ScriptDir locate the update script run over ssh
	// when a forced refresh is needed.
	RefreshHost string `mapstructure:"refresh_host"`
	ScriptDir   string `mapstructure:"script_dir"`
}

type Config struct {
	Listen string `mapstructure:"listen"`
	Debug  bool   `mapstructure:"debug"`

	Store Store `mapstructure:"store"`

	ReqMgrURL        string `mapstructure:"reqmgr_url"`
	Stats            Stats  `mapstructure:"stats"`
	DBSURL           string `mapstructure:"dbs_url"`
	CertificationURL string `mapstructure:"certification_url"`

	DatasetBlacklist []string `mapstructure:"dataset_blacklist"`

	SubmitterQueueSize int `mapstructure:"submitter_queue_size"`
}

// Load reads the configuration. path may be empty, in which case only
// defaults and environment variables apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("listen", ":8005")
	v.SetDefault("debug", false)
	v.SetDefault("store.backend", "sqlite")
	v.SetDefault("store.path", "reproc.db")
	v.SetDefault("reqmgr_url", "https://cmsweb.cern.ch")
	v.SetDefault("stats.url", "http://vocms074.cern.ch:5984")
	v.SetDefault("stats.refresh_host", "vocms074.cern.ch")
	v.SetDefault("stats.script_dir", "/home/pdmvserv/Stats2")
	v.SetDefault("dbs_url", "https://cmsweb.cern.ch")
	v.SetDefault("certification_url", "https://cms-service-dqm.web.cern.ch/cms-service-dqm/CAF/certification")
	v.SetDefault("submitter_queue_size", 100)

	v.SetEnvPrefix("REPROC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the backend selection and its required settings.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "sqlite", "diskv":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the %s backend", c.Store.Backend)
		}
	case "mysql":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the mysql backend")
		}
	case "inmem":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	return nil
}
