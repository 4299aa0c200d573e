// Package config loads application configuration from config.yaml and
// OUTREACH_-prefixed environment variables.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	ArcGIS   ArcGISConfig   `yaml:"arcgis" mapstructure:"arcgis"`
	Ingest   IngestConfig   `yaml:"ingest" mapstructure:"ingest"`
	DocuSign DocuSignConfig `yaml:"docusign" mapstructure:"docusign"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "postgres" or "sqlite"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ArcGISConfig configures the upstream parcel layer query endpoint.
type ArcGISConfig struct {
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	MinObjectID    int64   `yaml:"min_objectid" mapstructure:"min_objectid"`
	MaxObjectID    int64   `yaml:"max_objectid" mapstructure:"max_objectid"`
	PageSize       int64   `yaml:"page_size" mapstructure:"page_size"` // upstream caps at 2500
	MaxRetries     int     `yaml:"max_retries" mapstructure:"max_retries"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"` // per-attempt ceiling
	RatePerSecond  float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	BackoffBaseMS  int     `yaml:"backoff_base_ms" mapstructure:"backoff_base_ms"`
	BackoffMaxSecs int     `yaml:"backoff_max_secs" mapstructure:"backoff_max_secs"`
}

// IngestConfig configures the parcel ingestion pipeline.
type IngestConfig struct {
	BatchSize         int `yaml:"batch_size" mapstructure:"batch_size"` // upsert sub-batch size
	UpsertRetries     int `yaml:"upsert_retries" mapstructure:"upsert_retries"`
	UpsertDelaySecs   int `yaml:"upsert_delay_secs" mapstructure:"upsert_delay_secs"`
	RetryCooldownSecs int `yaml:"retry_cooldown_secs" mapstructure:"retry_cooldown_secs"`
}

// DocuSignConfig holds DocuSign JWT grant credentials.
type DocuSignConfig struct {
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	OAuthBaseURL   string `yaml:"oauth_base_url" mapstructure:"oauth_base_url"`
	IntegrationKey string `yaml:"integration_key" mapstructure:"integration_key"`
	UserID         string `yaml:"user_id" mapstructure:"user_id"`
	AccountID      string `yaml:"account_id" mapstructure:"account_id"`
	PrivateKeyPath string `yaml:"private_key_path" mapstructure:"private_key_path"`
	TemplateID     string `yaml:"template_id" mapstructure:"template_id"`
}

// ServerConfig configures the intake API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("OUTREACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	applyDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("arcgis.base_url", "https://gis.nola.gov/arcgis/rest/services/Property/Parcels/MapServer/0")
	v.SetDefault("arcgis.min_objectid", 1)
	v.SetDefault("arcgis.max_objectid", 170000)
	v.SetDefault("arcgis.page_size", 2500)
	v.SetDefault("arcgis.max_retries", 5)
	v.SetDefault("arcgis.timeout_secs", 120)
	v.SetDefault("arcgis.rate_per_second", 2)
	v.SetDefault("arcgis.backoff_base_ms", 1000)
	v.SetDefault("arcgis.backoff_max_secs", 60)
	v.SetDefault("ingest.batch_size", 500)
	v.SetDefault("ingest.upsert_retries", 3)
	v.SetDefault("ingest.upsert_delay_secs", 2)
	v.SetDefault("ingest.retry_cooldown_secs", 15)
	v.SetDefault("docusign.base_url", "https://demo.docusign.net/restapi")
	v.SetDefault("docusign.oauth_base_url", "https://account-d.docusign.com")
}

// Default returns a Config populated with the same defaults Load applies,
// without consulting the environment or a config file. Used by `config init`.
func Default() *Config {
	v := viper.New()
	applyDefaults(v)
	var cfg Config
	// Unmarshal of in-memory defaults cannot fail.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Validate checks that the configuration required by a feature is present.
// Missing required credentials are a fatal configuration error: commands call
// this before any work starts.
func (c *Config) Validate(feature string) error {
	var missing []string

	switch feature {
	case "store":
		if c.Store.DatabaseURL == "" {
			missing = append(missing, "store.database_url is required")
		}
		if c.Store.Driver != "postgres" && c.Store.Driver != "sqlite" {
			missing = append(missing, "store.driver must be postgres or sqlite")
		}
	case "ingest":
		if err := c.Validate("store"); err != nil {
			return err
		}
		if c.ArcGIS.BaseURL == "" {
			missing = append(missing, "arcgis.base_url is required")
		}
		if c.ArcGIS.PageSize <= 0 || c.ArcGIS.PageSize > 2500 {
			missing = append(missing, "arcgis.page_size must be in (0, 2500]")
		}
		if c.ArcGIS.MinObjectID >= c.ArcGIS.MaxObjectID {
			missing = append(missing, "arcgis.min_objectid must be below arcgis.max_objectid")
		}
	case "docusign":
		if c.DocuSign.IntegrationKey == "" {
			missing = append(missing, "docusign.integration_key is required")
		}
		if c.DocuSign.UserID == "" {
			missing = append(missing, "docusign.user_id is required")
		}
		if c.DocuSign.AccountID == "" {
			missing = append(missing, "docusign.account_id is required")
		}
		if c.DocuSign.PrivateKeyPath == "" {
			missing = append(missing, "docusign.private_key_path is required")
		}
	case "serve":
		if err := c.Validate("store"); err != nil {
			return err
		}
		// The intake store speaks pgx directly; sqlite is an ingest-only target.
		if c.Store.Driver != "postgres" {
			missing = append(missing, "store.driver must be postgres for serve")
		}
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			missing = append(missing, "server.port must be a valid port")
		}
	default:
		return eris.Errorf("config: unknown feature %q", feature)
	}

	if len(missing) > 0 {
		return eris.Errorf("config: %s", strings.Join(missing, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
