// Package config loads and layers the server's configuration from a TOML
// file with environment-variable overrides, mirroring serverconfig.rs's
// figment-style layering (defaults < file < environment) on top of
// spf13/viper instead of figment.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Database holds catalog connection settings.
type Database struct {
	DatabaseURL          string `mapstructure:"database_url"`
	MaxConnections       int    `mapstructure:"max_connections"`
	MinConnections       int    `mapstructure:"min_connections"`
	ConnectTimeoutSeconds int   `mapstructure:"connect_timeout_seconds"`
	IdleTimeoutSeconds   int    `mapstructure:"idle_timeout_seconds"`
	MaxLifetimeSeconds   int    `mapstructure:"max_lifetime_seconds"`
}

// HTTP holds the Delivery API's listen and TLS settings.
type HTTP struct {
	ListenAddress string `mapstructure:"listen_address"`
	ListenPort    int    `mapstructure:"listen_port"`
	BaseURL       string `mapstructure:"base_url"`
	DevSSL        bool   `mapstructure:"dev_ssl"`
	DevCert       string `mapstructure:"dev_cert"`
	DevKey        string `mapstructure:"dev_key"`
}

// Storage holds the Blob Store's on-disk layout settings.
type Storage struct {
	RootFolderPath string `mapstructure:"root_folder_path"`
	FolderDepth    uint8  `mapstructure:"folder_depth"`
	TempFolderPath string `mapstructure:"temp_folder_path"`
	ChunkSize      int64  `mapstructure:"chunk_size"`
}

// Auth holds OIDC client credentials and the login whitelist.
type Auth struct {
	GoogleClientID     string   `mapstructure:"google_client_id"`
	GoogleClientSecret string   `mapstructure:"google_client_secret"`
	UserWhitelist      []string `mapstructure:"user_whitelist"`
}

// Search holds the Meilisearch connection settings — separate internal
// and external URLs since the indexer talks to the engine directly while
// the browser-facing search key is scoped read-only.
type Search struct {
	MeiliURL         string `mapstructure:"meili_url"`
	MeiliExternalURL string `mapstructure:"meili_external_url"`
	MeiliAPIKey      string `mapstructure:"meili_api_key"`
	MeiliSearchKey   string `mapstructure:"meili_search_key"`
}

// Env holds ambient logging/tracing/metrics settings. The key is named
// rust_log verbatim (not renamed to log_level) because §6 of the external
// interface contract names it as a recognized configuration key; the
// value it holds is a zap level name instead of an env_logger directive.
type Env struct {
	RustLog           string `mapstructure:"rust_log"`
	TraceIncludeHeaders bool  `mapstructure:"trace_include_headers"`
	JaegerEndpoint    string `mapstructure:"jaeger_endpoint"`
	PrometheusEndpoint string `mapstructure:"prometheus_endpoint"`
}

// Clone holds the Clone Engine's external dump helper invocation settings.
type Clone struct {
	V86DumpScript    string `mapstructure:"v86_dump_script"`
	NodeBin          string `mapstructure:"node_bin"`
	ReindexInterval  int    `mapstructure:"reindex_interval_seconds"`
}

// Config is the fully assembled, layered configuration.
type Config struct {
	Database Database `mapstructure:"database"`
	HTTP     HTTP     `mapstructure:"http"`
	Storage  Storage  `mapstructure:"storage"`
	Auth     Auth     `mapstructure:"auth"`
	Search   Search   `mapstructure:"search"`
	Env      Env      `mapstructure:"env"`
	Clone    Clone    `mapstructure:"clone"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.database_url", "sqlite://gisst.db")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.min_connections", 1)
	v.SetDefault("database.connect_timeout_seconds", 10)
	v.SetDefault("database.idle_timeout_seconds", 600)
	v.SetDefault("database.max_lifetime_seconds", 1800)

	v.SetDefault("http.listen_address", "0.0.0.0")
	v.SetDefault("http.listen_port", 3000)
	v.SetDefault("http.base_url", "http://localhost:3000")
	v.SetDefault("http.dev_ssl", false)

	v.SetDefault("storage.root_folder_path", "./storage")
	v.SetDefault("storage.folder_depth", 4)
	v.SetDefault("storage.temp_folder_path", "./tmp")
	v.SetDefault("storage.chunk_size", 10_485_760)

	v.SetDefault("search.meili_url", "http://localhost:7700")
	v.SetDefault("search.meili_external_url", "http://localhost:7700")

	v.SetDefault("env.rust_log", "info")
	v.SetDefault("env.trace_include_headers", false)

	v.SetDefault("clone.v86_dump_script", "./v86dump/index.js")
	v.SetDefault("clone.node_bin", "node")
	v.SetDefault("clone.reindex_interval_seconds", 3600)
}

// Load reads configPath (a TOML file; missing is not an error — defaults
// and environment variables still apply) and overlays environment
// variables prefixed GISST_ with "__" as the nested-key separator, e.g.
// GISST_STORAGE__FOLDER_DEPTH=6.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("GISST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: read %s: %w", configPath, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}
