package config

import (
	"fmt"
)

type Config struct {
	Server      ServerConfig
	MediaServer MediaServerConfig
	Catalog     CatalogConfig
	Generator   GeneratorConfig
	Storage     StorageConfig
	Recommend   RecommendConfig
	MCP         MCPConfig
	Log         LogConfig
}

type ServerConfig struct {
	Port int
}

type MediaServerConfig struct {
	BaseURL string
}

type CatalogConfig struct {
	BaseURL string
	APIKey  string
}

type GeneratorConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

type StorageConfig struct {
	DataDir string
}

type RecommendConfig struct {
	PageSize         int
	MaxAttempts      int
	BufferTTLMinutes int
}

// MCPConfig carries the media-server session the MCP stdio transport
// runs under; stdio has no login flow. Empty values disable the MCP
// surface.
type MCPConfig struct {
	UserID      string
	AccessToken string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4200,
		},
		MediaServer: MediaServerConfig{
			BaseURL: "http://localhost:8096",
		},
		Catalog: CatalogConfig{
			BaseURL: "http://localhost:5055",
		},
		Generator: GeneratorConfig{
			BaseURL: "https://generativelanguage.googleapis.com",
			Model:   "gemini-2.5-flash",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Recommend: RecommendConfig{
			PageSize:         10,
			MaxAttempts:      3,
			BufferTTLMinutes: 30,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON config file at
// $XDG_CONFIG_HOME/suggestd/config.json, then applies SUGGESTD_*
// environment variable overrides on top.
func Load() (Config, error) {
	return loadWith(newFileBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Catalog.APIKey == "" {
		return Config{}, fmt.Errorf("missing required config: catalog API key. Set it via environment variable SUGGESTD_CATALOG_API_KEY")
	}
	if cfg.Generator.APIKey == "" {
		return Config{}, fmt.Errorf("missing required config: generator API key. Set it via environment variable SUGGESTD_GENERATOR_API_KEY")
	}

	return cfg, nil
}
