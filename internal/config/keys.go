package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "SUGGESTD_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "media_server.base_url", typ: kString, env: "SUGGESTD_MEDIA_SERVER_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.MediaServer.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.MediaServer.BaseURL },
	},
	{
		key: "catalog.base_url", typ: kString, env: "SUGGESTD_CATALOG_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Catalog.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Catalog.BaseURL },
	},
	{
		key: "catalog.api_key", typ: kString, env: "SUGGESTD_CATALOG_API_KEY", secret: true,
		apply:   func(cfg *Config, v any) { cfg.Catalog.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Catalog.APIKey },
	},
	{
		key: "generator.base_url", typ: kString, env: "SUGGESTD_GENERATOR_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Generator.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Generator.BaseURL },
	},
	{
		key: "generator.api_key", typ: kString, env: "SUGGESTD_GENERATOR_API_KEY", secret: true,
		apply:   func(cfg *Config, v any) { cfg.Generator.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Generator.APIKey },
	},
	{
		key: "generator.model", typ: kString, env: "SUGGESTD_GENERATOR_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Generator.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Generator.Model },
	},
	{
		key: "storage.data_dir", typ: kString, env: "SUGGESTD_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "recommend.page_size", typ: kInt, env: "SUGGESTD_RECOMMEND_PAGE_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Recommend.PageSize = v.(int) },
		extract: func(cfg Config) any { return cfg.Recommend.PageSize },
	},
	{
		key: "recommend.max_attempts", typ: kInt, env: "SUGGESTD_RECOMMEND_MAX_ATTEMPTS",
		apply:   func(cfg *Config, v any) { cfg.Recommend.MaxAttempts = v.(int) },
		extract: func(cfg Config) any { return cfg.Recommend.MaxAttempts },
	},
	{
		key: "recommend.buffer_ttl_minutes", typ: kInt, env: "SUGGESTD_RECOMMEND_BUFFER_TTL_MINUTES",
		apply:   func(cfg *Config, v any) { cfg.Recommend.BufferTTLMinutes = v.(int) },
		extract: func(cfg Config) any { return cfg.Recommend.BufferTTLMinutes },
	},
	{
		key: "mcp.user_id", typ: kString, env: "SUGGESTD_MCP_USER_ID",
		apply:   func(cfg *Config, v any) { cfg.MCP.UserID = v.(string) },
		extract: func(cfg Config) any { return cfg.MCP.UserID },
	},
	{
		key: "mcp.access_token", typ: kString, env: "SUGGESTD_MCP_ACCESS_TOKEN", secret: true,
		apply:   func(cfg *Config, v any) { cfg.MCP.AccessToken = v.(string) },
		extract: func(cfg Config) any { return cfg.MCP.AccessToken },
	},
	{
		key: "log.level", typ: kString, env: "SUGGESTD_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
