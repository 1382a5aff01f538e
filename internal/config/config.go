package config

import (
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv = "PODGEN_CONFIG"

	portEnv               = "PORT"
	openrouterAPIKeyEnv   = "OPENROUTER_API_KEY"
	openrouterTestKeyEnv  = "OPENROUTER_TEST_KEY"
	youtubeAPIKeyEnv      = "YOUTUBE_API_KEY"
	jwtSecretEnv          = "JWT_SECRET"
	defaultAdminPwEnv     = "DEFAULT_ADMIN_PASSWORD"
	nodeEnvEnv            = "NODE_ENV"
	adminTokenEnv         = "ADMIN_TOKEN"
	dataRootEnv           = "PODGEN_DATA_ROOT"
	ttsBinaryEnv          = "PODGEN_TTS_BINARY"
)

// Config holds every setting required across the application.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Ingest   IngestConfig   `yaml:"ingest"`
	LLM      LLMConfig      `yaml:"llm"`
	TTS      TTSConfig      `yaml:"tts"`
	Sources  []SourceConfig `yaml:"sources"`
}

// LoggingConfig controls the slog handler level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ServerConfig carries the HTTP edge's bind settings.
type ServerConfig struct {
	Port        string `yaml:"port"`
	Environment string `yaml:"environment"` // NODE_ENV-equivalent: only affects error detail verbosity
	AdminToken  string `yaml:"adminToken"`
	JWTSecret   string `yaml:"jwtSecret"`
	AdminPasswordHash string `yaml:"adminPasswordHash"`
}

// Production reports whether detailed error messages should be suppressed.
func (s ServerConfig) Production() bool {
	return s.Environment == "production"
}

// StorageConfig describes the on-disk layout (§6.3).
type StorageConfig struct {
	Root string `yaml:"root"` // archive.db, audio/, rss/, bundles/ all live under here
}

// IngestConfig tunes the Ingestion Engine.
type IngestConfig struct {
	ExistingThreshold int    `yaml:"existingThreshold"` // default 10; not read by the ingestion engine, which skips above the ingestion.PopulateThreshold constant
	YouTubeAPIKey     string `yaml:"youtubeApiKey"`
}

// LLMConfig wires the orchestrator's default provider settings.
type LLMConfig struct {
	Endpoint         string `yaml:"endpoint"`
	EnvironmentKey   string `yaml:"-"` // from OPENROUTER_API_KEY, never serialized
	TestKey          string `yaml:"-"` // from OPENROUTER_TEST_KEY
	DefaultBatchSize int    `yaml:"defaultBatchSize"`
}

// TTSConfig locates the external TTS worker executable.
type TTSConfig struct {
	Binary string `yaml:"binary"`
}

// SourceConfig enables/configures one registered source adapter.
type SourceConfig struct {
	Name    string            `yaml:"name"`
	Enabled bool              `yaml:"enabled"`
	Options map[string]string `yaml:"options"`
}

// Load reads YAML configuration (if present) and applies environment
// overrides, following the teacher's defaults -> file -> env -> derive
// pipeline.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()

	if len(cfg.Sources) == 0 {
		cfg.Sources = defaultConfig().Sources
	}

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(portEnv); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv(nodeEnvEnv); v != "" {
		c.Server.Environment = v
	}
	if v := os.Getenv(adminTokenEnv); v != "" {
		c.Server.AdminToken = v
	}
	if v := os.Getenv(jwtSecretEnv); v != "" {
		c.Server.JWTSecret = v
	}
	if v := os.Getenv(defaultAdminPwEnv); v != "" {
		c.Server.AdminPasswordHash = v
	}
	if v := os.Getenv(openrouterAPIKeyEnv); v != "" {
		c.LLM.EnvironmentKey = v
	}
	if v := os.Getenv(openrouterTestKeyEnv); v != "" {
		c.LLM.TestKey = v
	}
	if v := os.Getenv(youtubeAPIKeyEnv); v != "" {
		c.Ingest.YouTubeAPIKey = v
	}
	if v := os.Getenv(dataRootEnv); v != "" {
		c.Storage.Root = v
	}
	if v := os.Getenv(ttsBinaryEnv); v != "" {
		c.TTS.Binary = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Server.Port != "" {
		base.Server.Port = override.Server.Port
	}
	if override.Server.Environment != "" {
		base.Server.Environment = override.Server.Environment
	}
	if override.Server.AdminToken != "" {
		base.Server.AdminToken = override.Server.AdminToken
	}
	if override.Storage.Root != "" {
		base.Storage.Root = override.Storage.Root
	}
	if override.Ingest.ExistingThreshold != 0 {
		base.Ingest.ExistingThreshold = override.Ingest.ExistingThreshold
	}
	if override.LLM.Endpoint != "" {
		base.LLM.Endpoint = override.LLM.Endpoint
	}
	if override.LLM.DefaultBatchSize != 0 {
		base.LLM.DefaultBatchSize = override.LLM.DefaultBatchSize
	}
	if override.TTS.Binary != "" {
		base.TTS.Binary = override.TTS.Binary
	}
	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}
	return base
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Server:  ServerConfig{Port: "3000", Environment: "development"},
		Storage: StorageConfig{Root: "./data"},
		Ingest:  IngestConfig{ExistingThreshold: 10},
		LLM: LLMConfig{
			Endpoint:         "https://openrouter.ai/api/v1/chat/completions",
			DefaultBatchSize: 10,
		},
		TTS: TTSConfig{Binary: "./bin/tts-worker"},
		Sources: []SourceConfig{
			{Name: "archive", Enabled: true},
			{Name: "whitehouse", Enabled: true},
			{Name: "cspan", Enabled: true},
			{Name: "youtube", Enabled: false},
		},
	}
}

// ParsePort validates and returns the numeric port, falling back to 3000.
func ParsePort(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 3000
	}
	return n
}
