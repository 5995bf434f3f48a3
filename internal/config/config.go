package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/dig"

	"github.com/pyre-llm/pyre/internal/transport/anthropic"
	"github.com/pyre-llm/pyre/internal/transport/openai"
)

// Config represents the pipeline configuration.
type Config struct {
	Debug     DebugConfig
	CORS      CORSConfig
	OpenAI    openai.Config
	Anthropic anthropic.Config
	Redis     RedisConfig
	Pipeline  PipelineConfig
}

// DebugConfig contains debug introspection server settings.
type DebugConfig struct {
	Enabled      bool `env:"DEBUG_SERVER_ENABLED"       envDefault:"false"`
	Port         int  `env:"DEBUG_SERVER_PORT"          envDefault:"8090"`
	ReadTimeout  int  `env:"DEBUG_SERVER_READ_TIMEOUT"  envDefault:"30"`
	WriteTimeout int  `env:"DEBUG_SERVER_WRITE_TIMEOUT" envDefault:"30"`
	Capacity     int  `env:"DEBUG_FRAME_CAPACITY"       envDefault:"128"`
}

// CORSConfig contains CORS policy settings for the debug server.
type CORSConfig struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS"   envSeparator:"," envDefault:"*"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS"   envSeparator:"," envDefault:"GET,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS"   envSeparator:"," envDefault:"Content-Type,Authorization"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS"                  envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE"                            envDefault:"86400"`
}

// RedisConfig contains response cache settings.
type RedisConfig struct {
	Enabled  bool   `env:"REDIS_ENABLED"   envDefault:"false"`
	Addr     string `env:"REDIS_ADDR"      envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB"        envDefault:"0"`
	TTL      int    `env:"REDIS_TTL"       envDefault:"3600"`
}

// PipelineConfig contains generation pipeline tuning knobs.
type PipelineConfig struct {
	ProgressScale float64 `env:"PIPELINE_PROGRESS_SCALE" envDefault:"2.0"`
}

// DepConfig is used for dependency injection with dig.
type DepConfig struct {
	dig.Out

	Debug     *DebugConfig
	CORS      *CORSConfig
	OpenAI    *openai.Config
	Anthropic *anthropic.Config
	Redis     *RedisConfig
	Pipeline  *PipelineConfig
}

// Load loads environment files and parses configuration.
func Load() *Config {
	for _, file := range []string{".env"} {
		_ = godotenv.Load(file)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		panic(err)
	}

	return &cfg
}

// ParseDependenciesConfig returns pointers to sub-configs for dependency injection.
func ParseDependenciesConfig(cfg *Config) DepConfig {
	return DepConfig{
		Debug:     &cfg.Debug,
		CORS:      &cfg.CORS,
		OpenAI:    &cfg.OpenAI,
		Anthropic: &cfg.Anthropic,
		Redis:     &cfg.Redis,
		Pipeline:  &cfg.Pipeline,
	}
}
