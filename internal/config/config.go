package config

import (
	"fmt"

	"github.com/Netflix/go-env"
)

type Config struct {
	OpenRouterAPIKey  string  `env:"OPENROUTER_API_KEY,required=true"`
	OpenRouterBaseURL string  `env:"OPENROUTER_BASE_URL,default=https://openrouter.ai/api/v1"`
	Model             string  `env:"MODEL,default=deepseek/deepseek-chat"`
	CurriculumDir     string  `env:"CURRICULUM_DIR,default=curriculum"`
	OutputDir         string  `env:"OUTPUT_DIR,default=output"`
	APIPort           int     `env:"API_PORT,default=8080"`
	LogLevel          string  `env:"LOG_LEVEL,default=info"`
	MaxRuntimeSec     int     `env:"MAX_RUNTIME_SEC,default=7200"`
	LLMTimeoutSec     int     `env:"LLM_TIMEOUT_SEC,default=180"`
	MinContentChars   int     `env:"MIN_CONTENT_CHARS,default=1600"`
	MaxContentChars   int     `env:"MAX_CONTENT_CHARS,default=1950"`
	MaxAttempts       int     `env:"MAX_ATTEMPTS,default=3"`
	RateLimitWaitSec  int     `env:"RATE_LIMIT_WAIT_SEC,default=60"`
	LessonDelaySec    int     `env:"LESSON_DELAY_SEC,default=4"`
	CPUHighWater      float64 `env:"CPU_HIGH_WATER,default=85"`
	DatabaseDSN       string  `env:"DATABASE_DSN"`
	RedisURL          string  `env:"REDIS_URL"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.MinContentChars <= 0 || cfg.MaxContentChars < cfg.MinContentChars {
		return nil, fmt.Errorf("invalid content length bounds: min=%d max=%d", cfg.MinContentChars, cfg.MaxContentChars)
	}

	return &cfg, nil
}
