// Package relay forwards chat-platform messages that mention the bot to the
// chag server and posts the answer back.
package relay

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Config is read from the environment, optionally seeded from a .env file.
type Config struct {
	TelegramBotToken string        `env:"TELEGRAM_BOT_TOKEN,required"`
	ServerURL        string        `env:"SERVER_URL" envDefault:"http://localhost:5001/chag"`
	TriggerWords     []string      `env:"TRIGGER_WORDS" envSeparator:"," envDefault:"_chag,_chat"`
	RateLimit        float64       `env:"RATE_LIMIT" envDefault:"0.5"`
	RateBurst        int           `env:"RATE_BURST" envDefault:"3"`
	RequestTimeout   time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat        string        `env:"LOG_FORMAT" envDefault:"console"`
}

// LoadConfig loads envFile when present and parses the environment.
func LoadConfig(envFile string) (*Config, error) {
	if envFile != "" {
		// a missing .env is fine, the variables may come from the real environment
		_ = godotenv.Load(envFile)
	}
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse relay config: %w", err)
	}
	return cfg, nil
}
