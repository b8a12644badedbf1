package server

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config - конфигурация сервера из переменных окружения.
type Config struct {
	// Port - HTTP порт сервера.
	Port string `env:"PORT" envDefault:"8080"`

	// ReplayDir - директория для сохранения реплеев матчей.
	ReplayDir string `env:"REPLAY_DIR" envDefault:"./replays"`

	// CheatsEnabled включает чит-канал (только стейджинг и тесты).
	CheatsEnabled bool `env:"CHEATS_ENABLED" envDefault:"false"`
}

// LoadConfig читает конфигурацию из окружения.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env config: %w", err)
	}
	return cfg, nil
}
