// Package config reads the process configuration from the environment.
package config

import (
	"github.com/myrjola/dossier/internal/ai"
	"github.com/myrjola/dossier/internal/envstruct"
	"github.com/myrjola/dossier/internal/errors"
	"time"
)

// Config is shared by the binaries. Fields are populated with [envstruct.Populate].
type Config struct {
	// Addr is the HTTP listen address. Use port 0 to pick a free port.
	Addr string `env:"DOSSIER_ADDR" envDefault:"localhost:4000"`
	// SqliteURL is the database path. ":memory:" gives a private in-memory database.
	SqliteURL string `env:"DOSSIER_SQLITE_URL" envDefault:"./dossier.sqlite"`
	// PprofAddr is the port of the loopback pprof server. Empty disables it.
	PprofAddr string `env:"DOSSIER_PPROF_ADDR" envDefault:":6060"`
	// OpenAIAPIKey seeds the openai credential when the stored configuration has none.
	OpenAIAPIKey    string        `env:"OPENAI_API_KEY" envDefault:""`
	OpenAIBaseURL   string        `env:"OPENAI_BASE_URL" envDefault:""`
	OpenAIModel     string        `env:"OPENAI_MODEL" envDefault:""`
	ProviderTimeout time.Duration `env:"DOSSIER_PROVIDER_TIMEOUT" envDefault:"30s"`
	SimulatedDelay  time.Duration `env:"DOSSIER_SIMULATED_DELAY" envDefault:"1.5s"`
	// RequestTimeout bounds API requests. Requests waiting on a provider get ProviderTimeout on top.
	RequestTimeout time.Duration `env:"DOSSIER_REQUEST_TIMEOUT" envDefault:"5s"`
	// StagePace multiplies the nominal stage durations. Zero disables the waits.
	StagePace float64 `env:"DOSSIER_STAGE_PACE" envDefault:"1"`
}

// Load populates a Config using lookupEnv, which has the signature of [os.LookupEnv].
func Load(lookupEnv func(string) (string, bool)) (Config, error) {
	var cfg Config
	if err := envstruct.Populate(&cfg, lookupEnv); err != nil {
		return Config{}, errors.Wrap(err, "populate config")
	}
	if cfg.StagePace < 0 {
		return Config{}, errors.Wrap(envstruct.ErrInvalidValue, "DOSSIER_STAGE_PACE must not be negative")
	}
	if cfg.RequestTimeout < time.Second {
		return Config{}, errors.Wrap(envstruct.ErrInvalidValue, "DOSSIER_REQUEST_TIMEOUT must be at least 1s")
	}
	return cfg, nil
}

// OpenAI returns the settings of the live OpenAI integration.
func (c Config) OpenAI() ai.OpenAIConfig {
	return ai.OpenAIConfig{
		BaseURL: c.OpenAIBaseURL,
		Model:   c.OpenAIModel,
		Timeout: c.ProviderTimeout,
	}
}
