// Package config loads the arena configuration from YAML with environment
// overrides compatible with the VLLM_A_* / VLLM_B_* deployment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-arena/internal/domain"
	"github.com/ahrav/go-arena/internal/llm/configuration"
	"github.com/ahrav/go-arena/internal/llm/retry"
	"github.com/ahrav/go-arena/internal/logging"
	"github.com/ahrav/go-arena/internal/store"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the root of arena.yaml.
type Config struct {
	Backends      Backends             `yaml:"backends"`
	Generation    configuration.Config `yaml:"generation"`
	Retry         Retry                `yaml:"retry"`
	Randomization Randomization        `yaml:"randomization"`
	Store         store.Config         `yaml:"store"`
	Server        Server               `yaml:"server"`
	Temporal      Temporal             `yaml:"temporal"`
	Logging       logging.Config       `yaml:"logging"`
}

// Backends holds the two compared services.
type Backends struct {
	A BackendConfig `yaml:"a"`
	B BackendConfig `yaml:"b"`
}

// BackendConfig describes one backend as written in the file.
type BackendConfig struct {
	Name     string `yaml:"name"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
	Provider string `yaml:"provider"`
}

// Retry holds the per-call-site retry policies.
type Retry struct {
	Questions retry.Policy `yaml:"questions"`
	Answers   retry.Policy `yaml:"answers"`
}

// Randomization seeds the blind left/right assignment. A nil seed draws a
// fresh one per run.
type Randomization struct {
	Seed *uint64 `yaml:"seed"`
}

// Server configures the HTTP API.
type Server struct {
	Addr        string        `yaml:"addr" validate:"required"`
	CORSOrigins []string      `yaml:"cors_origins"`
	Sessions    SessionConfig `yaml:"sessions"`
}

// SessionConfig selects where in-progress judgment sessions live.
type SessionConfig struct {
	Backend       string        `yaml:"backend" validate:"oneof=memory redis"`
	RedisAddr     string        `yaml:"redis_addr" validate:"required_if=Backend redis"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	TTL           time.Duration `yaml:"ttl"`
}

// Temporal configures the durable workflow runner.
type Temporal struct {
	HostPort  string `yaml:"host_port" validate:"required"`
	Namespace string `yaml:"namespace" validate:"required"`
	TaskQueue string `yaml:"task_queue" validate:"required"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Backends: Backends{
			A: BackendConfig{Name: "Model A"},
			B: BackendConfig{Name: "Model B"},
		},
		Generation: configuration.DefaultConfig(),
		Retry: Retry{
			Questions: retry.DefaultPolicy(),
			Answers:   retry.DefaultPolicy(),
		},
		Store: store.Config{
			Provider: store.ProviderDuckDB,
			Path:     "data/arena.duckdb",
		},
		Server: Server{
			Addr:        ":8080",
			CORSOrigins: []string{"http://localhost:3000"},
			Sessions:    SessionConfig{Backend: "memory", TTL: 24 * time.Hour},
		},
		Temporal: Temporal{
			HostPort:  "localhost:7233",
			Namespace: "default",
			TaskQueue: "arena",
		},
		Logging: logging.Config{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. A missing file is not an error when optional is set.
func Load(path string, optional bool) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && optional:
	default:
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// applyEnv overlays deployment environment variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	overlay := func(prefix string, b *BackendConfig) {
		if v, ok := lookup(prefix + "_NAME"); ok {
			b.Name = v
		}
		if v, ok := lookup(prefix + "_MODEL_ID"); ok {
			b.Model = v
		}
		if v, ok := lookup(prefix + "_BASE_URL"); ok {
			b.BaseURL = v
		}
		if v, ok := lookup(prefix + "_API_KEY"); ok {
			b.APIKey = v
		}
	}
	overlay("VLLM_A", &c.Backends.A)
	overlay("VLLM_B", &c.Backends.B)

	if v, ok := lookup("DATABASE_PROVIDER"); ok && v != "" {
		c.Store.Provider = v
	}
	if v, ok := lookup("DATABASE_PATH"); ok && v != "" {
		c.Store.Path = v
	}
	if v, ok := lookup("MONGODB_URI"); ok && v != "" {
		c.Store.URI = v
	}
	if v, ok := lookup("REDIS_ADDR"); ok && v != "" {
		c.Server.Sessions.RedisAddr = v
	}
	if v, ok := lookup("TEMPORAL_HOST_PORT"); ok && v != "" {
		c.Temporal.HostPort = v
	}
	if v, ok := lookup("ARENA_SEED"); ok && v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: ARENA_SEED: %w", ErrInvalidConfig, err)
		}
		c.Randomization.Seed = &seed
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every section. Backends are checked separately by
// BackendA/BackendB so commands that never call a backend can still load.
func (c *Config) Validate() error {
	if err := c.Generation.Validate(); err != nil {
		return fmt.Errorf("%w: generation: %w", ErrInvalidConfig, err)
	}
	if err := c.Retry.Questions.Validate(); err != nil {
		return fmt.Errorf("%w: retry.questions: %w", ErrInvalidConfig, err)
	}
	if err := c.Retry.Answers.Validate(); err != nil {
		return fmt.Errorf("%w: retry.answers: %w", ErrInvalidConfig, err)
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	for name, section := range map[string]any{"server": c.Server, "temporal": c.Temporal, "logging": c.Logging} {
		if err := validate.Struct(section); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, name, err)
		}
	}
	return nil
}

// BackendA returns the validated backend for role A.
func (c *Config) BackendA() (domain.Backend, error) { return c.Backends.A.backend(domain.RoleA) }

// BackendB returns the validated backend for role B.
func (c *Config) BackendB() (domain.Backend, error) { return c.Backends.B.backend(domain.RoleB) }

// Backend returns the validated backend for role.
func (c *Config) Backend(role domain.BackendRole) (domain.Backend, error) {
	switch role {
	case domain.RoleA:
		return c.BackendA()
	case domain.RoleB:
		return c.BackendB()
	default:
		return domain.Backend{}, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidBackend, role)
	}
}

func (b BackendConfig) backend(role domain.BackendRole) (domain.Backend, error) {
	out := domain.Backend{
		Role:       role,
		Name:       b.Name,
		Endpoint:   b.BaseURL,
		Credential: b.APIKey,
		Model:      b.Model,
		Provider:   b.Provider,
	}
	if err := out.Validate(); err != nil {
		return domain.Backend{}, err
	}
	return out, nil
}

// LLM returns the generation client settings with logging preferences applied.
func (c *Config) LLM() configuration.Config {
	out := c.Generation
	out.Observability.LogPrompts = out.Observability.LogPrompts || c.Logging.LogPrompts
	return out
}
