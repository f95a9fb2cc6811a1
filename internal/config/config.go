package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Market   MarketConfig   `yaml:"market" envconfig:"MARKET"`
	Cache    CacheConfig    `yaml:"cache" envconfig:"CACHE"`
	Pipeline PipelineConfig `yaml:"pipeline" envconfig:"PIPELINE"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// SecurityConfig maps an exchange ticker to its display label.
type SecurityConfig struct {
	Symbol string `yaml:"symbol" envconfig:"SYMBOL" validate:"required"`
	Label  string `yaml:"label" envconfig:"LABEL" validate:"required"`
}

// MarketConfig contains the acquisition universe and data source settings
type MarketConfig struct {
	Universe       []SecurityConfig `yaml:"universe" validate:"required,min=1,dive"`
	StartDate      string           `yaml:"start_date" envconfig:"START_DATE" validate:"required,datetime=2006-01-02"`
	Endpoint       string           `yaml:"endpoint" envconfig:"ENDPOINT" validate:"required,url"`
	RequestTimeout time.Duration    `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
	RateLimitRPS   float64          `yaml:"rate_limit_rps" envconfig:"RATE_LIMIT_RPS" validate:"gt=0"`
	RateBurst      int              `yaml:"rate_burst" envconfig:"RATE_BURST" validate:"min=1"`
	MaxConcurrent  int              `yaml:"max_concurrent" envconfig:"MAX_CONCURRENT" validate:"min=1"`
}

// CacheConfig controls the memoized load collaborator
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl" envconfig:"TTL"`
}

// GapConfig describes one synthetic missing-value range for a security.
// Start and End are 0-based row indices, End exclusive.
type GapConfig struct {
	Symbol string `yaml:"symbol" validate:"required"`
	Start  int    `yaml:"start" validate:"min=0"`
	End    int    `yaml:"end" validate:"gtfield=Start"`
}

// PipelineConfig contains corruption and statistics settings
type PipelineConfig struct {
	Gaps                []GapConfig `yaml:"gaps" validate:"dive"`
	MovingAverageWindow int         `yaml:"moving_average_window" envconfig:"MOVING_AVERAGE_WINDOW" validate:"min=2"`
}

// DefaultUniverse is the fixed set of ten Taiwan weighted stocks the
// dashboard analyzes.
var DefaultUniverse = []SecurityConfig{
	{Symbol: "2330.TW", Label: "台積電"},
	{Symbol: "2317.TW", Label: "鴻海"},
	{Symbol: "2454.TW", Label: "聯發科"},
	{Symbol: "2308.TW", Label: "台達電"},
	{Symbol: "2382.TW", Label: "廣達"},
	{Symbol: "2881.TW", Label: "富邦金"},
	{Symbol: "2882.TW", Label: "國泰金"},
	{Symbol: "2412.TW", Label: "中華電"},
	{Symbol: "2303.TW", Label: "聯電"},
	{Symbol: "2891.TW", Label: "中信金"},
}

// Default returns a configuration populated with the values the dashboard
// ships with. YAML and environment overlays are applied on top of it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: "logs/twpulse.log",
		},
		Market: MarketConfig{
			Universe:       DefaultUniverse,
			StartDate:      "2023-01-01",
			Endpoint:       "https://query1.finance.yahoo.com",
			RequestTimeout: 20 * time.Second,
			RateLimitRPS:   4,
			RateBurst:      2,
			MaxConcurrent:  4,
		},
		Cache: CacheConfig{
			TTL: 15 * time.Minute,
		},
		Pipeline: PipelineConfig{
			Gaps:                nil, // derived from the universe when empty, see DefaultGaps
			MovingAverageWindow: 20,
		},
	}
}

// DefaultGaps builds the demonstration corruption plan against the given
// universe: the first five rows of the first security, rows 10-12 of the
// second, and row 20 of the third. Securities are referenced by symbol so
// the plan survives column reordering.
func DefaultGaps(universe []SecurityConfig) []GapConfig {
	if len(universe) < 3 {
		return nil
	}
	return []GapConfig{
		{Symbol: universe[0].Symbol, Start: 0, End: 5},
		{Symbol: universe[1].Symbol, Start: 10, End: 13},
		{Symbol: universe[2].Symbol, Start: 20, End: 21},
	}
}

// Load loads configuration from defaults, an optional YAML file, and
// environment variables, in that order of precedence (env wins).
func Load() (*Config, error) {
	cfg := Default()

	if path := configFilePath(); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process("TWP", &cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	if len(cfg.Pipeline.Gaps) == 0 {
		cfg.Pipeline.Gaps = DefaultGaps(cfg.Market.Universe)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Market.Universe))
	for _, s := range c.Market.Universe {
		if seen[s.Symbol] {
			return fmt.Errorf("duplicate symbol in universe: %s", s.Symbol)
		}
		seen[s.Symbol] = true
	}
	return nil
}

// StartTime parses the configured acquisition start date.
func (c *Config) StartTime() (time.Time, error) {
	t, err := time.Parse("2006-01-02", c.Market.StartDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse start date: %w", err)
	}
	return t, nil
}

func configFilePath() string {
	if path := os.Getenv("TWP_CONFIG_FILE"); path != "" {
		return path
	}
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}
	return ""
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
