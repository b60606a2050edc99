// Package config manages application configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/coachpo/folio/internal/schema"
)

// EngineConfig sizes the dispatch queue and the trade dedup window.
type EngineConfig struct {
	QueueSize int `yaml:"queueSize"`
	// TradeRetention caps the processed-trade id set. Zero keeps every id
	// for the process lifetime.
	TradeRetention int `yaml:"tradeRetention"`
}

// EventbusConfig sets in-memory event bus sizing characteristics.
type EventbusConfig struct {
	BufferSize int `yaml:"bufferSize"`
}

// DatabaseConfig points at the Postgres instance backing the strategy store.
// An empty DSN switches the engine to the in-memory store.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// TelemetryConfig configures OTLP exporters (metrics only).
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlpEndpoint"`
	ServiceName  string `yaml:"serviceName"`
}

// FeedConfig locates the live tick feed.
type FeedConfig struct {
	URL string `yaml:"url"`
}

// DatafeedConfig locates the HTTP bar-history service.
type DatafeedConfig struct {
	URL string `yaml:"url"`
}

// GatewayConfig paces order traffic to the venue.
type GatewayConfig struct {
	Name      string  `yaml:"name"`
	RateLimit float64 `yaml:"rateLimit"`
	Burst     int     `yaml:"burst"`
}

// ContractConfig describes one tradeable instrument.
type ContractConfig struct {
	Instrument  string  `yaml:"instrument"`
	Venue       string  `yaml:"venue"`
	Gateway     string  `yaml:"gateway"`
	TickSize    float64 `yaml:"tickSize"`
	LotSize     int64   `yaml:"lotSize"`
	HistoryFeed bool    `yaml:"historyFeed"`
}

// StrategyConfig seeds one strategy instance at startup.
type StrategyConfig struct {
	Name        string         `yaml:"name"`
	Class       string         `yaml:"class"`
	Instruments []string       `yaml:"instruments"`
	Parameters  map[string]any `yaml:"parameters"`
}

// Config is the unified Folio application configuration sourced from YAML.
type Config struct {
	Engine     EngineConfig     `yaml:"engine"`
	Eventbus   EventbusConfig   `yaml:"eventbus"`
	Database   DatabaseConfig   `yaml:"database"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Feed       FeedConfig       `yaml:"feed"`
	Datafeed   DatafeedConfig   `yaml:"datafeed"`
	Gateway    GatewayConfig    `yaml:"gateway"`
	Contracts  []ContractConfig `yaml:"contracts"`
	Strategies []StrategyConfig `yaml:"strategies"`
}

// Load reads and validates a Config from the provided YAML file.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalise() {
	if c.Engine.QueueSize <= 0 {
		c.Engine.QueueSize = 1024
	}
	if c.Engine.TradeRetention < 0 {
		c.Engine.TradeRetention = 0
	}
	if c.Eventbus.BufferSize <= 0 {
		c.Eventbus.BufferSize = 64
	}
	if c.Gateway.Name == "" {
		c.Gateway.Name = "paper"
	}
	if c.Gateway.RateLimit <= 0 {
		c.Gateway.RateLimit = 20
	}
	if c.Gateway.Burst <= 0 {
		c.Gateway.Burst = 1
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "folio"
	}
	c.Database.DSN = strings.TrimSpace(c.Database.DSN)
	c.Telemetry.OTLPEndpoint = strings.TrimSpace(c.Telemetry.OTLPEndpoint)
	c.Feed.URL = strings.TrimSpace(c.Feed.URL)
	c.Datafeed.URL = strings.TrimSpace(c.Datafeed.URL)
}

// Validate performs semantic validation on the configuration.
func (c Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Contracts))
	for i, contract := range c.Contracts {
		if contract.Instrument == "" {
			return fmt.Errorf("contracts[%d]: instrument required", i)
		}
		if _, dup := seen[contract.Instrument]; dup {
			return fmt.Errorf("contracts[%d]: duplicate instrument %s", i, contract.Instrument)
		}
		seen[contract.Instrument] = struct{}{}
		if contract.TickSize < 0 {
			return fmt.Errorf("contracts[%d]: tickSize must be >= 0", i)
		}
		if contract.LotSize < 0 {
			return fmt.Errorf("contracts[%d]: lotSize must be >= 0", i)
		}
	}

	names := make(map[string]struct{}, len(c.Strategies))
	for i, s := range c.Strategies {
		if s.Name == "" {
			return fmt.Errorf("strategies[%d]: name required", i)
		}
		if _, dup := names[s.Name]; dup {
			return fmt.Errorf("strategies[%d]: duplicate name %s", i, s.Name)
		}
		names[s.Name] = struct{}{}
		if s.Class == "" {
			return fmt.Errorf("strategies[%d]: class required", i)
		}
		if len(s.Instruments) == 0 {
			return fmt.Errorf("strategies[%d]: at least one instrument required", i)
		}
		for _, instrument := range s.Instruments {
			if _, ok := seen[instrument]; !ok {
				return fmt.Errorf("strategies[%d]: unknown instrument %s", i, instrument)
			}
		}
	}
	return nil
}

// ContractList converts the configured contracts into schema values.
func (c Config) ContractList() []schema.Contract {
	out := make([]schema.Contract, 0, len(c.Contracts))
	for _, contract := range c.Contracts {
		out = append(out, schema.Contract{
			Instrument:  contract.Instrument,
			Venue:       contract.Venue,
			Gateway:     contract.Gateway,
			TickSize:    contract.TickSize,
			LotSize:     contract.LotSize,
			HistoryFeed: contract.HistoryFeed,
		})
	}
	return out
}
