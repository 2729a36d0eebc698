package config

import (
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ScraperConfig controls the static fetch and the dynamic-render decision.
type ScraperConfig struct {
	UserAgent string `yaml:"userAgent"`
	TimeoutMs int    `yaml:"timeoutMs"`

	// DynamicThresholdBytes is the static-markup size below which a
	// headless render is attempted. Small static payloads usually mean
	// a client-rendered page; large ones are assumed server-rendered.
	// This is a heuristic, not a guarantee.
	DynamicThresholdBytes int `yaml:"dynamicThresholdBytes"`
}

type RodConfig struct {
	Enabled bool `yaml:"enabled"`
}

type RobotsConfig struct {
	Respect bool `yaml:"respect"`
}

// EnrichmentConfig points at a Firecrawl-compatible extraction API.
// An empty APIKey disables the enrichment strategy entirely.
type EnrichmentConfig struct {
	APIKey    string `yaml:"apiKey"`
	BaseURL   string `yaml:"baseURL"`
	TimeoutMs int    `yaml:"timeoutMs"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

// AgentsConfig controls the periodic registry sync. An empty RemoteURL
// disables the job (the registry then serves only its seeded entries).
type AgentsConfig struct {
	RemoteURL         string `yaml:"remoteURL"`
	SyncIntervalHours int    `yaml:"syncIntervalHours"`
}

type SimulationConfig struct {
	ScreenshotDir string `yaml:"screenshotDir"`
	TimeoutMs     int    `yaml:"timeoutMs"`
}

type RateLimitConfig struct {
	TelemetryPerMinute int `yaml:"telemetryPerMinute"`
}

type WorkerConfig struct {
	MaxConcurrentJobs int `yaml:"maxConcurrentJobs"`
	PollIntervalMs    int `yaml:"pollIntervalMs"`
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Scraper    ScraperConfig    `yaml:"scraper"`
	Rod        RodConfig        `yaml:"rod"`
	Robots     RobotsConfig     `yaml:"robots"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Agents     AgentsConfig     `yaml:"agents"`
	Simulation SimulationConfig `yaml:"simulation"`
	RateLimit  RateLimitConfig  `yaml:"ratelimit"`
	Worker     WorkerConfig     `yaml:"worker"`
}

func Load(path string) *Config {
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("failed to open config file: %v", err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		log.Fatalf("failed to decode config: %v", err)
	}

	return &cfg
}
