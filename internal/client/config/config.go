package config

import "time"

// Backend kinds selectable at startup.
const (
	BackendMemory   = "memory"
	BackendRest     = "rest"
	BackendPostgres = "postgres"
)

// Config holds runtime settings for the framefeed CLI.
//
// Fields:
//   - Backend: which backend implementation to wire (memory, rest, postgres).
//   - BaseURL: base URL of the hosted platform (rest backend).
//   - APIKey: the platform's anonymous API key sent with every request.
//   - DatabaseDSN: connection string for the postgres backend.
//   - HeartbeatInterval: realtime websocket heartbeat period.
//   - S3*: object storage settings for the postgres backend, which keeps
//     images in an S3-compatible store instead of the hosted platform.
type Config struct {
	Backend           string
	BaseURL           string
	APIKey            string
	DatabaseDSN       string
	HeartbeatInterval time.Duration
	S3Endpoint        string
	S3Region          string
	S3AccessKey       string
	S3SecretKey       string
	S3PublicURL       string
}

// LoadDefaults populates c with sensible defaults. The memory backend needs
// no external services, so a bare `feedctl` always starts.
func (c *Config) LoadDefaults() {
	c.Backend = BackendMemory
	c.BaseURL = "http://127.0.0.1:8000"
	c.APIKey = ""
	c.DatabaseDSN = ""
	c.HeartbeatInterval = 30 * time.Second
	c.S3Endpoint = ""
	c.S3Region = "us-east-1"
	c.S3AccessKey = ""
	c.S3SecretKey = ""
	c.S3PublicURL = ""
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON (if present) and command-line flags (if present). Later sources
// take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
