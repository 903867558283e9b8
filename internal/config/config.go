package config

import (
	"errors"
	"fmt"
	"time"
)

type Log struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	// File is a path; empty means stderr.
	File string `koanf:"file"`
}

type Client struct {
	Server          string        `koanf:"server"`
	Username        string        `koanf:"username"`
	Password        string        `koanf:"password"`
	RefreshInterval time.Duration `koanf:"refresh_interval"`
	FrameInterval   time.Duration `koanf:"frame_interval"`
	MetricsAddr     string        `koanf:"metrics_addr"`
	Log             Log           `koanf:"log"`
}

type Server struct {
	Addr       string  `koanf:"addr"`
	DB         string  `koanf:"db"`
	Seed       string  `koanf:"seed"`
	JournalDir string  `koanf:"journal_dir"`
	RatePerSec float64 `koanf:"rate_per_sec"`
	RateBurst  int     `koanf:"rate_burst"`
	Mirror     Mirror  `koanf:"mirror"`
	Log        Log     `koanf:"log"`
}

// Mirror uploads finished journal segments to an S3-compatible bucket.
// It is off while Endpoint is empty.
type Mirror struct {
	Endpoint        string `koanf:"endpoint"`
	Bucket          string `koanf:"bucket"`
	Region          string `koanf:"region"`
	Prefix          string `koanf:"prefix"`
	AccessKeyID     string `koanf:"access_key_id"`
	SecretAccessKey string `koanf:"secret_access_key"`
	Workers         int    `koanf:"workers"`
}

func (m Mirror) Enabled() bool { return m.Endpoint != "" }

func ClientDefaults() map[string]any {
	return map[string]any{
		"server":           "ws://localhost:7070/v1/ws",
		"refresh_interval": 200 * time.Millisecond,
		"frame_interval":   10 * time.Millisecond,
		"log.level":        "info",
		"log.format":       "text",
		"log.file":         "gridrealm-client.log",
	}
}

func ServerDefaults() map[string]any {
	return map[string]any{
		"addr":           ":7070",
		"db":             "data/world.sqlite",
		"journal_dir":    "data/journal",
		"rate_per_sec":   50.0,
		"rate_burst":     100,
		"mirror.region":  "auto",
		"mirror.workers": 2,
		"log.level":      "info",
		"log.format":     "text",
	}
}

// LoadClient reads client settings. path may be empty.
func LoadClient(path string, overrides map[string]any) (Client, error) {
	var c Client
	if err := NewLoader(WithConfigFile(path)).Load(&c, ClientDefaults(), overrides); err != nil {
		return Client{}, err
	}
	return c, c.Validate()
}

// LoadServer reads server settings. path may be empty.
func LoadServer(path string, overrides map[string]any) (Server, error) {
	var s Server
	if err := NewLoader(WithConfigFile(path)).Load(&s, ServerDefaults(), overrides); err != nil {
		return Server{}, err
	}
	return s, s.Validate()
}

func (c Client) Validate() error {
	switch {
	case c.Server == "":
		return errors.New("config: server address is required")
	case c.Username == "":
		return errors.New("config: username is required")
	case c.RefreshInterval <= 0:
		return fmt.Errorf("config: refresh_interval must be positive, got %s", c.RefreshInterval)
	case c.FrameInterval <= 0:
		return fmt.Errorf("config: frame_interval must be positive, got %s", c.FrameInterval)
	}
	return nil
}

func (s Server) Validate() error {
	switch {
	case s.Addr == "":
		return errors.New("config: addr is required")
	case s.DB == "":
		return errors.New("config: db is required")
	case s.RatePerSec <= 0:
		return fmt.Errorf("config: rate_per_sec must be positive, got %g", s.RatePerSec)
	case s.RateBurst <= 0:
		return fmt.Errorf("config: rate_burst must be positive, got %d", s.RateBurst)
	case s.Mirror.Enabled() && (s.Mirror.Bucket == "" || s.Mirror.AccessKeyID == "" || s.Mirror.SecretAccessKey == ""):
		return errors.New("config: mirror needs bucket, access_key_id and secret_access_key")
	}
	return nil
}
