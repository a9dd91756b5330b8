// Package config loads the crawler settings from viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sematext/imap-email-extractor/internal/crawler"
)

// SinceLayout is the date format of crawl.since.
const SinceLayout = "2006-01-02"

type Config struct {
	IMAP     IMAPConfig     `mapstructure:"imap"`
	Crawl    CrawlConfig    `mapstructure:"crawl"`
	Classify ClassifyConfig `mapstructure:"classify"`
	Output   OutputConfig   `mapstructure:"output"`
}

type IMAPConfig struct {
	Protocol   string        `mapstructure:"protocol"`
	Server     string        `mapstructure:"server"`
	Port       int           `mapstructure:"port"`
	Security   string        `mapstructure:"security"`
	Username   string        `mapstructure:"username"`
	Password   string        `mapstructure:"password"`
	KeyringKey string        `mapstructure:"keyring_key"`
	OAuth2     OAuth2Config  `mapstructure:"oauth2"`
	Timeouts   TimeoutConfig `mapstructure:"timeouts"`
}

type OAuth2Config struct {
	AccessToken  string `mapstructure:"access_token"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RefreshToken string `mapstructure:"refresh_token"`
	TokenURL     string `mapstructure:"token_url"`
}

type TimeoutConfig struct {
	Connect time.Duration `mapstructure:"connect"`
	Read    time.Duration `mapstructure:"read"`
}

type CrawlConfig struct {
	Include []string `mapstructure:"include"`
	Exclude []string `mapstructure:"exclude"`
	Since   string   `mapstructure:"since"`

	// Search pushes the keyword filter to the server. When off, every
	// message is paged through and only the date is searched for.
	Search bool `mapstructure:"search"`

	BatchSize      int           `mapstructure:"batch_size"`
	MaxRetries     int           `mapstructure:"max_retries"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
}

// Category is one side of the classification.
type Category struct {
	Name     string   `mapstructure:"name"`
	Keywords []string `mapstructure:"keywords"`
}

type ClassifyConfig struct {
	A Category `mapstructure:"a"`
	B Category `mapstructure:"b"`
}

type OutputConfig struct {
	Text   bool         `mapstructure:"text"`
	SQLite SQLiteConfig `mapstructure:"sqlite"`
	Report ReportConfig `mapstructure:"report"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type ReportConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Server   string   `mapstructure:"server"`
	Port     int      `mapstructure:"port"`
	Security string   `mapstructure:"security"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("imap.protocol", "imaps")
	v.SetDefault("imap.timeouts.connect", 30*time.Second)
	v.SetDefault("imap.timeouts.read", 60*time.Second)

	v.SetDefault("crawl.search", true)
	v.SetDefault("crawl.batch_size", crawler.DefaultBatchSize)
	v.SetDefault("crawl.max_retries", crawler.DefaultMaxRetries)
	v.SetDefault("crawl.max_reconnects", crawler.DefaultMaxReconnects)
	v.SetDefault("crawl.reconnect_delay", crawler.DefaultReconnectDelay)

	v.SetDefault("classify.a.name", "Solr")
	v.SetDefault("classify.a.keywords", []string{"solr"})
	v.SetDefault("classify.b.name", "ES")
	v.SetDefault("classify.b.keywords", []string{"elasticsearch"})

	v.SetDefault("output.text", true)
	v.SetDefault("output.report.port", 587)
	v.SetDefault("output.report.security", "starttls")
}

// Load decodes v into a Config and fills in settings implied by others.
// Comma separated strings are accepted wherever a list is expected.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.IMAP.applyProtocol()
	return &cfg, nil
}

// applyProtocol derives port and security from the protocol when they are
// not set explicitly.
func (c *IMAPConfig) applyProtocol() {
	c.Protocol = strings.ToLower(strings.TrimSpace(c.Protocol))
	c.Security = strings.ToLower(strings.TrimSpace(c.Security))

	imaps := c.Protocol == "imaps"
	if c.Port == 0 {
		c.Port = 143
		if imaps {
			c.Port = 993
		}
	}
	if c.Security == "" {
		c.Security = "none"
		if imaps {
			c.Security = "ssl"
		}
	}
}

// SinceDate parses crawl.since. It returns the zero time when unset.
func (c CrawlConfig) SinceDate() (time.Time, error) {
	s := strings.TrimSpace(c.Since)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(SinceLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid since date %q, want YYYY-MM-DD: %w", s, err)
	}
	return t, nil
}
