// Copyright 2024-2026 Aiku AI

package connector

import (
	"bytes"
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"time"

	up "go.mau.fi/util/configupgrade"
	"go.mau.fi/zeroconfig"
	"gopkg.in/yaml.v3"

	"github.com/aiku/fbdc/pkg/watch"
)

//go:embed example-config.yaml
var ExampleConfig string

const (
	DefaultGatewayURL = "wss://gateway.discord.gg/?v=9&encoding=json"
	DefaultAPIURL     = "https://discord.com/api/v9"

	defaultBackfillCount = 50
	// maxBackfillCount is the largest page the messages endpoint returns.
	maxBackfillCount = 100
)

// Config holds the session and bridge configuration.
type Config struct {
	GatewayURL  string         `yaml:"gateway_url"`
	APIURL      string         `yaml:"api_url"`
	VerifyToken bool           `yaml:"verify_token"`
	Identify    IdentifyConfig `yaml:"identify"`
	// HeartbeatAckCheck ends the session when a heartbeat is due while the
	// previous one is still unacknowledged.
	HeartbeatAckCheck bool `yaml:"heartbeat_ack_check"`

	Triggers        TriggerConfig `yaml:"triggers"`
	ResolveMentions bool          `yaml:"resolve_mentions"`

	BackfillEnabled  bool `yaml:"backfill_enabled"`
	BackfillMaxCount int  `yaml:"backfill_max_count"`

	Logging zeroconfig.Config `yaml:"logging"`
}

// IdentifyConfig is sent as the identify frame's connection properties.
type IdentifyConfig struct {
	OS      string `yaml:"os"`
	Browser string `yaml:"browser"`
	Device  string `yaml:"device"`
	Intents int    `yaml:"intents"`
}

// TriggerConfig sizes the trigger worker pool.
type TriggerConfig struct {
	Workers       int `yaml:"workers"`
	QueueSize     int `yaml:"queue_size"`
	SettleDelayMS int `yaml:"settle_delay_ms"`
}

// WatchOptions converts the trigger settings for the watch package.
func (tc TriggerConfig) WatchOptions() watch.Options {
	return watch.Options{
		Workers:     tc.Workers,
		QueueSize:   tc.QueueSize,
		SettleDelay: time.Duration(tc.SettleDelayMS) * time.Millisecond,
	}
}

func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	type rawConfig Config
	return node.Decode((*rawConfig)(c))
}

// PostProcess fills defaults and validates the endpoints.
func (c *Config) PostProcess() error {
	if c.GatewayURL == "" {
		c.GatewayURL = DefaultGatewayURL
	}
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if err := checkURL(c.GatewayURL, "ws", "wss"); err != nil {
		return fmt.Errorf("invalid gateway_url: %w", err)
	}
	if err := checkURL(c.APIURL, "http", "https"); err != nil {
		return fmt.Errorf("invalid api_url: %w", err)
	}
	if c.BackfillMaxCount <= 0 {
		c.BackfillMaxCount = defaultBackfillCount
	}
	if c.BackfillMaxCount > maxBackfillCount {
		c.BackfillMaxCount = maxBackfillCount
	}
	if c.Identify.Intents < 0 {
		return fmt.Errorf("invalid identify.intents: %d", c.Identify.Intents)
	}
	return nil
}

func checkURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s {
			if u.Host == "" {
				return fmt.Errorf("%q has no host", raw)
			}
			return nil
		}
	}
	return fmt.Errorf("%q must use one of %v", raw, schemes)
}

func upgradeConfig(helper up.Helper) {
	helper.Copy(up.Str, "gateway_url")
	helper.Copy(up.Str, "api_url")
	helper.Copy(up.Bool, "verify_token")
	helper.Copy(up.Str, "identify", "os")
	helper.Copy(up.Str, "identify", "browser")
	helper.Copy(up.Str, "identify", "device")
	helper.Copy(up.Int, "identify", "intents")
	helper.Copy(up.Bool, "heartbeat_ack_check")
	helper.Copy(up.Int, "triggers", "workers")
	helper.Copy(up.Int, "triggers", "queue_size")
	helper.Copy(up.Int, "triggers", "settle_delay_ms")
	helper.Copy(up.Bool, "resolve_mentions")
	helper.Copy(up.Bool, "backfill_enabled")
	helper.Copy(up.Int, "backfill_max_count")
	helper.Copy(up.Map, "logging")
}

// ParseConfig merges a user config document onto the embedded example
// config, so keys the user leaves out keep their documented defaults.
func ParseConfig(data []byte) (*Config, error) {
	var base yaml.Node
	if err := yaml.Unmarshal([]byte(ExampleConfig), &base); err != nil {
		return nil, fmt.Errorf("failed to parse example config: %w", err)
	}
	if len(bytes.TrimSpace(data)) > 0 {
		var user yaml.Node
		if err := yaml.Unmarshal(data, &user); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		upgradeConfig(up.NewHelper(&base, &user))
	}

	var cfg Config
	if err := base.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.PostProcess(); err != nil {
		return nil, fmt.Errorf("failed to post-process config: %w", err)
	}
	return &cfg, nil
}

// LoadConfig reads the config file at path. An empty path loads the
// embedded defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return ParseConfig(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseConfig(data)
}
