package config

import (
	"fmt"
	"strings"

	"timcast/internal/broker"
	"timcast/internal/entities"
	"timcast/internal/reconciler"
	"timcast/internal/store"
	"timcast/pkg/logx"
)

// Config is the on-disk configuration. All durations are Go duration strings
// (e.g. "500ms", "10s", "1m").
type Config struct {
	Logging    LoggingConfig    `json:"logging"`
	Storage    StorageConfig    `json:"storage"`
	Broker     BrokerConfig     `json:"broker"`
	Entities   EntitiesConfig   `json:"entities"`
	Reconciler ReconcilerConfig `json:"reconciler,omitempty"`
}

type LoggingConfig struct {
	Level   string `json:"level,omitempty"` // trace|debug|info|warn|error; default info
	Console bool   `json:"console,omitempty"`
	File    struct {
		Enabled bool   `json:"enabled,omitempty"`
		Path    string `json:"path,omitempty"`
	} `json:"file,omitempty"`
}

// StorageConfig controls the aggregate store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./timcast.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

type BrokerConfig struct {
	Brokers []string `json:"brokers"`
	GroupID string   `json:"group_id,omitempty"`

	CommandTopic  string `json:"command_topic,omitempty"`
	ResponseTopic string `json:"response_topic,omitempty"`
	ActionTopic   string `json:"action_topic,omitempty"`

	DispatchRatePerSec int    `json:"dispatch_rate_per_sec,omitempty"`
	BatchTimeout       string `json:"batch_timeout,omitempty"`
}

type EntitiesConfig struct {
	BaseURL  string `json:"base_url"`
	Timeout  string `json:"timeout,omitempty"`
	RetryMax int    `json:"retry_max,omitempty"`
}

type ReconcilerConfig struct {
	Spec        string `json:"spec,omitempty"`
	Interval    string `json:"interval,omitempty"`
	TickTimeout string `json:"tick_timeout,omitempty"`
}

const (
	defaultGroupID       = "timcast"
	defaultCommandTopic  = "tim.command.request"
	defaultResponseTopic = "tim.command.response"
	defaultActionTopic   = "automation.action.request"
)

// Validate checks the fields services cannot default away.
func (c *Config) Validate() error {
	if len(c.Broker.Brokers) == 0 {
		return fmt.Errorf("broker.brokers: at least one address required")
	}
	if strings.TrimSpace(c.Entities.BaseURL) == "" {
		return fmt.Errorf("entities.base_url: required")
	}
	if c.Storage.Driver == "sqlite" && strings.TrimSpace(c.Storage.Path) == "" {
		return fmt.Errorf("storage.path: required for sqlite driver")
	}
	if _, err := c.StoreConfig(); err != nil {
		return err
	}
	if _, err := c.BrokerConfig(); err != nil {
		return err
	}
	if _, err := c.EntitiesConfig(); err != nil {
		return err
	}
	if _, err := c.ReconcilerConfig(); err != nil {
		return err
	}
	return nil
}

func (c *Config) LogConfig() logx.Config {
	return logx.Config{
		Level:   c.Logging.Level,
		Console: c.Logging.Console,
		File: logx.FileConfig{
			Enabled: c.Logging.File.Enabled,
			Path:    c.Logging.File.Path,
		},
	}
}

func (c *Config) StoreConfig() (store.Config, error) {
	busy, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout)
	if err != nil {
		return store.Config{}, err
	}
	return store.Config{
		Driver:      c.Storage.Driver,
		Path:        c.Storage.Path,
		BusyTimeout: busy,
	}, nil
}

func (c *Config) BrokerConfig() (broker.Config, error) {
	batch, err := ParseDurationField("broker.batch_timeout", c.Broker.BatchTimeout)
	if err != nil {
		return broker.Config{}, err
	}
	cfg := broker.Config{
		Brokers:            c.Broker.Brokers,
		GroupID:            c.Broker.GroupID,
		CommandTopic:       c.Broker.CommandTopic,
		ResponseTopic:      c.Broker.ResponseTopic,
		ActionTopic:        c.Broker.ActionTopic,
		DispatchRatePerSec: c.Broker.DispatchRatePerSec,
		BatchTimeout:       batch,
	}
	if cfg.GroupID == "" {
		cfg.GroupID = defaultGroupID
	}
	if cfg.CommandTopic == "" {
		cfg.CommandTopic = defaultCommandTopic
	}
	if cfg.ResponseTopic == "" {
		cfg.ResponseTopic = defaultResponseTopic
	}
	if cfg.ActionTopic == "" {
		cfg.ActionTopic = defaultActionTopic
	}
	return cfg, nil
}

func (c *Config) EntitiesConfig() (entities.ClientConfig, error) {
	timeout, err := ParseDurationField("entities.timeout", c.Entities.Timeout)
	if err != nil {
		return entities.ClientConfig{}, err
	}
	return entities.ClientConfig{
		BaseURL:  c.Entities.BaseURL,
		Timeout:  timeout,
		RetryMax: c.Entities.RetryMax,
	}, nil
}

func (c *Config) ReconcilerConfig() (reconciler.Config, error) {
	interval, err := ParseDurationField("reconciler.interval", c.Reconciler.Interval)
	if err != nil {
		return reconciler.Config{}, err
	}
	tickTimeout, err := ParseDurationField("reconciler.tick_timeout", c.Reconciler.TickTimeout)
	if err != nil {
		return reconciler.Config{}, err
	}
	return reconciler.Config{
		Spec:        c.Reconciler.Spec,
		Interval:    interval,
		TickTimeout: tickTimeout,
	}, nil
}
