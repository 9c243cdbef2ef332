package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// スケジューラ種別。
const (
	SchedulerThread   = "thread"
	SchedulerInterval = "interval"
	SchedulerDelayed  = "delayed"
	SchedulerTimer    = "timer"
	SchedulerNone     = "none"
)

// キュー種別。
const (
	QueueSortedMap = "sortedmap"
	QueueHeap      = "heap"
)

// Config は config.yaml の `server:` セクションから読み込まれる
// サーバ設定を表します。
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig はサーバ側の全設定を表します。
type ServerConfig struct {
	// Addr は HTTP の待ち受けアドレス（既定 ":8080"）。
	Addr string `yaml:"addr"`

	// DefaultTTL はリクエストで ttl が省略されたときに使う TTL。
	// 0 は永続。ファイル監視によるホットリロードの対象。
	DefaultTTL time.Duration `yaml:"default_ttl"`

	// Map はマップ本体の構成。
	Map MapConfig `yaml:"map"`
}

// MapConfig はマップとエビクションスケジューラの構成を表します。
type MapConfig struct {
	// Shards はデリゲートのシャード数。2 の冪推奨、既定 16。
	Shards int `yaml:"shards"`

	// Scheduler は thread | interval | delayed | timer | none のいずれか。
	Scheduler string `yaml:"scheduler"`

	// Delay は interval スケジューラのドレイン周期。正でなければならない。
	Delay time.Duration `yaml:"delay"`

	// Queue は sortedmap | heap のいずれか。キューベースのスケジューラ
	// でのみ意味を持つ。
	Queue string `yaml:"queue"`
}

// 既定値。
const (
	DefaultAddr   = ":8080"
	DefaultShards = 16
	DefaultDelay  = time.Millisecond
)

// Default は既定値で埋めた設定を返します。
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: DefaultAddr,
			Map: MapConfig{
				Shards:    DefaultShards,
				Scheduler: SchedulerThread,
				Delay:     DefaultDelay,
				Queue:     QueueSortedMap,
			},
		},
	}
}

// Load はパスの YAML を読み込み、既定値を適用して検証します。
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.Map.Shards <= 0 {
		c.Server.Map.Shards = DefaultShards
	}
	if c.Server.Map.Scheduler == "" {
		c.Server.Map.Scheduler = SchedulerThread
	}
	if c.Server.Map.Delay == 0 {
		c.Server.Map.Delay = DefaultDelay
	}
	if c.Server.Map.Queue == "" {
		c.Server.Map.Queue = QueueSortedMap
	}
}

// Validate は設定の整合性を検査します。
func (c *Config) Validate() error {
	switch c.Server.Map.Scheduler {
	case SchedulerThread, SchedulerInterval, SchedulerDelayed, SchedulerTimer, SchedulerNone:
	default:
		return fmt.Errorf("config: unknown scheduler %q", c.Server.Map.Scheduler)
	}
	switch c.Server.Map.Queue {
	case QueueSortedMap, QueueHeap:
	default:
		return fmt.Errorf("config: unknown queue %q", c.Server.Map.Queue)
	}
	if c.Server.Map.Scheduler == SchedulerInterval && c.Server.Map.Delay <= 0 {
		return fmt.Errorf("config: interval scheduler requires a positive delay, got %s", c.Server.Map.Delay)
	}
	if c.Server.DefaultTTL < 0 {
		return fmt.Errorf("config: default_ttl must not be negative, got %s", c.Server.DefaultTTL)
	}
	return nil
}
