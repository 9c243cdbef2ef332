package evictmap

import (
	"github.com/amakane-hakari/kairos/internal/metrics"
)

const defaultShards = 16

type logLike interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config はマップの設定を表します。
type Config struct {
	Shards  int // 2 の冪推奨。0/未指定なら 16
	Logger  logLike
	Metrics metrics.Interface
}

// Option はマップのオプションを設定する関数です。
type Option func(*Config)

// WithLogger はマップのロガーを設定するオプションです。
func WithLogger(l logLike) Option {
	return func(c *Config) { c.Logger = l }
}

// WithMetrics はマップのメトリクスを設定するオプションです。
func WithMetrics(m metrics.Interface) Option {
	return func(c *Config) { c.Metrics = m }
}

// WithShards はデリゲートのシャード数を設定するオプションです。
func WithShards(n int) Option {
	return func(c *Config) { c.Shards = n }
}
