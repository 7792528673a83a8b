package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token          string        `yaml:"token"`
	APIEndpoint    string        `yaml:"api_endpoint"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port int `yaml:"port"` // 0 disables the admin server
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"` // empty disables the cache and falls back to a local lock
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type WorkerConfig struct {
	PollInterval      time.Duration `yaml:"poll_interval"`
	RunOnce           bool          `yaml:"run_once"`
	RunOnceEmptyPolls int           `yaml:"run_once_empty_polls"`
	MaxRetries        int           `yaml:"max_retries"`
	Concurrency       int           `yaml:"concurrency"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	StaleAfter        time.Duration `yaml:"stale_after"`
}

type BroadcastConfig struct {
	MinSendInterval   time.Duration `yaml:"min_send_interval"`
	InterGroupDelay   time.Duration `yaml:"inter_group_delay"`
	FailureThreshold  int           `yaml:"failure_threshold"`
	DebounceWindow    time.Duration `yaml:"debounce_window"`
	MemberCountDelay  time.Duration `yaml:"member_count_delay"`
	JoinButtonCaption string        `yaml:"join_button_caption"`
}

type SchedulerConfig struct {
	StaleSweepCron string `yaml:"stale_sweep_cron"`

	// MemberCountCron enqueues an update_member_counts job; empty disables it.
	MemberCountCron string        `yaml:"member_count_cron"`
	PoolStatsEvery  time.Duration `yaml:"pool_stats_every"`
}

type Config struct {
	Bot       BotConfig       `yaml:"bot"`
	Log       LogConfig       `yaml:"log"`
	Admin     AdminConfig     `yaml:"admin"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Worker    WorkerConfig    `yaml:"worker"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the optional YAML file at path, applies environment
// overrides (after loading .env if present), fills defaults and validates.
func LoadConfig(path string, dev bool) (*Config, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	// max_retries: 0 is a valid setting, so "unset" needs its own marker.
	cfg := Config{Worker: WorkerConfig{MaxRetries: -1}}
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
			// env-only deployment
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	cfg.Runtime.Dev = dev

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("TGMS_BOT_TOKEN"); v != "" {
		cfg.Bot.Token = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("TGMS_POLL_INTERVAL"); v != "" {
		d, err := parseSecondsOrDuration(v)
		if err != nil {
			return fmt.Errorf("TGMS_POLL_INTERVAL: %w", err)
		}
		cfg.Worker.PollInterval = d
	}
	if v := os.Getenv("TGMS_RUN_ONCE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TGMS_RUN_ONCE: %w", err)
		}
		cfg.Worker.RunOnce = b
	}
	if v := os.Getenv("TGMS_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TGMS_CONCURRENCY: %w", err)
		}
		cfg.Worker.Concurrency = n
	}
	return nil
}

// parseSecondsOrDuration accepts "2" (seconds) as well as "2s" or "500ms".
func parseSecondsOrDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

func applyDefaults(cfg *Config) {
	if cfg.Bot.RequestTimeout <= 0 {
		cfg.Bot.RequestTimeout = 30 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	w := &cfg.Worker
	if w.PollInterval <= 0 {
		w.PollInterval = 2 * time.Second
	}
	if w.RunOnceEmptyPolls <= 0 {
		w.RunOnceEmptyPolls = 3
	}
	if w.MaxRetries < 0 {
		w.MaxRetries = 3
	}
	if w.Concurrency <= 0 {
		w.Concurrency = 1
	}
	if w.HeartbeatInterval <= 0 {
		w.HeartbeatInterval = time.Minute
	}
	if w.StaleAfter <= 0 {
		w.StaleAfter = time.Hour
	}

	b := &cfg.Broadcast
	if b.MinSendInterval <= 0 {
		b.MinSendInterval = time.Second
	}
	if b.InterGroupDelay <= 0 {
		b.InterGroupDelay = 3 * time.Second
	}
	if b.FailureThreshold <= 0 {
		b.FailureThreshold = 7
	}
	if b.DebounceWindow <= 0 {
		b.DebounceWindow = 15 * time.Second
	}
	if b.MemberCountDelay <= 0 {
		b.MemberCountDelay = time.Second
	}
	if b.JoinButtonCaption == "" {
		b.JoinButtonCaption = "🚀 JOIN LIVE"
	}

	if cfg.Scheduler.StaleSweepCron == "" {
		cfg.Scheduler.StaleSweepCron = "@every 5m"
	}
	if cfg.Scheduler.PoolStatsEvery <= 0 {
		cfg.Scheduler.PoolStatsEvery = 15 * time.Second
	}
}

// Validate checks the settings the worker cannot run without.
func (c *Config) Validate() error {
	if c.Bot.Token == "" {
		return errors.New("bot.token is required (or TGMS_BOT_TOKEN)")
	}
	if c.Database.URL == "" {
		return errors.New("database.url is required (or DATABASE_URL)")
	}
	if c.Worker.StaleAfter <= c.Worker.HeartbeatInterval {
		return fmt.Errorf("worker.stale_after (%s) must exceed worker.heartbeat_interval (%s)",
			c.Worker.StaleAfter, c.Worker.HeartbeatInterval)
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
