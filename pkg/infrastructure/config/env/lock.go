package envconfig

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type lockEnv struct {
	Backend  string        `env:"LOCK_BACKEND" envDefault:"postgres"`
	LeaseTTL time.Duration `env:"LOCK_LEASE_TTL" envDefault:"30s"`
}

type lock struct {
	raw lockEnv
}

func NewLockConfig() (*lock, error) {
	var raw lockEnv
	if err := env.Parse(&raw); err != nil {
		return nil, err
	}
	switch raw.Backend {
	case "postgres", "redis", "memory":
	default:
		return nil, fmt.Errorf("unsupported LOCK_BACKEND %q", raw.Backend)
	}
	return &lock{raw: raw}, nil
}

func (cfg *lock) Backend() string         { return cfg.raw.Backend }
func (cfg *lock) LeaseTTL() time.Duration { return cfg.raw.LeaseTTL }

type redisEnv struct {
	Host        string        `env:"REDIS_HOST" envDefault:"localhost"`
	Port        int           `env:"REDIS_PORT" envDefault:"6379"`
	Password    string        `env:"REDIS_PASSWORD"`
	DB          int           `env:"REDIS_DB" envDefault:"0"`
	DialTimeout time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
}

type redis struct {
	raw redisEnv
}

func NewRedisConfig() (*redis, error) {
	var raw redisEnv
	if err := env.Parse(&raw); err != nil {
		return nil, err
	}
	return &redis{raw: raw}, nil
}

func (cfg *redis) Address() string {
	return fmt.Sprintf("%s:%d", cfg.raw.Host, cfg.raw.Port)
}

func (cfg *redis) Password() string           { return cfg.raw.Password }
func (cfg *redis) DB() int                    { return cfg.raw.DB }
func (cfg *redis) DialTimeout() time.Duration { return cfg.raw.DialTimeout }
