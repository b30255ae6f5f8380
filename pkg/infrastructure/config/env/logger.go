package envconfig

import "github.com/caarlos0/env/v11"

type loggerEnv struct {
	Level  string `env:"LOGGER_LEVEL" envDefault:"info"`
	AsJSON bool   `env:"LOGGER_AS_JSON" envDefault:"true"`
}

type loggerCfg struct {
	raw loggerEnv
}

func NewLoggerConfig() (*loggerCfg, error) {
	var raw loggerEnv
	if err := env.Parse(&raw); err != nil {
		return nil, err
	}
	return &loggerCfg{raw: raw}, nil
}

func (cfg *loggerCfg) Level() string { return cfg.raw.Level }
func (cfg *loggerCfg) AsJSON() bool  { return cfg.raw.AsJSON }
