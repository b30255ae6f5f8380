package envconfig

import "github.com/caarlos0/env/v11"

type kafkaEnv struct {
	Brokers        []string `env:"KAFKA_BROKERS" envSeparator:","`
	RunEventsTopic string   `env:"KAFKA_RUN_EVENTS_TOPIC" envDefault:"mrp.run.events"`
}

type kafka struct {
	raw kafkaEnv
}

func NewKafkaConfig() (*kafka, error) {
	var raw kafkaEnv
	if err := env.Parse(&raw); err != nil {
		return nil, err
	}
	return &kafka{raw: raw}, nil
}

func (cfg *kafka) Brokers() []string      { return cfg.raw.Brokers }
func (cfg *kafka) Enabled() bool          { return len(cfg.raw.Brokers) > 0 }
func (cfg *kafka) RunEventsTopic() string { return cfg.raw.RunEventsTopic }
