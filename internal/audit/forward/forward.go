// Package forward delivers appended audit entries to downstream systems:
// a Kafka topic, an AMQP exchange or an Elasticsearch index. Delivery is
// best-effort; the audit log itself is the source of truth.
package forward

import (
	"time"

	"confd/internal/audit"

	"go.uber.org/zap"
)

// Config represents audit forwarding configuration
type Config struct {
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	AMQP          AMQPConfig          `mapstructure:"amqp"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
}

// KafkaConfig represents the Kafka forwarder configuration
type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// AMQPConfig represents the AMQP forwarder configuration
type AMQPConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	URL        string `mapstructure:"url"`
	Exchange   string `mapstructure:"exchange"`
	RoutingKey string `mapstructure:"routing_key"`
}

// ElasticsearchConfig represents the Elasticsearch forwarder configuration
type ElasticsearchConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

// Setup builds every enabled forwarder and registers it on the log.
// A forwarder that fails to initialize is skipped with a logged error so
// one unreachable broker does not keep the service down.
func Setup(cfg *Config, log *audit.Log, logger *zap.Logger) {
	if cfg.Kafka.Enabled {
		f, err := NewKafkaForwarder(&cfg.Kafka)
		if err != nil {
			logger.Error("failed to initialize kafka audit forwarder", zap.Error(err))
		} else {
			log.AddForwarder(f)
			logger.Info("kafka audit forwarder enabled",
				zap.Strings("brokers", cfg.Kafka.Brokers),
				zap.String("topic", cfg.Kafka.Topic))
		}
	}

	if cfg.AMQP.Enabled {
		f, err := NewAMQPForwarder(&cfg.AMQP)
		if err != nil {
			logger.Error("failed to initialize amqp audit forwarder", zap.Error(err))
		} else {
			log.AddForwarder(f)
			logger.Info("amqp audit forwarder enabled",
				zap.String("exchange", cfg.AMQP.Exchange))
		}
	}

	if cfg.Elasticsearch.Enabled {
		f, err := NewElasticForwarder(&cfg.Elasticsearch)
		if err != nil {
			logger.Error("failed to initialize elasticsearch audit forwarder", zap.Error(err))
		} else {
			log.AddForwarder(f)
			logger.Info("elasticsearch audit forwarder enabled",
				zap.String("index", cfg.Elasticsearch.Index))
		}
	}
}
