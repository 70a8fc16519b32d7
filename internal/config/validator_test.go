package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:                8080,
			ReadTimeoutSeconds:  10,
			WriteTimeoutSeconds: 10,
		},
		Broker: BrokerConfig{
			Kafka: KafkaConfig{
				Brokers:         []string{"localhost:9092"},
				GroupID:         "classifier-workers",
				InputTopic:      "comment-events",
				DLQTopic:        "comment-events-dlq",
				MaxReceiveCount: 3,
			},
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:   "localhost",
				Port:   5432,
				User:   "sentinel",
				DBName: "sentinel",
			},
			Redis: RedisConfig{
				Host: "localhost",
				Port: 6379,
			},
			MongoDB: MongoDBConfig{
				URI:      "mongodb://localhost:27017",
				Database: "sentinel",
			},
		},
		Ingestion: IngestionConfig{
			IntervalSeconds: 300,
			LookbackSeconds: 3600,
		},
		Classifier: ClassifierConfig{
			Workers: 4,
			LLM: LLMConfig{
				Provider: "openai",
				Model:    "gpt-4o-mini",
			},
		},
	}
}

func TestValidateStaticValid(t *testing.T) {
	assert.NoError(t, ValidateStatic(validConfig()))
}

func TestValidateStatic(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:    "port out of range",
			mutate:  func(cfg *Config) { cfg.Server.Port = 70000 },
			wantErr: "server.port",
		},
		{
			name:    "zero read timeout",
			mutate:  func(cfg *Config) { cfg.Server.ReadTimeoutSeconds = 0 },
			wantErr: "server.read_timeout_seconds",
		},
		{
			name:    "no kafka brokers",
			mutate:  func(cfg *Config) { cfg.Broker.Kafka.Brokers = nil },
			wantErr: "broker.kafka.brokers",
		},
		{
			name:    "empty broker address",
			mutate:  func(cfg *Config) { cfg.Broker.Kafka.Brokers = []string{""} },
			wantErr: "broker.kafka.brokers[0]",
		},
		{
			name:    "missing group id",
			mutate:  func(cfg *Config) { cfg.Broker.Kafka.GroupID = "" },
			wantErr: "broker.kafka.group_id",
		},
		{
			name:    "zero max receive count",
			mutate:  func(cfg *Config) { cfg.Broker.Kafka.MaxReceiveCount = 0 },
			wantErr: "broker.kafka.max_receive_count",
		},
		{
			name: "inverted retry intervals",
			mutate: func(cfg *Config) {
				cfg.Broker.Kafka.Retry.InitialInterval = 10
				cfg.Broker.Kafka.Retry.MaxInterval = 5
			},
			wantErr: "broker.kafka.retry.max_interval",
		},
		{
			name:    "postgres without user",
			mutate:  func(cfg *Config) { cfg.Database.Postgres.User = "" },
			wantErr: "database.postgres.user",
		},
		{
			name:    "postgres bad sslmode",
			mutate:  func(cfg *Config) { cfg.Database.Postgres.SSLMode = "sometimes" },
			wantErr: "database.postgres.sslmode",
		},
		{
			name:    "redis bad port",
			mutate:  func(cfg *Config) { cfg.Database.Redis.Port = -1 },
			wantErr: "database.redis.port",
		},
		{
			name:    "mongodb bad uri scheme",
			mutate:  func(cfg *Config) { cfg.Database.MongoDB.URI = "http://localhost" },
			wantErr: "database.mongodb.uri",
		},
		{
			name:    "zero ingestion interval",
			mutate:  func(cfg *Config) { cfg.Ingestion.IntervalSeconds = 0 },
			wantErr: "ingestion.interval_seconds",
		},
		{
			name:    "zero classifier workers",
			mutate:  func(cfg *Config) { cfg.Classifier.Workers = 0 },
			wantErr: "classifier.workers",
		},
		{
			name:    "missing llm model",
			mutate:  func(cfg *Config) { cfg.Classifier.LLM.Model = "" },
			wantErr: "classifier.llm.model",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := ValidateStatic(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateStaticOptionalDatabases(t *testing.T) {
	// Postgres and Redis sections left empty are simply skipped.
	cfg := validConfig()
	cfg.Database.Postgres = PostgresConfig{}
	cfg.Database.Redis = RedisConfig{}
	assert.NoError(t, ValidateStatic(cfg))
}
