package config

import (
	"time"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/tracing/exporters"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

type Config struct {
	AppName                       string `env:"APP_NAME" env-default:"fern"`
	Port                          int    `env:"PORT" env-default:"3004"`
	LogLevel                      string `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool   `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int    `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"30"`
	HttpServerReadTimeoutSeconds  int    `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"30"`
	HttpServerIdleTimeoutSeconds  int    `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"60"`
	ShutdownTimeoutSeconds        int    `env:"SHUTDOWN_TIMEOUT_SECONDS" env-default:"15"`
	StartupMaxAttempts            int    `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// Registry store
	DatabaseDriver           string        `env:"DB_DRIVER" env-default:"sqlite3"`
	DatabaseDSN              string        `env:"DB_DSN" env-default:"file:fern.db?_foreign_keys=on"`
	DatabaseMaxOpenConns     int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseConnMaxLifetime  time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10m"`
	DatabaseMigrationVersion uint          `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce   int           `env:"DB_MIGRATION_FORCE" env-default:"0"`

	// Matching
	MatchWeighting         string  `env:"MATCH_WEIGHTING" env-default:"five-field"`
	MatchNameScorer        string  `env:"MATCH_NAME_SCORER" env-default:"partial_ratio"`
	MatchFieldScorer       string  `env:"MATCH_FIELD_SCORER" env-default:"ratio"`
	MatchNameFloor         float64 `env:"MATCH_NAME_FLOOR" env-default:"80"`
	MatchOverallFloor      float64 `env:"MATCH_OVERALL_FLOOR" env-default:"85"`
	MatchAmbiguityBand     float64 `env:"MATCH_AMBIGUITY_BAND" env-default:"5"`
	MatchFoldAccents       bool    `env:"MATCH_FOLD_ACCENTS" env-default:"false"`
	MatchSearchWorkers     int     `env:"MATCH_SEARCH_WORKERS" env-default:"1"`
	MatchParallelThreshold int     `env:"MATCH_PARALLEL_THRESHOLD" env-default:"2000"`
	MatchMaxCandidates     int     `env:"MATCH_MAX_CANDIDATES" env-default:"10"`

	// Graph Database
	GraphEnabled    bool   `env:"GRAPH_ENABLED" env-default:"false"`
	GraphDBHost     string `env:"GRAPH_DB_HOST" env-default:"localhost"`
	GraphDBPort     int    `env:"GRAPH_DB_PORT" env-default:"7687"`
	GraphDBUser     string `env:"GRAPH_DB_USER" env-default:""`
	GraphDBPassword string `env:"GRAPH_DB_PASSWORD" env-default:""`

	// Kafka Consumer (incoming source records)
	KafkaBrokers         []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaInputTopic      string   `env:"KAFKA_INPUT_TOPIC" env-default:"regulatory-records"`
	KafkaConsumerGroup   string   `env:"KAFKA_CONSUMER_GROUP" env-default:"fern-consumer"`
	KafkaConsumerEnabled bool     `env:"KAFKA_CONSUMER_ENABLED" env-default:"false"`

	// Kafka Producer settings
	KafkaProducerEnabled bool   `env:"KAFKA_PRODUCER_ENABLED" env-default:"false"`
	KafkaOutputTopic     string `env:"KAFKA_OUTPUT_TOPIC" env-default:"organization-events"`
	KafkaBatchSize       int    `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout    int    `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks    int    `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression     string `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Tracing
	TracingEnabled      bool          `env:"TRACING_ENABLED" env-default:"false"`
	TracingExporter     string        `env:"TRACING_EXPORTER" env-default:"console"`
	TracingOTLPEndpoint string        `env:"TRACING_OTLP_ENDPOINT" env-default:"localhost:4317"`
	TracingOTLPProtocol string        `env:"TRACING_OTLP_PROTOCOL" env-default:"grpc"`
	TracingOTLPInsecure bool          `env:"TRACING_OTLP_INSECURE" env-default:"true"`
	TracingOTLPTimeout  time.Duration `env:"TRACING_OTLP_TIMEOUT" env-default:"10s"`
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && len(envFiles) > 0 {
		return nil, errors.Wrap(err, "failed to load env file")
	}

	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to read environment")
	}
	return cfg, nil
}

// MatchingConfig builds the engine configuration, keeping the engine's
// default field weights and bonus table.
func (c *Config) MatchingConfig() matching.Config {
	mc := matching.DefaultConfig()
	mc.Weighting = matching.Weighting(c.MatchWeighting)
	mc.NameScorer = c.MatchNameScorer
	mc.FieldScorer = c.MatchFieldScorer
	mc.NameFloor = c.MatchNameFloor
	mc.OverallFloor = c.MatchOverallFloor
	mc.AmbiguityBand = c.MatchAmbiguityBand
	mc.FoldAccents = c.MatchFoldAccents
	mc.SearchWorkers = c.MatchSearchWorkers
	mc.ParallelThreshold = c.MatchParallelThreshold
	mc.MaxCandidates = c.MatchMaxCandidates
	return mc
}

func (c *Config) DatabaseConfig() database.Config {
	return database.Config{
		Driver:          c.DatabaseDriver,
		DSN:             c.DatabaseDSN,
		MaxOpenConns:    c.DatabaseMaxOpenConns,
		ConnMaxLifetime: c.DatabaseConnMaxLifetime,
	}
}

func (c *Config) MigrationConfig() *database.MigrationConfig {
	return &database.MigrationConfig{
		Version: c.DatabaseMigrationVersion,
		Force:   c.DatabaseMigrationForce,
	}
}

func (c *Config) GraphConfig() graph.Config {
	return graph.Config{
		Host:     c.GraphDBHost,
		Port:     c.GraphDBPort,
		Username: c.GraphDBUser,
		Password: c.GraphDBPassword,
	}
}

func (c *Config) ConsumerConfig() kafka.ConsumerConfig {
	return kafka.ConsumerConfig{
		Brokers:       c.KafkaBrokers,
		Topic:         c.KafkaInputTopic,
		ConsumerGroup: c.KafkaConsumerGroup,
	}
}

func (c *Config) ProducerConfig() kafka.ProducerConfig {
	return kafka.ProducerConfig{
		Brokers:      c.KafkaBrokers,
		Topic:        c.KafkaOutputTopic,
		BatchSize:    c.KafkaBatchSize,
		BatchTimeout: time.Duration(c.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: c.KafkaRequiredAcks,
		Compression:  c.KafkaCompression,
	}
}

func (c *Config) TracingConfig() tracing.Config {
	return tracing.Config{
		ServiceName: c.AppName,
		Enabled:     c.TracingEnabled,
		Exporter:    c.TracingExporter,
		OTLP: exporters.OTLPConfig{
			Endpoint: c.TracingOTLPEndpoint,
			Protocol: c.TracingOTLPProtocol,
			Insecure: c.TracingOTLPInsecure,
			Timeout:  c.TracingOTLPTimeout,
		},
	}
}
