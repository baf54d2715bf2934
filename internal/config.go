package internal

import (
	"fmt"
	"strings"
	"time"

	"problem-map/errors"
	"problem-map/runtime/workers"
)

const (
	BackendKafka  = "kafka"
	BackendBadger = "badger"
)

type Config struct {
	LogLevel   string `env:"LOG_LEVEL,required=true"`
	HTTPPort   int    `env:"HTTP_PORT,required=true"`
	HealthPort int    `env:"HEALTH_PORT,required=true"`
	DebugPort  int    `env:"DEBUG_PORT"`

	LogBackend       string `env:"LOG_BACKEND,required=true"`
	KafkaBrokers     string `env:"KAFKA_BROKERS"`
	KafkaGroupPrefix string `env:"KAFKA_GROUP_PREFIX"`
	BadgerFilepath   string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath    string `env:"BLUGE_FILEPATH,required=true"`

	DecodePolicy         string        `env:"DECODE_POLICY,required=true"`
	BufferSize           int           `env:"BUFFER_SIZE,required=true"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,required=true"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,required=true"`
	PublishTimeout       time.Duration `env:"PUBLISH_TIMEOUT,required=true"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,required=true"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,required=true"`

	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`
	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	CharReplacement   string        `env:"CHARACTER_REPLACEMENT,required=true"`
	AdminEmail        string        `env:"ADMIN_EMAIL"`
	AdminPassword     string        `env:"ADMIN_PASSWORD"`
}

// Validate catches the combinations the env tags cannot express.
func (c Config) Validate() error {
	switch c.LogBackend {
	case BackendBadger:
	case BackendKafka:
		if len(c.Brokers()) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required with the kafka backend")
		}
		if c.KafkaGroupPrefix == "" {
			return fmt.Errorf("KAFKA_GROUP_PREFIX is required with the kafka backend")
		}
	default:
		return fmt.Errorf("%w: %q", errors.ErrUnknownBackend, c.LogBackend)
	}
	if _, err := workers.ParseDecodePolicy(c.DecodePolicy); err != nil {
		return err
	}
	if c.BufferSize <= 0 || c.ConnectionBufferSize <= 0 {
		return fmt.Errorf("BUFFER_SIZE and CONNECTION_BUFFER_SIZE must be positive")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes long")
	}
	if c.AdminEmail != "" && c.AdminPassword == "" {
		return fmt.Errorf("ADMIN_PASSWORD is required with ADMIN_EMAIL")
	}
	_, err := CharacterRune(c.CharReplacement)
	return err
}

// Brokers splits the comma separated KAFKA_BROKERS.
func (c Config) Brokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
