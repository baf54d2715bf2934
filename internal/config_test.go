package internal

import (
	"testing"
	"time"

	"problem-map/errors"

	env "github.com/Netflix/go-env"
	"github.com/stretchr/testify/require"
)

func environ() env.EnvSet {
	return env.EnvSet{
		"LOG_LEVEL":              "DEBUG",
		"HTTP_PORT":              "8080",
		"HEALTH_PORT":            "8090",
		"LOG_BACKEND":            "kafka",
		"KAFKA_BROKERS":          "localhost:9092, localhost:9093",
		"KAFKA_GROUP_PREFIX":     "problem-map",
		"BADGER_FILEPATH":        "/tmp/badger",
		"BLUGE_FILEPATH":         "/tmp/bluge",
		"DECODE_POLICY":          "skip",
		"BUFFER_SIZE":            "64",
		"CONNECTION_BUFFER_SIZE": "16",
		"SINK_TIMEOUT":           "500ms",
		"PUBLISH_TIMEOUT":        "5s",
		"RESTART_INTERVAL":       "1s",
		"METRIC_INTERVAL":        "30s",
		"AUTH_TOKEN_DURATION":    "24h",
		"JWT_SECRET":             "0123456789abcdef0123456789abcdef",
		"CHARACTER_REPLACEMENT":  "*",
	}
}

func TestConfig_FromEnvironment(t *testing.T) {
	req := require.New(t)
	var config Config

	err := env.Unmarshal(environ(), &config)

	req.NoError(err)
	req.NoError(config.Validate())
	req.Equal([]string{"localhost:9092", "localhost:9093"}, config.Brokers())
	req.Equal(5*time.Second, config.PublishTimeout)
	req.Equal(0, config.DebugPort)
}

func TestConfig_Validate(t *testing.T) {
	cases := map[string]struct {
		override func(c *Config)
		sentinel error
	}{
		"unknown backend":        {func(c *Config) { c.LogBackend = "redis" }, errors.ErrUnknownBackend},
		"kafka without brokers":  {func(c *Config) { c.KafkaBrokers = " , " }, nil},
		"short secret":           {func(c *Config) { c.JWTSecret = "short" }, nil},
		"replacement too long":   {func(c *Config) { c.CharReplacement = "**" }, nil},
		"empty buffer":           {func(c *Config) { c.BufferSize = 0 }, nil},
		"admin without password": {func(c *Config) { c.AdminEmail = "root@city.io" }, nil},
		"unknown decode policy":  {func(c *Config) { c.DecodePolicy = "retry" }, errors.ErrValidation},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			var config Config
			err := env.Unmarshal(environ(), &config)
			req.NoError(err)

			tc.override(&config)
			err = config.Validate()

			req.Error(err)
			if tc.sentinel != nil {
				req.ErrorIs(err, tc.sentinel)
			}
		})
	}
}

func TestConfig_BadgerNeedsNoBroker(t *testing.T) {
	req := require.New(t)
	set := environ()
	set["LOG_BACKEND"] = "badger"
	delete(set, "KAFKA_BROKERS")
	delete(set, "KAFKA_GROUP_PREFIX")
	var config Config

	err := env.Unmarshal(set, &config)

	req.NoError(err)
	req.NoError(config.Validate())
}

func TestConfig_MissingRequiredKey(t *testing.T) {
	req := require.New(t)
	set := environ()
	delete(set, "DECODE_POLICY")
	var config Config

	err := env.Unmarshal(set, &config)

	var missing *env.ErrMissingRequiredValue
	req.ErrorAs(err, &missing)
	req.Equal("DECODE_POLICY", missing.Value)
}

func TestCharacterRune(t *testing.T) {
	req := require.New(t)
	r, err := CharacterRune("€")
	req.NoError(err)
	req.Equal('€', r)

	_, err = CharacterRune("")
	req.Error(err)
}
