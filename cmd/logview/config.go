package main

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// LOGVIEW_BACKEND is either "badger" or "kafka"
	Backend        string   `envconfig:"LOGVIEW_BACKEND" default:"badger"`
	BadgerFilepath string   `envconfig:"BADGER_FILEPATH" default:"./data/badger"`
	KafkaBrokers   []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	// LOGVIEW_IDLE stops the Kafka read once no record arrived for that long
	Idle string `envconfig:"LOGVIEW_IDLE" default:"3s"`
	// LOGVIEW_STREAM keeps only "problems" or "messages" when set
	Stream  string `envconfig:"LOGVIEW_STREAM"`
	Colours bool   `envconfig:"LOGVIEW_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
