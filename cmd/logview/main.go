// Command logview prints every envelope of the log as a table, from the start.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"problem-map/errors"
	"problem-map/infrastructure/kafka"
	"problem-map/infrastructure/storage"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/twmb/franz-go/pkg/kgo"
)

func main() {
	if err := run(); err != nil {
		color.Error.Println(err)
		os.Exit(1)
	}
}

func run() error {
	config, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	table := NewTable(os.Stdout, config.Stream, config.Colours)

	switch config.Backend {
	case "badger":
		err = readBadger(config.BadgerFilepath, table)
	case "kafka":
		err = readKafka(config, table)
	default:
		err = fmt.Errorf("%w: %q", errors.ErrUnknownBackend, config.Backend)
	}
	if err != nil {
		return err
	}

	rows := table.Render()
	color.Info.Printf("%d envelopes\n", rows)
	return nil
}

func readBadger(path string, table *Table) error {
	db, err := badger.Open(badger.DefaultOptions(path).WithReadOnly(true).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("error while opening Badger: %w", err)
	}
	defer db.Close()
	return storage.ScanLog(db, 0, func(record *kgo.Record) bool {
		table.Append(record)
		return true
	})
}

// readKafka consumes every stream from the start with a throwaway group, and
// stops once the log stayed idle for the configured duration.
func readKafka(config Config, table *Table) error {
	idle, err := time.ParseDuration(config.Idle)
	if err != nil {
		return fmt.Errorf("LOGVIEW_IDLE: %w", err)
	}
	log := logs.GetLoggerFromLevel(slog.LevelWarn)
	client, err := kafka.NewClient(log, config.KafkaBrokers, kafka.GroupID("logview", time.Now()))
	if err != nil {
		return err
	}
	defer client.Close()

	reader := kafka.NewReader(log, client)
	for {
		ctx, cancel := context.WithTimeout(context.Background(), idle)
		record, err := reader.Next(ctx)
		cancel()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		if err != nil {
			return err
		}
		table.Append(record)
	}
}
