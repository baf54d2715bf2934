package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"problem-map/contract"

	"github.com/dgraph-io/badger/v4"
	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	logPrefix       = "log:"
	logSequenceKey  = "seq:log"
	sequenceLease   = 100
	defaultPollTick = 500 * time.Millisecond
)

var _ contract.LogProducer = (*LogRepository)(nil)

// LogRepository is an append-only log kept in BadgerDB, for a single node.
// Every record gets the next value of a badger sequence and is stored under
// "log:{seq}" with the sequence padded to 19 digits, so keys sort in append order.
// Sequence leases lost on restart leave gaps, never reorderings.
type LogRepository struct {
	db       *badger.DB
	log      *slog.Logger
	sequence *badger.Sequence

	mu      sync.Mutex // serializes appends, so offsets follow submission order
	changed chan struct{}
}

// StoredRecord is the value written under each log key. The envelope is kept
// as raw JSON so the log stays readable from the debug inspector.
type StoredRecord struct {
	Stream string          `json:"stream"`
	Key    string          `json:"key"`
	Value  json.RawMessage `json:"value"`
	At     time.Time       `json:"at"`
}

func NewLogRepository(db *badger.DB, log *slog.Logger) (*LogRepository, error) {
	sequence, err := db.GetSequence([]byte(logSequenceKey), sequenceLease)
	if err != nil {
		return nil, fmt.Errorf("log sequence: %w", err)
	}
	return &LogRepository{db: db, log: log, sequence: sequence, changed: make(chan struct{})}, nil
}

// Produce appends the record and calls promise before returning.
func (l *LogRepository) Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error)) {
	if err := ctx.Err(); err != nil {
		promise(r, err)
		return
	}
	if !json.Valid(r.Value) {
		promise(r, fmt.Errorf("record value is not JSON"))
		return
	}

	l.mu.Lock()
	offset, err := l.append(r)
	if err == nil {
		close(l.changed)
		l.changed = make(chan struct{})
	}
	l.mu.Unlock()

	if err != nil {
		promise(r, err)
		return
	}
	r.Offset = int64(offset)
	promise(r, nil)
}

func (l *LogRepository) append(r *kgo.Record) (uint64, error) {
	offset, err := l.sequence.Next()
	if err != nil {
		return 0, err
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(StoredRecord{Stream: r.Topic, Key: string(r.Key), Value: r.Value, At: r.Timestamp})
	if err != nil {
		return 0, err
	}
	err = l.db.Update(func(txn *badger.Txn) error {
		return txn.Set(logKey(offset), data)
	})
	return offset, err
}

// Scan calls fn for every record from offset on, in log order, until fn returns false.
func (l *LogRepository) Scan(from uint64, fn func(*kgo.Record) bool) error {
	return ScanLog(l.db, from, fn)
}

// ScanLog walks the records from offset from, in order, until fn returns false.
// It only reads, so it works on a database opened read-only.
func ScanLog(db *badger.DB, from uint64, fn func(*kgo.Record) bool) error {
	return db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(logPrefix)
		for it.Seek(logKey(from)); it.ValidForPrefix(prefix); it.Next() {
			record, err := decodeItem(it.Item())
			if err != nil {
				return err
			}
			if !fn(record) {
				return nil
			}
		}
		return nil
	})
}

// Reader returns a blocking reader starting at offset from.
func (l *LogRepository) Reader(from uint64) *LogReader {
	return &LogReader{repository: l, next: from, pollTick: defaultPollTick}
}

// Close gives back the unused part of the sequence lease.
func (l *LogRepository) Close() error {
	return l.sequence.Release()
}

func (l *LogRepository) waitChannel() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.changed
}

var _ contract.LogReader = (*LogReader)(nil)

// LogReader hands out records in offset order. It is meant for a single consumer.
type LogReader struct {
	repository *LogRepository
	next       uint64
	pollTick   time.Duration
	pending    []*kgo.Record
}

// Next blocks until a record is available or ctx ends.
func (r *LogReader) Next(ctx context.Context) (*kgo.Record, error) {
	for {
		if len(r.pending) > 0 {
			record := r.pending[0]
			r.pending = r.pending[1:]
			return record, nil
		}
		// Grab the wake-up channel before reading, so an append in between is not missed.
		changed := r.repository.waitChannel()
		if err := r.fill(); err != nil {
			return nil, err
		}
		if len(r.pending) > 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-changed:
		case <-time.After(r.pollTick):
		}
	}
}

func (r *LogReader) fill() error {
	return r.repository.Scan(r.next, func(record *kgo.Record) bool {
		r.pending = append(r.pending, record)
		r.next = uint64(record.Offset) + 1
		return len(r.pending) < sequenceLease
	})
}

func logKey(offset uint64) []byte {
	return []byte(fmt.Sprintf("%s%019d", logPrefix, offset))
}

func decodeItem(item *badger.Item) (*kgo.Record, error) {
	offset, err := strconv.ParseUint(strings.TrimPrefix(string(item.Key()), logPrefix), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("log key %q: %w", item.Key(), err)
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	var stored StoredRecord
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("log record %d: %w", offset, err)
	}
	return &kgo.Record{
		Topic:     stored.Stream,
		Key:       []byte(stored.Key),
		Value:     stored.Value,
		Offset:    int64(offset),
		Timestamp: stored.At,
	}, nil
}
