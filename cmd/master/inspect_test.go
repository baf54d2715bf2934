package main

import (
	"encoding/json"
	"testing"
	"time"

	"problem-map/domain/event"
	"problem-map/domain/problem"
	"problem-map/infrastructure/storage"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func TestLogRecordMapper(t *testing.T) {
	req := require.New(t)
	_, raw, err := event.Encode(event.ProblemUpdated{Patch: problem.Patch{ID: "p-1", Status: lo.ToPtr(problem.Closed)}}, time.Now())
	req.NoError(err)
	val, err := json.Marshal(storage.StoredRecord{Stream: "problems", Key: "p-1", Value: raw, At: time.Now()})
	req.NoError(err)

	row := LogRecordMapper("log:0000000000000000001", val)

	req.Equal("PROBLEMS UPDATE", row.Type)
	req.JSONEq(`{"id":"p-1","status":"closed"}`, row.Detail)
	req.Equal("id status", row.Scores)
}

func TestLogRecordMapper_HidesPasswords(t *testing.T) {
	req := require.New(t)

	row := LogRecordMapper("user:a@b.io", []byte(`{"id":"u-1","password_hash":"$argon2id$secret"}`))

	req.Equal("USER", row.Type)
	req.NotContains(row.Detail, "argon2id")
}
