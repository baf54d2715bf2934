package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"problem-map/domain/event"
	"problem-map/infrastructure/storage"

	"github.com/mama165/sdk-go/database"
)

// LogRecordMapper renders badger keys in the debug inspector: log records show
// their envelope, user records never show the password hash.
func LogRecordMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)

	switch {
	case strings.HasPrefix(key, "user:"):
		row.Type = "USER"
		row.Detail = strings.TrimPrefix(key, "user:")
	case strings.HasPrefix(key, "log:"):
		var record storage.StoredRecord
		if err := json.Unmarshal(val, &record); err != nil {
			row.Detail = "Error: unmarshal failed"
			return row
		}
		envelope, err := event.Decode(record.Value)
		if err != nil {
			row.Type = strings.ToUpper(record.Stream)
			row.Detail = err.Error()
			return row
		}
		row.Type = strings.ToUpper(fmt.Sprintf("%s %s", record.Stream, envelope.Type))
		row.Detail = string(envelope.Data)
		row.Scores = changedFields(envelope.Data)
	}
	return row
}

// changedFields lists the payload keys, which for an update is what changed.
func changedFields(data json.RawMessage) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, " ")
}
