package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"problem-map/domain/event"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	"github.com/twmb/franz-go/pkg/kgo"
)

var header = []string{"Offset", "Stream", "Key", "Type", "Event ID", "Created At", "Fields"}

type Table struct {
	table   *tablewriter.Table
	colours bool
	stream  string
	rows    int
}

func NewTable(out io.Writer, stream string, colours bool) *Table {
	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return &Table{table: table, colours: colours, stream: stream}
}

// Append adds the record unless it belongs to a filtered out stream.
func (t *Table) Append(record *kgo.Record) {
	if t.stream != "" && record.Topic != t.stream {
		return
	}
	row := toRow(record)
	if t.colours {
		row[3] = colourType(row[3])
	}
	t.table.Append(row)
	t.rows++
}

func (t *Table) Render() int {
	t.table.Render()
	return t.rows
}

// toRow renders one envelope. Malformed values are shown, not skipped: spotting
// them is what this tool is for.
func toRow(record *kgo.Record) []string {
	offset := strconv.FormatInt(record.Offset, 10)
	if record.Partition > 0 {
		offset = fmt.Sprintf("%d/%d", record.Partition, record.Offset)
	}
	env, err := event.Decode(record.Value)
	if err != nil {
		return []string{offset, record.Topic, string(record.Key), "malformed", "", "", err.Error()}
	}
	return []string{
		offset,
		record.Topic,
		string(record.Key),
		string(env.Type),
		env.ID,
		env.CreatedAt.Format("2006-01-02 15:04:05"),
		fields(env.Data),
	}
}

// fields lists the payload keys, which for an update is what changed.
func fields(data json.RawMessage) string {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}

func colourType(t string) string {
	switch event.Type(t) {
	case event.Insert:
		return color.FgGreen.Render(t)
	case event.Update:
		return color.FgYellow.Render(t)
	default:
		return color.FgRed.Render(t)
	}
}
