package projection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"problem-map/contract"
	"problem-map/domain/event"
	"problem-map/domain/search"
	"problem-map/errors"

	"github.com/blugelabs/bluge"
)

const (
	fieldTitle       = "title"
	fieldDescription = "description"
	fieldStatus      = "status"
)

var _ contract.EventSink = (*SearchIndex)(nil)

// SearchIndex is a permanent sink of the map room. It keeps a bluge index of the
// problems' title and description so they can be searched by text.
type SearchIndex struct {
	log    *slog.Logger
	writer *bluge.Writer

	mu      sync.Mutex
	indexed map[string]string // problem id -> updated_at of the indexed version
}

func NewSearchIndex(log *slog.Logger, writer *bluge.Writer) *SearchIndex {
	return &SearchIndex{log: log, writer: writer, indexed: make(map[string]string)}
}

// Consume reindexes the problems of a map snapshot that changed since the last one.
func (s *SearchIndex) Consume(ctx context.Context, n event.Notification) error {
	if n.Name != event.NewProblem {
		return nil
	}
	views, ok := n.Payload.([]event.ProblemView)
	if !ok {
		return fmt.Errorf("search index got %T: %w", n.Payload, errors.ErrInvalidPayload)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := bluge.NewBatch()
	var changed []event.ProblemView
	for _, v := range views {
		if s.indexed[v.ID] == v.UpdatedAt {
			continue
		}
		doc := bluge.NewDocument(v.ID).
			AddField(bluge.NewTextField(fieldTitle, v.Title).StoreValue()).
			AddField(bluge.NewTextField(fieldDescription, v.Description)).
			AddField(bluge.NewKeywordField(fieldStatus, v.Status).StoreValue())
		batch.Update(doc.ID(), doc)
		changed = append(changed, v)
	}
	if len(changed) == 0 {
		return nil
	}
	if err := s.writer.Batch(batch); err != nil {
		return err
	}
	for _, v := range changed {
		s.indexed[v.ID] = v.UpdatedAt
	}
	s.log.Debug("Problems indexed", "count", len(changed))
	return nil
}

// Search returns the ids of the problems matching the query, best match first.
func (s *SearchIndex) Search(ctx context.Context, q search.Query) ([]string, error) {
	if q.Empty() {
		return []string{}, nil
	}
	reader, err := s.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	query := bluge.NewBooleanQuery()
	if q.Terms != "" {
		query.AddMust(bluge.NewBooleanQuery().
			AddShould(bluge.NewMatchQuery(q.Terms).SetField(fieldTitle)).
			AddShould(bluge.NewMatchQuery(q.Terms).SetField(fieldDescription)))
	}
	if q.Status != "" {
		query.AddMust(bluge.NewTermQuery(q.Status).SetField(fieldStatus))
	}
	matches, err := reader.Search(ctx, bluge.NewTopNSearch(q.Limit, query))
	if err != nil {
		return nil, err
	}

	ids := []string{}
	match, err := matches.Next()
	for err == nil && match != nil {
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				ids = append(ids, string(value))
				return false
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		match, err = matches.Next()
	}
	if err != nil {
		return nil, err
	}
	return ids, nil
}
