package repository

import (
	"context"

	"github.com/goliatone/go-authgate"
	"github.com/goliatone/go-authgate/activitymap"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ActivityStore persists activity events in normalized form.
type ActivityStore struct {
	db   bun.IDB
	opts []activitymap.Option
}

var _ authgate.ActivitySink = (*ActivityStore)(nil)

// NewActivityStore creates the store. opts tune normalization.
func NewActivityStore(db bun.IDB, opts ...activitymap.Option) *ActivityStore {
	return &ActivityStore{db: db, opts: opts}
}

// Record implements authgate.ActivitySink.
func (s *ActivityStore) Record(ctx context.Context, event authgate.ActivityEvent) error {
	normalized := activitymap.Normalize(event, s.opts...)
	record := &ActivityRecord{
		ID:         uuid.New(),
		ActorID:    normalized.ActorID,
		Verb:       normalized.Verb,
		ObjectType: normalized.ObjectType,
		ObjectID:   normalized.ObjectID,
		Channel:    normalized.Channel,
		Metadata:   normalized.Metadata,
		OccurredAt: normalized.OccurredAt,
	}
	_, err := s.db.NewInsert().Model(record).Exec(ctx)
	return err
}

// Recent returns up to limit events, newest first. An empty objectID lists
// every object.
func (s *ActivityStore) Recent(ctx context.Context, objectID string, limit int) ([]ActivityRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	records := []ActivityRecord{}
	q := s.db.NewSelect().
		Model(&records).
		OrderExpr("?TableAlias.occurred_at DESC").
		Limit(limit)
	if objectID != "" {
		q = q.Where("?TableAlias.object_id = ?", objectID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return records, nil
}
