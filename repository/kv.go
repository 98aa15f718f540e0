package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goliatone/go-authgate"
	"github.com/uptrace/bun"
)

// KeyValueStore implements authgate.KeyValueStore on a SQL table.
type KeyValueStore struct {
	db  bun.IDB
	now func() time.Time
}

var _ authgate.KeyValueStore = (*KeyValueStore)(nil)

// NewKeyValueStore creates the store.
func NewKeyValueStore(db bun.IDB) *KeyValueStore {
	return &KeyValueStore{db: db, now: time.Now}
}

// GetItem returns "" when key is missing.
func (s *KeyValueStore) GetItem(ctx context.Context, key string) (string, error) {
	record := &KeyValueRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.item_key = ?", key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return record.Value, nil
}

// SetItem creates or replaces key.
func (s *KeyValueStore) SetItem(ctx context.Context, key, value string) error {
	record := &KeyValueRecord{
		Key:       key,
		Value:     value,
		UpdatedAt: s.now(),
	}
	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (item_key) DO UPDATE").
		Set("item_value = EXCLUDED.item_value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// RemoveItem deletes key. Missing keys are not an error.
func (s *KeyValueStore) RemoveItem(ctx context.Context, key string) error {
	_, err := s.db.NewDelete().
		Model((*KeyValueRecord)(nil)).
		Where("item_key = ?", key).
		Exec(ctx)
	return err
}
