package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ProfileRecord is a datastore record addressed by path, e.g. /users/{uid}.
type ProfileRecord struct {
	bun.BaseModel `bun:"table:profiles,alias:prf"`

	ID        uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Path      string         `bun:"path,notnull,unique" json:"path"`
	UID       string         `bun:"uid" json:"uid,omitempty"`
	Email     string         `bun:"email" json:"email,omitempty"`
	Payload   map[string]any `bun:"payload,type:jsonb" json:"payload,omitempty"`
	CreatedAt *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// KeyValueRecord is one local key value entry.
type KeyValueRecord struct {
	bun.BaseModel `bun:"table:kv_items,alias:kv"`

	Key       string    `bun:"item_key,pk" json:"key"`
	Value     string    `bun:"item_value" json:"value"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at"`
}

// ActivityRecord is a persisted, normalized activity event.
type ActivityRecord struct {
	bun.BaseModel `bun:"table:activity_events,alias:act"`

	ID         uuid.UUID      `bun:"id,pk,type:uuid" json:"id"`
	ActorID    string         `bun:"actor_id,notnull" json:"actor_id"`
	Verb       string         `bun:"verb,notnull" json:"verb"`
	ObjectType string         `bun:"object_type" json:"object_type,omitempty"`
	ObjectID   string         `bun:"object_id" json:"object_id,omitempty"`
	Channel    string         `bun:"channel" json:"channel,omitempty"`
	Metadata   map[string]any `bun:"metadata,type:jsonb" json:"metadata,omitempty"`
	OccurredAt time.Time      `bun:"occurred_at,notnull" json:"occurred_at"`
}
