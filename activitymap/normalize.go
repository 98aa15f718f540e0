package activitymap

import (
	"maps"
	"strings"
	"time"

	"github.com/goliatone/go-authgate"
)

// Metadata keys added during normalization.
const (
	MetadataKeyActorType = "actor_type"
	MetadataKeyFromState = "from_state"
	MetadataKeyToState   = "to_state"
	MetadataKeyOutcome   = "outcome"
)

// Object types an event is filed under, derived from its family prefix.
const (
	ObjectSession = "session"
	ObjectAccount = "account"
	ObjectDevice  = "device"
)

const (
	defaultChannel = "authgate"
	systemActorID  = "system"
)

var objectByFamily = map[string]string{
	"session": ObjectSession,
	"auth":    ObjectAccount,
	"push":    ObjectDevice,
}

// Normalized is the flat record shape stored by the activity log.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

type Option func(*options)

type options struct {
	channel  string
	objectID func(authgate.ActivityEvent) string
	now      func() time.Time
}

// WithChannel overrides the channel recorded on every event.
func WithChannel(channel string) Option {
	return func(o *options) {
		if channel = strings.TrimSpace(channel); channel != "" {
			o.channel = channel
		}
	}
}

// WithObjectID overrides how the object id is read from an event.
func WithObjectID(fn func(authgate.ActivityEvent) string) Option {
	return func(o *options) {
		if fn != nil {
			o.objectID = fn
		}
	}
}

// WithClock sets the time source used for events without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// Normalize flattens an activity event. Session and account events are
// filed under the user id; device events under the push token when known.
func Normalize(event authgate.ActivityEvent, opts ...Option) Normalized {
	o := options{
		channel:  defaultChannel,
		objectID: defaultObjectID,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	actorID := strings.TrimSpace(event.Actor.ID)
	if actorID == "" {
		actorID = strings.TrimSpace(event.UserID)
	}
	if actorID == "" {
		actorID = systemActorID
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = o.now()
	}

	return Normalized{
		ActorID:    actorID,
		Verb:       string(event.EventType),
		ObjectType: ObjectType(event.EventType),
		ObjectID:   strings.TrimSpace(o.objectID(event)),
		Channel:    o.channel,
		Metadata:   metadata(event),
		OccurredAt: occurredAt.UTC(),
	}
}

// ObjectType maps an event type to the object it concerns.
func ObjectType(eventType authgate.ActivityEventType) string {
	family, _, _ := strings.Cut(string(eventType), ".")
	if object, ok := objectByFamily[family]; ok {
		return object
	}
	return ObjectSession
}

func defaultObjectID(event authgate.ActivityEvent) string {
	if ObjectType(event.EventType) == ObjectDevice {
		if token, ok := event.Metadata["token"].(string); ok && token != "" {
			return token
		}
	}
	return event.UserID
}

func metadata(event authgate.ActivityEvent) map[string]any {
	out := maps.Clone(event.Metadata)
	put := func(key string, value any) {
		if out == nil {
			out = map[string]any{}
		}
		out[key] = value
	}

	if actorType := strings.TrimSpace(event.Actor.Type); actorType != "" {
		if _, ok := out[MetadataKeyActorType]; !ok {
			put(MetadataKeyActorType, actorType)
		}
	}
	if event.FromState != "" {
		put(MetadataKeyFromState, string(event.FromState))
	}
	if event.ToState != "" {
		put(MetadataKeyToState, string(event.ToState))
	}

	switch {
	case strings.HasSuffix(string(event.EventType), ".success"):
		put(MetadataKeyOutcome, "success")
	case strings.HasSuffix(string(event.EventType), ".failure"):
		put(MetadataKeyOutcome, "failure")
	}
	return out
}
