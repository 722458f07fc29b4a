package activitymap

import (
	"context"
	"maps"
	"strings"
	"time"

	"github.com/holymark/auth"
)

const (
	// MetadataKeyProvider stores the sign-in method, "credentials" or an
	// OAuth provider name.
	MetadataKeyProvider = "provider"
	// MetadataKeyOutcome is "success" or "failure"
	MetadataKeyOutcome = "outcome"
)

const (
	defaultChannel    = "auth"
	defaultObjectType = "user"
	defaultActorID    = "anonymous"
)

// Normalized is a transport-agnostic activity shape for downstream systems.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel       string
	objectType    string
	actorFallback string
}

// Normalize converts an auth.ActivityEvent into a generic normalized shape.
func Normalize(event auth.ActivityEvent, opts ...Option) Normalized {
	options := normalizeOptions{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	userID := strings.TrimSpace(event.UserID)
	actorID := userID
	if actorID == "" {
		actorID = options.actorFallback
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	return Normalized{
		ActorID:    actorID,
		Verb:       string(event.EventType),
		ObjectType: options.objectType,
		ObjectID:   userID,
		Channel:    options.channel,
		Metadata:   normalizeMetadata(event),
		OccurredAt: occurredAt,
	}
}

// WithDefaultChannel sets the default channel for normalized records.
func WithDefaultChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithActorFallback sets the actor id used when the event has no user,
// as with failed sign-ins.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

// NewSink returns an auth.ActivitySink that logs every event in its
// normalized shape.
func NewSink(logger auth.Logger, opts ...Option) auth.ActivitySink {
	return auth.ActivitySinkFunc(func(_ context.Context, event auth.ActivityEvent) error {
		n := Normalize(event, opts...)
		args := []any{
			"actor_id", n.ActorID,
			"verb", n.Verb,
			"channel", n.Channel,
			"occurred_at", n.OccurredAt,
		}
		if n.ObjectID != "" {
			args = append(args, "object_type", n.ObjectType, "object_id", n.ObjectID)
		}
		if len(n.Metadata) > 0 {
			args = append(args, "metadata", n.Metadata)
		}
		logger.Info("activity", args...)
		return nil
	})
}

func normalizeMetadata(event auth.ActivityEvent) map[string]any {
	metadata := make(map[string]any, len(event.Metadata)+2)
	maps.Copy(metadata, event.Metadata)

	if provider := strings.TrimSpace(event.Provider); provider != "" {
		metadata[MetadataKeyProvider] = provider
	}

	switch event.EventType {
	case auth.ActivityEventLoginFailure, auth.ActivityEventSocialLoginFailure:
		metadata[MetadataKeyOutcome] = "failure"
	case auth.ActivityEventLoginSuccess, auth.ActivityEventSocialLogin, auth.ActivityEventUserRegistered:
		metadata[MetadataKeyOutcome] = "success"
	}

	if len(metadata) == 0 {
		return nil
	}
	return metadata
}
