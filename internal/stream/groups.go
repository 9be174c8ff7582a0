package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// GroupBinding pairs a topic with the consumer group that reads it.
type GroupBinding struct {
	Topic Topic
	Group string
}

// WorkerBindings are the groups the worker process consumes. The raw-events
// topic is consumed upstream by the normalization service, not here.
func WorkerBindings() []GroupBinding {
	return []GroupBinding{
		{Topic: TopicNormalizedEvents, Group: GroupEventProcessors},
		{Topic: TopicMergeRequests, Group: GroupMergeProcessors},
		{Topic: TopicPredictionRequests, Group: GroupPredictionProcessors},
	}
}

// EnsureGroups idempotently creates every binding's consumer group before any
// worker starts reading. An already-existing group is logged and skipped; any
// other failure is fatal to startup.
func EnsureGroups(ctx context.Context, log Log, bindings []GroupBinding, logger *slog.Logger) error {
	for _, b := range bindings {
		err := log.CreateGroup(ctx, b.Topic.Key, b.Group)
		if errors.Is(err, ErrGroupExists) {
			logger.Info("consumer group already exists", "topic", b.Topic.Key, "group", b.Group)
			continue
		}
		if err != nil {
			return fmt.Errorf("create group %s on %s: %w", b.Group, b.Topic.Key, err)
		}
		logger.Info("consumer group created", "topic", b.Topic.Key, "group", b.Group)
	}
	return nil
}
