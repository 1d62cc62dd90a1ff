package jobs

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"github.com/redis/go-redis/v9"
)

// Broker hands off a batch of file paths to a durable queue so ingestion
// can be picked up by workers outside this process, mirroring the
// Celery broker's role in the original task queue.
type Broker interface {
	Publish(ctx context.Context, jobID string, filePaths []string) error
}

// RedisBroker pushes the job's file list onto a Redis list, the default
// broker backend (and the one the atomic progress counters already share a
// connection with).
type RedisBroker struct {
	client *redis.Client
}

func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client}
}

func (b *RedisBroker) Publish(ctx context.Context, jobID string, filePaths []string) error {
	key := fmt.Sprintf("ingestion_queue:%s", jobID)
	args := make([]interface{}, len(filePaths))
	for i, p := range filePaths {
		args[i] = p
	}
	if len(args) == 0 {
		return nil
	}
	if err := b.client.RPush(ctx, key, args...).Err(); err != nil {
		return fmt.Errorf("jobs.RedisBroker.Publish: %w", err)
	}
	return nil
}

// PubSubBroker publishes one message per file path to a Cloud Pub/Sub
// topic, an alternate broker for deployments that want durable, multi-
// consumer fan-out instead of a single Redis list.
type PubSubBroker struct {
	topic *pubsub.Topic
}

func NewPubSubBroker(topic *pubsub.Topic) *PubSubBroker {
	return &PubSubBroker{topic: topic}
}

func (b *PubSubBroker) Publish(ctx context.Context, jobID string, filePaths []string) error {
	results := make([]*pubsub.PublishResult, 0, len(filePaths))
	for _, p := range filePaths {
		msg := &pubsub.Message{
			Data:       []byte(p),
			Attributes: map[string]string{"job_id": jobID},
		}
		results = append(results, b.topic.Publish(ctx, msg))
	}
	for _, r := range results {
		if _, err := r.Get(ctx); err != nil {
			return fmt.Errorf("jobs.PubSubBroker.Publish: %w", err)
		}
	}
	return nil
}
