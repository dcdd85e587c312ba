package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"estatehub/api/internal/models"
	"estatehub/api/internal/policy"
)

// Background task types.
const (
	TypeModerationNotice = "listing:moderation_notice"
	TypeImageProcess     = "image:process"
)

// Queues the background tasks are enqueued on.
const (
	QueueDefault = "default"
	QueueImages  = "images"
)

// ITaskQueue is the part of asynq.Client the services use.
type ITaskQueue interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ModerationNoticePayload asks a worker to tell the owner about a decision.
type ModerationNoticePayload struct {
	ListingID string `json:"listing_id"`
	Action    string `json:"action"`
	Reason    string `json:"reason,omitempty"`
}

// ImageTaskPayload asks a worker to normalise an uploaded image.
type ImageTaskPayload struct {
	S3Key     string `json:"s3_key"`
	ListingID string `json:"listing_id"`
}

// ITaskDispatcher enqueues the background work listing operations trigger.
type ITaskDispatcher interface {
	// ModerationDecided schedules a notice for approve and reject decisions.
	// Enqueue failures are logged; the decision itself has already been stored.
	ModerationDecided(ctx context.Context, listing *models.Listing, action policy.Action)
	ProcessImage(ctx context.Context, listingID primitive.ObjectID, key string) error
}

type taskDispatcher struct {
	queue ITaskQueue
}

// NewTaskDispatcher returns a dispatcher enqueuing on queue.
func NewTaskDispatcher(queue ITaskQueue) ITaskDispatcher {
	return &taskDispatcher{queue: queue}
}

func (d *taskDispatcher) ModerationDecided(ctx context.Context, listing *models.Listing, action policy.Action) {
	if action != policy.ActionApprove && action != policy.ActionReject {
		return
	}
	payload := ModerationNoticePayload{ListingID: listing.ID.Hex(), Action: action.String()}
	if listing.RejectionReason != nil {
		payload.Reason = *listing.RejectionReason
	}
	if err := d.enqueue(ctx, TypeModerationNotice, payload, asynq.Queue(QueueDefault), asynq.MaxRetry(5)); err != nil {
		log.Printf("WARN: failed to enqueue moderation notice for listing %s: %v", listing.ID.Hex(), err)
	}
}

func (d *taskDispatcher) ProcessImage(ctx context.Context, listingID primitive.ObjectID, key string) error {
	payload := ImageTaskPayload{S3Key: key, ListingID: listingID.Hex()}
	return d.enqueue(ctx, TypeImageProcess, payload, asynq.Queue(QueueImages))
}

func (d *taskDispatcher) enqueue(ctx context.Context, taskType string, payload interface{}, opts ...asynq.Option) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", taskType, err)
	}
	info, err := d.queue.EnqueueContext(ctx, asynq.NewTask(taskType, body), opts...)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s task: %w", taskType, err)
	}
	log.Printf("Enqueued %s task %s on queue %s", taskType, info.ID, info.Queue)
	return nil
}
