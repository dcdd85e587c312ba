package tasks

import (
	"context"
	"log"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"estatehub/api/internal/config"
	"estatehub/api/internal/email"
	"estatehub/api/internal/repository"
	"estatehub/api/internal/services"
)

// --- Task Client (Enqueuing tasks) ---

func redisOpt(rdb *redis.Client) asynq.RedisClientOpt {
	opts := rdb.Options()
	return asynq.RedisClientOpt{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}
}

// NewClient returns an asynq client sharing the Redis settings of rdb.
func NewClient(rdb *redis.Client) *asynq.Client {
	return asynq.NewClient(redisOpt(rdb))
}

// --- Task Server (Processing tasks) ---

// IObjectStore is the part of the S3 client the image task needs.
type IObjectStore interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// TaskProcessor handles the processing of tasks.
// It holds dependencies needed by task handlers.
type TaskProcessor struct {
	cfg            *config.Config
	emailSender    email.Sender
	templates      services.IEmailTemplateService
	listings       repository.IListingRepository
	users          repository.IUserRepository
	listingService services.IListingService
	objects        IObjectStore
}

func NewTaskProcessor(
	cfg *config.Config,
	emailSender email.Sender,
	templates services.IEmailTemplateService,
	listings repository.IListingRepository,
	users repository.IUserRepository,
	listingService services.IListingService,
	objects IObjectStore,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:            cfg,
		emailSender:    emailSender,
		templates:      templates,
		listings:       listings,
		users:          users,
		listingService: listingService,
		objects:        objects,
	}
}

// NewServer configures an asynq server for the listing queues. It is not
// started.
func NewServer(rdb *redis.Client) *asynq.Server {
	return asynq.NewServer(
		redisOpt(rdb),
		asynq.Config{
			Queues: map[string]int{
				services.QueueImages:  5,
				services.QueueDefault: 3,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				level := "WARN"
				if retried >= maxRetry {
					level = "ERROR"
				}
				log.Printf("%s: task %s failed (attempt %d of %d): %v", level, task.Type(), retried+1, maxRetry+1, err)
			}),
		},
	)
}

// NewServeMux routes every task type to its handler.
func NewServeMux(processor *TaskProcessor) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(services.TypeModerationNotice, processor.HandleModerationNoticeTask)
	mux.HandleFunc(services.TypeImageProcess, processor.HandleImageProcessTask)
	return mux
}
