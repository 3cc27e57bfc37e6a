package queue

import (
	"fmt"

	"groomly/internal/notify"

	"github.com/hibiken/asynq"
)

// NewClient creates a new asynq client connected to Redis.
func NewClient(redisAddr, password string, db int) *asynq.Client {
	return asynq.NewClient(asynq.RedisClientOpt{
		Addr:     redisAddr,
		Password: password,
		DB:       db,
	})
}

// NewServer creates a new asynq server connected to Redis.
func NewServer(redisAddr, password string, db int, concurrency int) *asynq.Server {
	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     redisAddr,
			Password: password,
			DB:       db,
		},
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				"notifications": 10, // priority weight
				"default":       1,
			},
		},
	)
}

// EnqueueSend enqueues one notification send request. Called by the booking
// flow, reminder jobs and admin test actions.
//
// Queue-level retry is disabled: a send attempt always completes with an
// outcome in the delivery log, and retries are scheduled from the log by
// the retry scheduler, not by re-running the task.
func EnqueueSend(client *asynq.Client, msg *notify.NotificationMessage) error {
	task, err := notify.NewSendTask(msg)
	if err != nil {
		return fmt.Errorf("creating send task: %w", err)
	}

	_, err = client.Enqueue(task,
		asynq.MaxRetry(0),
		asynq.Queue("notifications"),
	)
	if err != nil {
		return fmt.Errorf("enqueuing send task: %w", err)
	}

	return nil
}

// EnqueueRetrySweep enqueues an on-demand retry sweep, for operators who
// want a sweep before the next scheduled tick.
func EnqueueRetrySweep(client *asynq.Client) error {
	_, err := client.Enqueue(notify.NewRetrySweepTask(),
		asynq.MaxRetry(0),
		asynq.Queue("notifications"),
	)
	if err != nil {
		return fmt.Errorf("enqueuing retry sweep task: %w", err)
	}
	return nil
}
