package notify

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// TaskTypeSend is the asynq task type carrying one send request.
	// Enqueued by the booking flow and admin test actions.
	TaskTypeSend = "notification:send"

	// TaskTypeRetrySweep is the asynq task type triggering one retry sweep.
	TaskTypeRetrySweep = "notification:retry_sweep"
)

// NewSendTask creates an asynq task for one notification message.
func NewSendTask(msg *NotificationMessage) (*asynq.Task, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshaling send task payload: %w", err)
	}
	return asynq.NewTask(TaskTypeSend, payload), nil
}

// ParseSendTask deserializes a send task payload.
func ParseSendTask(data []byte) (*NotificationMessage, error) {
	var msg NotificationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshaling send task payload: %w", err)
	}
	return &msg, nil
}

// NewRetrySweepTask creates an asynq task that triggers one retry sweep.
func NewRetrySweepTask() *asynq.Task {
	return asynq.NewTask(TaskTypeRetrySweep, nil)
}
