package notify_test

import (
	"testing"

	"groomly/internal/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendTask_RoundTrip(t *testing.T) {
	msg := &notify.NotificationMessage{
		Type:         notify.TypeBookingReminder,
		Channel:      notify.ChannelSMS,
		Recipient:    "+15551230000",
		CustomerID:   "cust_42",
		TemplateData: map[string]string{"pet_name": "Buddy"},
		IsTest:       true,
	}

	task, err := notify.NewSendTask(msg)
	require.NoError(t, err)
	assert.Equal(t, notify.TaskTypeSend, task.Type())

	parsed, err := notify.ParseSendTask(task.Payload())
	require.NoError(t, err)
	assert.Equal(t, msg, parsed)
}

func TestParseSendTask_Garbage(t *testing.T) {
	_, err := notify.ParseSendTask([]byte("not json"))
	assert.Error(t, err)
}
