package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/events"
)

type channelRecorder struct {
	channels []string
}

func (r *channelRecorder) Publish(_ context.Context, channel string, _ []byte) error {
	r.channels = append(r.channels, channel)
	return nil
}

func TestNotificationWorkerForwardsPublishedEvents(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	recorder := &channelRecorder{}

	notifications := StartNotificationWorker(dispatcher, recorder, nil, config.NotificationConfig{RedisChannel: "helpdesk.events"})
	require.NotNil(t, notifications)

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: events.EventChangeRequestRenewed, EntityID: 3}))
	assert.Equal(t, []string{"helpdesk.events"}, recorder.channels)
}

func TestNotificationWorkerWithoutDispatcher(t *testing.T) {
	assert.Nil(t, StartNotificationWorker(nil, nil, nil, config.NotificationConfig{}))
}
