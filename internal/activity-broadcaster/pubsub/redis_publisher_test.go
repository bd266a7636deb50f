package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/social-wager-platform/pkg/contracts/events"
)

func TestRedisBroadcaster_Publish(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	b := NewRedisBroadcaster(rdb, "group_activity_broadcast")

	env := events.Envelope{Topic: "bet_settled", GroupID: "g1", Payload: map[string]any{"bet_id": "b1"}}
	payload, err := json.Marshal(env)
	require.NoError(t, err)

	mock.ExpectPublish("group_activity_broadcast", payload).SetVal(1)
	require.NoError(t, b.Publish(context.Background(), env))

	mock.ExpectPublish("group_activity_broadcast", payload).SetErr(errors.New("conn refused"))
	assert.Error(t, b.Publish(context.Background(), env))

	assert.NoError(t, mock.ExpectationsWereMet())
}
