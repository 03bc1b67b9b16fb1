package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventJSON(t *testing.T) {
	verified := true
	e := Event{
		Type:        TypeTaskVerified,
		TaskID:      7,
		UserAddress: "0xabc",
		Verified:    &verified,
		At:          time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	raw, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"task.verified","task_id":7,"user_address":"0xabc","verified":true,"at":"2025-01-02T03:04:05Z"}`, string(raw))
}

func TestNoop(t *testing.T) {
	var p Publisher = Noop{}
	assert.NoError(t, p.Publish(context.Background(), Event{Type: TypeTaskCreated}))
	assert.NoError(t, p.Close())
}

func TestNewRedisPublisherRejectsBadURL(t *testing.T) {
	_, err := NewRedisPublisher(context.Background(), "not-a-redis-url")
	assert.Error(t, err)
}
