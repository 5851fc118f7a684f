package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseboard/pulse/providers/notify"
)

func TestIsConfigured(t *testing.T) {
	t.Setenv(EnvURL, "")
	assert.False(t, IsConfigured())

	t.Setenv(EnvURL, "not a url")
	assert.False(t, IsConfigured())

	t.Setenv(EnvURL, "redis://localhost:6379/0")
	assert.True(t, IsConfigured())
}

func TestSend_Publishes(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	n, err := NewFromURL("redis://"+mr.Addr(), "alerts")
	require.NoError(t, err)
	defer n.Close()

	sub := redis.NewClient(&redis.Options{Addr: mr.Addr()}).Subscribe(ctx, "alerts")
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	receipt, err := n.Send(ctx, notify.Message{Title: "Spend spike", Severity: notify.SeverityWarning})
	require.NoError(t, err)
	assert.Equal(t, "redis", receipt.Provider)

	select {
	case m := <-sub.Channel():
		var event Event
		require.NoError(t, json.Unmarshal([]byte(m.Payload), &event))
		assert.Equal(t, receipt.ID, event.ID)
		assert.Equal(t, "Spend spike", event.Message.Title)
		assert.Equal(t, notify.SeverityWarning, event.Message.Severity)
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestSend_NoSubscribers(t *testing.T) {
	mr := miniredis.RunT(t)

	n, err := NewFromURL("redis://"+mr.Addr(), "")
	require.NoError(t, err)
	defer n.Close()

	receipt, err := n.Send(context.Background(), notify.Message{Body: "quiet"})
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.ID)
}

func TestSend_ServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	n, err := NewFromURL("redis://"+addr, "")
	require.NoError(t, err)
	defer n.Close()

	_, err = n.Send(context.Background(), notify.Message{Body: "lost"})
	assert.Error(t, err)
}
