package notify

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	name  string
	err   error
	calls atomic.Int32
}

func (f *fakeNotifier) Name() string        { return f.name }
func (f *fakeNotifier) DisplayName() string { return f.name }

func (f *fakeNotifier) Send(_ context.Context, _ Message) (*Receipt, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &Receipt{Provider: f.name, ID: f.name + "-1"}, nil
}

func TestMessage_Validate(t *testing.T) {
	assert.NoError(t, Message{Title: "t"}.Validate())
	assert.NoError(t, Message{Body: "b", Severity: SeverityCritical}.Validate())
	assert.ErrorIs(t, Message{Title: " "}.Validate(), ErrInvalidMessage)
	assert.ErrorIs(t, Message{Body: "b", Severity: "urgent"}.Validate(), ErrInvalidMessage)
	assert.ErrorIs(t, Message{Body: strings.Repeat("x", MaxBodyLength+1)}.Validate(), ErrInvalidMessage)
}

func TestMessage_Text(t *testing.T) {
	assert.Equal(t, "Title\nBody\nhttps://x", Message{Title: "Title", Body: "Body", URL: "https://x"}.Text())
	assert.Equal(t, "Body", Message{Body: "Body"}.Text())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abc…", Truncate("abcdefgh", 4))
	assert.Equal(t, "é", Truncate("éé", 1))
	assert.Equal(t, "", Truncate("abc", 0))
	assert.Equal(t, "", Truncate("abc", -3))
}

func TestBroadcast(t *testing.T) {
	ok := &fakeNotifier{name: "slack"}
	bad := &fakeNotifier{name: "discord", err: errors.New("webhook deleted")}
	also := &fakeNotifier{name: "redis"}

	results, err := Broadcast(context.Background(), []Notifier{ok, bad, also}, Message{Body: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "discord: webhook deleted")

	require.Len(t, results, 3)
	assert.Equal(t, "slack", results[0].Provider)
	assert.Equal(t, "slack-1", results[0].Receipt.ID)
	assert.Equal(t, "discord", results[1].Provider)
	assert.Error(t, results[1].Err)
	assert.NoError(t, results[2].Err)
	assert.EqualValues(t, 1, also.calls.Load())
}

func TestBroadcast_InvalidMessage(t *testing.T) {
	n := &fakeNotifier{name: "slack"}
	_, err := Broadcast(context.Background(), []Notifier{n}, Message{})
	assert.ErrorIs(t, err, ErrInvalidMessage)
	assert.Zero(t, n.calls.Load())
}

func TestBroadcast_NoNotifiers(t *testing.T) {
	results, err := Broadcast(context.Background(), nil, Message{Body: "hi"})
	assert.NoError(t, err)
	assert.Empty(t, results)
}
