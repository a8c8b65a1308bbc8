package ws

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devchat/devchat/models"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingPublisher) Publish(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func envelope(t *testing.T, origin string, ev remoteEvent) []byte {
	t.Helper()
	data, err := json.Marshal(fanoutEnvelope{Origin: origin, Event: ev})
	require.NoError(t, err)
	return data
}

func TestFanoutRepublishesRemoteEvents(t *testing.T) {
	local := &recordingPublisher{}
	f := &KafkaFanout{local: local, instanceID: "a"}

	f.handleMessage(envelope(t, "b", remoteEvent{
		Op: models.EventChildAdded, Path: "messages/c1", Key: "m1",
		Data: json.RawMessage(`{"content":"hi"}`),
	}))

	require.Len(t, local.events, 1)
	got := local.events[0]
	assert.Equal(t, "messages/c1", got.Path)
	assert.Equal(t, "m1", got.Key)

	raw, err := json.Marshal(got.Data)
	require.NoError(t, err)
	assert.JSONEq(t, `{"content":"hi"}`, string(raw))
}

func TestFanoutSkipsOwnAndInvalidEvents(t *testing.T) {
	local := &recordingPublisher{}
	f := &KafkaFanout{local: local, instanceID: "a"}

	f.handleMessage(envelope(t, "a", remoteEvent{Op: models.EventChildAdded, Path: "channels", Key: "c1"}))
	f.handleMessage(envelope(t, "b", remoteEvent{Op: models.EventChildAdded}))
	f.handleMessage([]byte("not json"))

	assert.Empty(t, local.events)
}

func TestFanoutDropsNullPayload(t *testing.T) {
	local := &recordingPublisher{}
	f := &KafkaFanout{local: local, instanceID: "a"}

	f.handleMessage(envelope(t, "b", remoteEvent{
		Op: models.EventChildRemoved, Path: "presence", Key: "u1", Data: json.RawMessage("null"),
	}))
	require.Len(t, local.events, 1)
	assert.Nil(t, local.events[0].Data)
}
