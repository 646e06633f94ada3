package server

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// newTestClient returns a client with no socket. Frames pile up in the
// outbox where tests can read them.
func newTestClient(t *testing.T, id string) *Client {
	t.Helper()
	return NewClient(id, nil, zaptest.NewLogger(t))
}

// drain returns every queued frame as a decoded envelope.
func drain(t *testing.T, c *Client) []inbound {
	t.Helper()
	var msgs []inbound
	for {
		select {
		case f := <-c.outbox:
			var msg inbound
			require.NoError(t, json.Unmarshal(f.data, &msg))
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}

type inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (m inbound) decode(t *testing.T, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(m.Payload, dst), "payload of %s", m.Type)
}

func TestConnectionManager_BindToken(t *testing.T) {
	cm := NewConnectionManager()
	alice := newTestClient(t, "conn-1")
	cm.AddConnection(alice)

	displaced, previous := cm.BindToken("token-a", "conn-1")
	assert.Nil(t, displaced)
	assert.Empty(t, previous)

	assert.Equal(t, "conn-1", cm.GetConnectionByToken("token-a"))
	assert.Equal(t, "token-a", cm.GetTokenByConnection("conn-1"))
	assert.Same(t, alice, cm.GetClientByToken("token-a"))

	// Rebinding the same pair changes nothing.
	displaced, previous = cm.BindToken("token-a", "conn-1")
	assert.Nil(t, displaced)
	assert.Empty(t, previous)
}

func TestConnectionManager_DeviceSwitch(t *testing.T) {
	cm := NewConnectionManager()
	phone := newTestClient(t, "phone")
	laptop := newTestClient(t, "laptop")
	cm.AddConnection(phone)
	cm.AddConnection(laptop)

	cm.BindToken("token-a", "phone")
	displaced, previous := cm.BindToken("token-a", "laptop")

	assert.Same(t, phone, displaced)
	assert.Empty(t, previous)
	assert.Equal(t, "laptop", cm.GetConnectionByToken("token-a"))
	assert.Empty(t, cm.GetTokenByConnection("phone"))

	// The displaced connection leaving later must not unbind the new one.
	assert.Empty(t, cm.RemoveConnection("phone"))
	assert.Equal(t, "laptop", cm.GetConnectionByToken("token-a"))
}

func TestConnectionManager_SwitchSeats(t *testing.T) {
	cm := NewConnectionManager()
	cm.AddConnection(newTestClient(t, "conn-1"))

	cm.BindToken("token-a", "conn-1")
	displaced, previous := cm.BindToken("token-b", "conn-1")

	assert.Nil(t, displaced)
	assert.Equal(t, "token-a", previous)
	assert.Empty(t, cm.GetConnectionByToken("token-a"))
	assert.Equal(t, "conn-1", cm.GetConnectionByToken("token-b"))
}

func TestConnectionManager_RemoveConnection(t *testing.T) {
	cm := NewConnectionManager()
	cm.AddConnection(newTestClient(t, "bound"))
	cm.AddConnection(newTestClient(t, "anonymous"))
	cm.BindToken("token-a", "bound")

	assert.Equal(t, 2, cm.Count())
	assert.Equal(t, "token-a", cm.RemoveConnection("bound"))
	assert.Empty(t, cm.RemoveConnection("anonymous"))
	assert.Empty(t, cm.RemoveConnection("never-seen"))

	assert.Equal(t, 0, cm.Count())
	assert.Nil(t, cm.GetClientByToken("token-a"))
}

func TestConnectionManager_UnmapToken(t *testing.T) {
	cm := NewConnectionManager()
	cm.AddConnection(newTestClient(t, "conn-1"))
	cm.BindToken("token-a", "conn-1")

	cm.UnmapToken("token-a")
	cm.UnmapToken("token-unknown")

	assert.Empty(t, cm.GetConnectionByToken("token-a"))
	assert.Empty(t, cm.GetTokenByConnection("conn-1"))
	assert.Equal(t, 1, cm.Count(), "the socket stays open without a seat")
	assert.Empty(t, cm.RemoveConnection("conn-1"))
}

func TestClient_SendQueuesInOrder(t *testing.T) {
	c := newTestClient(t, "conn-1")

	for i := 0; i < 3; i++ {
		assert.True(t, c.Send(ServerMessage{Type: TypeAck, Payload: AckResponse{Action: fmt.Sprint(i)}}))
	}

	msgs := drain(t, c)
	require.Len(t, msgs, 3)
	for i, msg := range msgs {
		var ack AckResponse
		msg.decode(t, &ack)
		assert.Equal(t, fmt.Sprint(i), ack.Action)
	}
}

func TestClient_FullOutboxDropsClient(t *testing.T) {
	c := NewClient("slow", nil, zap.NewNop())

	for i := 0; i < outboxSize; i++ {
		require.True(t, c.Send(ServerMessage{Type: TypePong}))
	}
	assert.False(t, c.Send(ServerMessage{Type: TypePong}))

	select {
	case <-c.Done():
	default:
		t.Fatal("a client that cannot keep up should be closed")
	}

	assert.False(t, c.Send(ServerMessage{Type: TypePong}), "closed clients accept nothing")
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	c := newTestClient(t, "conn-1")
	c.Close(websocket.StatusNormalClosure, "bye")
	c.Close(websocket.StatusNormalClosure, "bye again")

	<-c.Done()
	assert.False(t, c.SendAndClose(ServerMessage{Type: TypeDisconnectedElsewhere}, "replaced"))
}
