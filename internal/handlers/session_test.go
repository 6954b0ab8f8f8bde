package handlers

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub() *Hub {
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	return NewHub(log)
}

func newTestSession(connID string) (*Session, context.Context) {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{ConnID: connID, Out: make(chan interface{}, 8), cancel: cancel}, ctx
}

func TestBindPlayerTakeoverDisplacesOldSession(t *testing.T) {
	hub := newTestHub()
	account := uuid.New()

	oldSess, oldCtx := newTestSession("conn-old")
	hub.Register(oldSess)
	hub.BindPlayer(oldSess, "player-1", account)

	newSess, _ := newTestSession("conn-new")
	hub.Register(newSess)
	hub.BindPlayer(newSess, "player-1", account)

	select {
	case msg := <-oldSess.Out:
		m, ok := msg.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "session_taken_over", m["type"])
	default:
		t.Fatal("displaced session was never told")
	}

	select {
	case <-oldCtx.Done():
	default:
		t.Fatal("displaced session context not cancelled")
	}

	current, ok := hub.SessionByPlayer("player-1")
	require.True(t, ok)
	assert.Equal(t, "conn-new", current.ConnID)
}

func TestDisplacedConnDisconnectKeepsSeat(t *testing.T) {
	hub := newTestHub()
	account := uuid.New()

	oldSess, _ := newTestSession("conn-old")
	hub.Register(oldSess)
	hub.BindPlayer(oldSess, "player-1", account)

	newSess, _ := newTestSession("conn-new")
	hub.Register(newSess)
	hub.BindPlayer(newSess, "player-1", account)

	// The old connection's eventual close must not surrender the seat the
	// new connection now holds.
	playerID, owned := hub.Unregister("conn-old")
	assert.False(t, owned)
	assert.Empty(t, playerID)

	current, ok := hub.SessionByPlayer("player-1")
	require.True(t, ok)
	assert.Equal(t, "conn-new", current.ConnID)

	playerID, owned = hub.Unregister("conn-new")
	assert.True(t, owned, "the live holder still owns the seat")
	assert.Equal(t, "player-1", playerID)
}

func TestUnregisterUnknownConn(t *testing.T) {
	hub := newTestHub()
	playerID, owned := hub.Unregister("ghost")
	assert.False(t, owned)
	assert.Empty(t, playerID)
}
