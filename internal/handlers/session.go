package handlers

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/presina-online/presina-server/internal/game"
	"github.com/presina-online/presina-server/internal/room"
)

// Session is one live websocket connection. PlayerID and UserID are empty
// until the client registers. Out is drained by the connection's write pump;
// pushes never block on a slow client, they drop instead.
type Session struct {
	ConnID   string
	PlayerID string
	UserID   uuid.UUID
	Name     string

	Out    chan interface{}
	cancel context.CancelFunc
}

// Hub tracks live sessions and routes server pushes to them. It implements
// room.Notifier so the room manager can stay ignorant of websockets.
type Hub struct {
	mu       sync.Mutex
	byConn   map[string]*Session
	byPlayer map[string]*Session
	log      *logrus.Logger
}

func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		byConn:   make(map[string]*Session),
		byPlayer: make(map[string]*Session),
		log:      log,
	}
}

func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	h.byConn[s.ConnID] = s
	h.mu.Unlock()
}

// Unregister drops the session and reports whether it still owned its player
// binding. A session displaced by a takeover no longer does, and its
// disconnect must not mark the player offline.
func (h *Hub) Unregister(connID string) (playerID string, ownedPlayer bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.byConn[connID]
	if !ok {
		return "", false
	}
	delete(h.byConn, connID)
	if s.PlayerID != "" && h.byPlayer[s.PlayerID] == s {
		delete(h.byPlayer, s.PlayerID)
		return s.PlayerID, true
	}
	return s.PlayerID, false
}

// BindPlayer attaches a player identity to the session. If another live
// session already holds that player, it is told and closed; the new session
// takes over the seat.
func (h *Hub) BindPlayer(s *Session, playerID string, userID uuid.UUID) {
	h.mu.Lock()
	old, taken := h.byPlayer[playerID]
	if taken && old != s {
		h.send(old, map[string]interface{}{
			"type":    "session_taken_over",
			"message": "your seat was claimed from another connection",
		})
		if old.cancel != nil {
			old.cancel()
		}
		delete(h.byConn, old.ConnID)
	}
	s.PlayerID = playerID
	s.UserID = userID
	h.byPlayer[playerID] = s
	h.mu.Unlock()

	if taken && old != s {
		h.log.WithFields(logrus.Fields{
			"player_id": playerID,
			"old_conn":  old.ConnID,
			"new_conn":  s.ConnID,
		}).Info("session taken over")
	}
}

func (h *Hub) SessionByPlayer(playerID string) (*Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.byPlayer[playerID]
	return s, ok
}

// send must run with h.mu held.
func (h *Hub) send(s *Session, msg interface{}) {
	select {
	case s.Out <- msg:
	default:
		h.log.WithFields(logrus.Fields{
			"conn_id":   s.ConnID,
			"player_id": s.PlayerID,
		}).Warn("dropping push to slow client")
	}
}

// PushState implements room.Notifier.
func (h *Hub) PushState(playerID string, snap game.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.byPlayer[playerID]; ok {
		h.send(s, map[string]interface{}{"type": "state", "state": snap})
	}
}

// PushChat implements room.Notifier.
func (h *Hub) PushChat(playerID string, msg room.ChatMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.byPlayer[playerID]; ok {
		h.send(s, map[string]interface{}{"type": "chat", "message": msg})
	}
}
