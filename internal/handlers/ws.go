package handlers

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/presina-online/presina-server/internal/auth"
	"github.com/presina-online/presina-server/internal/game"
	"github.com/presina-online/presina-server/internal/middleware"
	"github.com/presina-online/presina-server/internal/room"
)

// wsMessage is the single envelope for everything a client sends. Type picks
// the action; the other fields are read per action and ignored otherwise.
type wsMessage struct {
	Type string `json:"type"`

	Token    string `json:"token,omitempty"`
	Name     string `json:"name,omitempty"`
	PlayerID string `json:"player_id,omitempty"`

	RoomID     string `json:"room_id,omitempty"`
	RoomName   string `json:"room_name,omitempty"`
	IsPublic   *bool  `json:"is_public,omitempty"`
	AccessCode string `json:"access_code,omitempty"`
	TargetID   string `json:"target_id,omitempty"`

	Bet    *int   `json:"bet,omitempty"`
	Suit   string `json:"suit,omitempty"`
	Value  int    `json:"value,omitempty"`
	Choice string `json:"choice,omitempty"`
	Away   *bool  `json:"away,omitempty"`

	Message string `json:"message,omitempty"`
	Query   string `json:"query,omitempty"`
}

type WSHandler struct {
	Hub     *Hub
	Manager *room.Manager
	Log     *logrus.Logger
}

func NewWSHandler(hub *Hub, mgr *room.Manager, log *logrus.Logger) *WSHandler {
	return &WSHandler{Hub: hub, Manager: mgr, Log: log}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{"presina"},
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.Log.WithField("error", err).Warn("websocket accept failed")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	sess := &Session{
		ConnID: uuid.NewString(),
		Out:    make(chan interface{}, 64),
		cancel: cancel,
	}
	h.Hub.Register(sess)
	middleware.LogWebSocketConnect(h.Log, r.RemoteAddr, sess.ConnID)

	go h.writePump(ctx, conn, sess)

	readErr := h.readLoop(ctx, conn, sess)
	cancel()
	playerID, owned := h.Hub.Unregister(sess.ConnID)
	if owned && playerID != "" {
		h.Manager.HandleDisconnect(playerID)
	}
	conn.Close(websocket.StatusNormalClosure, "bye")
	middleware.LogWebSocketDisconnect(h.Log, r.RemoteAddr, sess.ConnID, readErr)
}

func (h *WSHandler) writePump(ctx context.Context, conn *websocket.Conn, sess *Session) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-sess.Out:
			if err := wsjson.Write(ctx, conn, msg); err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, sess *Session) error {
	for {
		var msg wsMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return err
		}
		h.dispatch(sess, msg)
	}
}

func (h *WSHandler) reply(sess *Session, msg interface{}) {
	select {
	case sess.Out <- msg:
	default:
	}
}

func (h *WSHandler) replyError(sess *Session, message string) {
	h.reply(sess, map[string]interface{}{"type": "error", "message": message})
}

func (h *WSHandler) replyResult(sess *Session, action string, ok bool, message string) {
	if !ok {
		h.replyError(sess, message)
		return
	}
	h.reply(sess, map[string]interface{}{"type": "ok", "action": action, "message": message})
}

func (h *WSHandler) dispatch(sess *Session, msg wsMessage) {
	if msg.Type == "ping" {
		h.reply(sess, map[string]interface{}{"type": "pong"})
		return
	}
	if msg.Type == "register" {
		h.handleRegister(sess, msg)
		return
	}
	if sess.PlayerID == "" {
		h.replyError(sess, "register first")
		return
	}

	switch msg.Type {
	case "create_room":
		h.handleCreateRoom(sess, msg)
	case "join_room":
		p := game.NewPlayer(sess.PlayerID, sess.Name)
		p.UserID = sess.UserID
		ok, reason := h.Manager.JoinRoom(msg.RoomID, p, msg.AccessCode)
		h.replyResult(sess, msg.Type, ok, reason)
	case "leave_room":
		ok, reason := h.Manager.LeaveRoom(sess.PlayerID)
		h.replyResult(sess, msg.Type, ok, reason)
	case "abandon_room":
		ok, reason := h.Manager.AbandonRoom(sess.PlayerID)
		h.replyResult(sess, msg.Type, ok, reason)
	case "kick_player":
		ok, reason := h.Manager.KickPlayer(sess.PlayerID, msg.TargetID)
		h.replyResult(sess, msg.Type, ok, reason)
	case "rejoin":
		roomID, ok, reason := h.Manager.Rejoin(sess.PlayerID)
		if ok {
			h.reply(sess, map[string]interface{}{"type": "rejoined", "room_id": roomID})
		} else {
			h.replyError(sess, reason)
		}
	case "start_game":
		ok, reason := h.Manager.StartGame(sess.PlayerID)
		h.replyResult(sess, msg.Type, ok, reason)
	case "make_bet":
		if msg.Bet == nil {
			h.replyError(sess, "missing bet")
			return
		}
		ok, reason := h.Manager.MakeBet(sess.PlayerID, *msg.Bet)
		h.replyResult(sess, msg.Type, ok, reason)
	case "play_card":
		suit, valid := game.ParseSuit(msg.Suit)
		if !valid {
			h.replyError(sess, "unknown suit")
			return
		}
		ok, reason := h.Manager.PlayCard(sess.PlayerID, suit, msg.Value, game.JollyChoice(msg.Choice))
		h.replyResult(sess, msg.Type, ok, reason)
	case "choose_jolly":
		ok, reason := h.Manager.ChooseJolly(sess.PlayerID, game.JollyChoice(msg.Choice))
		h.replyResult(sess, msg.Type, ok, reason)
	case "advance_trick":
		ok, reason := h.Manager.AdvanceTrick(sess.PlayerID)
		h.replyResult(sess, msg.Type, ok, reason)
	case "ready_next_turn":
		ok, reason := h.Manager.ReadyNextTurn(sess.PlayerID)
		h.replyResult(sess, msg.Type, ok, reason)
	case "reset_game":
		ok, reason := h.Manager.ResetGame(sess.PlayerID)
		h.replyResult(sess, msg.Type, ok, reason)
	case "set_away":
		away := false
		if msg.Away != nil {
			away = *msg.Away
		}
		ok, reason := h.Manager.SetAway(sess.PlayerID, away)
		h.replyResult(sess, msg.Type, ok, reason)
	case "chat":
		ok, reason := h.Manager.Chat(sess.PlayerID, msg.Message)
		if !ok {
			h.replyError(sess, reason)
		}
	case "chat_history":
		history, ok := h.Manager.ChatHistory(sess.PlayerID)
		if !ok {
			h.replyError(sess, "not in a room")
			return
		}
		h.reply(sess, map[string]interface{}{"type": "chat_history", "messages": history})
	case "list_rooms":
		h.reply(sess, map[string]interface{}{"type": "rooms", "rooms": h.Manager.PublicRooms()})
	case "search_rooms":
		h.reply(sess, map[string]interface{}{"type": "rooms", "rooms": h.Manager.SearchRooms(msg.Query)})
	case "get_state":
		snap, ok := h.Manager.SnapshotFor(sess.PlayerID)
		if !ok {
			h.replyError(sess, "not in a room")
			return
		}
		h.reply(sess, map[string]interface{}{"type": "state", "state": snap})
	default:
		h.replyError(sess, "unknown message type: "+msg.Type)
	}
}

// handleRegister binds a player identity to the connection. Authenticated
// users who already hold a seat somewhere take that seat over; guests may
// reclaim a seat by sending the player id they were issued before.
func (h *WSHandler) handleRegister(sess *Session, msg wsMessage) {
	if sess.PlayerID != "" {
		h.replyError(sess, "already registered")
		return
	}
	if msg.Name == "" {
		h.replyError(sess, "missing name")
		return
	}
	sess.Name = msg.Name

	userID := uuid.Nil
	if msg.Token != "" {
		sub, err := auth.AuthenticateJWT(msg.Token)
		if err != nil {
			h.replyError(sess, "invalid token")
			return
		}
		parsed, err := uuid.Parse(sub)
		if err != nil {
			h.replyError(sess, "invalid token subject")
			return
		}
		userID = parsed
	}

	// Authenticated takeover: the account's existing seat wins over a fresh id.
	if userID != uuid.Nil {
		if pid, roomID, found := h.Manager.SeatForUser(userID); found {
			h.Hub.BindPlayer(sess, pid, userID)
			h.Manager.Rejoin(pid)
			h.reply(sess, map[string]interface{}{
				"type": "registered", "player_id": pid, "room_id": roomID, "resumed": true,
			})
			return
		}
	}

	// Guest reconnect with a previously issued id, if the seat still exists.
	if msg.PlayerID != "" {
		if roomID, in := h.Manager.PlayerRoomID(msg.PlayerID); in {
			h.Hub.BindPlayer(sess, msg.PlayerID, userID)
			h.Manager.Rejoin(msg.PlayerID)
			h.reply(sess, map[string]interface{}{
				"type": "registered", "player_id": msg.PlayerID, "room_id": roomID, "resumed": true,
			})
			return
		}
	}

	pid := uuid.NewString()
	h.Hub.BindPlayer(sess, pid, userID)
	h.reply(sess, map[string]interface{}{"type": "registered", "player_id": pid})
}

func (h *WSHandler) handleCreateRoom(sess *Session, msg wsMessage) {
	p := game.NewPlayer(sess.PlayerID, sess.Name)
	p.UserID = sess.UserID
	isPublic := true
	if msg.IsPublic != nil {
		isPublic = *msg.IsPublic
	}
	r, ok, reason := h.Manager.CreateRoom(msg.RoomName, p, isPublic, msg.AccessCode)
	if !ok {
		h.replyError(sess, reason)
		return
	}
	h.reply(sess, map[string]interface{}{"type": "room_created", "room_id": r.ID})
}
