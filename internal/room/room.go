package room

import (
	"sync"
	"time"

	"github.com/presina-online/presina-server/internal/game"
)

// Staleness thresholds for the periodic sweep.
const (
	MaxIdleAge     = 24 * time.Hour
	MaxFinishedAge = 30 * time.Minute
)

const (
	maxChatMessages  = 100
	maxChatMsgLength = 200
)

// ChatMessage is one entry of the room's capped chat buffer.
type ChatMessage struct {
	PlayerID   string    `json:"player_id"`
	PlayerName string    `json:"player_name"`
	Message    string    `json:"message"`
	At         time.Time `json:"at"`
}

// Summary is the lobby-listing shape of a room.
type Summary struct {
	RoomID      string    `json:"room_id"`
	Name        string    `json:"name"`
	AdminID     string    `json:"admin_id"`
	Status      string    `json:"status"`
	PlayerCount int       `json:"player_count"`
	MaxPlayers  int       `json:"max_players"`
	IsPublic    bool      `json:"is_public"`
	CreatedAt   time.Time `json:"created_at"`
}

// Room wraps one game with its metadata. The mutex serializes every mutation
// of the room and its game; the manager acquires it, always after the
// registry lock when both are needed.
type Room struct {
	ID         string
	Name       string
	AdminID    string
	IsPublic   bool
	AccessCode string

	Game *game.Game

	CreatedAt    time.Time
	LastActivity time.Time

	chat []ChatMessage

	mu sync.Mutex
}

func New(id, name, adminID string, isPublic bool, accessCode string, now time.Time) *Room {
	return &Room{
		ID:           id,
		Name:         name,
		AdminID:      adminID,
		IsPublic:     isPublic,
		AccessCode:   accessCode,
		Game:         game.NewGame(id),
		CreatedAt:    now,
		LastActivity: now,
	}
}

// Touch records activity. Caller holds the room lock.
func (r *Room) Touch(now time.Time) {
	r.LastActivity = now
}

// IsStale reports whether the room has been idle past the long threshold.
func (r *Room) IsStale(now time.Time) bool {
	return now.Sub(r.LastActivity) > MaxIdleAge
}

// IsFinishedAndStale reports whether a finished game has lingered past the
// short threshold.
func (r *Room) IsFinishedAndStale(now time.Time) bool {
	if r.Game.Phase() != game.PhaseGameOver {
		return false
	}
	return now.Sub(r.LastActivity) > MaxFinishedAge
}

// Status maps the game phase onto the lobby's three-state view.
func (r *Room) Status() string {
	switch r.Game.Phase() {
	case game.PhaseWaiting:
		return "waiting"
	case game.PhaseGameOver:
		return "finished"
	default:
		return "playing"
	}
}

// AddChat appends a chat message, trimming both the message and the buffer.
// Truncation counts runes so a multi-byte character is never split. Caller
// holds the room lock.
func (r *Room) AddChat(playerID, playerName, message string, now time.Time) ChatMessage {
	if runes := []rune(message); len(runes) > maxChatMsgLength {
		message = string(runes[:maxChatMsgLength])
	}
	msg := ChatMessage{PlayerID: playerID, PlayerName: playerName, Message: message, At: now}
	r.chat = append(r.chat, msg)
	if len(r.chat) > maxChatMessages {
		r.chat = r.chat[len(r.chat)-maxChatMessages:]
	}
	return msg
}

// ChatHistory returns a copy of the buffered chat. Caller holds the room lock.
func (r *Room) ChatHistory() []ChatMessage {
	out := make([]ChatMessage, len(r.chat))
	copy(out, r.chat)
	return out
}

// Summary renders the lobby listing. Caller holds the room lock.
func (r *Room) Summary() Summary {
	return Summary{
		RoomID:      r.ID,
		Name:        r.Name,
		AdminID:     r.AdminID,
		Status:      r.Status(),
		PlayerCount: r.Game.PlayerCount(),
		MaxPlayers:  game.MaxPlayers,
		IsPublic:    r.IsPublic,
		CreatedAt:   r.CreatedAt,
	}
}
