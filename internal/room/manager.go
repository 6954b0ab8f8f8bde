package room

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/presina-online/presina-server/internal/game"
)

// Notifier pushes engine output to connected clients. The session layer
// implements it; the manager never touches the wire itself.
type Notifier interface {
	PushState(playerID string, snap game.Snapshot)
	PushChat(playerID string, msg ChatMessage)
}

// PlayerResult is one player's line in a finished-game record.
type PlayerResult struct {
	PlayerID         string    `json:"player_id"`
	Name             string    `json:"name"`
	UserID           uuid.UUID `json:"user_id"`
	Lives            int       `json:"lives"`
	Position         int       `json:"position"`
	Won              bool      `json:"won"`
	TotalTricksWon   int       `json:"total_tricks_won"`
	TotalBetsCorrect int       `json:"total_bets_correct"`
	TotalBetsWrong   int       `json:"total_bets_wrong"`
	TotalLivesLost   int       `json:"total_lives_lost"`
}

// GameRecord is handed to the game-over hook for stat recording and the
// history queue.
type GameRecord struct {
	RoomID     string          `json:"room_id"`
	RoomName   string          `json:"room_name"`
	FinishedAt time.Time       `json:"finished_at"`
	Standings  []game.Standing `json:"standings"`
	Players    []PlayerResult  `json:"players"`
}

// Manager is the process-wide room registry and session layer. The registry
// lock guards the two maps; each room carries its own lock, always acquired
// after the registry lock when both are needed. Broadcasts happen after every
// lock is released.
type Manager struct {
	mu          sync.Mutex
	rooms       map[string]*Room
	playerRooms map[string]string

	notifier   Notifier
	log        *logrus.Logger
	now        func() time.Time
	onGameOver func(GameRecord)

	turnTimeout    time.Duration
	offlineTimeout time.Duration
}

func NewManager(log *logrus.Logger, notifier Notifier) *Manager {
	return &Manager{
		rooms:       make(map[string]*Room),
		playerRooms: make(map[string]string),
		notifier:    notifier,
		log:         log,
		now:         time.Now,
	}
}

// SetClock replaces the time source, for tests.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// SetGameOverHook registers a callback invoked (on its own goroutine) exactly
// once per finished game.
func (m *Manager) SetGameOverHook(fn func(GameRecord)) {
	m.onGameOver = fn
}

// SetTimeouts overrides the decision and disconnect deadlines applied to
// games in rooms created afterwards.
func (m *Manager) SetTimeouts(turn, offline time.Duration) {
	m.turnTimeout = turn
	m.offlineTimeout = offline
}

type push struct {
	playerID string
	snap     game.Snapshot
}

type lockedResult struct {
	pushes []push
	record *GameRecord
}

// snapshotsLocked renders one snapshot per seated player. Caller holds the
// room lock.
func (m *Manager) snapshotsLocked(r *Room) []push {
	now := m.now()
	order := r.Game.PlayerOrder()
	pushes := make([]push, 0, len(order))
	for _, id := range order {
		snap := r.Game.SnapshotFor(id, now)
		snap.AdminID = r.AdminID
		pushes = append(pushes, push{playerID: id, snap: snap})
	}
	return pushes
}

// finishLocked touches the room, renders broadcasts and detects the
// game-over transition. Caller holds the room lock.
func (m *Manager) finishLocked(r *Room, before game.Phase) lockedResult {
	r.Touch(m.now())
	res := lockedResult{pushes: m.snapshotsLocked(r)}
	if before != game.PhaseGameOver && r.Game.Phase() == game.PhaseGameOver && m.onGameOver != nil {
		rec := m.buildRecordLocked(r)
		res.record = &rec
	}
	return res
}

func (m *Manager) buildRecordLocked(r *Room) GameRecord {
	standings := r.Game.Standings()
	rec := GameRecord{
		RoomID:     r.ID,
		RoomName:   r.Name,
		FinishedAt: m.now(),
		Standings:  standings,
	}
	for _, s := range standings {
		p := r.Game.Player(s.PlayerID)
		if p == nil {
			continue
		}
		rec.Players = append(rec.Players, PlayerResult{
			PlayerID:         p.ID,
			Name:             p.Name,
			UserID:           p.UserID,
			Lives:            p.Lives,
			Position:         s.Position,
			Won:              s.Position == 1,
			TotalTricksWon:   p.TotalTricksWon,
			TotalBetsCorrect: p.TotalBetsCorrect,
			TotalBetsWrong:   p.TotalBetsWrong,
			TotalLivesLost:   p.TotalLivesLost,
		})
	}
	return rec
}

// emit delivers queued pushes and fires the game-over hook. Call with no
// locks held; snapshot delivery is I/O.
func (m *Manager) emit(res lockedResult) {
	if m.notifier != nil {
		for _, p := range res.pushes {
			m.notifier.PushState(p.playerID, p.snap)
		}
	}
	if res.record != nil {
		go m.onGameOver(*res.record)
	}
}

func (m *Manager) newRoomID() string {
	for {
		id := uuid.NewString()[:8]
		if _, taken := m.rooms[id]; !taken {
			return id
		}
	}
}

// Room returns a room by id.
func (m *Manager) Room(roomID string) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[roomID]
	return r, ok
}

// PlayerRoomID resolves a player's current room.
func (m *Manager) PlayerRoomID(playerID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.playerRooms[playerID]
	return id, ok
}

func (m *Manager) roomOf(playerID string) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.playerRooms[playerID]
	if !ok {
		return nil, false
	}
	r, ok := m.rooms[id]
	return r, ok
}

// RoomCount is used by the sweep log and health endpoint.
func (m *Manager) RoomCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

// CreateRoom opens a room with the creator seated as admin.
func (m *Manager) CreateRoom(name string, p *game.Player, isPublic bool, accessCode string) (*Room, bool, string) {
	m.mu.Lock()
	if _, in := m.playerRooms[p.ID]; in {
		m.mu.Unlock()
		return nil, false, "already in a room"
	}
	if !isPublic && accessCode == "" {
		m.mu.Unlock()
		return nil, false, "private rooms need an access code"
	}
	id := m.newRoomID()
	r := New(id, name, p.ID, isPublic, accessCode, m.now())
	r.Game.SetClock(m.now)
	if m.turnTimeout > 0 && m.offlineTimeout > 0 {
		r.Game.SetTimeouts(m.turnTimeout, m.offlineTimeout)
	}
	r.Game.AddPlayer(p)
	m.rooms[id] = r
	m.playerRooms[p.ID] = id
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{
		"room_id": id,
		"name":    name,
		"admin":   p.ID,
		"public":  isPublic,
	}).Info("room created")
	m.Broadcast(id)
	return r, true, "room created"
}

// JoinRoom seats a player, or queues them as a spectator when the game has
// already started. Joining the final turn is denied: there is no later turn
// to promote them into.
func (m *Manager) JoinRoom(roomID string, p *game.Player, accessCode string) (bool, string) {
	m.mu.Lock()
	r, exists := m.rooms[roomID]
	if !exists {
		m.mu.Unlock()
		return false, "room not found"
	}
	if current, in := m.playerRooms[p.ID]; in && current != roomID {
		m.mu.Unlock()
		return false, "already in another room"
	}

	r.mu.Lock()
	r.Touch(m.now())

	ok, reason := func() (bool, string) {
		if !r.IsPublic {
			if r.AccessCode == "" {
				return false, "private room has no access code configured"
			}
			if accessCode != r.AccessCode {
				return false, "wrong access code"
			}
		}
		switch r.Game.Phase() {
		case game.PhaseGameOver:
			return false, "game already finished"
		case game.PhaseWaiting:
			return r.Game.AddPlayer(p)
		default:
			if r.Game.IsFinalTurn() {
				return false, "cannot join during the final turn"
			}
			p.IsSpectator = true
			p.JoinNextTurn = true
			if active := r.Game.ActivePlayers(); len(active) > 0 {
				min := active[0].Lives
				for _, a := range active[1:] {
					if a.Lives < min {
						min = a.Lives
					}
				}
				p.Lives = min
			}
			if ok, reason := r.Game.AddPlayer(p); !ok {
				return false, reason
			}
			return true, "joined as spectator, playing from the next turn"
		}
	}()

	var pushes []push
	if ok {
		m.playerRooms[p.ID] = roomID
		pushes = m.snapshotsLocked(r)
	}
	r.mu.Unlock()
	m.mu.Unlock()

	if ok {
		m.emit(lockedResult{pushes: pushes})
	}
	return ok, reason
}

// LeaveRoom handles a deliberate exit. In the lobby the seat is freed; during
// a game the player is only marked offline so they can reconnect; after a
// game the seat is released for good.
func (m *Manager) LeaveRoom(playerID string) (bool, string) {
	m.mu.Lock()
	roomID, in := m.playerRooms[playerID]
	if !in {
		m.mu.Unlock()
		return false, "not in a room"
	}
	r, exists := m.rooms[roomID]
	if !exists {
		delete(m.playerRooms, playerID)
		m.mu.Unlock()
		return true, "left the room"
	}

	r.mu.Lock()
	now := m.now()
	before := r.Game.Phase()
	deleted := false

	switch before {
	case game.PhaseGameOver:
		r.Game.Expel(playerID)
		delete(m.playerRooms, playerID)
		if r.Game.PlayerCount() == 0 {
			deleted = true
		} else {
			m.handoffAdminLocked(r, playerID)
		}
	case game.PhaseWaiting:
		r.Game.RemovePlayer(playerID)
		delete(m.playerRooms, playerID)
		if r.Game.PlayerCount() == 0 {
			deleted = true
		} else {
			m.handoffAdminLocked(r, playerID)
		}
	default:
		// Mid-game: keep the seat for the reconnect path, free the turn
		// if the departure was blocking it.
		if p := r.Game.Player(playerID); p != nil {
			p.MarkOffline(now)
		}
		r.Game.Tick(now)
		m.handoffAdminLocked(r, playerID)
		if m.allOfflineLocked(r) {
			deleted = true
		}
	}

	var res lockedResult
	if deleted {
		m.deleteRoomLocked(roomID, r)
	} else {
		res = m.finishLocked(r, before)
	}
	r.mu.Unlock()
	m.mu.Unlock()

	m.emit(res)
	return true, "left the room"
}

// AbandonRoom is the explicit mid-game surrender: the seat is handed to a bot
// until the next turn start purges it. Outside a running game it behaves like
// a plain leave.
func (m *Manager) AbandonRoom(playerID string) (bool, string) {
	m.mu.Lock()
	roomID, in := m.playerRooms[playerID]
	if !in {
		m.mu.Unlock()
		return false, "not in a room"
	}
	r, exists := m.rooms[roomID]
	if !exists {
		delete(m.playerRooms, playerID)
		m.mu.Unlock()
		return true, "left the room"
	}

	r.mu.Lock()
	before := r.Game.Phase()
	if before == game.PhaseWaiting || before == game.PhaseGameOver {
		r.mu.Unlock()
		m.mu.Unlock()
		return m.LeaveRoom(playerID)
	}

	r.Game.ConvertToBot(playerID)
	delete(m.playerRooms, playerID)
	m.handoffAdminLocked(r, playerID)

	// A game left to bots alone has nobody to watch it finish.
	if m.allOfflineLocked(r) {
		m.deleteRoomLocked(roomID, r)
		r.mu.Unlock()
		m.mu.Unlock()
		m.log.WithField("room_id", roomID).Info("room closed, every seat abandoned")
		return true, "seat handed to a bot"
	}

	r.Game.Tick(m.now())
	res := m.finishLocked(r, before)
	r.mu.Unlock()
	m.mu.Unlock()

	m.emit(res)
	return true, "seat handed to a bot"
}

// KickPlayer removes another player; admin only and only before the game
// starts.
func (m *Manager) KickPlayer(adminID, targetID string) (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	roomID, in := m.playerRooms[adminID]
	if !in {
		return false, "not in a room"
	}
	r := m.rooms[roomID]
	if r == nil {
		return false, "room not found"
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.AdminID != adminID {
		return false, "only the admin can kick players"
	}
	if r.Game.Phase() != game.PhaseWaiting {
		return false, "cannot kick players once the game has started"
	}
	if targetID == adminID {
		return false, "cannot kick yourself"
	}
	if ok, reason := r.Game.RemovePlayer(targetID); !ok {
		return false, reason
	}
	delete(m.playerRooms, targetID)
	r.Touch(m.now())

	pushes := m.snapshotsLocked(r)
	go m.emit(lockedResult{pushes: pushes})
	return true, "player kicked"
}

// Rejoin rebinds a returning player and resumes their broadcasts.
func (m *Manager) Rejoin(playerID string) (string, bool, string) {
	m.mu.Lock()
	roomID, in := m.playerRooms[playerID]
	if !in {
		m.mu.Unlock()
		return "", false, "you were not in a room"
	}
	r, exists := m.rooms[roomID]
	if !exists {
		delete(m.playerRooms, playerID)
		m.mu.Unlock()
		return "", false, "room no longer exists"
	}

	r.mu.Lock()
	p := r.Game.Player(playerID)
	if p == nil {
		delete(m.playerRooms, playerID)
		r.mu.Unlock()
		m.mu.Unlock()
		return "", false, "no longer seated in this room"
	}
	before := r.Game.Phase()
	p.MarkOnline()
	res := m.finishLocked(r, before)
	r.mu.Unlock()
	m.mu.Unlock()

	m.emit(res)
	return roomID, true, "reconnected"
}

// SeatForUser finds the seat already held by an authenticated user, for the
// session-takeover path. Guests have no account and are never taken over.
func (m *Manager) SeatForUser(userID uuid.UUID) (playerID, roomID string, found bool) {
	if userID == uuid.Nil {
		return "", "", false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.rooms {
		r.mu.Lock()
		for _, pid := range r.Game.PlayerOrder() {
			if p := r.Game.Player(pid); p != nil && p.UserID == userID {
				r.mu.Unlock()
				return pid, id, true
			}
		}
		r.mu.Unlock()
	}
	return "", "", false
}

// HandleDisconnect marks the dropped player offline and unblocks the game if
// their turn was pending. An in-progress room with every player offline is
// closed outright.
func (m *Manager) HandleDisconnect(playerID string) {
	m.mu.Lock()
	roomID, in := m.playerRooms[playerID]
	if !in {
		m.mu.Unlock()
		return
	}
	r, exists := m.rooms[roomID]
	if !exists {
		m.mu.Unlock()
		return
	}

	r.mu.Lock()
	now := m.now()
	before := r.Game.Phase()
	if p := r.Game.Player(playerID); p != nil {
		p.MarkOffline(now)
	}
	r.Game.Tick(now)
	m.handoffAdminLocked(r, playerID)

	deleted := false
	if before != game.PhaseWaiting && before != game.PhaseGameOver && m.allOfflineLocked(r) {
		m.deleteRoomLocked(roomID, r)
		deleted = true
	}

	var res lockedResult
	if !deleted {
		res = m.finishLocked(r, before)
	}
	r.mu.Unlock()
	m.mu.Unlock()

	if deleted {
		m.log.WithField("room_id", roomID).Info("room closed, every player offline")
		return
	}
	m.emit(res)
}

// Chat relays a message to every room member and stores it in the room's
// capped buffer.
func (m *Manager) Chat(playerID, text string) (bool, string) {
	m.mu.Lock()
	roomID, in := m.playerRooms[playerID]
	if !in {
		m.mu.Unlock()
		return false, "not in a room"
	}
	r := m.rooms[roomID]
	if r == nil {
		m.mu.Unlock()
		return false, "room not found"
	}

	r.mu.Lock()
	p := r.Game.Player(playerID)
	if p == nil {
		r.mu.Unlock()
		m.mu.Unlock()
		return false, "not seated in this room"
	}
	msg := r.AddChat(playerID, p.Name, text, m.now())
	r.Touch(m.now())
	members := r.Game.PlayerOrder()
	r.mu.Unlock()
	m.mu.Unlock()

	if m.notifier != nil {
		for _, id := range members {
			m.notifier.PushChat(id, msg)
		}
	}
	return true, "message sent"
}

// Do runs a game action against the caller's room under the room lock,
// folding the lazy timeout tick around it, then broadcasts the new state.
func (m *Manager) Do(playerID string, fn func(r *Room) (bool, string)) (bool, string) {
	r, ok := m.roomOf(playerID)
	if !ok {
		return false, "not in a room"
	}

	r.mu.Lock()
	now := m.now()
	before := r.Game.Phase()
	r.Game.Tick(now)
	okAction, reason := fn(r)
	r.Game.Tick(m.now())
	res := m.finishLocked(r, before)
	r.mu.Unlock()

	m.emit(res)
	return okAction, reason
}

func (m *Manager) StartGame(playerID string) (bool, string) {
	return m.Do(playerID, func(r *Room) (bool, string) {
		if r.AdminID != playerID {
			return false, "only the admin can start the game"
		}
		return r.Game.StartGame()
	})
}

func (m *Manager) MakeBet(playerID string, bet int) (bool, string) {
	return m.Do(playerID, func(r *Room) (bool, string) {
		return r.Game.MakeBet(playerID, bet)
	})
}

func (m *Manager) PlayCard(playerID string, suit game.Suit, value int, choice game.JollyChoice) (bool, string) {
	return m.Do(playerID, func(r *Room) (bool, string) {
		return r.Game.PlayCard(playerID, suit, value, choice)
	})
}

func (m *Manager) ChooseJolly(playerID string, choice game.JollyChoice) (bool, string) {
	return m.Do(playerID, func(r *Room) (bool, string) {
		return r.Game.ChooseJolly(playerID, choice)
	})
}

func (m *Manager) AdvanceTrick(playerID string) (bool, string) {
	return m.Do(playerID, func(r *Room) (bool, string) {
		return r.Game.AdvanceFromTrickComplete()
	})
}

func (m *Manager) ReadyNextTurn(playerID string) (bool, string) {
	return m.Do(playerID, func(r *Room) (bool, string) {
		return r.Game.ReadyForNextTurn(playerID, r.AdminID == playerID)
	})
}

func (m *Manager) ResetGame(playerID string) (bool, string) {
	return m.Do(playerID, func(r *Room) (bool, string) {
		if r.AdminID != playerID {
			return false, "only the admin can reset the game"
		}
		return r.Game.ResetGame()
	})
}

func (m *Manager) SetAway(playerID string, away bool) (bool, string) {
	return m.Do(playerID, func(r *Room) (bool, string) {
		return r.Game.SetAway(playerID, away)
	})
}

// Broadcast pushes a fresh snapshot to every member of the room, running the
// lazy tick first so expired deadlines are observed.
func (m *Manager) Broadcast(roomID string) {
	m.mu.Lock()
	r, exists := m.rooms[roomID]
	m.mu.Unlock()
	if !exists {
		return
	}

	r.mu.Lock()
	before := r.Game.Phase()
	r.Game.Tick(m.now())
	res := m.finishLocked(r, before)
	r.mu.Unlock()

	m.emit(res)
}

// SnapshotFor renders one player's current view, for the reconnect and
// explicit get-state paths.
func (m *Manager) SnapshotFor(playerID string) (game.Snapshot, bool) {
	r, ok := m.roomOf(playerID)
	if !ok {
		return game.Snapshot{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := r.Game.SnapshotFor(playerID, m.now())
	snap.AdminID = r.AdminID
	return snap, true
}

// ChatHistory returns the caller's room chat buffer.
func (m *Manager) ChatHistory(playerID string) ([]ChatMessage, bool) {
	r, ok := m.roomOf(playerID)
	if !ok {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ChatHistory(), true
}

// PublicRooms lists every public room for the lobby.
func (m *Manager) PublicRooms() []Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Summary, 0, len(m.rooms))
	for _, r := range m.rooms {
		if !r.IsPublic {
			continue
		}
		r.mu.Lock()
		out = append(out, r.Summary())
		r.mu.Unlock()
	}
	return out
}

// SearchRooms filters public rooms by a case-insensitive name substring.
func (m *Manager) SearchRooms(query string) []Summary {
	query = strings.ToLower(query)
	all := m.PublicRooms()
	out := make([]Summary, 0, len(all))
	for _, s := range all {
		if strings.Contains(strings.ToLower(s.Name), query) {
			out = append(out, s)
		}
	}
	return out
}

// SweepStale deletes rooms idle past the long threshold and finished rooms
// past the short one. Returns how many were removed.
func (m *Manager) SweepStale() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for id, r := range m.rooms {
		r.mu.Lock()
		stale := r.IsFinishedAndStale(now) || r.IsStale(now)
		if stale {
			m.deleteRoomLocked(id, r)
			removed++
		}
		r.mu.Unlock()
	}
	if removed > 0 {
		m.log.WithFields(logrus.Fields{"removed": removed, "remaining": len(m.rooms)}).
			Info("stale rooms swept")
	}
	return removed
}

// handoffAdminLocked moves admin rights to the next joined player who is
// still present and online. Caller holds both locks.
func (m *Manager) handoffAdminLocked(r *Room, leavingID string) {
	if r.AdminID != leavingID {
		return
	}
	fallback := ""
	for _, id := range r.Game.PlayerOrder() {
		if id == leavingID {
			continue
		}
		if fallback == "" {
			fallback = id
		}
		if p := r.Game.Player(id); p != nil && p.IsOnline {
			r.AdminID = id
			return
		}
	}
	if fallback != "" {
		r.AdminID = fallback
	}
}

func (m *Manager) allOfflineLocked(r *Room) bool {
	for _, id := range r.Game.PlayerOrder() {
		if p := r.Game.Player(id); p != nil && p.IsOnline {
			return false
		}
	}
	return true
}

// deleteRoomLocked unregisters every member and drops the room. Caller holds
// the registry lock.
func (m *Manager) deleteRoomLocked(roomID string, r *Room) {
	for _, id := range r.Game.PlayerOrder() {
		delete(m.playerRooms, id)
	}
	delete(m.rooms, roomID)
}
