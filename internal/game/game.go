package game

import (
	"fmt"
	"sort"
	"time"
)

// Phase enumerates the game state machine.
type Phase int

const (
	PhaseWaiting Phase = iota
	PhaseBetting
	PhasePlaying
	PhaseWaitingJolly
	PhaseTrickComplete
	PhaseTurnResults
	PhaseGameOver
)

var phaseNames = [...]string{
	"waiting", "betting", "playing", "waiting_jolly",
	"trick_complete", "turn_results", "game_over",
}

func (p Phase) String() string {
	if p < PhaseWaiting || p > PhaseGameOver {
		return "unknown"
	}
	return phaseNames[p]
}

// CardsPerTurn is the fixed hand-size schedule. The final 1-card turn is the
// special round.
var CardsPerTurn = [...]int{5, 4, 3, 2, 1}

const (
	MinPlayers = 2
	MaxPlayers = 8
)

// TableCard is one card of the in-progress trick, tagged with its player.
type TableCard struct {
	PlayerID string `json:"player_id"`
	Card     Card   `json:"card"`
}

// TurnResult is one player's settled bet at the end of a turn.
type TurnResult struct {
	PlayerID   string `json:"player_id"`
	Name       string `json:"name"`
	Bet        int    `json:"bet"`
	TricksWon  int    `json:"tricks_won"`
	LifeChange int    `json:"life_change"`
	Lives      int    `json:"lives"`
	Correct    bool   `json:"correct"`
}

// Standing is one row of the final ranking. Players with equal lives share a
// position.
type Standing struct {
	Position int    `json:"position"`
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Lives    int    `json:"lives"`
}

// Game owns one room's full progression: betting order, trick resolution,
// the jolly sub-protocol, timers and auto-play. It is not safe for concurrent
// use; the room layer serializes access behind the room lock.
type Game struct {
	roomID string

	players map[string]*Player
	order   []string

	deck  *Deck
	phase Phase

	currentTurn      int
	currentTrick     int
	firstBetterIndex int
	trickLeaderIndex int

	betsMade           []string
	cardsOnTable       []TableCard
	pendingJollyPlayer string
	trickWinnerID      string
	lastTrickOfTurn    bool
	repeatSpecialRound bool

	turnResults []TurnResult
	standings   []Standing
	events      []Event

	timer          turnTimer
	turnTimeout    time.Duration
	offlineTimeout time.Duration

	now func() time.Time
}

func NewGame(roomID string) *Game {
	return &Game{
		roomID:         roomID,
		players:        make(map[string]*Player),
		deck:           NewDeck(),
		phase:          PhaseWaiting,
		turnTimeout:    DefaultTurnTimeout,
		offlineTimeout: DefaultOfflineTimeout,
		now:            time.Now,
	}
}

// SetClock replaces the time source. Tests use this to drive deadlines.
func (g *Game) SetClock(now func() time.Time) {
	g.now = now
}

// SetTimeouts overrides the decision and disconnect deadlines.
func (g *Game) SetTimeouts(turn, offline time.Duration) {
	g.turnTimeout = turn
	g.offlineTimeout = offline
}

func (g *Game) RoomID() string        { return g.roomID }
func (g *Game) Phase() Phase          { return g.phase }
func (g *Game) CurrentTurn() int      { return g.currentTurn }
func (g *Game) CurrentTrick() int     { return g.currentTrick }
func (g *Game) PlayerCount() int      { return len(g.players) }
func (g *Game) Standings() []Standing { return g.standings }

func (g *Game) Player(id string) *Player {
	return g.players[id]
}

// PlayerOrder returns the stable seating, in join order.
func (g *Game) PlayerOrder() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

func (g *Game) CardsThisTurn() int {
	if g.currentTurn >= len(CardsPerTurn) {
		return 0
	}
	return CardsPerTurn[g.currentTurn]
}

// IsSpecialTurn reports whether this is the final 1-card turn, where every
// player's hand is on open display.
func (g *Game) IsSpecialTurn() bool {
	return g.CardsThisTurn() == 1
}

// IsFinalTurn reports whether no later turn exists for a mid-game joiner to
// wait for.
func (g *Game) IsFinalTurn() bool {
	return g.currentTurn >= len(CardsPerTurn)-1
}

func (g *Game) activePlayers() []*Player {
	active := make([]*Player, 0, len(g.order))
	for _, id := range g.order {
		if p := g.players[id]; p != nil && p.IsActive() {
			active = append(active, p)
		}
	}
	return active
}

// ActivePlayers returns the players taking part in the current turn, in
// seating order.
func (g *Game) ActivePlayers() []*Player {
	return g.activePlayers()
}

func (g *Game) AddPlayer(p *Player) (bool, string) {
	if len(g.players) >= MaxPlayers {
		return false, "room is full"
	}
	if _, exists := g.players[p.ID]; exists {
		return false, "player already seated"
	}
	g.players[p.ID] = p
	g.order = append(g.order, p.ID)
	return true, "player added"
}

// RemovePlayer removes a seat; only legal before the game starts.
func (g *Game) RemovePlayer(playerID string) (bool, string) {
	if g.phase != PhaseWaiting {
		return false, "cannot remove a player once the game has started"
	}
	if _, exists := g.players[playerID]; !exists {
		return false, "player not found"
	}
	g.expel(playerID)
	return true, "player removed"
}

// Expel drops a seat regardless of phase. The room layer uses it for
// post-game departures; the turn-start routine uses it to purge bots.
func (g *Game) Expel(playerID string) bool {
	if _, exists := g.players[playerID]; !exists {
		return false
	}
	g.expel(playerID)
	return true
}

func (g *Game) expel(playerID string) {
	delete(g.players, playerID)
	for i, id := range g.order {
		if id == playerID {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
}

func (g *Game) CanStart() bool {
	return g.phase == PhaseWaiting && len(g.activePlayers()) >= MinPlayers
}

func (g *Game) StartGame() (bool, string) {
	if g.phase != PhaseWaiting {
		return false, "game already started"
	}
	if len(g.activePlayers()) < MinPlayers {
		return false, fmt.Sprintf("need at least %d players to start", MinPlayers)
	}
	g.currentTurn = 0
	g.repeatSpecialRound = false
	g.startTurn()
	return true, "game started"
}

// startTurn runs the turn-start routine: purge bots, promote queued joiners,
// redeal, rotate the first better, open betting.
func (g *Game) startTurn() {
	for _, id := range append([]string(nil), g.order...) {
		if g.players[id].IsBot {
			g.addEvent(EventSystem, fmt.Sprintf("%s left the table", g.players[id].Name))
			g.expel(id)
		}
	}
	if len(g.activePlayers()) < MinPlayers {
		g.endGame()
		return
	}

	for _, p := range g.players {
		p.ResetForTurn()
	}

	// Late joiners never start ahead of the pack.
	minLives := 0
	for i, p := range g.activePlayers() {
		if i == 0 || p.Lives < minLives {
			minLives = p.Lives
		}
	}
	for _, id := range g.order {
		p := g.players[id]
		if p.JoinNextTurn {
			p.JoinNextTurn = false
			p.IsSpectator = false
			if minLives > 0 {
				p.Lives = minLives
			}
		}
	}

	g.deck.Reset()
	cards := g.CardsThisTurn()
	for _, id := range g.order {
		p := g.players[id]
		if !p.IsSpectator && !p.IsEliminated() {
			hand, err := g.deck.Draw(cards)
			if err != nil {
				panic(fmt.Sprintf("dealing turn %d: %v", g.currentTurn, err))
			}
			p.ReceiveHand(hand)
		}
	}

	g.currentTrick = 0
	g.betsMade = nil
	g.cardsOnTable = nil
	g.turnResults = nil
	g.trickWinnerID = ""
	g.lastTrickOfTurn = false

	active := g.activePlayers()
	g.firstBetterIndex = g.currentTurn % len(active)
	g.trickLeaderIndex = g.firstBetterIndex

	g.phase = PhaseBetting
	g.armTimer(active[g.firstBetterIndex].ID, TimerBet)
	g.addEvent(EventSystem, fmt.Sprintf("Turn %d: %d cards", g.currentTurn+1, cards))
}

// CurrentBetter returns the player whose turn it is to bet, or nil.
func (g *Game) CurrentBetter() *Player {
	if g.phase != PhaseBetting {
		return nil
	}
	active := g.activePlayers()
	if len(active) == 0 || len(g.betsMade) >= len(active) {
		return nil
	}
	idx := (g.firstBetterIndex + len(g.betsMade)) % len(active)
	return active[idx]
}

// ForbiddenBet returns the value the last better may not bet, when the rule
// applies. The final 1-card turn allows the forbidden sum on purpose.
func (g *Game) ForbiddenBet() (int, bool) {
	if g.phase != PhaseBetting || g.IsSpecialTurn() {
		return 0, false
	}
	active := g.activePlayers()
	if len(g.betsMade) != len(active)-1 {
		return 0, false
	}
	total := 0
	for _, id := range g.betsMade {
		if p := g.players[id]; p != nil && p.Bet != nil {
			total += *p.Bet
		}
	}
	cards := g.CardsThisTurn()
	forbidden := cards - total
	if forbidden < 0 || forbidden > cards {
		return 0, false
	}
	return forbidden, true
}

func (g *Game) MakeBet(playerID string, bet int) (bool, string) {
	if g.phase != PhaseBetting {
		return false, "betting is not open"
	}
	p := g.players[playerID]
	if p == nil {
		return false, "player not found"
	}
	better := g.CurrentBetter()
	if better == nil || better.ID != playerID {
		return false, "not your turn to bet"
	}
	cards := g.CardsThisTurn()
	if bet < 0 || bet > cards {
		return false, fmt.Sprintf("bet must be between 0 and %d", cards)
	}
	if forbidden, ok := g.ForbiddenBet(); ok && bet == forbidden {
		return false, fmt.Sprintf("cannot bet %d, the bets would sum to the cards in play", forbidden)
	}
	if err := p.MakeBet(bet, cards); err != nil {
		return false, err.Error()
	}
	g.betsMade = append(g.betsMade, playerID)
	g.addEvent(EventBet, fmt.Sprintf("%s bets %d", p.Name, bet))

	if len(g.betsMade) == len(g.activePlayers()) {
		g.startPlaying()
	} else if next := g.CurrentBetter(); next != nil {
		g.armTimer(next.ID, TimerBet)
	}
	return true, "bet registered"
}

func (g *Game) startPlaying() {
	g.phase = PhasePlaying
	g.trickLeaderIndex = g.firstBetterIndex
	if leader := g.CurrentPlayer(); leader != nil {
		g.armTimer(leader.ID, TimerPlay)
	}
	g.addEvent(EventSystem, "play phase started")
}

// CurrentPlayer returns the player whose turn it is to play a card, or nil.
// During the jolly sub-protocol it is still the pending player.
func (g *Game) CurrentPlayer() *Player {
	if g.phase != PhasePlaying && g.phase != PhaseWaitingJolly {
		return nil
	}
	active := g.activePlayers()
	if len(active) == 0 {
		return nil
	}
	idx := (g.trickLeaderIndex + len(g.cardsOnTable)) % len(active)
	return active[idx]
}

// PlayCard plays the named card. Playing the jolly without a choice parks the
// game in the jolly sub-protocol without consuming the card.
func (g *Game) PlayCard(playerID string, suit Suit, value int, choice JollyChoice) (bool, string) {
	if g.phase == PhaseWaitingJolly {
		return g.ChooseJolly(playerID, choice)
	}
	if g.phase != PhasePlaying {
		return false, "not the moment to play a card"
	}
	p := g.players[playerID]
	if p == nil {
		return false, "player not found"
	}
	current := g.CurrentPlayer()
	if current == nil || current.ID != playerID {
		return false, "not your turn"
	}
	if !p.HasCard(suit, value) {
		return false, "card not in hand"
	}

	if (Card{Suit: suit, Value: value}).IsJolly() {
		if choice == JollyUnset {
			g.pendingJollyPlayer = playerID
			g.phase = PhaseWaitingJolly
			g.armTimer(playerID, TimerJolly)
			return true, "awaiting jolly choice"
		}
		if !choice.Valid() {
			return false, "choose strongest or weakest"
		}
	}

	card, _ := p.TakeCard(suit, value)
	if card.IsJolly() {
		if err := card.SetChoice(choice); err != nil {
			p.Hand = append(p.Hand, card)
			return false, err.Error()
		}
	}
	g.placeCard(p, card)
	return true, "card played"
}

// ChooseJolly finalizes the pending jolly's strength and plays it.
func (g *Game) ChooseJolly(playerID string, choice JollyChoice) (bool, string) {
	if g.phase != PhaseWaitingJolly {
		return false, "no jolly choice is pending"
	}
	if playerID != g.pendingJollyPlayer {
		return false, "the jolly choice is not yours"
	}
	if !choice.Valid() {
		return false, "choose strongest or weakest"
	}
	p := g.players[playerID]
	if p == nil {
		return false, "player not found"
	}
	card, ok := p.TakeCard(Ori, 1)
	if !ok {
		return false, "jolly not in hand"
	}
	if err := card.SetChoice(choice); err != nil {
		p.Hand = append(p.Hand, card)
		return false, err.Error()
	}
	g.pendingJollyPlayer = ""
	g.phase = PhasePlaying
	g.placeCard(p, card)
	return true, fmt.Sprintf("jolly declared %s", choice)
}

func (g *Game) placeCard(p *Player, card Card) {
	g.cardsOnTable = append(g.cardsOnTable, TableCard{PlayerID: p.ID, Card: card})
	if card.IsJolly() {
		g.addEvent(EventPlay, fmt.Sprintf("%s plays %s (%s)", p.Name, card.DisplayName(), card.Choice))
	} else {
		g.addEvent(EventPlay, fmt.Sprintf("%s plays %s", p.Name, card.DisplayName()))
	}

	if len(g.cardsOnTable) == len(g.activePlayers()) {
		g.resolveTrick()
	} else if next := g.CurrentPlayer(); next != nil {
		g.armTimer(next.ID, TimerPlay)
	}
}

// resolveTrick awards the trick to the strict-max strength card. Strengths
// cannot collide: the deck has no duplicates and only one jolly exists.
func (g *Game) resolveTrick() {
	if len(g.cardsOnTable) == 0 {
		return
	}
	winning := g.cardsOnTable[0]
	for _, tc := range g.cardsOnTable[1:] {
		if tc.Card.Strength() > winning.Card.Strength() {
			winning = tc
		}
	}
	winner := g.players[winning.PlayerID]
	winner.WinTrick()
	g.trickWinnerID = winner.ID
	g.lastTrickOfTurn = g.currentTrick+1 >= g.CardsThisTurn()
	g.phase = PhaseTrickComplete
	g.clearTimer()
	g.addEvent(EventTrick, fmt.Sprintf("%s wins the trick with %s", winner.Name, winning.Card.DisplayName()))
}

// AdvanceFromTrickComplete moves past the post-trick display pause. Calling
// it twice is a rejection, not a double advance.
func (g *Game) AdvanceFromTrickComplete() (bool, string) {
	if g.phase != PhaseTrickComplete {
		return false, "no completed trick to advance from"
	}
	if g.trickWinnerID != "" {
		for i, p := range g.activePlayers() {
			if p.ID == g.trickWinnerID {
				g.trickLeaderIndex = i
				break
			}
		}
	}
	if g.lastTrickOfTurn {
		g.endTurn()
		return true, "turn complete"
	}
	g.currentTrick++
	g.cardsOnTable = nil
	g.phase = PhasePlaying
	if leader := g.CurrentPlayer(); leader != nil {
		g.armTimer(leader.ID, TimerPlay)
	}
	return true, "next trick"
}

func (g *Game) endTurn() {
	g.turnResults = nil
	allCorrect := true
	for _, p := range g.activePlayers() {
		change := p.ApplyLifeChange()
		bet := 0
		if p.Bet != nil {
			bet = *p.Bet
		}
		g.turnResults = append(g.turnResults, TurnResult{
			PlayerID:   p.ID,
			Name:       p.Name,
			Bet:        bet,
			TricksWon:  p.TricksWon,
			LifeChange: change,
			Lives:      p.Lives,
			Correct:    change == 0,
		})
		if change == 0 {
			g.addEvent(EventResult, fmt.Sprintf("%s bet right", p.Name))
		} else {
			allCorrect = false
			g.addEvent(EventResult, fmt.Sprintf("%s missed and loses a life", p.Name))
		}
	}

	g.phase = PhaseTurnResults
	g.clearTimer()

	if len(g.activePlayers()) <= 1 {
		g.endGame()
		return
	}
	if g.currentTurn == len(CardsPerTurn)-1 && allCorrect {
		g.repeatSpecialRound = true
		g.addEvent(EventSystem, "everyone bet right, the special round repeats")
	}
}

// ReadyForNextTurn advances out of the results screen. Admin only; the room
// layer resolves who the admin is.
func (g *Game) ReadyForNextTurn(playerID string, isAdmin bool) (bool, string) {
	if g.phase != PhaseTurnResults {
		return false, "turn results are not showing"
	}
	if _, ok := g.players[playerID]; !ok {
		return false, "player not found"
	}
	if !isAdmin {
		return false, "only the admin can start the next turn"
	}
	g.cardsOnTable = nil
	if g.repeatSpecialRound {
		g.repeatSpecialRound = false
		g.startTurn()
		return true, "special round repeats"
	}
	g.currentTurn++
	if g.currentTurn >= len(CardsPerTurn) {
		g.endGame()
		return true, "game over"
	}
	g.startTurn()
	return true, "next turn started"
}

// endGame freezes the game and computes final standings among seated players.
// Equal lives share a position; otherwise arrival order is kept.
func (g *Game) endGame() {
	g.phase = PhaseGameOver
	g.clearTimer()

	ranked := make([]*Player, 0, len(g.order))
	for _, id := range g.order {
		p := g.players[id]
		if !p.IsSpectator && !p.JoinNextTurn {
			ranked = append(ranked, p)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Lives > ranked[j].Lives
	})

	g.standings = nil
	pos := 0
	prevLives := 0
	for i, p := range ranked {
		if i == 0 || p.Lives != prevLives {
			pos = i + 1
		}
		prevLives = p.Lives
		g.standings = append(g.standings, Standing{
			Position: pos,
			PlayerID: p.ID,
			Name:     p.Name,
			Lives:    p.Lives,
		})
	}

	if len(g.standings) > 0 {
		winner := g.standings[0]
		g.addEvent(EventSystem, fmt.Sprintf("game over, %s wins with %d lives", winner.Name, winner.Lives))
	}
}

// ResetGame returns a finished room to the lobby so it can be reused. Bots
// are purged and every remaining player goes back to full lives.
func (g *Game) ResetGame() (bool, string) {
	if g.phase != PhaseGameOver {
		return false, "game is not over"
	}
	for _, id := range append([]string(nil), g.order...) {
		if g.players[id].IsBot {
			g.expel(id)
		}
	}
	for _, p := range g.players {
		p.ResetForTurn()
		p.Lives = InitialLives
		p.IsSpectator = false
		p.JoinNextTurn = false
		p.IsBot = false
		p.TotalTricksWon = 0
		p.TotalBetsCorrect = 0
		p.TotalBetsWrong = 0
		p.TotalLivesLost = 0
	}
	g.currentTurn = 0
	g.currentTrick = 0
	g.firstBetterIndex = 0
	g.trickLeaderIndex = 0
	g.betsMade = nil
	g.cardsOnTable = nil
	g.pendingJollyPlayer = ""
	g.trickWinnerID = ""
	g.lastTrickOfTurn = false
	g.repeatSpecialRound = false
	g.turnResults = nil
	g.standings = nil
	g.clearTimer()
	g.phase = PhaseWaiting
	g.addEvent(EventSystem, "room reset, waiting for players")
	return true, "room reset"
}

// SetAway flags a tab-hidden but still connected player. Away players are
// never offline-skipped.
func (g *Game) SetAway(playerID string, away bool) (bool, string) {
	p := g.players[playerID]
	if p == nil {
		return false, "player not found"
	}
	p.IsAway = away
	return true, "away status updated"
}

// ConvertToBot hands an abandoned seat to the engine until the next turn
// start purges it.
func (g *Game) ConvertToBot(playerID string) (bool, string) {
	p := g.players[playerID]
	if p == nil {
		return false, "player not found"
	}
	p.IsBot = true
	p.MarkOffline(g.now())
	g.addEvent(EventSystem, fmt.Sprintf("%s abandoned, a bot plays the seat", p.Name))
	return true, "seat handed to a bot"
}
