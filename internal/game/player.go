package game

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InitialLives is every player's starting life count.
const InitialLives = 5

// Player is one seat in a room. The ID is stable across reconnects; the
// connection binding lives in the session layer, not here. UserID is uuid.Nil
// for guests and carries the authenticated account otherwise.
type Player struct {
	ID     string
	Name   string
	UserID uuid.UUID

	Lives     int
	Hand      []Card
	Bet       *int
	TricksWon int

	IsOnline     bool
	IsAway       bool
	IsSpectator  bool
	JoinNextTurn bool
	IsBot        bool
	OfflineSince time.Time

	// Cumulative per-game counters, reported at game over.
	TotalTricksWon   int
	TotalBetsCorrect int
	TotalBetsWrong   int
	TotalLivesLost   int
}

func NewPlayer(id, name string) *Player {
	return &Player{ID: id, Name: name, Lives: InitialLives, IsOnline: true}
}

// ResetForTurn clears the per-turn state. Lives and cumulative counters
// survive turn boundaries.
func (p *Player) ResetForTurn() {
	p.Hand = nil
	p.Bet = nil
	p.TricksWon = 0
}

func (p *Player) ReceiveHand(cards []Card) {
	p.Hand = cards
}

func (p *Player) HasCard(suit Suit, value int) bool {
	for _, c := range p.Hand {
		if c.Is(suit, value) {
			return true
		}
	}
	return false
}

// TakeCard removes the named card from the hand and returns it.
func (p *Player) TakeCard(suit Suit, value int) (Card, bool) {
	for i, c := range p.Hand {
		if c.Is(suit, value) {
			p.Hand = append(p.Hand[:i], p.Hand[i+1:]...)
			return c, true
		}
	}
	return Card{}, false
}

// MakeBet records the bet. Range is the only check here; turn-specific
// legality such as the forbidden-sum rule belongs to the game.
func (p *Player) MakeBet(bet, maxCards int) error {
	if bet < 0 || bet > maxCards {
		return fmt.Errorf("bet must be between 0 and %d", maxCards)
	}
	b := bet
	p.Bet = &b
	return nil
}

func (p *Player) WinTrick() {
	p.TricksWon++
	p.TotalTricksWon++
}

// ApplyLifeChange settles the turn's bet: 0 for a correct bet, -1 otherwise.
func (p *Player) ApplyLifeChange() int {
	if p.Bet != nil && *p.Bet == p.TricksWon {
		p.TotalBetsCorrect++
		return 0
	}
	p.TotalBetsWrong++
	p.TotalLivesLost++
	p.Lives--
	return -1
}

func (p *Player) IsEliminated() bool {
	return p.Lives <= 0
}

// IsActive reports whether the player takes part in the current turn.
func (p *Player) IsActive() bool {
	return !p.IsSpectator && !p.IsEliminated() && !p.JoinNextTurn
}

func (p *Player) MarkOffline(now time.Time) {
	p.IsOnline = false
	p.OfflineSince = now
}

func (p *Player) MarkOnline() {
	p.IsOnline = true
	p.OfflineSince = time.Time{}
}
