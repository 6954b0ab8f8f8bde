package game

import "time"

// TimerKind names the decision an armed timer is waiting on.
type TimerKind string

const (
	TimerNone  TimerKind = ""
	TimerBet   TimerKind = "bet"
	TimerPlay  TimerKind = "play"
	TimerJolly TimerKind = "jolly"
)

// Decision deadlines. There are no background timer goroutines: the deadline
// is a plain timestamp evaluated by Tick at the top of each handled action
// and before each broadcast.
const (
	DefaultTurnTimeout    = 30 * time.Second
	DefaultOfflineTimeout = 60 * time.Second
)

// MaxBotChain bounds how many synthesized actions a single Tick may apply in
// a row before giving up.
const MaxBotChain = 64

type turnTimer struct {
	playerID string
	kind     TimerKind
	deadline time.Time
}

func (g *Game) armTimer(playerID string, kind TimerKind) {
	g.timer = turnTimer{playerID: playerID, kind: kind, deadline: g.now().Add(g.turnTimeout)}
}

func (g *Game) clearTimer() {
	g.timer = turnTimer{}
}

// TimerRemaining returns whole seconds left on the armed timer, or false when
// no decision is pending.
func (g *Game) TimerRemaining(now time.Time) (int, bool) {
	if g.timer.kind == TimerNone {
		return 0, false
	}
	rem := g.timer.deadline.Sub(now)
	if rem < 0 {
		rem = 0
	}
	return int(rem / time.Second), true
}

// Tick applies every synthesized action due at now: immediate bot moves,
// expired turn timers, and offline skips past the disconnect threshold.
// Merely away players keep their seat until the turn timer itself expires.
// The cascade is an explicit bounded loop, never recursion.
func (g *Game) Tick(now time.Time) {
	for i := 0; i < MaxBotChain; i++ {
		if g.phase == PhaseTrickComplete && !g.anyHumanPresent() {
			if ok, _ := g.AdvanceFromTrickComplete(); !ok {
				return
			}
			continue
		}

		actor, kind := g.pendingDecision()
		if actor == nil {
			return
		}

		due := actor.IsBot ||
			(!actor.IsOnline && !actor.OfflineSince.IsZero() && now.Sub(actor.OfflineSince) >= g.offlineTimeout) ||
			(g.timer.kind != TimerNone && now.After(g.timer.deadline))
		if !due {
			return
		}
		if !g.autoAct(actor, kind) {
			return
		}
	}
}

func (g *Game) anyHumanPresent() bool {
	for _, p := range g.activePlayers() {
		if !p.IsBot && p.IsOnline {
			return true
		}
	}
	return false
}

// pendingDecision resolves the single player currently owed a decision.
func (g *Game) pendingDecision() (*Player, TimerKind) {
	switch g.phase {
	case PhaseBetting:
		return g.CurrentBetter(), TimerBet
	case PhasePlaying:
		return g.CurrentPlayer(), TimerPlay
	case PhaseWaitingJolly:
		if g.pendingJollyPlayer == "" {
			return nil, TimerNone
		}
		return g.players[g.pendingJollyPlayer], TimerJolly
	}
	return nil, TimerNone
}

// autoAct synthesizes a safe action for the actor and applies it through the
// normal action path so every invariant still holds.
func (g *Game) autoAct(actor *Player, kind TimerKind) bool {
	switch kind {
	case TimerBet:
		bet := 0
		if forbidden, ok := g.ForbiddenBet(); ok && forbidden == 0 {
			bet = 1
		}
		ok, _ := g.MakeBet(actor.ID, bet)
		return ok
	case TimerPlay:
		card, ok := lowestCard(actor.Hand)
		if !ok {
			return false
		}
		choice := JollyUnset
		if card.IsJolly() {
			choice = JollyStrongest
		}
		played, _ := g.PlayCard(actor.ID, card.Suit, card.Value, choice)
		return played
	case TimerJolly:
		ok, _ := g.ChooseJolly(actor.ID, JollyStrongest)
		return ok
	}
	return false
}

// lowestCard picks the throwaway card for a timed-out player. An undeclared
// jolly ranks below every normal card here, so an absent player burns the
// wildcard first instead of sitting on it.
func lowestCard(hand []Card) (Card, bool) {
	if len(hand) == 0 {
		return Card{}, false
	}
	rank := func(c Card) int {
		if c.IsJolly() && c.Choice == JollyUnset {
			return jollyWeakestStrength
		}
		return c.Strength()
	}
	best := hand[0]
	for _, c := range hand[1:] {
		if rank(c) < rank(best) {
			best = c
		}
	}
	return best, true
}
