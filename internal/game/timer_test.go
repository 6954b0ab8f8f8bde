package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock drives the lazy deadline checks without sleeping.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func startClockedGame(t *testing.T, names ...string) (*Game, *fakeClock) {
	return startClockedGameWithTimeouts(t, DefaultTurnTimeout, DefaultOfflineTimeout, names...)
}

// Timeouts must be in place before StartGame: the opening bet timer is armed
// with the deadline in force at that moment.
func startClockedGameWithTimeouts(t *testing.T, turn, offline time.Duration, names ...string) (*Game, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Unix(1_000_000, 0)}
	g := newTestGame(t, names...)
	g.SetClock(clock.now)
	g.SetTimeouts(turn, offline)
	ok, reason := g.StartGame()
	require.True(t, ok, reason)
	return g, clock
}

func TestTimerExpiryAutoBetsZero(t *testing.T) {
	g, clock := startClockedGame(t, "a", "b")

	g.Tick(clock.now())
	assert.Nil(t, g.players["a"].Bet, "no action before the deadline")

	clock.advance(DefaultTurnTimeout + time.Second)
	g.Tick(clock.now())

	require.NotNil(t, g.players["a"].Bet)
	assert.Equal(t, 0, *g.players["a"].Bet)

	// The timer re-armed for the next better, who is not yet due.
	assert.Nil(t, g.players["b"].Bet)
	better := g.CurrentBetter()
	require.NotNil(t, better)
	assert.Equal(t, "b", better.ID)
}

func TestTimerExpiryAutoBetsOneWhenZeroForbidden(t *testing.T) {
	g, clock := startClockedGame(t, "a", "b")
	mustBet(t, g, "a", 5)

	forbidden, ok := g.ForbiddenBet()
	require.True(t, ok)
	require.Equal(t, 0, forbidden)

	clock.advance(DefaultTurnTimeout + time.Second)
	g.Tick(clock.now())

	require.NotNil(t, g.players["b"].Bet)
	assert.Equal(t, 1, *g.players["b"].Bet)
	assert.Equal(t, PhasePlaying, g.Phase())
}

func TestTimerExpiryPlaysLowestCard(t *testing.T) {
	g, clock := startClockedGame(t, "a", "b")
	mustBet(t, g, "a", 0)
	mustBet(t, g, "b", 0)
	require.Equal(t, PhasePlaying, g.Phase())

	g.players["a"].Hand = []Card{
		{Suit: Ori, Value: 10}, {Suit: Bastoni, Value: 2}, {Suit: Coppe, Value: 5},
		{Suit: Spade, Value: 7}, {Suit: Ori, Value: 3},
	}

	clock.advance(DefaultTurnTimeout + time.Second)
	g.Tick(clock.now())

	require.Len(t, g.cardsOnTable, 1)
	assert.Equal(t, Card{Suit: Bastoni, Value: 2}, g.cardsOnTable[0].Card)
}

func TestTimerExpiryBurnsJollyBeforeLowCards(t *testing.T) {
	g, clock := startClockedGame(t, "a", "b")
	mustBet(t, g, "a", 0)
	mustBet(t, g, "b", 0)
	require.Equal(t, PhasePlaying, g.Phase())

	g.players["a"].Hand = []Card{
		{Suit: Bastoni, Value: 2}, {Suit: Ori, Value: 1}, {Suit: Spade, Value: 4},
		{Suit: Coppe, Value: 6}, {Suit: Ori, Value: 9},
	}

	clock.advance(DefaultTurnTimeout + time.Second)
	g.Tick(clock.now())

	require.Len(t, g.cardsOnTable, 1)
	assert.True(t, g.cardsOnTable[0].Card.IsJolly())
	assert.Equal(t, JollyStrongest, g.cardsOnTable[0].Card.Choice)
}

func TestTimerExpiryResolvesPendingJollyStrongest(t *testing.T) {
	g, clock := startClockedGame(t, "a", "b")
	mustBet(t, g, "a", 1)
	mustBet(t, g, "b", 3)

	g.players["a"].Hand = []Card{
		{Suit: Ori, Value: 1}, {Suit: Bastoni, Value: 2}, {Suit: Bastoni, Value: 3},
		{Suit: Bastoni, Value: 4}, {Suit: Bastoni, Value: 5},
	}

	ok, _ := g.PlayCard("a", Ori, 1, JollyUnset)
	require.True(t, ok)
	require.Equal(t, PhaseWaitingJolly, g.Phase())

	clock.advance(DefaultTurnTimeout + time.Second)
	g.Tick(clock.now())

	require.Equal(t, PhasePlaying, g.Phase())
	require.Len(t, g.cardsOnTable, 1)
	assert.Equal(t, JollyStrongest, g.cardsOnTable[0].Card.Choice)
}

func TestOfflineSkipAfterThreshold(t *testing.T) {
	// A long decision deadline isolates the disconnect policy.
	g, clock := startClockedGameWithTimeouts(t, 10*time.Minute, DefaultOfflineTimeout, "a", "b")

	g.players["a"].MarkOffline(clock.now())
	clock.advance(30 * time.Second)
	g.Tick(clock.now())
	assert.Nil(t, g.players["a"].Bet, "below the disconnect threshold")

	clock.advance(31 * time.Second)
	g.Tick(clock.now())
	require.NotNil(t, g.players["a"].Bet)
	assert.Equal(t, 0, *g.players["a"].Bet)
}

func TestAwayPlayerIsNeverOfflineSkipped(t *testing.T) {
	g, clock := startClockedGameWithTimeouts(t, 10*time.Minute, DefaultOfflineTimeout, "a", "b")

	ok, _ := g.SetAway("a", true)
	require.True(t, ok)

	clock.advance(5 * time.Minute)
	g.Tick(clock.now())
	assert.Nil(t, g.players["a"].Bet, "away but connected players keep their turn")

	// Away exempts a player from the offline policy only; the ordinary
	// decision deadline still applies.
	clock.advance(6 * time.Minute)
	g.Tick(clock.now())
	require.NotNil(t, g.players["a"].Bet)
	assert.Equal(t, 0, *g.players["a"].Bet)
}

func TestBotActsImmediately(t *testing.T) {
	g, clock := startClockedGame(t, "a", "b", "c")
	ok, _ := g.ConvertToBot("a")
	require.True(t, ok)

	g.Tick(clock.now())

	require.NotNil(t, g.players["a"].Bet, "bots do not wait for the timer")
	better := g.CurrentBetter()
	require.NotNil(t, better)
	assert.Equal(t, "b", better.ID)
}

func TestBotCascadeIsBounded(t *testing.T) {
	g, clock := startClockedGame(t, "a", "b", "c")
	for _, id := range []string{"a", "b", "c"} {
		_, _ = g.ConvertToBot(id)
	}

	// A single tick chains through every bot decision of the whole turn,
	// including the betting round and all five tricks.
	for i := 0; i < 10; i++ {
		g.Tick(clock.now())
		if g.Phase() == PhaseTurnResults || g.Phase() == PhaseGameOver {
			break
		}
	}
	assert.Contains(t, []Phase{PhaseTurnResults, PhaseGameOver}, g.Phase())
}

func TestTimerRemainingCountsDown(t *testing.T) {
	g, clock := startClockedGame(t, "a", "b")

	remaining, ok := g.TimerRemaining(clock.now())
	require.True(t, ok)
	assert.Equal(t, int(DefaultTurnTimeout/time.Second), remaining)

	clock.advance(10 * time.Second)
	remaining, _ = g.TimerRemaining(clock.now())
	assert.Equal(t, 20, remaining)

	g.clearTimer()
	_, ok = g.TimerRemaining(clock.now())
	assert.False(t, ok)
}
