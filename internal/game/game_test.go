package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGame(t *testing.T, names ...string) *Game {
	t.Helper()
	g := NewGame("room-test")
	for _, n := range names {
		ok, reason := g.AddPlayer(NewPlayer(n, n))
		require.True(t, ok, reason)
	}
	return g
}

func startTestGame(t *testing.T, names ...string) *Game {
	t.Helper()
	g := newTestGame(t, names...)
	ok, reason := g.StartGame()
	require.True(t, ok, reason)
	require.Equal(t, PhaseBetting, g.Phase())
	return g
}

func mustBet(t *testing.T, g *Game, playerID string, bet int) {
	t.Helper()
	ok, reason := g.MakeBet(playerID, bet)
	require.True(t, ok, "bet %d by %s: %s", bet, playerID, reason)
}

func mustPlay(t *testing.T, g *Game, playerID string, c Card) {
	t.Helper()
	ok, reason := g.PlayCard(playerID, c.Suit, c.Value, c.Choice)
	require.True(t, ok, "play %v by %s: %s", c, playerID, reason)
}

func TestStartGameRequiresTwoPlayers(t *testing.T) {
	g := newTestGame(t, "a")
	ok, _ := g.StartGame()
	assert.False(t, ok)

	g2 := startTestGame(t, "a", "b")
	assert.Equal(t, 5, g2.CardsThisTurn())
	for _, p := range g2.ActivePlayers() {
		assert.Len(t, p.Hand, 5)
	}

	// No second start.
	ok, _ = g2.StartGame()
	assert.False(t, ok)
}

func TestRemovePlayerOnlyWhileWaiting(t *testing.T) {
	g := newTestGame(t, "a", "b", "c")
	ok, _ := g.RemovePlayer("c")
	require.True(t, ok)
	assert.Equal(t, 2, g.PlayerCount())

	_, _ = g.StartGame()
	ok, _ = g.RemovePlayer("b")
	assert.False(t, ok)
}

func TestForbiddenBetScenario(t *testing.T) {
	// Three players, five cards. A bets 2, B bets 1; C may not bet 2
	// because 2+1+2 would equal the cards in play.
	g := startTestGame(t, "a", "b", "c")

	mustBet(t, g, "a", 2)
	mustBet(t, g, "b", 1)

	forbidden, ok := g.ForbiddenBet()
	require.True(t, ok)
	assert.Equal(t, 2, forbidden)

	rejected, reason := g.MakeBet("c", 2)
	assert.False(t, rejected)
	assert.NotEmpty(t, reason)

	mustBet(t, g, "c", 0)
	assert.Equal(t, PhasePlaying, g.Phase())
}

func TestBetValidation(t *testing.T) {
	g := startTestGame(t, "a", "b")

	ok, _ := g.MakeBet("b", 1)
	assert.False(t, ok, "betting out of order")

	ok, _ = g.MakeBet("a", 6)
	assert.False(t, ok, "bet above cards this turn")

	ok, _ = g.MakeBet("a", -1)
	assert.False(t, ok)

	ok, _ = g.MakeBet("nobody", 1)
	assert.False(t, ok)

	mustBet(t, g, "a", 3)
	ok, _ = g.MakeBet("a", 2)
	assert.False(t, ok, "double bet")
}

func TestFullTurnTricksSumToCards(t *testing.T) {
	g := startTestGame(t, "a", "b", "c")
	mustBet(t, g, "a", 2)
	mustBet(t, g, "b", 1)
	mustBet(t, g, "c", 0)
	require.Equal(t, PhasePlaying, g.Phase())

	// Rig the hands so A wins every trick.
	g.players["a"].Hand = []Card{
		{Suit: Ori, Value: 10}, {Suit: Ori, Value: 9}, {Suit: Ori, Value: 8},
		{Suit: Ori, Value: 7}, {Suit: Ori, Value: 6},
	}
	g.players["b"].Hand = []Card{
		{Suit: Coppe, Value: 10}, {Suit: Coppe, Value: 9}, {Suit: Coppe, Value: 8},
		{Suit: Coppe, Value: 7}, {Suit: Coppe, Value: 6},
	}
	g.players["c"].Hand = []Card{
		{Suit: Bastoni, Value: 2}, {Suit: Bastoni, Value: 3}, {Suit: Bastoni, Value: 4},
		{Suit: Bastoni, Value: 5}, {Suit: Bastoni, Value: 6},
	}

	for trick := 0; trick < 5; trick++ {
		for _, id := range []string{"a", "b", "c"} {
			p := g.players[id]
			mustPlay(t, g, id, p.Hand[0])
		}
		require.Equal(t, PhaseTrickComplete, g.Phase())

		// The recorded winner's card beats every other card on the table.
		var winning TableCard
		for _, tc := range g.cardsOnTable {
			if tc.PlayerID == g.trickWinnerID {
				winning = tc
			}
		}
		for _, tc := range g.cardsOnTable {
			if tc.PlayerID != winning.PlayerID {
				assert.Greater(t, winning.Card.Strength(), tc.Card.Strength())
			}
		}
		assert.Equal(t, "a", g.trickWinnerID)

		ok, reason := g.AdvanceFromTrickComplete()
		require.True(t, ok, reason)
	}

	require.Equal(t, PhaseTurnResults, g.Phase())
	total := 0
	for _, r := range g.turnResults {
		total += r.TricksWon
	}
	assert.Equal(t, 5, total)

	// A bet 2 and won 5; B bet 1 and won 0; C bet 0 and won 0.
	byID := map[string]TurnResult{}
	for _, r := range g.turnResults {
		byID[r.PlayerID] = r
	}
	assert.False(t, byID["a"].Correct)
	assert.Equal(t, 4, byID["a"].Lives)
	assert.False(t, byID["b"].Correct)
	assert.True(t, byID["c"].Correct)
	assert.Equal(t, 5, byID["c"].Lives)
}

func TestAdvanceFromTrickCompleteIsGuarded(t *testing.T) {
	g := startTestGame(t, "a", "b")
	mustBet(t, g, "a", 0)
	mustBet(t, g, "b", 0)

	g.players["a"].Hand = []Card{
		{Suit: Ori, Value: 10}, {Suit: Ori, Value: 9}, {Suit: Ori, Value: 8},
		{Suit: Ori, Value: 7}, {Suit: Ori, Value: 6},
	}
	g.players["b"].Hand = []Card{
		{Suit: Bastoni, Value: 2}, {Suit: Bastoni, Value: 3}, {Suit: Bastoni, Value: 4},
		{Suit: Bastoni, Value: 5}, {Suit: Bastoni, Value: 6},
	}

	mustPlay(t, g, "a", g.players["a"].Hand[0])
	mustPlay(t, g, "b", g.players["b"].Hand[0])
	require.Equal(t, PhaseTrickComplete, g.Phase())

	ok, _ := g.AdvanceFromTrickComplete()
	require.True(t, ok)
	trick := g.CurrentTrick()

	ok, _ = g.AdvanceFromTrickComplete()
	assert.False(t, ok, "second advance must be rejected")
	assert.Equal(t, trick, g.CurrentTrick())
}

func TestJollyStrongestWinsTrick(t *testing.T) {
	g := startTestGame(t, "a", "b")
	mustBet(t, g, "a", 1)
	mustBet(t, g, "b", 3)

	g.players["a"].Hand = []Card{
		{Suit: Ori, Value: 1}, {Suit: Bastoni, Value: 2}, {Suit: Bastoni, Value: 3},
		{Suit: Bastoni, Value: 4}, {Suit: Bastoni, Value: 5},
	}
	g.players["b"].Hand = []Card{
		{Suit: Ori, Value: 10}, {Suit: Coppe, Value: 2}, {Suit: Coppe, Value: 3},
		{Suit: Coppe, Value: 4}, {Suit: Coppe, Value: 5},
	}

	// Playing the jolly without a choice parks the trick.
	ok, _ := g.PlayCard("a", Ori, 1, JollyUnset)
	require.True(t, ok)
	require.Equal(t, PhaseWaitingJolly, g.Phase())
	assert.Len(t, g.players["a"].Hand, 5, "jolly not consumed before the choice")

	// Only the pending player may choose.
	ok, _ = g.ChooseJolly("b", JollyStrongest)
	assert.False(t, ok)

	ok, reason := g.ChooseJolly("a", JollyStrongest)
	require.True(t, ok, reason)
	require.Equal(t, PhasePlaying, g.Phase())

	// The strongest jolly beats even Re di Ori.
	mustPlay(t, g, "b", Card{Suit: Ori, Value: 10})
	require.Equal(t, PhaseTrickComplete, g.Phase())
	assert.Equal(t, "a", g.trickWinnerID)
}

func TestSpecialTurnAllowsForbiddenSumAndRepeats(t *testing.T) {
	g := startTestGame(t, "a", "b")
	g.currentTurn = len(CardsPerTurn) - 1
	g.startTurn()
	require.True(t, g.IsSpecialTurn())
	require.Equal(t, PhaseBetting, g.Phase())

	g.players["a"].Hand = []Card{{Suit: Ori, Value: 10}}
	g.players["b"].Hand = []Card{{Suit: Bastoni, Value: 2}}

	mustBet(t, g, "a", 1)

	// Sum would equal the cards in play, allowed only in this round.
	_, ok := g.ForbiddenBet()
	assert.False(t, ok)
	mustBet(t, g, "b", 0)

	mustPlay(t, g, "a", Card{Suit: Ori, Value: 10})
	mustPlay(t, g, "b", Card{Suit: Bastoni, Value: 2})
	okAdv, _ := g.AdvanceFromTrickComplete()
	require.True(t, okAdv)
	require.Equal(t, PhaseTurnResults, g.Phase())
	assert.True(t, g.repeatSpecialRound, "everyone bet right, the round must repeat")

	ok2, reason := g.ReadyForNextTurn("a", true)
	require.True(t, ok2, reason)
	assert.Equal(t, PhaseBetting, g.Phase())
	assert.Equal(t, len(CardsPerTurn)-1, g.CurrentTurn(), "still the special turn")
}

func TestReadyForNextTurnAdminOnly(t *testing.T) {
	g := startTestGame(t, "a", "b")
	g.phase = PhaseTurnResults

	ok, _ := g.ReadyForNextTurn("b", false)
	assert.False(t, ok)

	ok, _ = g.ReadyForNextTurn("a", true)
	require.True(t, ok)
	assert.Equal(t, 1, g.CurrentTurn())
	assert.Equal(t, 4, g.CardsThisTurn())
}

func TestTiedStandingsShareFirstPlace(t *testing.T) {
	g := startTestGame(t, "a", "b")
	g.players["a"].Lives = 1
	g.players["b"].Lives = 1

	mustBet(t, g, "a", 0)
	mustBet(t, g, "b", 4)

	g.players["a"].Hand = []Card{
		{Suit: Ori, Value: 10}, {Suit: Ori, Value: 9}, {Suit: Ori, Value: 8},
		{Suit: Ori, Value: 7}, {Suit: Ori, Value: 6},
	}
	g.players["b"].Hand = []Card{
		{Suit: Bastoni, Value: 2}, {Suit: Bastoni, Value: 3}, {Suit: Bastoni, Value: 4},
		{Suit: Bastoni, Value: 5}, {Suit: Bastoni, Value: 6},
	}

	for trick := 0; trick < 5; trick++ {
		mustPlay(t, g, "a", g.players["a"].Hand[0])
		mustPlay(t, g, "b", g.players["b"].Hand[0])
		ok, _ := g.AdvanceFromTrickComplete()
		require.True(t, ok)
	}

	// Both missed their bet on the same pass and hit zero together.
	require.Equal(t, PhaseGameOver, g.Phase())
	standings := g.Standings()
	require.Len(t, standings, 2)
	assert.Equal(t, 1, standings[0].Position)
	assert.Equal(t, 1, standings[1].Position)
	assert.Equal(t, 0, standings[0].Lives)
	assert.True(t, g.players["a"].IsEliminated())
	assert.True(t, g.players["b"].IsEliminated())
}

func TestJoinNextTurnPromotionAtMinimumLives(t *testing.T) {
	g := startTestGame(t, "a", "b", "c")
	g.players["a"].Lives = 3
	g.players["b"].Lives = 4

	late := NewPlayer("d", "d")
	late.IsSpectator = true
	late.JoinNextTurn = true
	ok, _ := g.AddPlayer(late)
	require.True(t, ok)
	assert.Len(t, g.ActivePlayers(), 3, "queued joiner is not active yet")

	g.currentTurn++
	g.startTurn()

	assert.False(t, late.IsSpectator)
	assert.False(t, late.JoinNextTurn)
	assert.Equal(t, 3, late.Lives, "late joiner starts at the minimum lives")
	assert.Len(t, g.ActivePlayers(), 4)
}

func TestBotPurgeEndsShortHandedGame(t *testing.T) {
	g := startTestGame(t, "a", "b", "c")
	_, _ = g.ConvertToBot("b")
	_, _ = g.ConvertToBot("c")

	g.currentTurn++
	g.startTurn()

	assert.Equal(t, PhaseGameOver, g.Phase())
	assert.Equal(t, 1, g.PlayerCount(), "bots are gone")
}

func TestResetGameReturnsToLobby(t *testing.T) {
	g := startTestGame(t, "a", "b")
	ok, _ := g.ResetGame()
	assert.False(t, ok, "reset only from game over")

	g.players["a"].Lives = 0
	g.players["b"].Lives = 2
	g.endGame()
	require.Equal(t, PhaseGameOver, g.Phase())

	ok, reason := g.ResetGame()
	require.True(t, ok, reason)
	assert.Equal(t, PhaseWaiting, g.Phase())
	assert.Equal(t, InitialLives, g.players["a"].Lives)
	assert.Equal(t, InitialLives, g.players["b"].Lives)
	assert.Empty(t, g.Standings())
	assert.True(t, g.CanStart())
}

func TestSnapshotHandVisibility(t *testing.T) {
	g := startTestGame(t, "a", "b")
	mustBet(t, g, "a", 0)
	mustBet(t, g, "b", 0)

	snap := g.SnapshotFor("a", g.now())
	for _, pv := range snap.Players {
		if pv.PlayerID == "a" {
			assert.Len(t, pv.Hand, 5, "own hand visible")
		} else {
			assert.Empty(t, pv.Hand, "other hands hidden outside the special turn")
			assert.Equal(t, 5, pv.CardsInHand)
		}
	}
	assert.Equal(t, "playing", snap.Phase)
	assert.Equal(t, "a", snap.CurrentPlayerID)
	require.NotNil(t, snap.Timer)
	assert.Equal(t, TimerPlay, snap.Timer.Kind)
}

func TestSnapshotSpecialTurnShowsOtherHands(t *testing.T) {
	g := startTestGame(t, "a", "b")
	g.currentTurn = len(CardsPerTurn) - 1
	g.startTurn()

	snap := g.SnapshotFor("a", g.now())
	require.True(t, snap.IsSpecialTurn)
	for _, pv := range snap.Players {
		assert.Len(t, pv.Hand, 1, "every hand visible during the special turn")
	}
}
