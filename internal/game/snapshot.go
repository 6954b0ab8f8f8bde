package game

import "time"

// CardView is the wire shape of a card. An undeclared jolly hides its
// strength; everything else carries it so clients can sort hands.
type CardView struct {
	Suit        string      `json:"suit"`
	Value       int         `json:"value"`
	DisplayName string      `json:"display_name"`
	IsJolly     bool        `json:"is_jolly"`
	JollyChoice JollyChoice `json:"jolly_choice,omitempty"`
	Strength    *int        `json:"strength,omitempty"`
}

func viewCard(c Card) CardView {
	v := CardView{
		Suit:        c.Suit.String(),
		Value:       c.Value,
		DisplayName: c.DisplayName(),
		IsJolly:     c.IsJolly(),
		JollyChoice: c.Choice,
	}
	if !c.IsJolly() || c.Choice != JollyUnset {
		s := c.Strength()
		v.Strength = &s
	}
	return v
}

type PlayerView struct {
	PlayerID     string     `json:"player_id"`
	Name         string     `json:"name"`
	Lives        int        `json:"lives"`
	Bet          *int       `json:"bet"`
	TricksWon    int        `json:"tricks_won"`
	IsOnline     bool       `json:"is_online"`
	IsAway       bool       `json:"is_away"`
	IsSpectator  bool       `json:"is_spectator"`
	JoinNextTurn bool       `json:"join_next_turn"`
	IsBot        bool       `json:"is_bot"`
	CardsInHand  int        `json:"cards_in_hand"`
	Hand         []CardView `json:"hand,omitempty"`
}

type TableCardView struct {
	PlayerID string   `json:"player_id"`
	Card     CardView `json:"card"`
}

type TimerView struct {
	PlayerID  string    `json:"player_id"`
	Kind      TimerKind `json:"kind"`
	Remaining int       `json:"remaining"`
}

type TrickWinnerView struct {
	PlayerID string    `json:"player_id"`
	Name     string    `json:"player_name"`
	Card     *CardView `json:"card,omitempty"`
}

// Snapshot is the full game state from one player's perspective, pushed to
// every room member after each mutation. AdminID is filled by the room layer.
type Snapshot struct {
	RoomID             string           `json:"room_id"`
	Phase              string           `json:"phase"`
	CurrentTurn        int              `json:"current_turn"`
	CurrentTrick       int              `json:"current_trick"`
	CardsThisTurn      int              `json:"cards_this_turn"`
	IsSpecialTurn      bool             `json:"is_special_turn"`
	Players            []PlayerView     `json:"players"`
	PlayerOrder        []string         `json:"player_order"`
	AdminID            string           `json:"admin_id,omitempty"`
	CurrentBetterID    string           `json:"current_better_id,omitempty"`
	CurrentPlayerID    string           `json:"current_player_id,omitempty"`
	ForbiddenBet       *int             `json:"forbidden_bet,omitempty"`
	CardsOnTable       []TableCardView  `json:"cards_on_table"`
	PendingJollyPlayer string           `json:"pending_jolly_player,omitempty"`
	TrickWinner        *TrickWinnerView `json:"trick_winner,omitempty"`
	TurnResults        []TurnResult     `json:"turn_results,omitempty"`
	Standings          []Standing       `json:"standings,omitempty"`
	IsSpectator        bool             `json:"is_spectator"`
	Events             []Event          `json:"events"`
	Timer              *TimerView       `json:"timer,omitempty"`
}

const snapshotEvents = 20

// SnapshotFor renders the state from one player's perspective. Players always
// see their own hand; during the special 1-card turn they also see everyone
// else's, which is the point of that round.
func (g *Game) SnapshotFor(playerID string, now time.Time) Snapshot {
	viewer := g.players[playerID]
	special := g.IsSpecialTurn()
	handsOpen := special &&
		(g.phase == PhaseBetting || g.phase == PhasePlaying || g.phase == PhaseWaitingJolly)

	players := make([]PlayerView, 0, len(g.order))
	for _, id := range g.order {
		p := g.players[id]
		pv := PlayerView{
			PlayerID:     p.ID,
			Name:         p.Name,
			Lives:        p.Lives,
			Bet:          p.Bet,
			TricksWon:    p.TricksWon,
			IsOnline:     p.IsOnline,
			IsAway:       p.IsAway,
			IsSpectator:  p.IsSpectator,
			JoinNextTurn: p.JoinNextTurn,
			IsBot:        p.IsBot,
			CardsInHand:  len(p.Hand),
		}
		if id == playerID || (handsOpen && len(p.Hand) > 0) {
			for _, c := range p.Hand {
				pv.Hand = append(pv.Hand, viewCard(c))
			}
		}
		players = append(players, pv)
	}

	table := make([]TableCardView, 0, len(g.cardsOnTable))
	for _, tc := range g.cardsOnTable {
		table = append(table, TableCardView{PlayerID: tc.PlayerID, Card: viewCard(tc.Card)})
	}

	snap := Snapshot{
		RoomID:             g.roomID,
		Phase:              g.phase.String(),
		CurrentTurn:        g.currentTurn,
		CurrentTrick:       g.currentTrick,
		CardsThisTurn:      g.CardsThisTurn(),
		IsSpecialTurn:      special,
		Players:            players,
		PlayerOrder:        g.PlayerOrder(),
		CardsOnTable:       table,
		PendingJollyPlayer: g.pendingJollyPlayer,
		TurnResults:        g.turnResults,
		Standings:          g.standings,
		IsSpectator:        viewer == nil || viewer.IsSpectator,
		Events:             g.RecentEvents(snapshotEvents),
	}

	if better := g.CurrentBetter(); better != nil {
		snap.CurrentBetterID = better.ID
	}
	if current := g.CurrentPlayer(); current != nil {
		snap.CurrentPlayerID = current.ID
	}
	if forbidden, ok := g.ForbiddenBet(); ok {
		v := forbidden
		snap.ForbiddenBet = &v
	}
	if g.phase == PhaseTrickComplete && g.trickWinnerID != "" {
		if winner := g.players[g.trickWinnerID]; winner != nil {
			tw := &TrickWinnerView{PlayerID: winner.ID, Name: winner.Name}
			for _, tc := range g.cardsOnTable {
				if tc.PlayerID == winner.ID {
					cv := viewCard(tc.Card)
					tw.Card = &cv
					break
				}
			}
			snap.TrickWinner = tw
		}
	}
	if remaining, ok := g.TimerRemaining(now); ok {
		snap.Timer = &TimerView{PlayerID: g.timer.playerID, Kind: g.timer.kind, Remaining: remaining}
	}
	return snap
}
