package game

import (
	"fmt"
	"math/rand"
)

// Deck holds the 40-card Neapolitan deck for one turn. A fresh deck is dealt
// at every turn start; no card memory carries across turns.
type Deck struct {
	cards []Card
}

func NewDeck() *Deck {
	d := &Deck{}
	d.Reset()
	return d
}

// Reset rebuilds the full 40-card deck and shuffles it.
func (d *Deck) Reset() {
	d.cards = d.cards[:0]
	for s := Bastoni; s <= Ori; s++ {
		for v := 1; v <= 10; v++ {
			d.cards = append(d.cards, Card{Suit: s, Value: v})
		}
	}
	d.Shuffle()
}

func (d *Deck) Shuffle() {
	rand.Shuffle(len(d.cards), func(i, j int) {
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	})
}

// Draw removes and returns count cards. Asking for more cards than remain is
// a turn-sizing bug in the caller, not a recoverable condition.
func (d *Deck) Draw(count int) ([]Card, error) {
	if count > len(d.cards) {
		return nil, fmt.Errorf("deck underflow: requested %d, %d remaining", count, len(d.cards))
	}
	drawn := make([]Card, count)
	copy(drawn, d.cards[:count])
	d.cards = d.cards[count:]
	return drawn, nil
}

func (d *Deck) Len() int {
	return len(d.cards)
}
