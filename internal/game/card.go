package game

import "fmt"

// Suit identifies one of the four Neapolitan suits, ordered by strength
// (Bastoni < Spade < Coppe < Ori).
type Suit int

const (
	Bastoni Suit = iota
	Spade
	Coppe
	Ori
)

var suitNames = [...]string{"Bastoni", "Spade", "Coppe", "Ori"}

func (s Suit) String() string {
	if s < Bastoni || s > Ori {
		return "unknown"
	}
	return suitNames[s]
}

// ParseSuit maps a wire-format suit name to its Suit.
func ParseSuit(name string) (Suit, bool) {
	for i, n := range suitNames {
		if n == name {
			return Suit(i), true
		}
	}
	return 0, false
}

// JollyChoice is the declared strength of the jolly: strongest beats every
// card in the trick, weakest loses to every card.
type JollyChoice string

const (
	JollyUnset     JollyChoice = ""
	JollyStrongest JollyChoice = "strongest"
	JollyWeakest   JollyChoice = "weakest"
)

func (c JollyChoice) Valid() bool {
	return c == JollyStrongest || c == JollyWeakest
}

var valueNames = map[int]string{1: "Asso", 8: "Fante", 9: "Cavallo", 10: "Re"}

const (
	jollyStrongestStrength = 50
	jollyWeakestStrength   = -1
)

// Card is a value object; equality is by suit and value. The jolly (Asso di
// Ori) additionally carries its declared choice, set once when played.
type Card struct {
	Suit   Suit
	Value  int
	Choice JollyChoice
}

func (c Card) IsJolly() bool {
	return c.Suit == Ori && c.Value == 1
}

func (c Card) Is(suit Suit, value int) bool {
	return c.Suit == suit && c.Value == value
}

// Strength orders cards within a trick. Normal cards score suit*10+value; a
// declared jolly scores above or below every normal card.
func (c Card) Strength() int {
	if c.IsJolly() && c.Choice != JollyUnset {
		if c.Choice == JollyStrongest {
			return jollyStrongestStrength
		}
		return jollyWeakestStrength
	}
	return int(c.Suit)*10 + c.Value
}

func (c Card) DisplayName() string {
	name, ok := valueNames[c.Value]
	if !ok {
		name = fmt.Sprintf("%d", c.Value)
	}
	return fmt.Sprintf("%s di %s", name, c.Suit)
}

// SetChoice declares the jolly's strength. The declaration is final.
func (c *Card) SetChoice(choice JollyChoice) error {
	if !c.IsJolly() {
		return fmt.Errorf("cannot set jolly choice on %s", c.DisplayName())
	}
	if !choice.Valid() {
		return fmt.Errorf("invalid jolly choice %q", choice)
	}
	if c.Choice != JollyUnset && c.Choice != choice {
		return fmt.Errorf("jolly choice already declared as %q", c.Choice)
	}
	c.Choice = choice
	return nil
}
