package game

import "time"

type EventType string

const (
	EventSystem EventType = "system"
	EventBet    EventType = "bet"
	EventPlay   EventType = "play"
	EventTrick  EventType = "trick"
	EventResult EventType = "result"
)

// Event is one entry in the room's rolling game log.
type Event struct {
	Type    EventType `json:"type"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

const maxEvents = 100

func (g *Game) addEvent(t EventType, msg string) {
	g.events = append(g.events, Event{Type: t, Message: msg, At: g.now()})
	if len(g.events) > maxEvents {
		g.events = g.events[len(g.events)-maxEvents:]
	}
}

// RecentEvents returns up to n trailing log entries, oldest first.
func (g *Game) RecentEvents(n int) []Event {
	if n > len(g.events) {
		n = len(g.events)
	}
	out := make([]Event, n)
	copy(out, g.events[len(g.events)-n:])
	return out
}
