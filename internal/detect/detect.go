// Package detect decides what is worth telling subscribers about when a game
// changes between two observations.
package detect

import (
	"fmt"
	"html"
	"ironfly/internal/gamestate"
	"sort"
	"strings"
)

type Kind int

const (
	KindNewTurn Kind = iota
	KindTurnsPlayed
)

func (k Kind) String() string {
	switch k {
	case KindNewTurn:
		return "new turn"
	case KindTurnsPlayed:
		return "turns played"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Message is one notification about one game.
type Message struct {
	Kind     Kind
	GameName string
	Turn     int
	URL      string
	// Nations that finished their turn, sorted by name. Only set for
	// KindTurnsPlayed.
	Nations []string
}

// Text renders the message as Telegram HTML.
func (m Message) Text() string {
	switch m.Kind {
	case KindNewTurn:
		return fmt.Sprintf(
			"⚔️ <b>NEW TURN!</b> ⚔️\n\nGame: <b>%s</b>\nTurn: %d\n%s",
			html.EscapeString(m.GameName),
			m.Turn,
			statusLink(m.URL),
		)
	case KindTurnsPlayed:
		lines := make([]string, 0, len(m.Nations)+1)
		lines = append(lines, fmt.Sprintf("📝 <b>Status Update</b> (%s)", html.EscapeString(m.GameName)))
		for _, nation := range m.Nations {
			lines = append(lines, fmt.Sprintf("✅ <b>%s</b> finished their turn.", html.EscapeString(nation)))
		}
		return strings.Join(lines, "\n")
	}
	return ""
}

// Detect compares two observations of the same game. A nil previous
// observation is a baseline and never produces messages.
//
// A higher turn yields a single new turn message without looking at nations.
// Otherwise (same or lower turn) every nation whose status changed to
// "Turn played" is bundled into one message.
func Detect(previous *gamestate.Snapshot, current gamestate.Snapshot) []Message {
	if previous == nil {
		return nil
	}

	if current.Turn > previous.Turn {
		return []Message{{
			Kind:     KindNewTurn,
			GameName: current.GameName,
			Turn:     current.Turn,
			URL:      current.URL,
		}}
	}

	var played []string
	for nation, status := range current.Nations {
		if status != gamestate.StatusTurnPlayed {
			continue
		}
		prior, ok := previous.Nations[nation]
		if ok && prior == status {
			continue
		}
		played = append(played, nation)
	}
	if len(played) == 0 {
		return nil
	}
	sort.Strings(played)

	return []Message{{
		Kind:     KindTurnsPlayed,
		GameName: current.GameName,
		Turn:     current.Turn,
		URL:      current.URL,
		Nations:  played,
	}}
}
