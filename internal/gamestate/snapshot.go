// Package gamestate contains the Snapshot type, one observed state of a
// tracked game, and the helpers every other package uses to read and edit it.
package gamestate

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"unicode"
)

const (
	// StatusNotPlayed is the status of a nation that has not submitted orders yet.
	StatusNotPlayed = "-"
	// StatusTurnPlayed is the status of a nation that has submitted its orders.
	StatusTurnPlayed = "Turn played"
)

var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Snapshot is one observed state of a tracked game. The json tags are the
// persisted record layout.
type Snapshot struct {
	GameName    string            `json:"game_name"`
	Turn        int               `json:"turn"`
	Nations     map[string]string `json:"nations"`
	URL         string            `json:"url"`
	Subscribers []string          `json:"subscribers"`
}

// Key sanitizes a game name into the storage key: only letters, digits,
// spaces, hyphens and underscores are kept and surrounding whitespace is
// trimmed.
func Key(gameName string) string {
	var out strings.Builder
	for _, c := range gameName {
		if unicode.IsLetter(c) || unicode.IsNumber(c) || c == ' ' || c == '-' || c == '_' {
			out.WriteRune(c)
		}
	}
	return strings.TrimSpace(out.String())
}

// Key returns the storage key of the snapshot.
func (s Snapshot) Key() string {
	return Key(s.GameName)
}

// Validate reports whether the snapshot can be persisted.
func (s Snapshot) Validate() error {
	if strings.TrimSpace(s.GameName) == "" {
		return fmt.Errorf("%w: empty game name", ErrInvalidSnapshot)
	}
	if s.Key() == "" {
		return fmt.Errorf("%w: game name %q has no storable characters", ErrInvalidSnapshot, s.GameName)
	}
	if s.Turn < 0 {
		return fmt.Errorf("%w: negative turn %d", ErrInvalidSnapshot, s.Turn)
	}
	return nil
}

// Normalize returns a copy where Nations and Subscribers are never nil, the
// subscriber set is trimmed, deduplicated and sorted and a negative turn is
// clamped to 0.
func (s Snapshot) Normalize() Snapshot {
	s.GameName = strings.TrimSpace(s.GameName)
	if s.Turn < 0 {
		s.Turn = 0
	}
	if s.Nations == nil {
		s.Nations = map[string]string{}
	} else {
		s.Nations = maps.Clone(s.Nations)
	}
	s.Subscribers = normalizeSubscribers(s.Subscribers)
	return s
}

func normalizeSubscribers(in []string) []string {
	out := make([]string, 0, len(in))
	for _, id := range in {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		out = append(out, id)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	s.Nations = maps.Clone(s.Nations)
	s.Subscribers = slices.Clone(s.Subscribers)
	return s
}

func (s Snapshot) HasSubscriber(id string) bool {
	return slices.Contains(s.Subscribers, strings.TrimSpace(id))
}

// WithSubscriber returns a copy of the snapshot with id in the subscriber set,
// added is false if it was already there.
func (s Snapshot) WithSubscriber(id string) (out Snapshot, added bool) {
	out = s.Normalize()
	id = strings.TrimSpace(id)
	if id == "" || out.HasSubscriber(id) {
		return out, false
	}
	out.Subscribers = normalizeSubscribers(append(out.Subscribers, id))
	return out, true
}

// WithoutSubscriber returns a copy of the snapshot without id in the
// subscriber set, removed is false if it was not there.
func (s Snapshot) WithoutSubscriber(id string) (out Snapshot, removed bool) {
	out = s.Normalize()
	id = strings.TrimSpace(id)
	idx := slices.Index(out.Subscribers, id)
	if idx < 0 {
		return out, false
	}
	out.Subscribers = slices.Delete(out.Subscribers, idx, idx+1)
	return out, true
}

// Waiting lists the nations that have not played this turn yet, sorted by name.
func (s Snapshot) Waiting() []string {
	var waiting []string
	for nation, status := range s.Nations {
		if status == StatusNotPlayed {
			waiting = append(waiting, nation)
		}
	}
	slices.Sort(waiting)
	return waiting
}
