// Package store persists the latest Snapshot of every tracked game.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"ironfly/internal/gamestate"
	"strconv"
)

const (
	report_store_get      = "store.get"
	report_store_put      = "store.put"
	report_store_list_all = "store.list-all"
)

// ErrCorruptRecord marks a persisted record that cannot be turned back into a
// Snapshot, stores report it and then treat the record as absent.
var ErrCorruptRecord = errors.New("corrupt record")

// Store is a durable mapping from game name to its latest Snapshot.
type Store interface {
	// Get returns the snapshot of the game, ok is false if there is none or it
	// could not be read back.
	Get(ctx context.Context, gameName string) (snapshot gamestate.Snapshot, ok bool, err error)
	// Put persists the snapshot keyed by its game name, replacing the previous one.
	Put(ctx context.Context, snapshot gamestate.Snapshot) error
	// ListAll returns every readable snapshot ordered by key.
	ListAll(ctx context.Context) ([]gamestate.Snapshot, error)
}

// record is the persisted shape of a snapshot. Subscribers are decoded
// loosely since older records store chat ids as json numbers.
type record struct {
	GameName    string            `json:"game_name"`
	Turn        int               `json:"turn"`
	Nations     map[string]string `json:"nations"`
	URL         string            `json:"url"`
	Subscribers []any             `json:"subscribers"`
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorruptRecord, fmt.Sprintf(format, args...))
}

func decodeSubscribers(values []any) ([]string, error) {
	out := make([]string, 0, len(values))
	for _, v := range values {
		switch id := v.(type) {
		case string:
			out = append(out, id)
		case json.Number:
			out = append(out, id.String())
		case float64:
			out = append(out, strconv.FormatFloat(id, 'f', -1, 64))
		default:
			return nil, corrupt("subscriber id of type %T", v)
		}
	}
	return out, nil
}

func (r record) snapshot() (gamestate.Snapshot, error) {
	subscribers, err := decodeSubscribers(r.Subscribers)
	if err != nil {
		return gamestate.Snapshot{}, err
	}
	s := gamestate.Snapshot{
		GameName:    r.GameName,
		Turn:        r.Turn,
		Nations:     r.Nations,
		URL:         r.URL,
		Subscribers: subscribers,
	}
	if err := s.Validate(); err != nil {
		return gamestate.Snapshot{}, corrupt("%s", err.Error())
	}
	return s.Normalize(), nil
}

func decodeJSON(raw []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(out)
}

// decodeRecord decodes a whole json record as written by encodeRecord.
func decodeRecord(raw []byte) (gamestate.Snapshot, error) {
	var r record
	if err := decodeJSON(raw, &r); err != nil {
		return gamestate.Snapshot{}, corrupt("%s", err.Error())
	}
	return r.snapshot()
}

func encodeRecord(s gamestate.Snapshot) ([]byte, error) {
	return json.MarshalIndent(s.Normalize(), "", "    ")
}
