// Package subscription manages who gets notified about which game.
package subscription

import (
	"context"
	"fmt"
	"ironfly/internal/components/assert"
	"ironfly/internal/components/telemetry"
	"ironfly/internal/detect"
	"ironfly/internal/gamestate"
	"ironfly/internal/store"
	"strings"
)

const (
	report_registry_add    = "registry.add"
	report_registry_remove = "registry.remove"
	report_registry_track  = "registry.track"
)

type AddResult int

const (
	Subscribed AddResult = iota
	AddUnknownGame
)

func (r AddResult) String() string {
	switch r {
	case Subscribed:
		return "subscribed"
	case AddUnknownGame:
		return "unknown game"
	}
	return fmt.Sprintf("AddResult(%d)", int(r))
}

type RemoveResult int

const (
	Removed RemoveResult = iota
	NotSubscribed
	RemoveUnknownGame
)

func (r RemoveResult) String() string {
	switch r {
	case Removed:
		return "removed"
	case NotSubscribed:
		return "not subscribed"
	case RemoveUnknownGame:
		return "unknown game"
	}
	return fmt.Sprintf("RemoveResult(%d)", int(r))
}

// Registry edits the subscriber set of stored snapshots. Every edit loads the
// whole snapshot, changes only its subscribers and writes the whole snapshot
// back while holding the game's lock.
type Registry struct {
	store store.Store
	locks *store.Locker
	tel   telemetry.API
}

func NewRegistry(s store.Store, locks *store.Locker, tel telemetry.API) Registry {
	assert.NotNil(s)
	assert.NotNil(locks)
	assert.NotNil(tel)

	return Registry{
		store: s,
		locks: locks,
		tel:   telemetry.NewScopedAPI("subscription", tel),
	}
}

// AddSubscriber adds id to the game's subscribers, adding an id that is
// already subscribed is a successful no-op. A game that was never fetched
// successfully cannot be subscribed to.
func (r Registry) AddSubscriber(ctx context.Context, gameName, id string) (AddResult, error) {
	unlock := r.locks.Lock(gameName)
	defer unlock()

	snapshot, ok, err := r.store.Get(ctx, gameName)
	if err != nil {
		r.tel.ReportBroken(report_registry_add, err, gameName)
		return AddUnknownGame, err
	}
	if !ok {
		return AddUnknownGame, nil
	}

	updated, added := snapshot.WithSubscriber(id)
	if !added {
		return Subscribed, nil
	}
	err = r.store.Put(ctx, updated)
	if err != nil {
		r.tel.ReportBroken(report_registry_add, err, gameName)
		return Subscribed, err
	}
	r.tel.ReportDebug("subscriber added", gameName, id)
	return Subscribed, nil
}

// RemoveSubscriber removes id from the game's subscribers.
func (r Registry) RemoveSubscriber(ctx context.Context, gameName, id string) (RemoveResult, error) {
	unlock := r.locks.Lock(gameName)
	defer unlock()

	snapshot, ok, err := r.store.Get(ctx, gameName)
	if err != nil {
		r.tel.ReportBroken(report_registry_remove, err, gameName)
		return RemoveUnknownGame, err
	}
	if !ok {
		return RemoveUnknownGame, nil
	}

	updated, removed := snapshot.WithoutSubscriber(id)
	if !removed {
		return NotSubscribed, nil
	}
	err = r.store.Put(ctx, updated)
	if err != nil {
		r.tel.ReportBroken(report_registry_remove, err, gameName)
		return Removed, err
	}
	r.tel.ReportDebug("subscriber removed", gameName, id)
	return Removed, nil
}

// Tracked is the outcome of Track.
type Tracked struct {
	Snapshot gamestate.Snapshot
	// Pending holds the changes between the replaced record and the fetched
	// page, Notify the subscribers that had not been told about them yet.
	Pending []detect.Message
	Notify  []string
}

// Track stores a freshly fetched snapshot as the game's state and subscribes
// id to it. Subscribers of an existing record are kept, and the stored game
// name wins over the fetched one so the record key never moves. Changes the
// replaced record had not been checked for are returned so the caller can
// deliver them.
func (r Registry) Track(ctx context.Context, current gamestate.Snapshot, id string) (Tracked, error) {
	unlock := r.locks.Lock(current.GameName)
	defer unlock()

	existing, ok, err := r.store.Get(ctx, current.GameName)
	if err != nil {
		r.tel.ReportBroken(report_registry_track, err, current.GameName)
		return Tracked{}, err
	}

	next := current.Normalize()
	next.Subscribers = []string{}
	var out Tracked
	if ok {
		next.GameName = existing.GameName
		next.Subscribers = existing.Subscribers
		out.Pending = detect.Detect(&existing, next)
		if len(out.Pending) > 0 {
			others, _ := existing.WithoutSubscriber(id)
			out.Notify = others.Subscribers
		}
	}
	next, _ = next.WithSubscriber(id)

	err = r.store.Put(ctx, next)
	if err != nil {
		r.tel.ReportBroken(report_registry_track, err, current.GameName)
		return Tracked{}, err
	}
	out.Snapshot = next
	return out, nil
}

// Subscribers returns the subscriber set of a game, ok is false if the game
// is unknown.
func (r Registry) Subscribers(ctx context.Context, gameName string) (subscribers []string, ok bool, err error) {
	snapshot, ok, err := r.store.Get(ctx, gameName)
	if err != nil || !ok {
		return nil, ok, err
	}
	return snapshot.Subscribers, true, nil
}

// GamesOf lists the names of the games id is subscribed to.
func (r Registry) GamesOf(ctx context.Context, id string) ([]string, error) {
	all, err := r.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	id = strings.TrimSpace(id)
	var games []string
	for _, snapshot := range all {
		if snapshot.HasSubscriber(id) {
			games = append(games, snapshot.GameName)
		}
	}
	return games, nil
}
