package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"ironfly/internal/components/assert"
	"ironfly/internal/components/chrono"
	"ironfly/internal/components/telemetry"
	"ironfly/internal/db"
	"ironfly/internal/gamestate"
)

const report_db_query = "db.query"

// SQLStore keeps one row per game in the `games` table.
type SQLStore struct {
	qry    *db.Queries
	makeTx db.MakeTx
	time   chrono.TimeAPI
	tel    telemetry.API
}

func NewSQLStore(database *sql.DB, time chrono.TimeAPI, tel telemetry.API) SQLStore {
	assert.NotNil(database)
	assert.NotNil(time)
	assert.NotNil(tel)

	tel = telemetry.NewScopedAPI("sql_store", tel)

	return SQLStore{
		qry:    db.New(database),
		makeTx: db.NewMakeTx(database),
		time:   time,
		tel:    tel,
	}
}

func gameSnapshot(row db.Game) (gamestate.Snapshot, error) {
	var nations map[string]string
	if err := json.Unmarshal([]byte(row.Nations), &nations); err != nil {
		return gamestate.Snapshot{}, corrupt("nations: %s", err.Error())
	}
	var subscribers []any
	if err := decodeJSON([]byte(row.Subscribers), &subscribers); err != nil {
		return gamestate.Snapshot{}, corrupt("subscribers: %s", err.Error())
	}
	return record{
		GameName:    row.GameName,
		Turn:        int(row.Turn),
		Nations:     nations,
		URL:         row.Url,
		Subscribers: subscribers,
	}.snapshot()
}

func (s SQLStore) Get(ctx context.Context, gameName string) (gamestate.Snapshot, bool, error) {
	key := gamestate.Key(gameName)
	if key == "" {
		return gamestate.Snapshot{}, false, nil
	}

	row, err := s.qry.GetGame(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return gamestate.Snapshot{}, false, nil
	}
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "GetGame", key)
		return gamestate.Snapshot{}, false, err
	}

	snapshot, err := gameSnapshot(row)
	if err != nil {
		s.tel.ReportWarning(report_store_get, err, key)
		return gamestate.Snapshot{}, false, nil
	}
	return snapshot, true, nil
}

func (s SQLStore) Put(ctx context.Context, snapshot gamestate.Snapshot) error {
	if err := snapshot.Validate(); err != nil {
		s.tel.ReportBroken(report_store_put, err, snapshot.GameName)
		return err
	}
	snapshot = snapshot.Normalize()

	nations, err := json.Marshal(snapshot.Nations)
	if err != nil {
		return fmt.Errorf("marshal nations: %w", err)
	}
	subscribers, err := json.Marshal(snapshot.Subscribers)
	if err != nil {
		return fmt.Errorf("marshal subscribers: %w", err)
	}

	tx, discard, commit, err := s.makeTx(ctx)
	if err != nil {
		s.tel.ReportBroken(report_db_query, fmt.Errorf("make tx: %w", err))
		return err
	}
	defer discard()

	param := db.UpsertGameParams{
		Key:         snapshot.Key(),
		GameName:    snapshot.GameName,
		Turn:        int64(snapshot.Turn),
		Url:         snapshot.URL,
		Nations:     string(nations),
		Subscribers: string(subscribers),
		UpdatedAt:   s.time.Now().Unix(),
	}
	err = tx.UpsertGame(ctx, param)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "UpsertGame", param.Key)
		return err
	}

	return commit()
}

func (s SQLStore) ListAll(ctx context.Context) ([]gamestate.Snapshot, error) {
	rows, err := s.qry.ListGames(ctx)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "ListGames")
		return nil, err
	}

	out := make([]gamestate.Snapshot, 0, len(rows))
	for _, row := range rows {
		snapshot, err := gameSnapshot(row)
		if err != nil {
			s.tel.ReportWarning(report_store_list_all, err, row.Key)
			continue
		}
		out = append(out, snapshot)
	}
	return out, nil
}
