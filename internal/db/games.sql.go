package db

import (
	"context"
)

type Game struct {
	Key         string
	GameName    string
	Turn        int64
	Url         string
	Nations     string
	Subscribers string
	UpdatedAt   int64
}

const getGame = `-- name: GetGame :one
select key, game_name, turn, url, nations, subscribers, updated_at from games
where key = ?
`

func (q *Queries) GetGame(ctx context.Context, key string) (Game, error) {
	row := q.db.QueryRowContext(ctx, getGame, key)
	var i Game
	err := row.Scan(
		&i.Key,
		&i.GameName,
		&i.Turn,
		&i.Url,
		&i.Nations,
		&i.Subscribers,
		&i.UpdatedAt,
	)
	return i, err
}

const listGames = `-- name: ListGames :many
select key, game_name, turn, url, nations, subscribers, updated_at from games
order by key
`

func (q *Queries) ListGames(ctx context.Context) ([]Game, error) {
	rows, err := q.db.QueryContext(ctx, listGames)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Game
	for rows.Next() {
		var i Game
		if err := rows.Scan(
			&i.Key,
			&i.GameName,
			&i.Turn,
			&i.Url,
			&i.Nations,
			&i.Subscribers,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertGame = `-- name: UpsertGame :exec
insert into games (key, game_name, turn, url, nations, subscribers, updated_at)
values (?, ?, ?, ?, ?, ?, ?)
on conflict (key) do update set
    game_name = excluded.game_name,
    turn = excluded.turn,
    url = excluded.url,
    nations = excluded.nations,
    subscribers = excluded.subscribers,
    updated_at = excluded.updated_at
`

type UpsertGameParams struct {
	Key         string
	GameName    string
	Turn        int64
	Url         string
	Nations     string
	Subscribers string
	UpdatedAt   int64
}

func (q *Queries) UpsertGame(ctx context.Context, arg UpsertGameParams) error {
	_, err := q.db.ExecContext(ctx, upsertGame,
		arg.Key,
		arg.GameName,
		arg.Turn,
		arg.Url,
		arg.Nations,
		arg.Subscribers,
		arg.UpdatedAt,
	)
	return err
}
