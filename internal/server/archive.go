package server

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MatchRecord is the history kept for a finished game. It is never read back
// into a live room.
type MatchRecord struct {
	RoomCode   string
	Seats      []string
	Winner     string
	WinnerSeat int
	Actions    int
	Log        []string
	CreatedAt  time.Time
	FinishedAt time.Time
}

type Archive interface {
	Record(ctx context.Context, match MatchRecord) error
	Recent(ctx context.Context, limit int) ([]MatchRecord, error)
	Ping(ctx context.Context) error
	Close()
}

// NopArchive is used when no database is configured.
type NopArchive struct{}

func (NopArchive) Record(context.Context, MatchRecord) error            { return nil }
func (NopArchive) Recent(context.Context, int) ([]MatchRecord, error) { return nil, nil }
func (NopArchive) Ping(context.Context) error                          { return nil }
func (NopArchive) Close()                                               {}

type PostgresArchive struct {
	pool *pgxpool.Pool
}

const createMatchesTable = `
CREATE TABLE IF NOT EXISTS bluff_matches (
	id          BIGSERIAL PRIMARY KEY,
	room_code   TEXT        NOT NULL,
	seats       TEXT[]      NOT NULL,
	winner      TEXT        NOT NULL,
	winner_seat INTEGER     NOT NULL,
	actions     INTEGER     NOT NULL,
	log         TEXT[]      NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
)`

const insertMatch = `
INSERT INTO bluff_matches (room_code, seats, winner, winner_seat, actions, log, created_at, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

const selectRecentMatches = `
SELECT room_code, seats, winner, winner_seat, actions, log, created_at, finished_at
FROM bluff_matches
ORDER BY finished_at DESC, id DESC
LIMIT $1`

// NewPostgresArchive connects to dsn and makes sure bluff_matches exists.
func NewPostgresArchive(ctx context.Context, dsn string) (*PostgresArchive, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach archive database: %w", err)
	}

	if _, err := pool.Exec(ctx, createMatchesTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create bluff_matches: %w", err)
	}

	return &PostgresArchive{pool: pool}, nil
}

func (a *PostgresArchive) Record(ctx context.Context, match MatchRecord) error {
	_, err := a.pool.Exec(ctx, insertMatch,
		match.RoomCode,
		orEmpty(match.Seats),
		match.Winner,
		match.WinnerSeat,
		match.Actions,
		orEmpty(match.Log),
		match.CreatedAt,
		match.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record match %s: %w", match.RoomCode, err)
	}
	return nil
}

// orEmpty keeps nil slices out of the NOT NULL array columns.
func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Recent returns the newest finished matches first.
func (a *PostgresArchive) Recent(ctx context.Context, limit int) ([]MatchRecord, error) {
	rows, err := a.pool.Query(ctx, selectRecentMatches, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}

	matches, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (MatchRecord, error) {
		var m MatchRecord
		err := row.Scan(&m.RoomCode, &m.Seats, &m.Winner, &m.WinnerSeat, &m.Actions, &m.Log, &m.CreatedAt, &m.FinishedAt)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read matches: %w", err)
	}
	return matches, nil
}

func (a *PostgresArchive) Ping(ctx context.Context) error {
	return a.pool.Ping(ctx)
}

func (a *PostgresArchive) Close() {
	a.pool.Close()
}

// newMatchRecord snapshots a finished room. Needs the room lock.
func newMatchRecord(room *Room) MatchRecord {
	g := room.Game

	seats := make([]string, len(g.Seats))
	for i, s := range g.Seats {
		seats[i] = s.Name
	}

	record := MatchRecord{
		RoomCode:   room.Code,
		Seats:      seats,
		WinnerSeat: -1,
		Actions:    g.Actions,
		Log:        append([]string(nil), g.Log...),
		CreatedAt:  room.CreatedAt,
		FinishedAt: room.FinishedAt,
	}
	if g.Winner != nil {
		record.WinnerSeat = *g.Winner
		record.Winner = seats[*g.Winner]
	}
	return record
}
