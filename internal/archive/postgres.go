package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// PostgresWriter upserts finished games into the arena_games table.
type PostgresWriter struct {
	db *sql.DB
}

func NewPostgresWriter(databaseURL string) (*PostgresWriter, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &PostgresWriter{db: db}, nil
}

func (w *PostgresWriter) Save(ctx context.Context, rec Record) error {
	if w == nil || w.db == nil {
		return nil
	}
	movesUCIRaw, _ := json.Marshal(rec.MovesUCI)
	movesSANRaw, _ := json.Marshal(rec.MovesSAN)

	q := `INSERT INTO arena_games (
        session_id, mode, status, outcome,
        seat_a, seat_b, time_control, strength,
        moves_uci, moves_san, pgn,
        started_at, ended_at, duration_ms
      ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
      ) ON CONFLICT (session_id) DO UPDATE SET
        mode=EXCLUDED.mode,
        status=EXCLUDED.status,
        outcome=EXCLUDED.outcome,
        seat_a=EXCLUDED.seat_a,
        seat_b=EXCLUDED.seat_b,
        time_control=EXCLUDED.time_control,
        strength=EXCLUDED.strength,
        moves_uci=EXCLUDED.moves_uci,
        moves_san=EXCLUDED.moves_san,
        pgn=EXCLUDED.pgn,
        started_at=EXCLUDED.started_at,
        ended_at=EXCLUDED.ended_at,
        duration_ms=EXCLUDED.duration_ms`

	_, err := w.db.ExecContext(ctx, q,
		rec.SessionID, rec.Mode, rec.Status, rec.Outcome,
		rec.SeatA, rec.SeatB, rec.TimeControl, rec.Strength,
		string(movesUCIRaw), string(movesSANRaw), rec.PGN,
		rec.StartedAt, rec.EndedAt, rec.DurationMs,
	)
	return err
}

func (w *PostgresWriter) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}
