// Package archive persists finished sessions. Writes are fire-and-forget so
// the store never blocks on storage.
package archive

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-arena/internal/obslog"
	"github.com/park285/chess-arena/internal/session"
)

// Record is the flattened persistent form of a finished session.
type Record struct {
	SessionID   string    `json:"session_id"`
	Mode        string    `json:"mode"`
	Status      string    `json:"status"`
	Outcome     string    `json:"outcome"`
	SeatA       string    `json:"seat_a"`
	SeatB       string    `json:"seat_b"`
	TimeControl string    `json:"time_control"`
	Strength    int       `json:"strength,omitempty"`
	MovesUCI    []string  `json:"moves_uci"`
	MovesSAN    []string  `json:"moves_san"`
	PGN         string    `json:"pgn"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
	DurationMs  int64     `json:"duration_ms"`
}

// RecordFrom builds a Record from a terminal snapshot.
func RecordFrom(snap session.Snapshot) Record {
	rec := Record{
		SessionID: snap.ID,
		Mode:      string(snap.Mode),
		Status:    string(snap.Status),
		Outcome:   string(snap.Outcome),
		SeatA:     snap.Seats[session.SideA],
		SeatB:     snap.Seats[session.SideB],
		Strength:  snap.Strength,
		StartedAt: snap.CreatedAt,
		EndedAt:   snap.UpdatedAt,
	}
	if snap.Control.Enabled() {
		rec.TimeControl = strconv.Itoa(int(snap.Control.Initial.Seconds())) +
			"+" + strconv.Itoa(int(snap.Control.Increment.Seconds()))
	}
	rec.MovesUCI = make([]string, 0, len(snap.MoveLog))
	rec.MovesSAN = make([]string, 0, len(snap.MoveLog))
	for _, mv := range snap.MoveLog {
		rec.MovesUCI = append(rec.MovesUCI, mv.UCI)
		rec.MovesSAN = append(rec.MovesSAN, mv.SAN)
	}
	rec.PGN = buildPGN(snap)
	if d := rec.EndedAt.Sub(rec.StartedAt).Milliseconds(); d > 0 {
		rec.DurationMs = d
	}
	return rec
}

// Writer is a synchronous sink for finished sessions.
type Writer interface {
	Save(ctx context.Context, rec Record) error
	Close() error
}

// Browser reads archived games back for the listing API. Load returns nil
// when the record is absent or expired.
type Browser interface {
	Load(ctx context.Context, sessionID string) (*Record, error)
	Recent(ctx context.Context, limit int64) ([]*Record, error)
}

// Async wraps writers so the store can hand off a snapshot without waiting.
// Each write runs in its own goroutine with a bounded deadline; failures of
// one writer do not block the others.
type Async struct {
	writers []Writer
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

func NewAsync(timeout time.Duration, writers ...Writer) *Async {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Async{writers: writers, timeout: timeout, logger: obslog.L()}
}

// ArchiveAsync persists a terminal snapshot in the background.
func (a *Async) ArchiveAsync(snap session.Snapshot) {
	if a == nil || len(a.writers) == 0 {
		return
	}
	rec := RecordFrom(snap)
	for _, w := range a.writers {
		w := w
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
			defer cancel()
			if err := w.Save(ctx, rec); err != nil {
				a.logger.Warn("archive_write_failed",
					zap.String("session_id", rec.SessionID),
					zap.Error(err))
			}
		}()
	}
}

// Close waits for in-flight writes and closes the writers.
func (a *Async) Close() error {
	if a == nil {
		return nil
	}
	a.wg.Wait()
	var first error
	for _, w := range a.writers {
		if err := w.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func buildPGN(snap session.Snapshot) string {
	var b strings.Builder
	date := snap.UpdatedAt
	if date.IsZero() {
		date = time.Now()
	}
	b.WriteString("[Event \"Arena\"]\n")
	b.WriteString("[Site \"chess-arena\"]\n")
	b.WriteString("[Date \"" + date.Format("2006.01.02") + "\"]\n")
	b.WriteString("[White \"" + sanitizePGN(snap.Seats[session.SideA]) + "\"]\n")
	b.WriteString("[Black \"" + sanitizePGN(snap.Seats[session.SideB]) + "\"]\n")
	if term := terminationOf(snap.Status); term != "" {
		b.WriteString("[Termination \"" + term + "\"]\n")
	}
	result := pgnResult(snap)
	b.WriteString("[Result \"" + result + "\"]\n\n")

	for i := 0; i < len(snap.MoveLog); i += 2 {
		turn := (i / 2) + 1
		b.WriteString(strconv.Itoa(turn) + ". " + snap.MoveLog[i].SAN)
		if i+1 < len(snap.MoveLog) {
			b.WriteString(" " + snap.MoveLog[i+1].SAN)
		}
		b.WriteString(" ")
	}
	b.WriteString(result)
	return b.String()
}

func pgnResult(snap session.Snapshot) string {
	switch snap.Outcome {
	case session.OutcomeSideA:
		return "1-0"
	case session.OutcomeSideB:
		return "0-1"
	case session.OutcomeDraw:
		return "1/2-1/2"
	default:
		return "*"
	}
}

func terminationOf(st session.Status) string {
	switch st {
	case session.StatusCheckmate, session.StatusStalemate:
		return "normal"
	case session.StatusResigned:
		return "resignation"
	case session.StatusTimeout:
		return "time forfeit"
	case session.StatusDraw:
		return "agreement"
	}
	return ""
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
