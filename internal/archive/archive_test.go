package archive

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/park285/chess-arena/internal/session"
)

func finishedSnapshot() session.Snapshot {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return session.Snapshot{
		ID:      "game-1",
		Mode:    session.ModeTwoPlayer,
		FEN:     "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3",
		Status:  session.StatusCheckmate,
		Outcome: session.OutcomeSideB,
		Seats: map[session.Side]string{
			session.SideA: "alice",
			session.SideB: "bob",
		},
		Control: session.TimeControl{Initial: 10 * time.Minute},
		MoveLog: []session.Move{
			{Seq: 1, Side: session.SideA, UCI: "f2f3", SAN: "f3"},
			{Seq: 2, Side: session.SideB, UCI: "e7e5", SAN: "e5"},
			{Seq: 3, Side: session.SideA, UCI: "g2g4", SAN: "g4"},
			{Seq: 4, Side: session.SideB, UCI: "d8h4", SAN: "Qh4#"},
		},
		CreatedAt: t0,
		UpdatedAt: t0.Add(90 * time.Second),
	}
}

func TestRecordFrom(t *testing.T) {
	rec := RecordFrom(finishedSnapshot())

	if rec.SessionID != "game-1" || rec.Status != "checkmate" || rec.Outcome != "side_b" {
		t.Fatalf("record header: %+v", rec)
	}
	if rec.SeatA != "alice" || rec.SeatB != "bob" {
		t.Fatalf("seats: %q %q", rec.SeatA, rec.SeatB)
	}
	if rec.TimeControl != "600+0" {
		t.Fatalf("time control = %q", rec.TimeControl)
	}
	if len(rec.MovesUCI) != 4 || rec.MovesUCI[3] != "d8h4" {
		t.Fatalf("moves uci: %v", rec.MovesUCI)
	}
	if rec.DurationMs != 90_000 {
		t.Fatalf("duration = %d", rec.DurationMs)
	}
}

func TestBuildPGN(t *testing.T) {
	rec := RecordFrom(finishedSnapshot())

	for _, want := range []string{
		`[White "alice"]`,
		`[Black "bob"]`,
		`[Result "0-1"]`,
		`[Termination "normal"]`,
		"1. f3 e5 2. g4 Qh4# 0-1",
	} {
		if !strings.Contains(rec.PGN, want) {
			t.Fatalf("PGN missing %q:\n%s", want, rec.PGN)
		}
	}
}

func TestBuildPGN_Results(t *testing.T) {
	snap := finishedSnapshot()

	snap.Status = session.StatusResigned
	snap.Outcome = session.OutcomeSideA
	rec := RecordFrom(snap)
	if !strings.Contains(rec.PGN, `[Result "1-0"]`) || !strings.Contains(rec.PGN, `[Termination "resignation"]`) {
		t.Fatalf("resign PGN:\n%s", rec.PGN)
	}

	snap.Status = session.StatusDraw
	snap.Outcome = session.OutcomeDraw
	rec = RecordFrom(snap)
	if !strings.Contains(rec.PGN, `[Result "1/2-1/2"]`) {
		t.Fatalf("draw PGN:\n%s", rec.PGN)
	}
}

func newTestRedisWriter(t *testing.T) *RedisWriter {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	opts, err := redis.ParseURL(fmt.Sprintf("redis://%s/0", mr.Addr()))
	if err != nil {
		t.Fatalf("redis url: %v", err)
	}
	return NewRedisWriter(redis.NewClient(opts), time.Hour)
}

func TestRedisWriter_SaveLoadRecent(t *testing.T) {
	w := newTestRedisWriter(t)
	t.Cleanup(func() { _ = w.Close() })
	ctx := context.Background()

	first := RecordFrom(finishedSnapshot())
	if err := w.Save(ctx, first); err != nil {
		t.Fatalf("Save: %v", err)
	}
	second := first
	second.SessionID = "game-2"
	second.EndedAt = first.EndedAt.Add(time.Minute)
	if err := w.Save(ctx, second); err != nil {
		t.Fatalf("Save second: %v", err)
	}

	got, err := w.Load(ctx, "game-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil || got.PGN != first.PGN || got.Status != "checkmate" {
		t.Fatalf("loaded record mismatch: %+v", got)
	}

	if missing, err := w.Load(ctx, "nope"); err != nil || missing != nil {
		t.Fatalf("Load absent: %v %+v", err, missing)
	}

	recent, err := w.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 || recent[0].SessionID != "game-2" || recent[1].SessionID != "game-1" {
		t.Fatalf("recent order: %+v", recent)
	}
}

func TestMemoryWriter_LoadRecent(t *testing.T) {
	w := NewMemoryWriter()
	ctx := context.Background()
	base := RecordFrom(finishedSnapshot())
	for i, id := range []string{"game-1", "game-2", "game-3"} {
		rec := base
		rec.SessionID = id
		rec.EndedAt = base.EndedAt.Add(time.Duration(i) * time.Minute)
		if err := w.Save(ctx, rec); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	recent, err := w.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 || recent[0].SessionID != "game-3" || recent[1].SessionID != "game-2" {
		t.Fatalf("recent order: %+v", recent)
	}

	rec, err := w.Load(ctx, "game-1")
	if err != nil || rec == nil || rec.SessionID != "game-1" {
		t.Fatalf("Load: %v %+v", err, rec)
	}
	if missing, err := w.Load(ctx, "nope"); err != nil || missing != nil {
		t.Fatalf("Load absent: %v %+v", err, missing)
	}
}

func TestAsync_WritesToAllSinks(t *testing.T) {
	first := NewMemoryWriter()
	second := NewMemoryWriter()
	a := NewAsync(2*time.Second, first, second)

	a.ArchiveAsync(finishedSnapshot())
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	for i, mem := range []*MemoryWriter{first, second} {
		if rec, ok := mem.Get("game-1"); !ok || rec.Status != "checkmate" {
			t.Fatalf("sink %d: ok=%v rec=%+v", i, ok, rec)
		}
	}
}
