package wire

import (
	"testing"
	"time"

	"github.com/park285/chess-arena/internal/session"
)

func TestEventsFrom_TerminalMoveOrder(t *testing.T) {
	side := session.SideB
	mv := session.Move{Seq: 4, Side: side, UCI: "d8h4", SAN: "Qh4#"}
	d := session.Delta{
		SessionID: "s1",
		Move:      &mv,
		FEN:       "fen-after",
		Remaining: map[session.Side]time.Duration{
			session.SideA: 30 * time.Second,
			session.SideB: time.Minute,
		},
		Ended: &session.Ending{Status: session.StatusCheckmate, Outcome: session.OutcomeSideB},
	}

	events := EventsFrom(d)
	if len(events) != 2 {
		t.Fatalf("events = %d, want move then end", len(events))
	}
	if events[0].Type != EvtMoveApplied || events[0].Move.SAN != "Qh4#" || events[0].FEN != "fen-after" {
		t.Fatalf("first event: %+v", events[0])
	}
	if events[0].RemainingMs["a"] != 30_000 {
		t.Fatalf("remaining: %+v", events[0].RemainingMs)
	}
	if events[1].Type != EvtGameEnded || events[1].Status != "checkmate" || events[1].Outcome != "side_b" {
		t.Fatalf("second event: %+v", events[1])
	}
}

func TestEventsFrom_Negotiation(t *testing.T) {
	by := session.SideA
	events := EventsFrom(session.Delta{SessionID: "s1", OfferBy: &by})
	if len(events) != 1 || events[0].Type != EvtDrawOffered || events[0].By != "a" {
		t.Fatalf("offer events: %+v", events)
	}

	declined := session.SideB
	events = EventsFrom(session.Delta{SessionID: "s1", OfferDeclined: &declined})
	if len(events) != 1 || events[0].Type != EvtDrawDeclined || events[0].By != "b" {
		t.Fatalf("decline events: %+v", events)
	}

	events = EventsFrom(session.Delta{SessionID: "s1", OfferExpired: true})
	if len(events) != 1 || events[0].Type != EvtDrawOfferExpired {
		t.Fatalf("expiry events: %+v", events)
	}

	// Seat-only deltas have no broadcast shape.
	seat := session.SideB
	if events := EventsFrom(session.Delta{SessionID: "s1", SeatSide: &seat}); len(events) != 0 {
		t.Fatalf("seat delta produced events: %+v", events)
	}
}

func TestSnapshotFrom(t *testing.T) {
	snap := session.Snapshot{
		ID:     "s1",
		Mode:   session.ModeEngine,
		FEN:    "some-fen",
		Status: session.StatusActive,
		Seats: map[session.Side]string{
			session.SideA: "alice",
			session.SideB: session.EngineParticipant,
		},
		MoveLog: []session.Move{
			{Seq: 1, Side: session.SideA, UCI: "e2e4", SAN: "e4", From: "e2", To: "e4"},
		},
		Remaining: map[session.Side]time.Duration{
			session.SideA: 90 * time.Second,
			session.SideB: 2 * time.Minute,
		},
		Offer:    &session.Offer{By: session.SideA},
		Strength: 8,
	}

	out := SnapshotFrom(snap)
	if out.ID != "s1" || out.Mode != "engine" || out.Status != "active" {
		t.Fatalf("header: %+v", out)
	}
	if out.Seats["b"] != session.EngineParticipant {
		t.Fatalf("seats: %+v", out.Seats)
	}
	if len(out.MoveLog) != 1 || out.MoveLog[0].UCI != "e2e4" {
		t.Fatalf("move log: %+v", out.MoveLog)
	}
	if out.RemainingMs["a"] != 90_000 || out.RemainingMs["b"] != 120_000 {
		t.Fatalf("remaining: %+v", out.RemainingMs)
	}
	if out.OfferBy != "a" || out.Strength != 8 {
		t.Fatalf("offer/strength: %+v", out)
	}
}

func TestCommand_MoveText(t *testing.T) {
	if got := (Command{UCI: "e2e4"}).MoveText(); got != "e2e4" {
		t.Fatalf("uci: %q", got)
	}
	if got := (Command{From: "e7", To: "e8", Promotion: "q"}).MoveText(); got != "e7e8q" {
		t.Fatalf("from/to: %q", got)
	}
}
