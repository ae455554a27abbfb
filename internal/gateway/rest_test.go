package gateway

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/park285/chess-arena/internal/archive"
)

func newTestRESTServer(t *testing.T, browser archive.Browser) *RESTServer {
	t.Helper()
	gw := newTestGateway(t)
	return NewRESTServer("127.0.0.1:0", gw, gw.store, browser, nil)
}

func doGet(t *testing.T, s *RESTServer, uri string) *fasthttp.RequestCtx {
	t.Helper()
	var req fasthttp.Request
	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(uri)
	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&req, nil, nil)
	s.route(ctx)
	return ctx
}

func archivedRecord(id string, endedAt time.Time) archive.Record {
	return archive.Record{
		SessionID: id,
		Mode:      "two_player",
		Status:    "resigned",
		Outcome:   "side_b",
		SeatA:     "alice",
		SeatB:     "bob",
		PGN:       "[Result \"0-1\"]\n\n1. e4 e5 0-1",
		EndedAt:   endedAt,
	}
}

func TestRecentEndpoint(t *testing.T) {
	mem := archive.NewMemoryWriter()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"game-1", "game-2", "game-3"} {
		rec := archivedRecord(id, t0.Add(time.Duration(i)*time.Minute))
		if err := mem.Save(context.Background(), rec); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	s := newTestRESTServer(t, mem)

	ctx := doGet(t, s, "/sessions/recent?limit=2")
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("status = %d", ctx.Response.StatusCode())
	}
	var recs []archive.Record
	if err := json.Unmarshal(ctx.Response.Body(), &recs); err != nil {
		t.Fatalf("body: %v", err)
	}
	if len(recs) != 2 || recs[0].SessionID != "game-3" || recs[1].SessionID != "game-2" {
		t.Fatalf("recent listing: %+v", recs)
	}
}

func TestRecentEndpoint_NoArchive(t *testing.T) {
	s := newTestRESTServer(t, nil)

	ctx := doGet(t, s, "/sessions/recent")
	if ctx.Response.StatusCode() != fasthttp.StatusOK || string(ctx.Response.Body()) != "[]" {
		t.Fatalf("empty listing: %d %q", ctx.Response.StatusCode(), ctx.Response.Body())
	}
}

func TestPGNEndpoint_ArchiveFallback(t *testing.T) {
	mem := archive.NewMemoryWriter()
	rec := archivedRecord("game-9", time.Now())
	if err := mem.Save(context.Background(), rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	s := newTestRESTServer(t, mem)

	// Not in the store, but archived: the PGN survives eviction.
	ctx := doGet(t, s, "/sessions/game-9/pgn")
	if ctx.Response.StatusCode() != fasthttp.StatusOK || string(ctx.Response.Body()) != rec.PGN {
		t.Fatalf("pgn fallback: %d %q", ctx.Response.StatusCode(), ctx.Response.Body())
	}

	ctx = doGet(t, s, "/sessions/missing/pgn")
	if ctx.Response.StatusCode() != fasthttp.StatusNotFound {
		t.Fatalf("missing pgn status = %d", ctx.Response.StatusCode())
	}
}
