package gateway

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/chess-arena/internal/archive"
	"github.com/park285/chess-arena/internal/session"
	"github.com/park285/chess-arena/pkg/wire"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 100
)

// RESTServer is the read-mostly HTTP surface: session creation, snapshot,
// PGN and recent-games retrieval, health.
type RESTServer struct {
	gw      *Gateway
	store   *session.Store
	browser archive.Browser
	logger  *zap.Logger
	srv     *fasthttp.Server
	addr    string
}

func NewRESTServer(addr string, gw *Gateway, store *session.Store, browser archive.Browser, logger *zap.Logger) *RESTServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &RESTServer{gw: gw, store: store, browser: browser, logger: logger, addr: addr}
	s.srv = &fasthttp.Server{
		Handler:            s.route,
		Name:               "chess-arena",
		MaxRequestBodySize: 1 << 20,
	}
	return s
}

func (s *RESTServer) Start() error {
	s.logger.Info("api_listen", zap.String("addr", s.addr))
	return s.srv.ListenAndServe(s.addr)
}

func (s *RESTServer) Shutdown() error { return s.srv.Shutdown() }

func (s *RESTServer) route(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	method := string(ctx.Method())

	switch {
	case path == "/healthz" && method == fasthttp.MethodGet:
		s.writeJSON(ctx, fasthttp.StatusOK, map[string]string{"status": "ok"})
	case path == "/sessions" && method == fasthttp.MethodPost:
		s.handleCreate(ctx)
	case path == "/sessions/recent" && method == fasthttp.MethodGet:
		s.handleRecent(ctx)
	case strings.HasPrefix(path, "/sessions/") && method == fasthttp.MethodGet:
		rest := strings.TrimPrefix(path, "/sessions/")
		if id, ok := strings.CutSuffix(rest, "/pgn"); ok {
			s.handlePGN(ctx, id)
			return
		}
		s.handleSnapshot(ctx, rest)
	default:
		s.writeError(ctx, fasthttp.StatusNotFound, "not_found", "")
	}
}

func (s *RESTServer) handleCreate(ctx *fasthttp.RequestCtx) {
	var cmd wire.Command
	if len(ctx.PostBody()) > 0 {
		if err := json.Unmarshal(ctx.PostBody(), &cmd); err != nil {
			s.writeError(ctx, fasthttp.StatusBadRequest, "bad_json", err.Error())
			return
		}
	}
	snap, rej := s.gw.CreateSession(cmd)
	if rej != nil {
		s.writeError(ctx, fasthttp.StatusBadRequest, rej.Reason, rej.Message)
		return
	}
	s.writeJSON(ctx, fasthttp.StatusCreated, wire.SnapshotFrom(snap))
}

func (s *RESTServer) handleSnapshot(ctx *fasthttp.RequestCtx, id string) {
	snap, err := s.store.Get(id)
	if err != nil {
		s.writeError(ctx, fasthttp.StatusNotFound, session.Reason(err), "")
		return
	}
	s.writeJSON(ctx, fasthttp.StatusOK, wire.SnapshotFrom(snap))
}

// handleRecent serves the latest archived games, most recent first.
func (s *RESTServer) handleRecent(ctx *fasthttp.RequestCtx) {
	if s.browser == nil {
		s.writeJSON(ctx, fasthttp.StatusOK, []*archive.Record{})
		return
	}
	limit, _ := strconv.ParseInt(string(ctx.QueryArgs().Peek("limit")), 10, 64)
	if limit <= 0 || limit > maxRecentLimit {
		limit = defaultRecentLimit
	}
	recs, err := s.browser.Recent(ctx, limit)
	if err != nil {
		s.logger.Warn("recent_list_failed", zap.Error(err))
		s.writeError(ctx, fasthttp.StatusInternalServerError, "archive_unavailable", "")
		return
	}
	if recs == nil {
		recs = []*archive.Record{}
	}
	s.writeJSON(ctx, fasthttp.StatusOK, recs)
}

// handlePGN serves the PGN of a live session, falling back to the archive for
// sessions already evicted from the store.
func (s *RESTServer) handlePGN(ctx *fasthttp.RequestCtx, id string) {
	var pgn string
	snap, err := s.store.Get(id)
	switch {
	case err == nil:
		pgn = archive.RecordFrom(snap).PGN
	case s.browser != nil:
		rec, lerr := s.browser.Load(ctx, id)
		if lerr != nil || rec == nil {
			s.writeError(ctx, fasthttp.StatusNotFound, session.Reason(err), "")
			return
		}
		pgn = rec.PGN
	default:
		s.writeError(ctx, fasthttp.StatusNotFound, session.Reason(err), "")
		return
	}
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetContentType("application/x-chess-pgn; charset=utf-8")
	ctx.SetBodyString(pgn)
}

func (s *RESTServer) writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json; charset=utf-8")
	ctx.SetBody(body)
}

func (s *RESTServer) writeError(ctx *fasthttp.RequestCtx, status int, code, msg string) {
	s.writeJSON(ctx, status, map[string]string{"error": code, "message": msg})
}
