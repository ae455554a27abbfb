package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/chess-arena/internal/rules"
	"github.com/park285/chess-arena/internal/suggest"
)

const (
	defaultOfferTTL      = 2 * time.Minute
	defaultRetention     = 10 * time.Minute
	defaultIdleTTL       = 30 * time.Minute
	defaultSweepInterval = 500 * time.Millisecond
	defaultSuggestLimit  = 10 * time.Second
	defaultStrength      = 10
)

// Publisher receives every delta the store commits, in commit order per
// session. Called synchronously under the session's lock; implementations
// must hand off quickly and never call back into the store.
type Publisher func(Delta, Snapshot)

// Archiver consumes terminal snapshots without blocking the mutation path.
type Archiver interface {
	ArchiveAsync(Snapshot)
}

// StoreConfig tunes lifecycle windows. Zero values pick the defaults above.
type StoreConfig struct {
	OfferTTL      time.Duration
	Retention     time.Duration // terminal sessions kept this long
	IdleTTL       time.Duration // unwatched idle sessions kept this long
	SweepInterval time.Duration
	SuggestLimit  time.Duration // per-suggestion thinking budget
}

func (c StoreConfig) withDefaults() StoreConfig {
	if c.OfferTTL <= 0 {
		c.OfferTTL = defaultOfferTTL
	}
	if c.Retention <= 0 {
		c.Retention = defaultRetention
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = defaultIdleTTL
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = defaultSweepInterval
	}
	if c.SuggestLimit <= 0 {
		c.SuggestLimit = defaultSuggestLimit
	}
	return c
}

// entry pairs a session with its mutation lock and lifecycle context. The
// context covers session-bound background work (engine suggestions) and is
// canceled on terminal transition or eviction.
type entry struct {
	mu     sync.Mutex
	st     *state
	ctx    context.Context
	cancel context.CancelFunc
}

// Store is the authoritative registry of live sessions. All mutation funnels
// through Mutate, serialized per session; different sessions proceed fully in
// parallel.
type Store struct {
	cfg       StoreConfig
	engine    rules.Engine
	suggester suggest.Suggester
	logger    *zap.Logger

	mu      sync.RWMutex
	entries map[string]*entry

	publish   Publisher
	archiver  Archiver
	watchers  func(sessionID string) int
	clockNow  func() time.Time
	stopCh    chan struct{}
	stopOnce  sync.Once
	sweeperWG sync.WaitGroup
}

// NewStore builds a store. The publisher and archiver are optional wiring;
// the rules engine is not.
func NewStore(engine rules.Engine, suggester suggest.Suggester, cfg StoreConfig, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		cfg:       cfg.withDefaults(),
		engine:    engine,
		suggester: suggester,
		logger:    logger,
		entries:   make(map[string]*entry),
		clockNow:  time.Now,
		stopCh:    make(chan struct{}),
	}
	s.sweeperWG.Add(1)
	go s.sweep()
	return s
}

// SetPublisher wires the broadcast dispatcher. Must be called before traffic.
func (s *Store) SetPublisher(p Publisher) { s.publish = p }

// SetArchiver wires the persistence collaborator.
func (s *Store) SetArchiver(a Archiver) { s.archiver = a }

// SetWatcherCount wires the gateway's live-subscriber counter, used by the
// idle eviction policy.
func (s *Store) SetWatcherCount(fn func(sessionID string) int) { s.watchers = fn }

// Close stops the sweeper and cancels all session-bound work.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.sweeperWG.Wait()
	s.mu.Lock()
	for _, e := range s.entries {
		e.cancel()
	}
	s.mu.Unlock()
}

// Create registers a new session and returns its initial snapshot.
func (s *Store) Create(mode Mode, cfg Config) (Snapshot, error) {
	if mode != ModeEngine && mode != ModeTwoPlayer {
		return Snapshot{}, ErrInvalidCommand
	}
	now := s.clockNow()
	st := &state{
		ID:        uuid.NewString(),
		Mode:      mode,
		FEN:       startFEN,
		Status:    StatusActive,
		Seats:     map[Side]string{SideA: "", SideB: ""},
		Strength:  clampStrength(cfg.Strength),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if creator := strings.TrimSpace(cfg.Creator); creator != "" {
		st.Seats[SideA] = creator
	}
	if mode == ModeEngine {
		st.Seats[SideB] = EngineParticipant
	}
	if cfg.TimeControl.Enabled() {
		st.Clocks = Clocks{
			Remaining: map[Side]time.Duration{
				SideA: cfg.TimeControl.Initial,
				SideB: cfg.TimeControl.Initial,
			},
			TurnStarted: now,
			Control:     cfg.TimeControl,
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &entry{st: st, ctx: ctx, cancel: cancel}

	s.mu.Lock()
	s.entries[st.ID] = e
	s.mu.Unlock()

	s.logger.Info("session_create",
		zap.String("session_id", st.ID),
		zap.String("mode", string(mode)),
		zap.Duration("clock_initial", cfg.TimeControl.Initial),
		zap.Int("strength", st.Strength),
	)
	return st.snapshot(now), nil
}

// Get returns a point-in-time snapshot.
func (s *Store) Get(id string) (Snapshot, error) {
	e, err := s.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st.snapshot(s.clockNow()), nil
}

// Mutate applies one command. Either the whole command lands atomically and
// the committed delta is published, or nothing changes and a rejection is
// returned. Concurrent calls for the same session queue behind each other.
func (s *Store) Mutate(ctx context.Context, id string, cmd Command) (Snapshot, *Delta, error) {
	e, err := s.lookup(id)
	if err != nil {
		return Snapshot{}, nil, err
	}

	e.mu.Lock()
	now := s.clockNow()
	delta, err := apply(ctx, e.st, cmd, machineOpts{engine: s.engine, offerTTL: s.cfg.OfferTTL, now: now})
	if err != nil {
		snap := e.st.snapshot(now)
		e.mu.Unlock()
		return snap, nil, err
	}
	snap := e.st.snapshot(now)
	if s.publish != nil {
		s.publish(*delta, snap)
	}
	e.mu.Unlock()

	if delta.Ended != nil {
		e.cancel()
		if s.archiver != nil {
			s.archiver.ArchiveAsync(snap)
		}
		s.logger.Info("session_end",
			zap.String("session_id", id),
			zap.String("status", string(delta.Ended.Status)),
			zap.String("outcome", string(delta.Ended.Outcome)),
			zap.Int("moves", len(snap.MoveLog)),
		)
	}
	if delta.Move != nil {
		s.maybeScheduleEngineMove(e, snap)
	}
	return snap, delta, nil
}

// SeatOf resolves a participant identity to its seat, if any.
func (s *Store) SeatOf(id, participant string) (Side, bool, error) {
	e, err := s.lookup(id)
	if err != nil {
		return "", false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	side, ok := e.st.seatOf(participant)
	return side, ok, nil
}

func (s *Store) lookup(id string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.entries[strings.TrimSpace(id)]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e, nil
}

// maybeScheduleEngineMove kicks off an asynchronous suggestion when an engine
// session is active and it is the engine's turn. The task inherits the
// session's lifecycle context, so it dies with the session; a suggestion that
// survives the race anyway is submitted as an ordinary command and rejected.
func (s *Store) maybeScheduleEngineMove(e *entry, snap Snapshot) {
	if s.suggester == nil || snap.Mode != ModeEngine || snap.Status.Terminal() {
		return
	}
	if len(snap.MoveLog)%2 != 1 {
		// Not the engine's turn; side B replies to odd plies only.
		return
	}
	moves := make([]string, len(snap.MoveLog))
	for i, mv := range snap.MoveLog {
		moves[i] = mv.UCI
	}
	go func() {
		ctx, cancel := context.WithTimeout(e.ctx, s.cfg.SuggestLimit)
		defer cancel()
		mv, err := s.suggester.Suggest(ctx, moves, snap.Strength)
		if err != nil {
			if e.ctx.Err() != nil {
				return // session ended while thinking
			}
			s.logger.Warn("engine_suggest_error", zap.String("session_id", snap.ID), zap.Error(err))
			return
		}
		if e.ctx.Err() != nil {
			return // canceled after completion: discard, never apply
		}
		if _, _, err := s.Mutate(context.Background(), snap.ID, ApplyMove{Side: SideB, UCI: mv}); err != nil {
			s.logger.Debug("engine_move_rejected",
				zap.String("session_id", snap.ID),
				zap.String("move", mv),
				zap.String("reason", Reason(err)),
			)
		}
	}()
}

// sweep runs the background lifecycle pass: clock expiry, offer expiry and
// eviction. Expiries are submitted through Mutate like any other command.
func (s *Store) sweep() {
	defer s.sweeperWG.Done()
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweepOnce()
		}
	}
}

func (s *Store) sweepOnce() {
	now := s.clockNow()

	type sweepMark struct {
		id           string
		flagged      Side
		offerExpired bool
		evict        bool
		archive      bool
	}
	var marks []sweepMark

	s.mu.RLock()
	for id, e := range s.entries {
		e.mu.Lock()
		st := e.st
		p := sweepMark{id: id}
		if st.Status.Terminal() {
			p.evict = now.Sub(st.UpdatedAt) > s.cfg.Retention
		} else {
			if st.Clocks.Control.Enabled() {
				side := st.Turn()
				if st.remainingFor(side, now) <= 0 {
					p.flagged = side
				}
			}
			if st.Offer != nil && !st.Offer.ExpiresAt.IsZero() && now.After(st.Offer.ExpiresAt) {
				p.offerExpired = true
			}
			if now.Sub(st.UpdatedAt) > s.cfg.IdleTTL && s.watcherCount(id) == 0 {
				p.evict = true
				p.archive = true
			}
		}
		e.mu.Unlock()
		if p.flagged != "" || p.offerExpired || p.evict {
			marks = append(marks, p)
		}
	}
	s.mu.RUnlock()

	for _, p := range marks {
		if p.flagged != "" {
			if _, _, err := s.Mutate(context.Background(), p.id, Timeout{Side: p.flagged}); err == nil {
				continue // terminal now; eviction waits for retention
			}
		}
		if p.offerExpired {
			_, _, _ = s.Mutate(context.Background(), p.id, expireOffer{})
		}
		if p.evict {
			s.evict(p.id, p.archive)
		}
	}
}

func (s *Store) evict(id string, archive bool) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	snap := e.st.snapshot(s.clockNow())
	e.mu.Unlock()
	e.cancel()
	if archive && s.archiver != nil {
		s.archiver.ArchiveAsync(snap)
	}
	s.logger.Info("session_evict",
		zap.String("session_id", id),
		zap.String("status", string(snap.Status)),
	)
}

func (s *Store) watcherCount(id string) int {
	if s.watchers == nil {
		return 0
	}
	return s.watchers(id)
}

func clampStrength(n int) int {
	if n <= 0 {
		return defaultStrength
	}
	if n > 20 {
		return 20
	}
	return n
}

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
