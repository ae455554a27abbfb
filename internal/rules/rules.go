// Package rules wraps the external chess-legality collaborator. The
// coordinator never reasons about chess itself: it hands the move history and
// a proposed move to an Engine and trusts the verdict.
package rules

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
)

// ErrUnavailable marks an engine failure that is not a verdict on the move.
var ErrUnavailable = errors.New("rules engine unavailable")

// Evaluation is the engine's verdict on one proposed move.
type Evaluation struct {
	Legal bool

	// Canonical encodings of the move, set when Legal.
	UCI       string
	SAN       string
	From      string
	To        string
	Promotion string

	// Position after the move, FEN-encoded.
	FEN string

	// Terminal flags for the resulting position.
	Checkmate bool
	Stalemate bool
	RuleDraw  bool
}

// Engine evaluates a proposed move against the position reached by replaying
// movesUCI from the standard start position.
type Engine interface {
	Evaluate(ctx context.Context, movesUCI []string, move string) (Evaluation, error)
}

// LibEngine is the in-process implementation on corentings/chess.
type LibEngine struct{}

func NewLibEngine() *LibEngine { return &LibEngine{} }

func (e *LibEngine) Evaluate(_ context.Context, movesUCI []string, move string) (Evaluation, error) {
	game, err := replay(movesUCI)
	if err != nil {
		return Evaluation{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	pos := game.Position()
	raw := strings.TrimSpace(move)
	if raw == "" {
		return Evaluation{Legal: false}, nil
	}

	// UCI preferred, SAN fallback.
	notationUCI := nchess.UCINotation{}
	notationSAN := nchess.AlgebraicNotation{}
	mv, derr := notationUCI.Decode(pos, strings.ToLower(raw))
	if derr != nil {
		mv, derr = notationSAN.Decode(pos, raw)
		if derr != nil {
			return Evaluation{Legal: false}, nil
		}
	}
	if err := game.Move(mv, nil); err != nil {
		return Evaluation{Legal: false}, nil
	}

	uci := strings.ToLower(notationUCI.Encode(pos, mv))
	ev := Evaluation{
		Legal: true,
		UCI:   uci,
		SAN:   notationSAN.Encode(pos, mv),
		FEN:   game.FEN(),
	}
	if len(uci) >= 4 {
		ev.From, ev.To = uci[:2], uci[2:4]
	}
	if len(uci) > 4 {
		ev.Promotion = uci[4:]
	}

	switch outcome := game.Outcome(); {
	case outcome == nchess.NoOutcome:
	case game.Method() == nchess.Checkmate:
		ev.Checkmate = true
	case game.Method() == nchess.Stalemate:
		ev.Stalemate = true
	default:
		ev.RuleDraw = true
	}
	return ev, nil
}

// replay reconstructs the game from the start position. The stored FEN is
// presentation state; rebuilding from the log keeps it honest.
func replay(movesUCI []string) (*nchess.Game, error) {
	game := nchess.NewGame()
	notation := nchess.UCINotation{}
	for _, raw := range movesUCI {
		mv, err := notation.Decode(game.Position(), strings.ToLower(strings.TrimSpace(raw)))
		if err != nil {
			return nil, fmt.Errorf("decode move %s: %w", raw, err)
		}
		if err := game.Move(mv, nil); err != nil {
			return nil, fmt.Errorf("apply move %s: %w", raw, err)
		}
	}
	return game, nil
}

// Replay exposes the reconstruction for collaborators that need the final
// position (suggester, archive PGN export).
func Replay(movesUCI []string) (*nchess.Game, error) { return replay(movesUCI) }

// retryEngine retries transient failures a bounded number of times before
// surfacing ErrUnavailable. Illegal-move verdicts are never retried.
type retryEngine struct {
	inner    Engine
	attempts int
	backoff  time.Duration
}

// NewWithRetry wraps an engine with bounded retry and linear backoff.
func NewWithRetry(inner Engine, attempts int, backoff time.Duration) Engine {
	if attempts < 1 {
		attempts = 1
	}
	return &retryEngine{inner: inner, attempts: attempts, backoff: backoff}
}

func (r *retryEngine) Evaluate(ctx context.Context, movesUCI []string, move string) (Evaluation, error) {
	var lastErr error
	for i := 0; i < r.attempts; i++ {
		if i > 0 && r.backoff > 0 {
			select {
			case <-ctx.Done():
				return Evaluation{}, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			case <-time.After(time.Duration(i) * r.backoff):
			}
		}
		ev, err := r.inner.Evaluate(ctx, movesUCI, move)
		if err == nil {
			return ev, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	if errors.Is(lastErr, ErrUnavailable) {
		return Evaluation{}, lastErr
	}
	return Evaluation{}, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}
