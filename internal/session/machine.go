package session

import (
	"context"
	"fmt"
	"time"

	"github.com/park285/chess-arena/internal/rules"
)

// machineOpts carries the collaborators a command dispatch needs. The store
// owns one and passes it under the per-session lock.
type machineOpts struct {
	engine   rules.Engine
	offerTTL time.Duration
	now      time.Time
}

// apply dispatches one command against the session state. It either mutates
// st fully and returns the delta, or leaves st untouched and returns a
// rejection. The caller holds the session's lock for the whole call.
func apply(ctx context.Context, st *state, cmd Command, opts machineOpts) (*Delta, error) {
	switch c := cmd.(type) {
	case ApplyMove:
		return applyMove(ctx, st, c, opts)
	case Resign:
		return applyResign(st, c, opts.now)
	case Timeout:
		return applyTimeout(st, c, opts.now)
	case OfferDraw:
		return applyOffer(st, c, opts)
	case RespondDraw:
		return applyRespond(st, c, opts.now)
	case AssignSeat:
		return applyAssign(st, c, opts.now)
	case expireOffer:
		return applyExpireOffer(st, opts.now)
	default:
		return nil, ErrInvalidCommand
	}
}

func applyMove(ctx context.Context, st *state, c ApplyMove, opts machineOpts) (*Delta, error) {
	if st.Status.Terminal() {
		return nil, ErrSessionFinished
	}
	if !c.Side.Valid() {
		return nil, ErrInvalidCommand
	}
	if st.Turn() != c.Side {
		return nil, ErrNotYourTurn
	}

	ev, err := opts.engine.Evaluate(ctx, uciLog(st), c.UCI)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, err)
	}
	if !ev.Legal {
		return nil, ErrIllegalMove
	}

	now := opts.now
	mv := Move{
		Seq:       len(st.MoveLog) + 1,
		Side:      c.Side,
		UCI:       ev.UCI,
		SAN:       ev.SAN,
		From:      ev.From,
		To:        ev.To,
		Promotion: ev.Promotion,
		PlayedAt:  now,
	}

	delta := &Delta{SessionID: st.ID, Move: &mv, FEN: ev.FEN}
	if st.Offer != nil {
		st.Offer = nil
		delta.OfferCleared = true
	}

	st.MoveLog = append(st.MoveLog, mv)
	st.FEN = ev.FEN
	chargeClock(st, c.Side, now)
	st.UpdatedAt = now
	delta.Remaining = remainingCopy(st)

	switch {
	case ev.Checkmate:
		delta.Ended = end(st, StatusCheckmate, winnerOutcome(c.Side), now)
	case ev.Stalemate:
		delta.Ended = end(st, StatusStalemate, OutcomeDraw, now)
	case ev.RuleDraw:
		delta.Ended = end(st, StatusDraw, OutcomeDraw, now)
	}
	return delta, nil
}

func applyResign(st *state, c Resign, now time.Time) (*Delta, error) {
	if st.Status.Terminal() {
		return nil, ErrSessionFinished
	}
	if !c.Side.Valid() {
		return nil, ErrInvalidCommand
	}
	delta := &Delta{SessionID: st.ID}
	clearOffer(st, delta)
	delta.Ended = end(st, StatusResigned, winnerOutcome(c.Side.Opponent()), now)
	return delta, nil
}

func applyTimeout(st *state, c Timeout, now time.Time) (*Delta, error) {
	if st.Status.Terminal() {
		return nil, ErrSessionFinished
	}
	if !c.Side.Valid() {
		return nil, ErrInvalidCommand
	}
	if !st.Clocks.Control.Enabled() || st.remainingFor(c.Side, now) > 0 {
		return nil, ErrClockStillRunning
	}
	st.Clocks.Remaining[c.Side] = 0
	delta := &Delta{SessionID: st.ID, Remaining: remainingCopy(st)}
	clearOffer(st, delta)
	delta.Ended = end(st, StatusTimeout, winnerOutcome(c.Side.Opponent()), now)
	return delta, nil
}

func applyOffer(st *state, c OfferDraw, opts machineOpts) (*Delta, error) {
	if st.Status.Terminal() {
		return nil, ErrSessionFinished
	}
	if !c.Side.Valid() {
		return nil, ErrInvalidCommand
	}
	if st.Offer != nil {
		return nil, ErrOfferAlreadyPending
	}
	offer := &Offer{By: c.Side, CreatedAt: opts.now}
	if opts.offerTTL > 0 {
		offer.ExpiresAt = opts.now.Add(opts.offerTTL)
	}
	st.Offer = offer
	st.UpdatedAt = opts.now
	by := c.Side
	return &Delta{SessionID: st.ID, OfferBy: &by}, nil
}

func applyRespond(st *state, c RespondDraw, now time.Time) (*Delta, error) {
	if st.Status.Terminal() {
		return nil, ErrSessionFinished
	}
	if !c.Side.Valid() {
		return nil, ErrInvalidCommand
	}
	if st.Offer == nil {
		return nil, ErrNoOfferToRespondTo
	}
	// The offer is addressed to the opponent only; the proposer cannot
	// accept (or decline) their own offer.
	if st.Offer.By == c.Side {
		return nil, ErrNoOfferToRespondTo
	}
	st.Offer = nil
	st.UpdatedAt = now
	delta := &Delta{SessionID: st.ID}
	if c.Accept {
		delta.Ended = end(st, StatusDraw, OutcomeDraw, now)
		return delta, nil
	}
	side := c.Side
	delta.OfferDeclined = &side
	return delta, nil
}

func applyAssign(st *state, c AssignSeat, now time.Time) (*Delta, error) {
	if st.Status.Terminal() {
		return nil, ErrSessionFinished
	}
	if !c.Side.Valid() || c.Participant == "" {
		return nil, ErrInvalidCommand
	}
	if st.Seats[c.Side] != "" {
		return nil, ErrSeatOccupied
	}
	st.Seats[c.Side] = c.Participant
	st.UpdatedAt = now
	side := c.Side
	return &Delta{SessionID: st.ID, SeatSide: &side, SeatParticipant: c.Participant}, nil
}

func applyExpireOffer(st *state, now time.Time) (*Delta, error) {
	if st.Status.Terminal() {
		return nil, ErrSessionFinished
	}
	if st.Offer == nil || st.Offer.ExpiresAt.IsZero() || now.Before(st.Offer.ExpiresAt) {
		return nil, ErrNoOfferToRespondTo
	}
	st.Offer = nil
	st.UpdatedAt = now
	return &Delta{SessionID: st.ID, OfferExpired: true}, nil
}

// end performs the single terminal transition. Status and outcome are written
// together, exactly once.
func end(st *state, status Status, outcome Outcome, now time.Time) *Ending {
	st.Status = status
	st.Outcome = outcome
	st.UpdatedAt = now
	return &Ending{Status: status, Outcome: outcome}
}

func clearOffer(st *state, delta *Delta) {
	if st.Offer != nil {
		st.Offer = nil
		delta.OfferCleared = true
	}
}

// chargeClock burns the mover's elapsed turn time and credits the increment,
// then restarts the turn timer for the opponent.
func chargeClock(st *state, mover Side, now time.Time) {
	if !st.Clocks.Control.Enabled() {
		return
	}
	rem := st.Clocks.Remaining[mover]
	if !st.Clocks.TurnStarted.IsZero() {
		rem -= now.Sub(st.Clocks.TurnStarted)
	}
	if rem < 0 {
		rem = 0
	}
	rem += st.Clocks.Control.Increment
	st.Clocks.Remaining[mover] = rem
	st.Clocks.TurnStarted = now
}

func remainingCopy(st *state) map[Side]time.Duration {
	if !st.Clocks.Control.Enabled() {
		return nil
	}
	return map[Side]time.Duration{
		SideA: st.Clocks.Remaining[SideA],
		SideB: st.Clocks.Remaining[SideB],
	}
}

func uciLog(st *state) []string {
	out := make([]string, len(st.MoveLog))
	for i, mv := range st.MoveLog {
		out[i] = mv.UCI
	}
	return out
}
