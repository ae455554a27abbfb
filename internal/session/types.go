package session

import (
	"strings"
	"time"
)

// Side identifies one of the two seats of a match. Side A always plays white
// and moves first.
type Side string

const (
	SideA Side = "a"
	SideB Side = "b"
)

func (s Side) Opponent() Side {
	if s == SideA {
		return SideB
	}
	return SideA
}

func (s Side) Valid() bool { return s == SideA || s == SideB }

func ParseSide(v string) (Side, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "a", "white", "w":
		return SideA, true
	case "b", "black":
		return SideB, true
	}
	return "", false
}

// Mode selects the opponent type for a session.
type Mode string

const (
	ModeEngine    Mode = "engine"
	ModeTwoPlayer Mode = "two-player"
)

// EngineParticipant is the identity permanently bound to the non-human seat
// of an engine session.
const EngineParticipant = "engine"

// Status is the lifecycle state of a session. Once it leaves StatusActive it
// never returns.
type Status string

const (
	StatusActive    Status = "active"
	StatusCheckmate Status = "checkmate"
	StatusStalemate Status = "stalemate"
	StatusDraw      Status = "draw"
	StatusResigned  Status = "resigned"
	StatusTimeout   Status = "timeout"
)

func (s Status) Terminal() bool { return s != StatusActive && s != "" }

// Outcome designates the winner of a finished session.
type Outcome string

const (
	OutcomeSideA Outcome = "side_a"
	OutcomeSideB Outcome = "side_b"
	OutcomeDraw  Outcome = "draw"
)

func winnerOutcome(side Side) Outcome {
	if side == SideA {
		return OutcomeSideA
	}
	return OutcomeSideB
}

// Move is one applied move of the log. Seq starts at 1 and increases without
// gaps.
type Move struct {
	Seq       int       `json:"seq"`
	Side      Side      `json:"side"`
	UCI       string    `json:"uci"`
	SAN       string    `json:"san"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Promotion string    `json:"promotion,omitempty"`
	PlayedAt  time.Time `json:"played_at"`
}

// Offer is an outstanding draw offer. At most one exists per session.
type Offer struct {
	By        Side      `json:"by"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// TimeControl configures the per-side clock. A non-positive Initial disables
// clocks entirely.
type TimeControl struct {
	Initial   time.Duration `json:"initial"`
	Increment time.Duration `json:"increment"`
}

func (tc TimeControl) Enabled() bool { return tc.Initial > 0 }

// Clocks tracks remaining budgets. The side to move burns time continuously;
// Remaining is only rewritten when a command is accepted, so live readings go
// through remainingFor with the turn start timestamp.
type Clocks struct {
	Remaining   map[Side]time.Duration `json:"remaining"`
	TurnStarted time.Time              `json:"turn_started"`
	Control     TimeControl            `json:"control"`
}

// Config carries the per-session creation options.
type Config struct {
	TimeControl TimeControl
	// Strength of the engine opponent, 1..20. Ignored for two-player mode.
	Strength int
	// Participant that requested the session; pre-bound to side A when set.
	Creator string
}

// state is the store-private mutable session record. Snapshots are handed out
// instead; state never escapes the store's per-session lock.
type state struct {
	ID        string
	Mode      Mode
	FEN       string
	MoveLog   []Move
	Status    Status
	Outcome   Outcome
	Seats     map[Side]string
	Clocks    Clocks
	Offer     *Offer
	Strength  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Snapshot is the full exported state of a session, sufficient to resume an
// observer with no prior history.
type Snapshot struct {
	ID        string                 `json:"id"`
	Mode      Mode                   `json:"mode"`
	FEN       string                 `json:"fen"`
	MoveLog   []Move                 `json:"move_log"`
	Status    Status                 `json:"status"`
	Outcome   Outcome                `json:"outcome,omitempty"`
	Seats     map[Side]string        `json:"seats"`
	Control   TimeControl            `json:"control"`
	Remaining map[Side]time.Duration `json:"remaining,omitempty"`
	Offer     *Offer                 `json:"offer,omitempty"`
	Strength  int                    `json:"strength,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// Turn reports the side to move. Derived from the log: side A opens.
func (s *state) Turn() Side {
	if len(s.MoveLog)%2 == 0 {
		return SideA
	}
	return SideB
}

func (s *state) seatOf(participant string) (Side, bool) {
	for side, id := range s.Seats {
		if id != "" && id == participant {
			return side, true
		}
	}
	return "", false
}

func (s *state) snapshot(now time.Time) Snapshot {
	snap := Snapshot{
		ID:        s.ID,
		Mode:      s.Mode,
		FEN:       s.FEN,
		MoveLog:   append([]Move(nil), s.MoveLog...),
		Status:    s.Status,
		Outcome:   s.Outcome,
		Seats:     map[Side]string{SideA: s.Seats[SideA], SideB: s.Seats[SideB]},
		Control:   s.Clocks.Control,
		Strength:  s.Strength,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	if s.Offer != nil {
		o := *s.Offer
		snap.Offer = &o
	}
	if s.Clocks.Control.Enabled() {
		snap.Remaining = map[Side]time.Duration{
			SideA: s.remainingFor(SideA, now),
			SideB: s.remainingFor(SideB, now),
		}
	}
	return snap
}

// remainingFor gives the live budget for a side: the stored remainder, minus
// elapsed turn time when the side is to move on an active board.
func (s *state) remainingFor(side Side, now time.Time) time.Duration {
	rem := s.Clocks.Remaining[side]
	if s.Status == StatusActive && s.Turn() == side && !s.Clocks.TurnStarted.IsZero() {
		rem -= now.Sub(s.Clocks.TurnStarted)
	}
	if rem < 0 {
		rem = 0
	}
	return rem
}
