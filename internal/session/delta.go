package session

import "time"

// Delta is the minimal description of what one accepted command changed.
// At most one of the change groups is set, except a terminal move, which
// carries both the move and the ending.
type Delta struct {
	SessionID string

	// Move applied, with the position it produced.
	Move *Move
	FEN  string

	// Clock budgets after the command, when clocks are enabled.
	Remaining map[Side]time.Duration

	// Draw negotiation.
	OfferBy       *Side
	OfferDeclined *Side
	OfferExpired  bool
	OfferCleared  bool

	// Seat binding.
	SeatSide        *Side
	SeatParticipant string

	// Terminal transition.
	Ended *Ending
}

// Ending records the single terminal transition of a session.
type Ending struct {
	Status  Status  `json:"status"`
	Outcome Outcome `json:"outcome"`
}
