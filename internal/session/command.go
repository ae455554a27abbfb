package session

// Command is the closed set of state-changing requests a session accepts.
// Exactly one variant per inbound operation; the machine dispatches over the
// set in a single switch so every case is testable in isolation.
type Command interface{ isCommand() }

// ApplyMove plays a move for a side. UCI carries the move in coordinate
// notation (e2e4, e7e8q); SAN input is accepted by the rules engine as a
// fallback.
type ApplyMove struct {
	Side Side
	UCI  string
}

// Resign ends the session in favor of the opponent.
type Resign struct {
	Side Side
}

// Timeout flags a flag-fall for a side. Submitted by the clock sweeper (or a
// client noticing expiry); validated against the session's own clock before
// it is honored.
type Timeout struct {
	Side Side
}

// OfferDraw places a draw offer addressed to the opponent.
type OfferDraw struct {
	Side Side
}

// RespondDraw accepts or declines the outstanding offer. Only the
// non-proposing side may respond.
type RespondDraw struct {
	Side   Side
	Accept bool
}

// AssignSeat binds a participant identity to an unoccupied seat.
type AssignSeat struct {
	Side        Side
	Participant string
}

// expireOffer is issued internally by the sweeper when a pending offer
// outlives its TTL. Not accepted from the wire.
type expireOffer struct{}

func (ApplyMove) isCommand()   {}
func (Resign) isCommand()      {}
func (Timeout) isCommand()     {}
func (OfferDraw) isCommand()   {}
func (RespondDraw) isCommand() {}
func (AssignSeat) isCommand()  {}
func (expireOffer) isCommand() {}
