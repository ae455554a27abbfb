package session

import "errors"

// Rejection reasons. Every failed command maps to exactly one of these so the
// gateway can relay a stable reason code to the issuing connection.
var (
	ErrSessionNotFound         = reason("session_not_found")
	ErrSessionFinished         = reason("session_finished")
	ErrNotYourTurn             = reason("not_your_turn")
	ErrIllegalMove             = reason("illegal_move")
	ErrSeatOccupied            = reason("seat_occupied")
	ErrOfferAlreadyPending     = reason("offer_already_pending")
	ErrNoOfferToRespondTo      = reason("no_offer_to_respond_to")
	ErrNotParticipant          = reason("not_participant")
	ErrClockStillRunning       = reason("clock_still_running")
	ErrCollaboratorUnavailable = reason("collaborator_unavailable")
	ErrInvalidCommand          = reason("invalid_command")
)

type reason string

func (r reason) Error() string { return string(r) }

// Reason extracts the stable reason code from a rejection error, or an empty
// string when err is not a rejection.
func Reason(err error) string {
	var r reason
	if errors.As(err, &r) {
		return string(r)
	}
	return ""
}
