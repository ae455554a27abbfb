package wire

import (
	"time"

	"github.com/park285/chess-arena/internal/session"
)

// EventType tags an outbound frame.
type EventType string

const (
	EvtSnapshot               EventType = "snapshot"
	EvtMoveApplied            EventType = "move_applied"
	EvtGameEnded              EventType = "game_ended"
	EvtDrawOffered            EventType = "draw_offered"
	EvtDrawDeclined           EventType = "draw_declined"
	EvtDrawOfferExpired       EventType = "draw_offer_expired"
	EvtParticipantJoined      EventType = "participant_joined"
	EvtParticipantLeft        EventType = "participant_left"
	EvtParticipantReconnected EventType = "participant_reconnected"
	EvtChat                   EventType = "chat"
	EvtCommandRejected        EventType = "command_rejected"
)

// Event is the single outbound frame. Exactly one payload group is set,
// selected by Type.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`

	Snapshot *Snapshot `json:"snapshot,omitempty"`

	// move_applied
	Move        *MoveInfo        `json:"move,omitempty"`
	FEN         string           `json:"fen,omitempty"`
	RemainingMs map[string]int64 `json:"remaining_ms,omitempty"`

	// game_ended
	Status  string `json:"status,omitempty"`
	Outcome string `json:"outcome,omitempty"`

	// negotiation
	By string `json:"by,omitempty"`

	// participant events
	Participant  string `json:"participant,omitempty"`
	Seat         string `json:"seat,omitempty"`
	Participants int    `json:"participants,omitempty"`

	// command_rejected, chat
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

// MoveInfo mirrors one applied move of the log.
type MoveInfo struct {
	Seq       int    `json:"seq"`
	Side      string `json:"side"`
	UCI       string `json:"uci"`
	SAN       string `json:"san"`
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

// Snapshot is the full session view delivered on (re)join. Replaying the
// delta stream from creation yields exactly this content.
type Snapshot struct {
	ID          string            `json:"id"`
	Mode        string            `json:"mode"`
	FEN         string            `json:"fen"`
	MoveLog     []MoveInfo        `json:"move_log"`
	Status      string            `json:"status"`
	Outcome     string            `json:"outcome,omitempty"`
	Seats       map[string]string `json:"seats"`
	RemainingMs map[string]int64  `json:"remaining_ms,omitempty"`
	OfferBy     string            `json:"offer_by,omitempty"`
	Strength    int               `json:"strength,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// SnapshotFrom converts the store's snapshot to its wire shape.
func SnapshotFrom(s session.Snapshot) *Snapshot {
	out := &Snapshot{
		ID:        s.ID,
		Mode:      string(s.Mode),
		FEN:       s.FEN,
		MoveLog:   make([]MoveInfo, 0, len(s.MoveLog)),
		Status:    string(s.Status),
		Outcome:   string(s.Outcome),
		Seats:     map[string]string{},
		Strength:  s.Strength,
		CreatedAt: s.CreatedAt,
	}
	for _, mv := range s.MoveLog {
		out.MoveLog = append(out.MoveLog, moveInfo(mv))
	}
	for side, id := range s.Seats {
		out.Seats[string(side)] = id
	}
	if s.Remaining != nil {
		out.RemainingMs = remainingMs(s.Remaining)
	}
	if s.Offer != nil {
		out.OfferBy = string(s.Offer.By)
	}
	return out
}

// EventsFrom expands one committed delta into its outbound events, in
// delivery order. A terminal move yields move_applied then game_ended.
func EventsFrom(d session.Delta) []Event {
	var out []Event
	if d.Move != nil {
		mv := moveInfo(*d.Move)
		out = append(out, Event{
			Type:        EvtMoveApplied,
			SessionID:   d.SessionID,
			Move:        &mv,
			FEN:         d.FEN,
			RemainingMs: remainingMs(d.Remaining),
		})
	}
	if d.OfferBy != nil {
		out = append(out, Event{Type: EvtDrawOffered, SessionID: d.SessionID, By: string(*d.OfferBy)})
	}
	if d.OfferDeclined != nil {
		out = append(out, Event{Type: EvtDrawDeclined, SessionID: d.SessionID, By: string(*d.OfferDeclined)})
	}
	if d.OfferExpired {
		out = append(out, Event{Type: EvtDrawOfferExpired, SessionID: d.SessionID})
	}
	if d.Ended != nil {
		out = append(out, Event{
			Type:        EvtGameEnded,
			SessionID:   d.SessionID,
			Status:      string(d.Ended.Status),
			Outcome:     string(d.Ended.Outcome),
			RemainingMs: remainingMs(d.Remaining),
		})
	}
	return out
}

func moveInfo(mv session.Move) MoveInfo {
	return MoveInfo{
		Seq:       mv.Seq,
		Side:      string(mv.Side),
		UCI:       mv.UCI,
		SAN:       mv.SAN,
		From:      mv.From,
		To:        mv.To,
		Promotion: mv.Promotion,
	}
}

func remainingMs(rem map[session.Side]time.Duration) map[string]int64 {
	if rem == nil {
		return nil
	}
	out := make(map[string]int64, len(rem))
	for side, d := range rem {
		out[string(side)] = d.Milliseconds()
	}
	return out
}
