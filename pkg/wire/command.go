// Package wire defines the transport-agnostic JSON shapes exchanged with
// clients: inbound commands and outbound session events.
package wire

// CommandType tags an inbound client command.
type CommandType string

const (
	CmdCreateSession    CommandType = "create_session"
	CmdJoinSession      CommandType = "join_session"
	CmdReconnectSession CommandType = "reconnect_session"
	CmdApplyMove        CommandType = "apply_move"
	CmdResign           CommandType = "resign"
	CmdOfferDraw        CommandType = "offer_draw"
	CmdRespondDraw      CommandType = "respond_draw"
	CmdChat             CommandType = "chat"
)

// Command is the single inbound frame. Fields beyond Type are populated per
// command; unknown fields are ignored.
type Command struct {
	Type        CommandType `json:"type"`
	SessionID   string      `json:"session_id,omitempty"`
	Participant string      `json:"participant,omitempty"`

	// create_session
	Mode        string `json:"mode,omitempty"`
	Strength    int    `json:"strength,omitempty"`
	InitialMs   int64  `json:"initial_ms,omitempty"`
	IncrementMs int64  `json:"increment_ms,omitempty"`

	// join_session
	Spectator bool `json:"spectator,omitempty"`

	// apply_move: either UCI, or From/To (+Promotion)
	UCI       string `json:"uci,omitempty"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Promotion string `json:"promotion,omitempty"`

	// respond_draw
	Accept bool `json:"accept,omitempty"`

	// chat
	Text string `json:"text,omitempty"`
}

// MoveText folds the two accepted move encodings into one string for the
// rules engine.
func (c Command) MoveText() string {
	if c.UCI != "" {
		return c.UCI
	}
	return c.From + c.To + c.Promotion
}
