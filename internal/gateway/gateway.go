// Package gateway is the connection edge: it owns join/leave lifecycle,
// translates client commands into store mutations, and relays rejections back
// to the issuing connection only.
package gateway

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-arena/internal/hub"
	"github.com/park285/chess-arena/internal/msgcat"
	"github.com/park285/chess-arena/internal/session"
	"github.com/park285/chess-arena/pkg/wire"
)

// Gateway mediates between transports and the session store. It is
// transport-agnostic; the ws and rest servers sit on top of it.
type Gateway struct {
	store  *session.Store
	hub    *hub.Hub
	cat    *msgcat.Catalog
	logger *zap.Logger

	defaultControl  session.TimeControl
	defaultStrength int
}

func New(store *session.Store, h *hub.Hub, cat *msgcat.Catalog, defaultControl session.TimeControl, defaultStrength int, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		store:           store,
		hub:             h,
		cat:             cat,
		logger:          logger,
		defaultControl:  defaultControl,
		defaultStrength: defaultStrength,
	}
}

// Hub exposes the dispatcher for transports that pump subscriptions.
func (g *Gateway) Hub() *hub.Hub { return g.hub }

// PublishDelta is the store's Publisher: it expands a committed delta into
// wire events and fans them out. Wired at startup.
func (g *Gateway) PublishDelta(d session.Delta, _ session.Snapshot) {
	events := wire.EventsFrom(d)
	if len(events) == 0 {
		return
	}
	g.hub.Publish(d.SessionID, events...)
}

// CreateSession registers a new session from a create command.
func (g *Gateway) CreateSession(cmd wire.Command) (session.Snapshot, *wire.Event) {
	mode := session.ModeTwoPlayer
	switch strings.TrimSpace(cmd.Mode) {
	case "", string(session.ModeTwoPlayer):
	case string(session.ModeEngine):
		mode = session.ModeEngine
	default:
		return session.Snapshot{}, g.reject("", session.ErrInvalidCommand)
	}

	control := g.defaultControl
	if cmd.InitialMs != 0 || cmd.IncrementMs != 0 {
		control = session.TimeControl{
			Initial:   time.Duration(cmd.InitialMs) * time.Millisecond,
			Increment: time.Duration(cmd.IncrementMs) * time.Millisecond,
		}
	}
	strength := cmd.Strength
	if strength == 0 {
		strength = g.defaultStrength
	}
	snap, err := g.store.Create(mode, session.Config{
		TimeControl: control,
		Strength:    strength,
		Creator:     strings.TrimSpace(cmd.Participant),
	})
	if err != nil {
		return session.Snapshot{}, g.reject("", err)
	}
	return snap, nil
}

// JoinResult is what a transport needs to run a joined connection.
type JoinResult struct {
	Snapshot    session.Snapshot
	Sub         *hub.Subscriber
	Seat        session.Side // empty for spectators
	Reconnected bool
}

// Join attaches a participant (or spectator) to a session: subscribe, seat
// resolution, then snapshot. The snapshot is taken after subscribing so no
// event can fall between it and the stream; an event may appear in both and
// clients dedupe on move seq.
func (g *Gateway) Join(sessionID, participant string, spectator bool) (*JoinResult, *wire.Event) {
	participant = strings.TrimSpace(participant)
	if _, err := g.store.Get(sessionID); err != nil {
		return nil, g.reject(sessionID, err)
	}

	sub := g.hub.Subscribe(sessionID)
	res := &JoinResult{Sub: sub}

	if !spectator && participant != "" {
		seat, held, err := g.store.SeatOf(sessionID, participant)
		if err != nil {
			g.hub.Unsubscribe(sub)
			return nil, g.reject(sessionID, err)
		}
		switch {
		case held:
			res.Seat = seat
			res.Reconnected = true
		default:
			seat, err := g.claimSeat(sessionID, participant)
			if err != nil {
				// Watching requires the explicit spectator flag.
				g.hub.Unsubscribe(sub)
				return nil, g.reject(sessionID, err)
			}
			res.Seat = seat
		}
	}

	snap, err := g.store.Get(sessionID)
	if err != nil {
		g.hub.Unsubscribe(sub)
		return nil, g.reject(sessionID, err)
	}
	res.Snapshot = snap

	evtType := wire.EvtParticipantJoined
	if res.Reconnected {
		evtType = wire.EvtParticipantReconnected
	}
	g.hub.Publish(sessionID, wire.Event{
		Type:         evtType,
		SessionID:    sessionID,
		Participant:  participant,
		Seat:         string(res.Seat),
		Participants: g.hub.Count(sessionID),
	})
	g.logger.Info("gateway_join",
		zap.String("session_id", sessionID),
		zap.String("participant", participant),
		zap.String("seat", string(res.Seat)),
		zap.Bool("reconnected", res.Reconnected),
	)
	return res, nil
}

// Leave detaches a connection. Seats are retained for reconnection; only the
// subscription goes away.
func (g *Gateway) Leave(sessionID, participant string, sub *hub.Subscriber) {
	g.hub.Unsubscribe(sub)
	g.hub.Publish(sessionID, wire.Event{
		Type:         wire.EvtParticipantLeft,
		SessionID:    sessionID,
		Participant:  participant,
		Participants: g.hub.Count(sessionID),
	})
	g.logger.Info("gateway_leave",
		zap.String("session_id", sessionID),
		zap.String("participant", participant),
	)
}

// Command applies a state-changing client command. A nil return means the
// command landed and its effects arrive through the event stream; otherwise
// the rejection event goes back to the issuing connection only.
func (g *Gateway) Command(ctx context.Context, participant string, cmd wire.Command) *wire.Event {
	sessionID := strings.TrimSpace(cmd.SessionID)
	seat, held, err := g.store.SeatOf(sessionID, strings.TrimSpace(participant))
	if err != nil {
		return g.reject(sessionID, err)
	}
	if !held {
		return g.reject(sessionID, session.ErrNotParticipant)
	}

	var sc session.Command
	switch cmd.Type {
	case wire.CmdApplyMove:
		sc = session.ApplyMove{Side: seat, UCI: cmd.MoveText()}
	case wire.CmdResign:
		sc = session.Resign{Side: seat}
	case wire.CmdOfferDraw:
		sc = session.OfferDraw{Side: seat}
	case wire.CmdRespondDraw:
		sc = session.RespondDraw{Side: seat, Accept: cmd.Accept}
	default:
		return g.reject(sessionID, session.ErrInvalidCommand)
	}

	if _, _, err := g.store.Mutate(ctx, sessionID, sc); err != nil {
		return g.reject(sessionID, err)
	}
	return nil
}

const maxChatLen = 512

// Chat relays a room message to everyone attached to the session, spectators
// included. It never touches game state.
func (g *Gateway) Chat(participant string, cmd wire.Command) *wire.Event {
	sessionID := strings.TrimSpace(cmd.SessionID)
	if _, err := g.store.Get(sessionID); err != nil {
		return g.reject(sessionID, err)
	}
	participant = strings.TrimSpace(participant)
	text := strings.TrimSpace(cmd.Text)
	if participant == "" || text == "" || len(text) > maxChatLen {
		return g.reject(sessionID, session.ErrInvalidCommand)
	}
	g.hub.Publish(sessionID, wire.Event{
		Type:        wire.EvtChat,
		SessionID:   sessionID,
		Participant: participant,
		Message:     text,
	})
	return nil
}

// claimSeat binds the participant to a free seat, trying A then B. The error
// carries the reason no seat could be taken: seat_occupied when both seats
// are bound, or the underlying rejection (a finished session, for one).
func (g *Gateway) claimSeat(sessionID, participant string) (session.Side, error) {
	snap, err := g.store.Get(sessionID)
	if err != nil {
		return "", err
	}
	for _, side := range []session.Side{session.SideA, session.SideB} {
		if snap.Seats[side] != "" {
			continue
		}
		_, _, err := g.store.Mutate(context.Background(), sessionID,
			session.AssignSeat{Side: side, Participant: participant})
		if err == nil {
			return side, nil
		}
		if !errors.Is(err, session.ErrSeatOccupied) {
			return "", err
		}
	}
	return "", session.ErrSeatOccupied
}

// reject wraps a store error into the single-connection rejection frame.
func (g *Gateway) reject(sessionID string, err error) *wire.Event {
	code := session.Reason(err)
	if code == "" {
		code = string(session.ErrInvalidCommand)
	}
	evt := &wire.Event{
		Type:      wire.EvtCommandRejected,
		SessionID: sessionID,
		Reason:    code,
	}
	if g.cat != nil {
		evt.Message = g.cat.Reject(code)
	}
	return evt
}
