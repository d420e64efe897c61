package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"kibako/internal/app"
	"kibako/internal/config"
	"kibako/internal/domain"
	"kibako/internal/ports"
	"kibako/internal/protocol"

	"github.com/heroiclabs/nakama-common/runtime"
)

var (
	errMalformedPayload = errors.New("malformed payload")
	errVersionMismatch  = errors.New("message addressed to another prototype version")
	errUnknownOpCode    = errors.New("unknown opcode")
)

// MatchState holds the authoritative runtime state of one prototype version room.
type MatchState struct {
	VersionID string                      `json:"version_id"`
	Tick      int64                       `json:"tick"`
	Room      *app.Room                   `json:"-"`
	App       *app.Service                `json:"-"`
	Presences map[string]runtime.Presence `json:"-"` // Map SessionId -> Presence; one user may hold several sessions
	Store     ports.BoardStore            `json:"-"`
	Tickets   *app.TicketService          `json:"-"`
}

// roomLabel is the match label. It is marshalled with encoding/json so the
// same version id always yields the same label string, which join_prototype
// matches exactly.
type roomLabel struct {
	App  string `json:"app"`
	Room string `json:"room"`
}

func labelFor(versionID string) string {
	b, _ := json.Marshal(roomLabel{App: labelApp, Room: versionID})
	return string(b)
}

// matchDeps are the collaborators a room is created with.
type matchDeps struct {
	cfg     config.Config
	store   ports.BoardStore
	tickets *app.TicketService
}

type matchHandler struct {
	deps matchDeps
}

func newMatchHandler(deps matchDeps) *matchHandler {
	return &matchHandler{deps: deps}
}

// MatchInit loads the board of the version named in params.
func (mh *matchHandler) MatchInit(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, params map[string]interface{}) (interface{}, int, string) {
	versionID, _ := params[MatchParamVersionID].(string)
	if versionID == "" {
		logger.Error("MatchInit: missing %s param", MatchParamVersionID)
		return nil, 0, ""
	}

	cfg, store := mh.deps.cfg, mh.deps.store

	board, err := loadBoard(ctx, store, versionID)
	if err != nil {
		logger.Error("MatchInit: failed to load board %s: %v", versionID, err)
		return nil, 0, ""
	}

	state := &MatchState{
		VersionID: versionID,
		Room:      app.NewRoom(board),
		App:       app.NewService(nil, cfg.Room.MaxParts),
		Presences: make(map[string]runtime.Presence),
		Store:     store,
		Tickets:   mh.deps.tickets,
	}

	if state.App.SeedPlayers(board, cfg.Room.DefaultPlayerCount) {
		logger.Info("MatchInit: seeded %d players for %s", cfg.Room.DefaultPlayerCount, versionID)
		mh.save(ctx, state, logger)
	}

	logger.Debug("MatchInit: room %s ready with %d parts", versionID, len(board.Parts))
	return state, cfg.Room.TickRate, labelFor(versionID)
}

func loadBoard(ctx context.Context, store ports.BoardStore, versionID string) (*domain.Board, error) {
	if store == nil {
		return domain.NewBoard(versionID), nil
	}
	board, err := store.Load(ctx, versionID)
	if errors.Is(err, ports.ErrBoardNotFound) {
		return domain.NewBoard(versionID), nil
	}
	return board, err
}

// MatchJoinAttempt enforces the join ticket when tickets are enabled.
func (mh *matchHandler) MatchJoinAttempt(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presence runtime.Presence, metadata map[string]string) (interface{}, bool, string) {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state, false, "state not found"
	}
	if !matchState.Tickets.Enabled() {
		return state, true, ""
	}

	err := matchState.Tickets.Verify(metadata[JoinMetadataTicket], presence.GetUserId(), matchState.VersionID)
	if err != nil {
		logger.Warn("MatchJoinAttempt: user %s rejected from %s: %v", presence.GetUserId(), matchState.VersionID, err)
		return state, false, "invalid join ticket"
	}
	return state, true, ""
}

// MatchJoin registers the presences and sends each of them the room snapshot.
func (mh *matchHandler) MatchJoin(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchJoin: state not found")
		return state
	}

	for _, p := range presences {
		matchState.Presences[p.GetSessionId()] = p
	}

	// The snapshot goes to the joining sessions only, not to other sessions
	// of the same user.
	for _, ev := range matchState.App.Snapshot(matchState.Room) {
		mh.sendTo(dispatcher, logger, ev, presences)
	}
	return matchState
}

// MatchLeave drops the cursors of users whose last session left. The room
// saves and terminates once no session is left.
func (mh *matchHandler) MatchLeave(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchLeave: state not found")
		return state
	}

	var events []app.Event
	for _, p := range presences {
		delete(matchState.Presences, p.GetSessionId())
	}
	for _, p := range presences {
		if len(matchState.sessionsOf(p.GetUserId())) == 0 {
			events = append(events, matchState.App.RemoveCursor(matchState.Room, p.GetUserId())...)
		}
	}

	if len(matchState.Presences) == 0 {
		mh.save(ctx, matchState, logger)
		logger.Info("MatchLeave: room %s is empty, terminating", matchState.VersionID)
		return nil
	}

	mh.broadcastEvents(matchState, dispatcher, logger, events)
	return matchState
}

func (mh *matchHandler) MatchLoop(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, messages []runtime.MatchData) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state
	}

	matchState.Tick = tick
	for _, msg := range messages {
		mh.handleMessage(ctx, matchState, dispatcher, logger, msg)
	}
	return matchState
}

// handleMessage applies one client message. Accepted mutations are
// broadcast and persisted; rejected ones answer the sender with ERROR.
func (mh *matchHandler) handleMessage(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, msg runtime.MatchData) {
	senderID := msg.GetUserId()
	event, known := protocol.ClientEvent(msg.GetOpCode())
	if !known {
		logger.Warn("MatchLoop: unknown opcode %d from %s", msg.GetOpCode(), senderID)
		mh.sendError(state, dispatcher, logger, msg, event, errUnknownOpCode)
		return
	}

	if err := checkVersion(msg.GetData(), state.VersionID); err != nil {
		logger.Warn("MatchLoop: %s from %s rejected: %v", event, senderID, err)
		mh.sendError(state, dispatcher, logger, msg, event, err)
		return
	}

	if msg.GetOpCode() == protocol.OpJoinPrototype {
		sender, ok := state.Presences[msg.GetSessionId()]
		if !ok {
			logger.Warn("MatchLoop: %s from unknown session %s", event, msg.GetSessionId())
			return
		}
		for _, ev := range state.App.Snapshot(state.Room) {
			mh.sendTo(dispatcher, logger, ev, []runtime.Presence{sender})
		}
		return
	}

	events, mutated, err := mh.apply(state, msg)
	if err != nil {
		logger.Warn("MatchLoop: %s from %s rejected: %v", event, senderID, err)
		mh.sendError(state, dispatcher, logger, msg, event, err)
		return
	}

	mh.broadcastEvents(state, dispatcher, logger, events)
	if mutated {
		mh.save(ctx, state, logger)
	}
}

func (mh *matchHandler) apply(state *MatchState, msg runtime.MatchData) ([]app.Event, bool, error) {
	svc, room, data := state.App, state.Room, msg.GetData()

	switch msg.GetOpCode() {
	case protocol.OpAddPart:
		var req protocol.AddPartRequest
		if err := decode(data, &req); err != nil {
			return nil, false, err
		}
		req.Part.PrototypeVersionID = state.VersionID
		events, err := svc.AddPart(room, req.Part, req.Properties)
		return events, err == nil, err

	case protocol.OpUpdatePart:
		var req protocol.UpdatePartRequest
		if err := decode(data, &req); err != nil {
			return nil, false, err
		}
		events, err := svc.UpdatePart(room, app.PartUpdate{
			PartID:     req.PartID,
			Patch:      req.UpdatePart,
			Properties: req.UpdateProperties,
		})
		return events, err == nil, err

	case protocol.OpUpdateParts:
		var req protocol.UpdatePartsRequest
		if err := decode(data, &req); err != nil {
			return nil, false, err
		}
		events, err := svc.UpdateParts(room, partUpdatesFromProtocol(req.Updates))
		return events, err == nil, err

	case protocol.OpDeletePart:
		var req protocol.DeletePartRequest
		if err := decode(data, &req); err != nil {
			return nil, false, err
		}
		events, err := svc.DeletePart(room, req.PartID)
		return events, err == nil, err

	case protocol.OpChangeOrder:
		var req protocol.ChangeOrderRequest
		if err := decode(data, &req); err != nil {
			return nil, false, err
		}
		events, err := svc.ChangeOrder(room, req.PartID, req.Type)
		return events, err == nil, err

	case protocol.OpFlipCard:
		var req protocol.FlipCardRequest
		if err := decode(data, &req); err != nil {
			return nil, false, err
		}
		events, err := svc.FlipCard(room, req.CardID, req.IsNextFlipped)
		return events, err == nil, err

	case protocol.OpShuffleDeck:
		var req protocol.ShuffleDeckRequest
		if err := decode(data, &req); err != nil {
			return nil, false, err
		}
		events, err := svc.ShuffleDeck(room, req.DeckID)
		return events, err == nil, err

	case protocol.OpUpdatePlayerUser:
		var req protocol.UpdatePlayerUserRequest
		if err := decode(data, &req); err != nil {
			return nil, false, err
		}
		events, err := svc.UpdatePlayerUser(room, req.PlayerID, req.UserID)
		return events, err == nil, err

	case protocol.OpUpdateCursor:
		var req protocol.UpdateCursorRequest
		if err := decode(data, &req); err != nil {
			return nil, false, err
		}
		name := req.UserName
		if name == "" {
			name = msg.GetUsername()
		}
		events, err := svc.UpdateCursor(room, msg.GetUserId(), name, req.Position)
		return events, false, err
	}
	return nil, false, errUnknownOpCode
}

func decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", errMalformedPayload, err)
	}
	return nil
}

// checkVersion rejects payloads addressed to another room. An absent
// version id is taken to mean this room.
func checkVersion(data []byte, versionID string) error {
	if len(data) == 0 {
		return nil
	}
	var env struct {
		PrototypeVersionID string `json:"prototypeVersionId"`
	}
	if err := decode(data, &env); err != nil {
		return err
	}
	if env.PrototypeVersionID != "" && env.PrototypeVersionID != versionID {
		return errVersionMismatch
	}
	return nil
}

func (mh *matchHandler) save(ctx context.Context, state *MatchState, logger runtime.Logger) {
	if state.Store == nil {
		return
	}
	if err := state.Store.Save(ctx, state.Room.Board); err != nil {
		logger.Error("Failed to save board %s: %v", state.VersionID, err)
	}
}

func (mh *matchHandler) broadcastEvents(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, events []app.Event) {
	for _, ev := range events {
		mh.broadcastEvent(state, dispatcher, logger, ev)
	}
}

// broadcastEvent handles the conversion and dispatching of app events to Nakama.
func (mh *matchHandler) broadcastEvent(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, ev app.Event) {
	opCode, payload, err := eventToProtocol(ev)
	if err != nil {
		logger.Warn("broadcastEvent: %v", err)
		return
	}
	bytes, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Failed to marshal event %v: %v", ev.Kind, err)
		return
	}

	// Determine recipients (default to broadcast)
	var recipients []runtime.Presence
	if len(ev.Recipients) > 0 {
		for _, uid := range ev.Recipients {
			recipients = append(recipients, state.sessionsOf(uid)...)
		}
		// Targeted events never fall back to a broadcast.
		if len(recipients) == 0 {
			return
		}
	}

	if err := dispatcher.BroadcastMessage(opCode, bytes, recipients, nil, true); err != nil {
		logger.Error("Failed to broadcast %v: %v", ev.Kind, err)
	}
}

// sendTo delivers one event to the given sessions.
func (mh *matchHandler) sendTo(dispatcher runtime.MatchDispatcher, logger runtime.Logger, ev app.Event, presences []runtime.Presence) {
	if len(presences) == 0 {
		return
	}
	opCode, payload, err := eventToProtocol(ev)
	if err != nil {
		logger.Warn("sendTo: %v", err)
		return
	}
	bytes, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Failed to marshal event %v: %v", ev.Kind, err)
		return
	}
	if err := dispatcher.BroadcastMessage(opCode, bytes, presences, nil, true); err != nil {
		logger.Error("Failed to send %v: %v", ev.Kind, err)
	}
}

// sessionsOf returns the connected sessions of a user.
func (s *MatchState) sessionsOf(userID string) []runtime.Presence {
	var out []runtime.Presence
	for _, p := range s.Presences {
		if p.GetUserId() == userID {
			out = append(out, p)
		}
	}
	return out
}

// sendError sends an ERROR event to the session that sent msg.
func (mh *matchHandler) sendError(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, msg runtime.MatchData, event protocol.Event, cause error) {
	userID := msg.GetUserId()
	bytes, err := json.Marshal(protocol.ErrorEvent{
		Code:    errorCode(cause),
		Event:   event,
		Message: cause.Error(),
	})
	if err != nil {
		logger.Error("Failed to marshal error event: %v", err)
		return
	}

	presence, ok := state.Presences[msg.GetSessionId()]
	if !ok {
		logger.Warn("Cannot send error to %s: Presence not found", userID)
		return
	}

	if err := dispatcher.BroadcastMessage(protocol.OpError, bytes, []runtime.Presence{presence}, nil, true); err != nil {
		logger.Error("Failed to send error to %s: %v", userID, err)
	}
}

// MatchTerminate persists the board before the room goes away.
func (mh *matchHandler) MatchTerminate(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, graceSeconds int) interface{} {
	if matchState, ok := state.(*MatchState); ok {
		mh.save(ctx, matchState, logger)
	}
	logger.Debug("MatchTerminate: room terminated with %d grace seconds", graceSeconds)
	return state
}

func (mh *matchHandler) MatchSignal(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, data string) (interface{}, string) {
	return state, ""
}
