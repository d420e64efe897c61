package nakama

import (
	"errors"
	"fmt"

	"kibako/internal/app"
	"kibako/internal/domain"
	"kibako/internal/protocol"
)

func partUpdatesFromProtocol(updates []protocol.PartUpdate) []app.PartUpdate {
	out := make([]app.PartUpdate, 0, len(updates))
	for _, u := range updates {
		out = append(out, app.PartUpdate{
			PartID:     u.PartID,
			Patch:      u.UpdatePart,
			Properties: u.UpdateProperties,
		})
	}
	return out
}

func cursorsToProtocol(cursors map[string]domain.Cursor) map[string]protocol.CursorInfo {
	out := make(map[string]protocol.CursorInfo, len(cursors))
	for userID, c := range cursors {
		out[userID] = protocol.CursorInfo{
			UserID:    c.UserID,
			UserName:  c.UserName,
			Position:  c.Position,
			UpdatedAt: c.UpdatedAt,
		}
	}
	return out
}

// eventToProtocol maps an app event to its server opcode and wire payload.
func eventToProtocol(ev app.Event) (int64, any, error) {
	switch p := ev.Payload.(type) {
	case app.PartsUpdatedPayload:
		parts := p.Parts
		if parts == nil {
			parts = []domain.Part{}
		}
		props := p.Properties
		if props == nil {
			props = []domain.PartProperty{}
		}
		return protocol.OpPartsSnapshot, protocol.PartsSnapshot{Parts: parts, Properties: props}, nil
	case app.PlayersUpdatedPayload:
		players := p.Players
		if players == nil {
			players = []domain.Player{}
		}
		return protocol.OpPlayersUpdated, players, nil
	case app.CursorsUpdatedPayload:
		return protocol.OpCursorsUpdated, protocol.CursorsSnapshot{Cursors: cursorsToProtocol(p.Cursors)}, nil
	default:
		return 0, nil, fmt.Errorf("unknown event kind %q", ev.Kind)
	}
}

// errorCode classifies a rejected message for the ERROR event.
func errorCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrPartNotFound),
		errors.Is(err, domain.ErrPlayerNotFound):
		return errCodeNotFound
	case errors.Is(err, domain.ErrBoardFull),
		errors.Is(err, errVersionMismatch):
		return errCodeConflict
	case errors.Is(err, domain.ErrUnknownPartType),
		errors.Is(err, domain.ErrInvalidPart),
		errors.Is(err, domain.ErrInvalidPatch),
		errors.Is(err, domain.ErrNotCard),
		errors.Is(err, domain.ErrNotDeck),
		errors.Is(err, domain.ErrNotReversible),
		errors.Is(err, domain.ErrUnknownOrderChange),
		errors.Is(err, app.ErrEmptyBatch),
		errors.Is(err, app.ErrEmptyUpdate),
		errors.Is(err, app.ErrUnknownUser),
		errors.Is(err, errMalformedPayload),
		errors.Is(err, errUnknownOpCode):
		return errCodeBadRequest
	default:
		return errCodeInternal
	}
}
