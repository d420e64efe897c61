// Package client is the canvas client core: it turns user intents into
// protocol messages, keeps the last authoritative snapshot, and owns the
// socket connection to the room.
package client

import (
	"context"
	"errors"
	"fmt"

	"kibako/internal/domain"
	"kibako/internal/protocol"

	"go.uber.org/zap"
)

// Action is a part intent. The set of actions is closed.
type Action interface {
	event() protocol.Event
}

type AddPart struct {
	Part       domain.Part
	Properties []domain.PartProperty
}

// UpdatePart patches one part. IsFlipped marks a card currently lying
// face-down; when the patch touches isReversible such a card is also turned
// face-up.
type UpdatePart struct {
	PartID     int64
	Patch      *domain.PartPatch
	Properties []domain.PropertyPatch
	IsFlipped  bool
}

type UpdateParts struct {
	Updates []protocol.PartUpdate
}

type DeletePart struct {
	PartID int64
}

type ChangeOrder struct {
	PartID int64
	Type   domain.OrderChange
}

type ShuffleDeck struct {
	DeckID int64
}

type UpdatePlayerUser struct {
	PlayerID string
	UserID   *string
}

type FlipCard struct {
	CardID        int64
	IsNextFlipped bool
}

func (AddPart) event() protocol.Event          { return protocol.EventAddPart }
func (UpdatePart) event() protocol.Event       { return protocol.EventUpdatePart }
func (UpdateParts) event() protocol.Event      { return protocol.EventUpdateParts }
func (DeletePart) event() protocol.Event       { return protocol.EventDeletePart }
func (ChangeOrder) event() protocol.Event      { return protocol.EventChangeOrder }
func (ShuffleDeck) event() protocol.Event      { return protocol.EventShuffleDeck }
func (UpdatePlayerUser) event() protocol.Event { return protocol.EventUpdatePlayerUser }
func (FlipCard) event() protocol.Event         { return protocol.EventFlipCard }

var (
	ErrUnknownAction = errors.New("unknown action")
	ErrEmptyBatch    = errors.New("update batch is empty")
)

// Translate maps an action to the messages it sends: one primary message,
// plus a FLIP_CARD for an UpdatePart of a flipped card's reversibility.
func Translate(versionID string, a Action) ([]protocol.Message, error) {
	switch a := a.(type) {
	case AddPart:
		props := a.Properties
		if props == nil {
			props = []domain.PartProperty{}
		}
		return one(protocol.EventAddPart, protocol.AddPartRequest{
			PrototypeVersionID: versionID,
			Part:               a.Part,
			Properties:         props,
		}), nil

	case UpdatePart:
		msgs := one(protocol.EventUpdatePart, protocol.UpdatePartRequest{
			PrototypeVersionID: versionID,
			PartID:             a.PartID,
			UpdatePart:         a.Patch,
			UpdateProperties:   a.Properties,
		})
		if a.Patch != nil && a.Patch.TouchesReversible() && a.IsFlipped {
			msgs = append(msgs, protocol.Message{
				Event: protocol.EventFlipCard,
				Payload: protocol.FlipCardRequest{
					PrototypeVersionID: versionID,
					CardID:             a.PartID,
					IsNextFlipped:      !a.IsFlipped,
				},
			})
		}
		return msgs, nil

	case UpdateParts:
		if len(a.Updates) == 0 {
			return nil, ErrEmptyBatch
		}
		return one(protocol.EventUpdateParts, protocol.UpdatePartsRequest{
			PrototypeVersionID: versionID,
			Updates:            a.Updates,
		}), nil

	case DeletePart:
		return one(protocol.EventDeletePart, protocol.DeletePartRequest{
			PrototypeVersionID: versionID,
			PartID:             a.PartID,
		}), nil

	case ChangeOrder:
		if !a.Type.Valid() {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownOrderChange, a.Type)
		}
		return one(protocol.EventChangeOrder, protocol.ChangeOrderRequest{
			PrototypeVersionID: versionID,
			PartID:             a.PartID,
			Type:               a.Type,
		}), nil

	case ShuffleDeck:
		return one(protocol.EventShuffleDeck, protocol.ShuffleDeckRequest{
			PrototypeVersionID: versionID,
			DeckID:             a.DeckID,
		}), nil

	case UpdatePlayerUser:
		return one(protocol.EventUpdatePlayerUser, protocol.UpdatePlayerUserRequest{
			PrototypeVersionID: versionID,
			PlayerID:           a.PlayerID,
			UserID:             a.UserID,
		}), nil

	case FlipCard:
		return one(protocol.EventFlipCard, protocol.FlipCardRequest{
			PrototypeVersionID: versionID,
			CardID:             a.CardID,
			IsNextFlipped:      a.IsNextFlipped,
		}), nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnknownAction, a)
}

func one(event protocol.Event, payload any) []protocol.Message {
	return []protocol.Message{{Event: event, Payload: payload}}
}

// Emitter sends one message to the room.
type Emitter interface {
	Emit(ctx context.Context, msg protocol.Message) error
}

// Reducer dispatches actions of one prototype version. It never touches
// local state; changes become visible through the next snapshot.
type Reducer struct {
	versionID string
	emitter   Emitter
	logger    *zap.Logger
}

func NewReducer(versionID string, emitter Emitter, logger *zap.Logger) *Reducer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reducer{versionID: versionID, emitter: emitter, logger: logger}
}

// Dispatch translates the action and emits its messages in order.
func (r *Reducer) Dispatch(ctx context.Context, a Action) error {
	msgs, err := Translate(r.versionID, a)
	if err != nil {
		r.logger.Warn("dropping action", zap.Error(err))
		return err
	}
	for _, msg := range msgs {
		if err := r.emitter.Emit(ctx, msg); err != nil {
			r.logger.Error("emit failed", zap.String("event", string(msg.Event)), zap.Error(err))
			return fmt.Errorf("emit %s: %w", msg.Event, err)
		}
		r.logger.Debug("emitted", zap.String("event", string(msg.Event)), zap.String("prototype_version_id", r.versionID))
	}
	return nil
}
