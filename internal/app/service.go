package app

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"kibako/internal/domain"

	"github.com/google/uuid"
)

// Room is the authoritative state of one prototype version room.
type Room struct {
	Board   *domain.Board
	Cursors map[string]domain.Cursor // userId -> cursor
}

// NewRoom wraps a loaded board.
func NewRoom(board *domain.Board) *Room {
	return &Room{Board: board, Cursors: make(map[string]domain.Cursor)}
}

// PartUpdate is one entry of a batch update.
type PartUpdate struct {
	PartID     int64
	Patch      *domain.PartPatch
	Properties []domain.PropertyPatch
}

// Service contains the room use-cases operating on domain state.
type Service struct {
	rng      *rand.Rand
	now      func() time.Time
	maxParts int
}

// NewService constructs a Service with provided rng or a time-seeded default.
// maxParts <= 0 selects DefaultMaxParts.
func NewService(rng *rand.Rand, maxParts int) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if maxParts <= 0 {
		maxParts = DefaultMaxParts
	}
	return &Service{rng: rng, now: time.Now, maxParts: maxParts}
}

var (
	ErrRoomNotLoaded = errors.New("room not loaded")
	ErrEmptyBatch    = errors.New("update batch is empty")
	ErrEmptyUpdate   = errors.New("update changes nothing")
	ErrUnknownUser   = errors.New("user id is required")
)

// Snapshot returns the full state of the room addressed to recipients,
// or to everyone when recipients is empty.
func (s *Service) Snapshot(room *Room, recipients ...string) []Event {
	events := []Event{
		partsEvent(room.Board),
		playersEvent(room.Board),
		cursorsEvent(room),
	}
	for i := range events {
		events[i].Recipients = recipients
	}
	return events
}

// SeedPlayers adds count players to a board that has none. count <= 0
// selects DefaultPlayerCount.
func (s *Service) SeedPlayers(board *domain.Board, count int) bool {
	if len(board.Players) > 0 {
		return false
	}
	if count <= 0 {
		count = DefaultPlayerCount
	}
	for i := 1; i <= count; i++ {
		board.Players = append(board.Players, domain.Player{
			ID:                 uuid.NewString(),
			PrototypeVersionID: board.VersionID,
			Name:               fmt.Sprintf("Player %d", i),
		})
	}
	return true
}

// AddPart creates a part with its properties.
func (s *Service) AddPart(room *Room, part domain.Part, props []domain.PartProperty) ([]Event, error) {
	if s.maxParts > 0 && len(room.Board.Parts) >= s.maxParts {
		return nil, domain.ErrBoardFull
	}
	err := s.mutate(room, func(b *domain.Board) error {
		_, err := b.AddPart(part, props, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return []Event{partsEvent(room.Board)}, nil
}

// UpdatePart applies a single part update.
func (s *Service) UpdatePart(room *Room, update PartUpdate) ([]Event, error) {
	return s.UpdateParts(room, []PartUpdate{update})
}

// UpdateParts applies a batch of part updates atomically: either every
// update applies or the board is left unchanged.
func (s *Service) UpdateParts(room *Room, updates []PartUpdate) ([]Event, error) {
	if len(updates) == 0 {
		return nil, ErrEmptyBatch
	}
	err := s.mutate(room, func(b *domain.Board) error {
		for _, u := range updates {
			patch := domain.PartPatch{}
			if u.Patch != nil {
				patch = *u.Patch
			}
			if patch.IsEmpty() && len(u.Properties) == 0 {
				return fmt.Errorf("%w: part %d", ErrEmptyUpdate, u.PartID)
			}
			if err := b.UpdatePart(u.PartID, patch, u.Properties); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return []Event{partsEvent(room.Board)}, nil
}

// DeletePart removes a part.
func (s *Service) DeletePart(room *Room, partID int64) ([]Event, error) {
	if err := s.mutate(room, func(b *domain.Board) error { return b.DeletePart(partID) }); err != nil {
		return nil, err
	}
	return []Event{partsEvent(room.Board)}, nil
}

// ChangeOrder resolves a qualitative reordering directive.
func (s *Service) ChangeOrder(room *Room, partID int64, change domain.OrderChange) ([]Event, error) {
	err := s.mutate(room, func(b *domain.Board) error {
		_, err := b.ChangeOrder(partID, change)
		return err
	})
	if err != nil {
		return nil, err
	}
	return []Event{partsEvent(room.Board)}, nil
}

// FlipCard turns a card face-down or face-up.
func (s *Service) FlipCard(room *Room, cardID int64, isNextFlipped bool) ([]Event, error) {
	if err := s.mutate(room, func(b *domain.Board) error { return b.FlipCard(cardID, isNextFlipped) }); err != nil {
		return nil, err
	}
	return []Event{partsEvent(room.Board)}, nil
}

// ShuffleDeck permutes the cards of a deck.
func (s *Service) ShuffleDeck(room *Room, deckID int64) ([]Event, error) {
	if err := s.mutate(room, func(b *domain.Board) error { return b.ShuffleDeck(deckID, s.rng) }); err != nil {
		return nil, err
	}
	return []Event{partsEvent(room.Board)}, nil
}

// UpdatePlayerUser binds or unbinds a player's user. Parts are not touched.
func (s *Service) UpdatePlayerUser(room *Room, playerID string, userID *string) ([]Event, error) {
	if err := s.mutate(room, func(b *domain.Board) error { return b.UpdatePlayerUser(playerID, userID) }); err != nil {
		return nil, err
	}
	return []Event{playersEvent(room.Board)}, nil
}

// UpdateCursor records the pointer position of a user.
func (s *Service) UpdateCursor(room *Room, userID, userName string, pos domain.Point) ([]Event, error) {
	if userID == "" {
		return nil, ErrUnknownUser
	}
	room.Cursors[userID] = domain.Cursor{
		UserID:    userID,
		UserName:  userName,
		Position:  pos,
		UpdatedAt: s.now(),
	}
	return []Event{cursorsEvent(room)}, nil
}

// RemoveCursor drops the cursor of a user that left. It returns no events
// when the user had no cursor.
func (s *Service) RemoveCursor(room *Room, userID string) []Event {
	if _, ok := room.Cursors[userID]; !ok {
		return nil
	}
	delete(room.Cursors, userID)
	return []Event{cursorsEvent(room)}
}

// mutate runs fn against a copy of the board and commits it only on success.
func (s *Service) mutate(room *Room, fn func(*domain.Board) error) error {
	if room == nil || room.Board == nil {
		return ErrRoomNotLoaded
	}
	next := room.Board.Clone()
	if err := fn(next); err != nil {
		return err
	}
	room.Board = next
	return nil
}

func partsEvent(b *domain.Board) Event {
	return Event{
		Kind: EventPartsUpdated,
		Payload: PartsUpdatedPayload{
			Parts:      b.Sorted(),
			Properties: append([]domain.PartProperty(nil), b.Properties...),
		},
	}
}

func playersEvent(b *domain.Board) Event {
	return Event{
		Kind:    EventPlayersUpdated,
		Payload: PlayersUpdatedPayload{Players: append([]domain.Player(nil), b.Players...)},
	}
}

func cursorsEvent(room *Room) Event {
	cursors := make(map[string]domain.Cursor, len(room.Cursors))
	for k, v := range room.Cursors {
		cursors[k] = v
	}
	return Event{Kind: EventCursorsUpdated, Payload: CursorsUpdatedPayload{Cursors: cursors}}
}
