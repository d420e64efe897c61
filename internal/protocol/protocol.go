// Package protocol defines the socket events exchanged between the canvas
// client and the room, their Nakama opcodes and their JSON payloads.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"kibako/internal/domain"
)

// Event is a socket event name.
type Event string

const (
	// Client -> Server
	EventJoinPrototype    Event = "JOIN_PROTOTYPE"
	EventAddPart          Event = "ADD_PART"
	EventUpdatePart       Event = "UPDATE_PART"
	EventUpdateParts      Event = "UPDATE_PARTS"
	EventDeletePart       Event = "DELETE_PART"
	EventChangeOrder      Event = "CHANGE_ORDER"
	EventFlipCard         Event = "FLIP_CARD"
	EventShuffleDeck      Event = "SHUFFLE_DECK"
	EventUpdatePlayerUser Event = "UPDATE_PLAYER_USER"
	EventUpdateCursor     Event = "UPDATE_CURSOR"

	// Server -> Client. UPDATE_PARTS is shared with the outbound batch
	// command; the direction tells them apart.
	EventPartsSnapshot  Event = "UPDATE_PARTS"
	EventPlayersUpdated Event = "UPDATE_PLAYERS"
	EventCursorsUpdated Event = "UPDATE_CURSORS"
	EventError          Event = "ERROR"
)

// Op codes for client messages and server events.
const (
	// Client -> Server
	OpJoinPrototype    int64 = 1
	OpAddPart          int64 = 2
	OpUpdatePart       int64 = 3
	OpUpdateParts      int64 = 4
	OpDeletePart       int64 = 5
	OpChangeOrder      int64 = 6
	OpFlipCard         int64 = 7
	OpShuffleDeck      int64 = 8
	OpUpdatePlayerUser int64 = 9
	OpUpdateCursor     int64 = 10

	// Server -> Client events
	OpPartsSnapshot  int64 = 101
	OpPlayersUpdated int64 = 102
	OpCursorsUpdated int64 = 103
	OpError          int64 = 199 // sent to the sender only
)

var clientOpCodes = map[Event]int64{
	EventJoinPrototype:    OpJoinPrototype,
	EventAddPart:          OpAddPart,
	EventUpdatePart:       OpUpdatePart,
	EventUpdateParts:      OpUpdateParts,
	EventDeletePart:       OpDeletePart,
	EventChangeOrder:      OpChangeOrder,
	EventFlipCard:         OpFlipCard,
	EventShuffleDeck:      OpShuffleDeck,
	EventUpdatePlayerUser: OpUpdatePlayerUser,
	EventUpdateCursor:     OpUpdateCursor,
}

var clientEvents = func() map[int64]Event {
	m := make(map[int64]Event, len(clientOpCodes))
	for ev, op := range clientOpCodes {
		m[op] = ev
	}
	return m
}()

var serverEvents = map[int64]Event{
	OpPartsSnapshot:  EventPartsSnapshot,
	OpPlayersUpdated: EventPlayersUpdated,
	OpCursorsUpdated: EventCursorsUpdated,
	OpError:          EventError,
}

// ClientOpCode returns the opcode a client sends event under.
func ClientOpCode(event Event) (int64, bool) {
	op, ok := clientOpCodes[event]
	return op, ok
}

// ClientEvent returns the event name of a client opcode.
func ClientEvent(op int64) (Event, bool) {
	ev, ok := clientEvents[op]
	return ev, ok
}

// ServerEvent returns the event name of a server opcode.
func ServerEvent(op int64) (Event, bool) {
	ev, ok := serverEvents[op]
	return ev, ok
}

// Message is one outbound client message: an event name and its payload.
type Message struct {
	Event   Event
	Payload any
}

// Encode marshals the payload and resolves the opcode.
func (m Message) Encode() (int64, []byte, error) {
	op, ok := ClientOpCode(m.Event)
	if !ok {
		return 0, nil, fmt.Errorf("no opcode for event %s", m.Event)
	}
	data, err := json.Marshal(m.Payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal %s: %w", m.Event, err)
	}
	return op, data, nil
}

type JoinPrototypeRequest struct {
	PrototypeVersionID string `json:"prototypeVersionId"`
}

type AddPartRequest struct {
	PrototypeVersionID string                `json:"prototypeVersionId"`
	Part               domain.Part           `json:"part"`
	Properties         []domain.PartProperty `json:"properties"`
}

type UpdatePartRequest struct {
	PrototypeVersionID string                 `json:"prototypeVersionId"`
	PartID             int64                  `json:"partId"`
	UpdatePart         *domain.PartPatch      `json:"updatePart,omitempty"`
	UpdateProperties   []domain.PropertyPatch `json:"updateProperties,omitempty"`
}

// PartUpdate is one entry of an UPDATE_PARTS batch.
type PartUpdate struct {
	PartID           int64                  `json:"partId"`
	UpdatePart       *domain.PartPatch      `json:"updatePart,omitempty"`
	UpdateProperties []domain.PropertyPatch `json:"updateProperties,omitempty"`
}

type UpdatePartsRequest struct {
	PrototypeVersionID string       `json:"prototypeVersionId"`
	Updates            []PartUpdate `json:"updates"`
}

type DeletePartRequest struct {
	PrototypeVersionID string `json:"prototypeVersionId"`
	PartID             int64  `json:"partId"`
}

type ChangeOrderRequest struct {
	PrototypeVersionID string             `json:"prototypeVersionId"`
	PartID             int64              `json:"partId"`
	Type               domain.OrderChange `json:"type"`
}

type FlipCardRequest struct {
	PrototypeVersionID string `json:"prototypeVersionId"`
	CardID             int64  `json:"cardId"`
	IsNextFlipped      bool   `json:"isNextFlipped"`
}

type ShuffleDeckRequest struct {
	PrototypeVersionID string `json:"prototypeVersionId"`
	DeckID             int64  `json:"deckId"`
}

type UpdatePlayerUserRequest struct {
	PrototypeVersionID string  `json:"prototypeVersionId"`
	PlayerID           string  `json:"playerId"`
	UserID             *string `json:"userId"`
}

// CursorInfo is the last known pointer position of a user.
type CursorInfo struct {
	UserID    string       `json:"userId"`
	UserName  string       `json:"userName"`
	Position  domain.Point `json:"position"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

type UpdateCursorRequest struct {
	PrototypeVersionID string       `json:"prototypeVersionId"`
	UserName           string       `json:"userName"`
	Position           domain.Point `json:"position"`
}

// PartsSnapshot is the full parts broadcast that replaces client state.
type PartsSnapshot struct {
	Parts      []domain.Part         `json:"parts"`
	Properties []domain.PartProperty `json:"properties"`
}

type CursorsSnapshot struct {
	Cursors map[string]CursorInfo `json:"cursors"`
}

// ErrorEvent reports a rejected message to its sender.
type ErrorEvent struct {
	Code    int    `json:"code"`
	Event   Event  `json:"event"`
	Message string `json:"message"`
}
