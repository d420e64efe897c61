package app

import "kibako/internal/domain"

// EventKind identifies emitted room events for Nakama dispatch.
type EventKind string

const (
	EventPartsUpdated   EventKind = "parts_updated"
	EventPlayersUpdated EventKind = "players_updated"
	EventCursorsUpdated EventKind = "cursors_updated"
)

// Event is a room event with optional targeted recipients.
type Event struct {
	Kind       EventKind
	Payload    any
	Recipients []string // user IDs; empty means broadcast
}

// PartsUpdatedPayload is the full parts and properties snapshot.
type PartsUpdatedPayload struct {
	Parts      []domain.Part
	Properties []domain.PartProperty
}

type PlayersUpdatedPayload struct {
	Players []domain.Player
}

type CursorsUpdatedPayload struct {
	Cursors map[string]domain.Cursor
}
