package client

import (
	"encoding/json"
	"fmt"
	"sync"

	"kibako/internal/canvas"
	"kibako/internal/domain"
	"kibako/internal/protocol"

	"go.uber.org/zap"
)

// Store holds the latest authoritative snapshot of a room. Every broadcast
// replaces the matching slice wholesale; the client never merges.
//
// A drag overlay holds positions of parts being dragged locally. It is
// merged over the snapshot for rendering until new parts arrive; from then
// on the authoritative position renders until the next drag move. The last
// local position is kept until EndDrag so mouse-up always commits it.
type Store struct {
	mu         sync.RWMutex
	parts      []domain.Part
	properties []domain.PartProperty
	players    []domain.Player
	cursors    map[string]protocol.CursorInfo
	lastError  *protocol.ErrorEvent
	selection  *canvas.Selection
	drag       map[int64]dragState
	logger     *zap.Logger
	onChange   func(protocol.Event)
}

type dragState struct {
	pos   domain.Point
	shown bool
}

func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		cursors:   make(map[string]protocol.CursorInfo),
		selection: canvas.NewSelection(),
		drag:      make(map[int64]dragState),
		logger:    logger,
	}
}

// OnChange registers a callback run after each applied server event.
func (s *Store) OnChange(fn func(protocol.Event)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// HandleMatchData applies one server message. It is the connection's
// message handler.
func (s *Store) HandleMatchData(opCode int64, data []byte) error {
	event, ok := protocol.ServerEvent(opCode)
	if !ok {
		return fmt.Errorf("unknown server opcode %d", opCode)
	}

	switch event {
	case protocol.EventPartsSnapshot:
		var snap protocol.PartsSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return fmt.Errorf("decode %s: %w", event, err)
		}
		s.ApplyParts(snap)
	case protocol.EventPlayersUpdated:
		var players []domain.Player
		if err := json.Unmarshal(data, &players); err != nil {
			return fmt.Errorf("decode %s: %w", event, err)
		}
		s.ApplyPlayers(players)
	case protocol.EventCursorsUpdated:
		var snap protocol.CursorsSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return fmt.Errorf("decode %s: %w", event, err)
		}
		s.ApplyCursors(snap)
	case protocol.EventError:
		var ev protocol.ErrorEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return fmt.Errorf("decode %s: %w", event, err)
		}
		s.logger.Warn("room rejected message",
			zap.String("event", string(ev.Event)),
			zap.Int("code", ev.Code),
			zap.String("message", ev.Message))
		s.mu.Lock()
		s.lastError = &ev
		s.mu.Unlock()
	}

	s.notify(event)
	return nil
}

// ApplyParts replaces parts and properties, prunes the selection, hides the
// drag overlay and forgets drags of parts that no longer exist.
func (s *Store) ApplyParts(snap protocol.PartsSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parts = snap.Parts
	s.properties = snap.Properties
	s.selection.Prune(s.parts)

	present := make(map[int64]bool, len(s.parts))
	for _, p := range s.parts {
		present[p.ID] = true
	}
	for id, d := range s.drag {
		if !present[id] {
			delete(s.drag, id)
			continue
		}
		d.shown = false
		s.drag[id] = d
	}
}

func (s *Store) ApplyPlayers(players []domain.Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players = players
}

func (s *Store) ApplyCursors(snap protocol.CursorsSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors = snap.Cursors
	if s.cursors == nil {
		s.cursors = make(map[string]protocol.CursorInfo)
	}
}

func (s *Store) notify(event protocol.Event) {
	s.mu.RLock()
	fn := s.onChange
	s.mu.RUnlock()
	if fn != nil {
		fn(event)
	}
}

// Parts returns the authoritative parts with the drag overlay applied.
func (s *Store) Parts() []domain.Part {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Part, len(s.parts))
	for i, p := range s.parts {
		out[i] = p.Clone()
		if d, ok := s.drag[p.ID]; ok && d.shown {
			out[i].Position = d.pos
		}
	}
	return out
}

// AuthoritativeParts returns the parts exactly as last broadcast.
func (s *Store) AuthoritativeParts() []domain.Part {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Part, len(s.parts))
	for i, p := range s.parts {
		out[i] = p.Clone()
	}
	return out
}

func (s *Store) Part(id int64) (domain.Part, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.parts {
		if p.ID == id {
			return p.Clone(), true
		}
	}
	return domain.Part{}, false
}

func (s *Store) Properties() []domain.PartProperty {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.PartProperty(nil), s.properties...)
}

// PropertiesOf returns the properties of one part.
func (s *Store) PropertiesOf(partID int64) []domain.PartProperty {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.PartProperty
	for _, p := range s.properties {
		if p.PartID == partID {
			out = append(out, p)
		}
	}
	return out
}

func (s *Store) Players() []domain.Player {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Player(nil), s.players...)
}

func (s *Store) Cursors() map[string]protocol.CursorInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]protocol.CursorInfo, len(s.cursors))
	for k, v := range s.cursors {
		out[k] = v
	}
	return out
}

// LastError returns the last ERROR event received, if any.
func (s *Store) LastError() (protocol.ErrorEvent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastError == nil {
		return protocol.ErrorEvent{}, false
	}
	return *s.lastError, true
}

// Drag records the local position of a part during a gesture. Parts absent
// from the snapshot are ignored.
func (s *Store) Drag(id int64, pos domain.Point) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.parts {
		if p.ID == id {
			s.drag[id] = dragState{pos: pos, shown: true}
			return true
		}
	}
	return false
}

// EndDrag removes the overlay of a part and returns its last local position.
// ok is false when the part was never dragged or has since been deleted.
func (s *Store) EndDrag(id int64) (domain.Point, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drag[id]
	delete(s.drag, id)
	return d.pos, ok
}

// Selection runs fn with the selection under the store lock.
func (s *Store) Selection(fn func(sel *canvas.Selection, parts []domain.Part)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.selection, s.parts)
}

// SelectedIDs returns the selected part ids.
func (s *Store) SelectedIDs() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selection.IDs()
}
