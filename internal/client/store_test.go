package client

import (
	"encoding/json"
	"testing"

	"kibako/internal/canvas"
	"kibako/internal/domain"
	"kibako/internal/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func token(id int64, x, y, order float64) domain.Part {
	return domain.Part{
		ID: id, PrototypeVersionID: testVersionID,
		Position: domain.Point{X: x, Y: y}, Width: 50, Height: 50, Order: order,
		Variant: domain.TokenVariant{},
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestApplyPartsReplacesWholesale(t *testing.T) {
	s := NewStore(nil)
	s.ApplyParts(protocol.PartsSnapshot{Parts: []domain.Part{token(1, 0, 0, 0.1), token(2, 0, 0, 0.2)}})
	s.ApplyParts(protocol.PartsSnapshot{Parts: []domain.Part{token(3, 0, 0, 0.3)}})

	parts := s.Parts()
	require.Len(t, parts, 1)
	assert.Equal(t, int64(3), parts[0].ID)
	_, ok := s.Part(1)
	assert.False(t, ok)
}

func TestApplyPartsPrunesSelectionAndHidesDrag(t *testing.T) {
	s := NewStore(nil)
	s.ApplyParts(protocol.PartsSnapshot{Parts: []domain.Part{token(1, 0, 0, 0.1), token(2, 0, 0, 0.2)}})
	s.Selection(func(sel *canvas.Selection, _ []domain.Part) { sel.SelectMany([]int64{1, 2}) })
	require.True(t, s.Drag(2, domain.Point{X: 40, Y: 40}))
	assert.Equal(t, domain.Point{X: 40, Y: 40}, s.Parts()[1].Position)
	assert.Equal(t, domain.Point{}, s.AuthoritativeParts()[1].Position)

	s.ApplyParts(protocol.PartsSnapshot{Parts: []domain.Part{token(2, 5, 5, 0.2)}})

	assert.Equal(t, []int64{2}, s.SelectedIDs())
	assert.Equal(t, domain.Point{X: 5, Y: 5}, s.Parts()[0].Position)

	require.True(t, s.Drag(2, domain.Point{X: 60, Y: 60}))
	assert.Equal(t, domain.Point{X: 60, Y: 60}, s.Parts()[0].Position)
}

func TestDragSurvivesForeignSnapshot(t *testing.T) {
	s := NewStore(nil)
	s.ApplyParts(protocol.PartsSnapshot{Parts: []domain.Part{token(1, 0, 0, 0.1), token(2, 0, 0, 0.2)}})
	require.True(t, s.Drag(1, domain.Point{X: 800, Y: 800}))

	s.ApplyParts(protocol.PartsSnapshot{Parts: []domain.Part{token(1, 0, 0, 0.1)}})

	pos, ok := s.EndDrag(1)
	require.True(t, ok)
	assert.Equal(t, domain.Point{X: 800, Y: 800}, pos)
}

func TestDragOfDeletedPartIsForgotten(t *testing.T) {
	s := NewStore(nil)
	s.ApplyParts(protocol.PartsSnapshot{Parts: []domain.Part{token(1, 0, 0, 0.1)}})
	require.True(t, s.Drag(1, domain.Point{X: 10, Y: 10}))

	s.ApplyParts(protocol.PartsSnapshot{})

	_, ok := s.EndDrag(1)
	assert.False(t, ok)
}

func TestDragIgnoresUnknownPart(t *testing.T) {
	s := NewStore(nil)
	assert.False(t, s.Drag(9, domain.Point{}))
	_, ok := s.EndDrag(9)
	assert.False(t, ok)
}

func TestHandleMatchData(t *testing.T) {
	s := NewStore(nil)
	var seen []protocol.Event
	s.OnChange(func(e protocol.Event) { seen = append(seen, e) })

	snap := protocol.PartsSnapshot{
		Parts:      []domain.Part{token(1, 10, 20, 0.5)},
		Properties: []domain.PartProperty{{PartID: 1, Side: domain.SideFront, Name: "coin"}},
	}
	require.NoError(t, s.HandleMatchData(protocol.OpPartsSnapshot, mustJSON(t, snap)))

	user := "u1"
	players := []domain.Player{{ID: "p1", PrototypeVersionID: testVersionID, Name: "Player 1", UserID: &user}}
	require.NoError(t, s.HandleMatchData(protocol.OpPlayersUpdated, mustJSON(t, players)))

	cursors := protocol.CursorsSnapshot{Cursors: map[string]protocol.CursorInfo{
		"u1": {UserID: "u1", UserName: "alice", Position: domain.Point{X: 1, Y: 2}},
	}}
	require.NoError(t, s.HandleMatchData(protocol.OpCursorsUpdated, mustJSON(t, cursors)))

	assert.Equal(t, []protocol.Event{protocol.EventPartsSnapshot, protocol.EventPlayersUpdated, protocol.EventCursorsUpdated}, seen)
	require.Len(t, s.Parts(), 1)
	assert.Equal(t, domain.Point{X: 10, Y: 20}, s.Parts()[0].Position)
	assert.Equal(t, "coin", s.PropertiesOf(1)[0].Name)
	assert.Equal(t, "Player 1", s.Players()[0].Name)
	assert.Equal(t, "alice", s.Cursors()["u1"].UserName)
	_, hasErr := s.LastError()
	assert.False(t, hasErr)
}

func TestHandleMatchDataError(t *testing.T) {
	s := NewStore(nil)
	ev := protocol.ErrorEvent{Code: 404, Event: protocol.EventDeletePart, Message: "part not found"}
	require.NoError(t, s.HandleMatchData(protocol.OpError, mustJSON(t, ev)))

	got, ok := s.LastError()
	require.True(t, ok)
	assert.Equal(t, ev, got)
}

func TestHandleMatchDataRejectsGarbage(t *testing.T) {
	s := NewStore(nil)
	assert.Error(t, s.HandleMatchData(42, nil))
	assert.Error(t, s.HandleMatchData(protocol.OpPartsSnapshot, []byte("{")))
}

func TestCursorsNilSnapshotIsEmpty(t *testing.T) {
	s := NewStore(nil)
	s.ApplyCursors(protocol.CursorsSnapshot{})
	assert.NotNil(t, s.Cursors())
	assert.Empty(t, s.Cursors())
}
