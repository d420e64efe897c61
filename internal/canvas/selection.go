package canvas

import (
	"slices"

	"kibako/internal/domain"
)

// Selection is the ordered set of selected part ids of one client. It is
// never synchronized to other clients.
type Selection struct {
	ids []int64
}

func NewSelection(ids ...int64) *Selection {
	s := &Selection{}
	s.SelectMany(ids)
	return s
}

// IDs returns a copy of the selected ids in selection order.
func (s *Selection) IDs() []int64 {
	return slices.Clone(s.ids)
}

func (s *Selection) Len() int { return len(s.ids) }

func (s *Selection) Has(id int64) bool {
	return slices.Contains(s.ids, id)
}

// Select makes id the only selected part.
func (s *Selection) Select(id int64) {
	s.ids = []int64{id}
}

// Add appends id unless it is already selected.
func (s *Selection) Add(id int64) {
	if !s.Has(id) {
		s.ids = append(s.ids, id)
	}
}

func (s *Selection) Deselect(id int64) {
	s.ids = slices.DeleteFunc(s.ids, func(v int64) bool { return v == id })
}

// Toggle adds id when absent and removes it when present.
func (s *Selection) Toggle(id int64) {
	if s.Has(id) {
		s.Deselect(id)
		return
	}
	s.ids = append(s.ids, id)
}

// SelectMany replaces the selection, dropping duplicate ids.
func (s *Selection) SelectMany(ids []int64) {
	s.ids = make([]int64, 0, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
}

func (s *Selection) Clear() {
	s.ids = nil
}

// Prune drops ids of parts missing from the snapshot and reports whether
// anything was removed.
func (s *Selection) Prune(parts []domain.Part) bool {
	present := index(parts)
	before := len(s.ids)
	s.ids = slices.DeleteFunc(s.ids, func(id int64) bool {
		_, ok := present[id]
		return !ok
	})
	return len(s.ids) != before
}

// Parts returns the selected parts present in the snapshot, in selection order.
func (s *Selection) Parts(parts []domain.Part) []domain.Part {
	present := index(parts)
	out := make([]domain.Part, 0, len(s.ids))
	for _, id := range s.ids {
		if i, ok := present[id]; ok {
			out = append(out, parts[i])
		}
	}
	return out
}
