package canvas

import "kibako/internal/domain"

// Marquee returns the ids of parts overlapping the drag rectangle. A
// rectangle without area selects nothing.
func Marquee(parts []domain.Part, drag Rect) []int64 {
	if drag.Empty() {
		return nil
	}
	var ids []int64
	for _, p := range parts {
		if PartRect(p).Overlaps(drag) {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// SelectMarquee replaces the selection with the parts under drag.
func (s *Selection) SelectMarquee(parts []domain.Part, drag Rect) {
	s.SelectMany(Marquee(parts, drag))
}
