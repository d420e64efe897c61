package canvas

import "kibako/internal/domain"

// Containment is the outcome of dropping a part at a new position.
type Containment struct {
	PartID   int64
	ParentID *int64
	// ParentChanged is false when the drop keeps the current parent.
	ParentChanged bool
	// Flip is set when a reversible card enters or leaves a flipping deck;
	// its value is the isNextFlipped to send.
	Flip *bool
}

// ResolveContainment picks the parent of the part draggedID dropped at pos.
// A candidate accepts the dragged type, contains its center and is rendered
// below it. Among several candidates the highest order wins, then the
// highest id. ok is false when the dragged part is not in parts.
func ResolveContainment(parts []domain.Part, draggedID int64, pos domain.Point) (res Containment, ok bool) {
	idx := index(parts)
	i, found := idx[draggedID]
	if !found {
		return Containment{}, false
	}
	dragged := parts[i]
	dragged.Position = pos
	center := PartRect(dragged).Center()

	var parent *domain.Part
	for j := range parts {
		c := &parts[j]
		if c.ID == dragged.ID || !c.AcceptsChild(dragged.Type()) {
			continue
		}
		if c.Order >= dragged.Order || !PartRect(*c).Contains(center) {
			continue
		}
		if parent == nil || c.Order > parent.Order || (c.Order == parent.Order && c.ID > parent.ID) {
			parent = c
		}
	}

	res = Containment{PartID: dragged.ID}
	if parent != nil {
		id := parent.ID
		res.ParentID = &id
	}
	res.ParentChanged = !sameParent(dragged.ParentID, res.ParentID)
	if !res.ParentChanged {
		return res, true
	}

	card, isCard := dragged.Card()
	if !isCard || !card.IsReversible {
		return res, true
	}
	var prev *domain.Part
	if dragged.ParentID != nil {
		if k, ok := idx[*dragged.ParentID]; ok {
			prev = &parts[k]
		}
	}
	wasOnDeck, isOnDeck := flipsCards(prev), flipsCards(parent)
	faceDown := card.FrontSide == domain.SideBack
	switch {
	case isOnDeck && !wasOnDeck && !faceDown:
		res.Flip = boolPtr(true)
	case wasOnDeck && !isOnDeck && faceDown:
		res.Flip = boolPtr(false)
	}
	return res, true
}

func flipsCards(p *domain.Part) bool {
	if p == nil {
		return false
	}
	deck, ok := p.Deck()
	return ok && deck.CanReverseCardOnDeck
}

func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func boolPtr(v bool) *bool { return &v }
