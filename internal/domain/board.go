package domain

import (
	"fmt"
	"math/rand"
	"time"
)

// Board is the authoritative state of one prototype version: its parts,
// their properties and its players.
type Board struct {
	VersionID  string         `json:"prototypeVersionId"`
	Parts      []Part         `json:"parts"`
	Properties []PartProperty `json:"properties"`
	Players    []Player       `json:"players"`
	NextPartID int64          `json:"nextPartId"`
}

// NewBoard returns an empty board for a prototype version.
func NewBoard(versionID string) *Board {
	return &Board{
		VersionID:  versionID,
		Parts:      []Part{},
		Properties: []PartProperty{},
		Players:    []Player{},
		NextPartID: 1,
	}
}

// Clone returns a deep copy of the board.
func (b *Board) Clone() *Board {
	out := &Board{
		VersionID:  b.VersionID,
		Parts:      make([]Part, len(b.Parts)),
		Properties: make([]PartProperty, len(b.Properties)),
		Players:    make([]Player, len(b.Players)),
		NextPartID: b.NextPartID,
	}
	for i, p := range b.Parts {
		out.Parts[i] = p.Clone()
	}
	copy(out.Properties, b.Properties)
	copy(out.Players, b.Players)
	return out
}

// Part returns a pointer into the board for the part with id.
func (b *Board) Part(id int64) (*Part, bool) {
	for i := range b.Parts {
		if b.Parts[i].ID == id {
			return &b.Parts[i], true
		}
	}
	return nil, false
}

// Player returns a pointer into the board for the player with id.
func (b *Board) Player(id string) (*Player, bool) {
	for i := range b.Players {
		if b.Players[i].ID == id {
			return &b.Players[i], true
		}
	}
	return nil, false
}

// Sorted returns a copy of the parts in stacking order.
func (b *Board) Sorted() []Part {
	out := make([]Part, len(b.Parts))
	copy(out, b.Parts)
	SortParts(out)
	return out
}

// Children returns the parts whose parent is id, in stacking order.
func (b *Board) Children(id int64) []Part {
	var out []Part
	for _, p := range b.Parts {
		if p.ParentID != nil && *p.ParentID == id {
			out = append(out, p)
		}
	}
	SortParts(out)
	return out
}

// Rebalance rewrites every part's order to 1..n keeping the stacking order.
func (b *Board) Rebalance() {
	RebalanceParts(b.Parts)
}

// AddPart inserts a new part with its properties. The board assigns the id
// and resolves the requested order against existing parts; missing sides
// get an empty property.
func (b *Board) AddPart(part Part, props []PartProperty, now time.Time) (Part, error) {
	if err := part.Validate(); err != nil {
		return Part{}, err
	}
	if !ValidOrder(part.Order) {
		return Part{}, fmt.Errorf("%w: order %v", ErrInvalidPart, part.Order)
	}
	if part.ParentID != nil {
		if _, ok := b.Part(*part.ParentID); !ok {
			return Part{}, fmt.Errorf("%w: parent %d", ErrPartNotFound, *part.ParentID)
		}
	}

	part = part.Clone()
	if b.NextPartID <= 0 {
		b.NextPartID = b.maxPartID() + 1
	}
	part.ID = b.NextPartID
	b.NextPartID++
	part.PrototypeVersionID = b.VersionID
	part.CreatedAt = now
	part.Order = b.resolveOrder(part.Order, 0)
	b.Parts = append(b.Parts, part)

	for _, side := range Sides(part.Type()) {
		prop := PartProperty{PartID: part.ID, Side: side}
		for _, in := range props {
			if in.Side == side {
				prop = in
				prop.PartID = part.ID
				break
			}
		}
		b.Properties = append(b.Properties, prop)
	}
	return part, nil
}

// UpdatePart applies a part patch and property patches to the part with id.
// Either both apply or neither does.
func (b *Board) UpdatePart(id int64, patch PartPatch, props []PropertyPatch) error {
	cur, ok := b.Part(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrPartNotFound, id)
	}

	next := cur.Clone()
	if err := patch.applyTo(&next); err != nil {
		return err
	}
	if patch.ParentID.Set {
		if pid := patch.ParentID.Value; pid != nil {
			if *pid == id {
				return fmt.Errorf("%w: part cannot be its own parent", ErrInvalidPatch)
			}
			if _, ok := b.Part(*pid); !ok {
				return fmt.Errorf("%w: parent %d", ErrPartNotFound, *pid)
			}
			parent := *pid
			next.ParentID = &parent
		} else {
			next.ParentID = nil
		}
	}
	if patch.Order != nil && !ValidOrder(*patch.Order) {
		return fmt.Errorf("%w: order %v", ErrInvalidPatch, *patch.Order)
	}

	sides := Sides(next.Type())
	for _, pp := range props {
		if !containsSide(sides, pp.Side) {
			return fmt.Errorf("%w: %s has no %q side", ErrInvalidPatch, next.Type(), pp.Side)
		}
	}

	if patch.Order != nil && *patch.Order != cur.Order {
		next.Order = b.resolveOrder(*patch.Order, id)
	}
	// resolveOrder may rebalance and move cur within the slice.
	cur, _ = b.Part(id)
	if patch.Order == nil {
		next.Order = cur.Order
	}
	*cur = next

	for _, pp := range props {
		prop := b.property(id, pp.Side)
		pp.applyTo(prop)
	}
	return nil
}

// DeletePart removes a part and its properties and clears the parent link of
// its children.
func (b *Board) DeletePart(id int64) error {
	idx := -1
	for i := range b.Parts {
		if b.Parts[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %d", ErrPartNotFound, id)
	}
	b.Parts = append(b.Parts[:idx], b.Parts[idx+1:]...)

	for i := range b.Parts {
		if p := b.Parts[i].ParentID; p != nil && *p == id {
			b.Parts[i].ParentID = nil
		}
	}

	props := b.Properties[:0]
	for _, prop := range b.Properties {
		if prop.PartID != id {
			props = append(props, prop)
		}
	}
	b.Properties = props
	return nil
}

// ChangeOrder moves a part in the stacking order. front and back swap with
// the immediate neighbor; frontmost and backmost go past the current extreme.
// It reports whether anything changed.
func (b *Board) ChangeOrder(id int64, change OrderChange) (bool, error) {
	if !change.Valid() {
		return false, fmt.Errorf("%w: %q", ErrUnknownOrderChange, change)
	}
	part, ok := b.Part(id)
	if !ok {
		return false, fmt.Errorf("%w: %d", ErrPartNotFound, id)
	}

	sorted := b.Sorted()
	idx := indexOf(sorted, id)
	last := len(sorted) - 1

	switch change {
	case OrderFront:
		if idx == last {
			return false, nil
		}
		j := idx + 1
		for j <= last && sorted[j].Order == part.Order {
			j++
		}
		if j > last {
			// Only ties above: step past them.
			v, err := After(part.Order).Interpolate()
			if err != nil {
				return false, err
			}
			part.Order = v
			break
		}
		b.swapOrders(id, sorted[j].ID)
	case OrderBack:
		if idx == 0 {
			return false, nil
		}
		j := idx - 1
		for j >= 0 && sorted[j].Order == part.Order {
			j--
		}
		if j < 0 {
			v, err := Before(part.Order).Interpolate()
			if err != nil {
				return false, err
			}
			part.Order = v
			break
		}
		b.swapOrders(id, sorted[j].ID)
	case OrderFrontmost:
		if idx == last {
			return false, nil
		}
		v, err := After(sorted[last].Order).Interpolate()
		if err != nil {
			return false, err
		}
		part.Order = v
	case OrderBackmost:
		if idx == 0 {
			return false, nil
		}
		v, err := Before(sorted[0].Order).Interpolate()
		if err != nil {
			return false, err
		}
		part.Order = v
	}
	return true, nil
}

// FlipCard turns a card face-down when isNextFlipped is set and face-up
// otherwise. Only reversible cards may turn face-down.
func (b *Board) FlipCard(id int64, isNextFlipped bool) error {
	part, ok := b.Part(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrPartNotFound, id)
	}
	card, ok := part.Card()
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotCard, id)
	}
	if isNextFlipped && !card.IsReversible {
		return fmt.Errorf("%w: %d", ErrNotReversible, id)
	}
	card.FrontSide = SideFront
	if isNextFlipped {
		card.FrontSide = SideBack
	}
	part.Variant = card
	return nil
}

// ShuffleDeck permutes the stacking order of the deck's children within the
// order values they already occupy.
func (b *Board) ShuffleDeck(deckID int64, rng *rand.Rand) error {
	deck, ok := b.Part(deckID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrPartNotFound, deckID)
	}
	if _, ok := deck.Deck(); !ok {
		return fmt.Errorf("%w: %d", ErrNotDeck, deckID)
	}

	for _, shuffled := range ShuffleOrders(b.Children(deckID), rng) {
		if p, ok := b.Part(shuffled.ID); ok {
			p.Order = shuffled.Order
		}
	}
	return nil
}

// UpdatePlayerUser binds a player to a user, or unbinds it when userID is nil.
func (b *Board) UpdatePlayerUser(playerID string, userID *string) error {
	pl, ok := b.Player(playerID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
	}
	if userID == nil {
		pl.UserID = nil
		return nil
	}
	uid := *userID
	pl.UserID = &uid
	return nil
}

// resolveOrder returns requested unless another part (other than exclude)
// already holds it, in which case it interpolates just above that part,
// rebalancing first when the gap is exhausted.
func (b *Board) resolveOrder(requested float64, exclude int64) float64 {
	var anchor int64
	found := false
	for _, p := range b.Parts {
		if p.ID != exclude && p.Order == requested {
			anchor, found = p.ID, true
			break
		}
	}
	if !found {
		return requested
	}

	if v, err := b.orderAbove(anchor, exclude); err == nil {
		return v
	}
	b.Rebalance()
	v, _ := b.orderAbove(anchor, exclude)
	return v
}

// orderAbove interpolates between anchor and the next part above it.
func (b *Board) orderAbove(anchor, exclude int64) (float64, error) {
	sorted := make([]Part, 0, len(b.Parts))
	for _, p := range b.Parts {
		if p.ID != exclude {
			sorted = append(sorted, p)
		}
	}
	SortParts(sorted)

	idx := indexOf(sorted, anchor)
	if idx == len(sorted)-1 {
		return After(sorted[idx].Order).Interpolate()
	}
	return Between(sorted[idx].Order, sorted[idx+1].Order).Interpolate()
}

func (b *Board) swapOrders(a, c int64) {
	pa, _ := b.Part(a)
	pc, _ := b.Part(c)
	pa.Order, pc.Order = pc.Order, pa.Order
}

func (b *Board) property(partID int64, side Side) *PartProperty {
	for i := range b.Properties {
		if b.Properties[i].PartID == partID && b.Properties[i].Side == side {
			return &b.Properties[i]
		}
	}
	b.Properties = append(b.Properties, PartProperty{PartID: partID, Side: side})
	return &b.Properties[len(b.Properties)-1]
}

func (b *Board) maxPartID() int64 {
	var max int64
	for _, p := range b.Parts {
		if p.ID > max {
			max = p.ID
		}
	}
	return max
}

func indexOf(parts []Part, id int64) int {
	for i := range parts {
		if parts[i].ID == id {
			return i
		}
	}
	return -1
}

func containsSide(sides []Side, s Side) bool {
	for _, side := range sides {
		if side == s {
			return true
		}
	}
	return false
}
