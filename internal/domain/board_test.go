package domain

import (
	"encoding/json"
	"errors"
	"math/rand"
	"testing"
	"time"
)

func newCard(order float64) Part {
	return Part{Width: 60, Height: 90, Order: order, Variant: CardVariant{IsReversible: true, FrontSide: SideFront}}
}

func mustAdd(t *testing.T, b *Board, p Part) Part {
	t.Helper()
	added, err := b.AddPart(p, nil, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("AddPart error: %v", err)
	}
	return added
}

func assertDistinctOrders(t *testing.T, b *Board) {
	t.Helper()
	seen := map[float64]int64{}
	for _, p := range b.Parts {
		if other, ok := seen[p.Order]; ok {
			t.Fatalf("parts %d and %d share order %v", other, p.ID, p.Order)
		}
		seen[p.Order] = p.ID
	}
}

func TestAddPartAssignsIDAndProperties(t *testing.T) {
	b := NewBoard("pv-1")
	card := mustAdd(t, b, newCard(1))
	token := mustAdd(t, b, Part{Width: 10, Height: 10, Order: 2, Variant: TokenVariant{}})

	if card.ID != 1 || token.ID != 2 {
		t.Fatalf("ids = %d, %d; want 1, 2", card.ID, token.ID)
	}
	if card.PrototypeVersionID != "pv-1" {
		t.Fatalf("version id = %q", card.PrototypeVersionID)
	}
	if len(b.Properties) != 3 {
		t.Fatalf("properties = %d, want 3 (card front/back + token front)", len(b.Properties))
	}
}

func TestAddPartKeepsProvidedProperties(t *testing.T) {
	b := NewBoard("pv-1")
	props := []PartProperty{{Side: SideFront, Name: "Ace", Color: "#fff"}}
	card, err := b.AddPart(newCard(1), props, time.Now())
	if err != nil {
		t.Fatalf("AddPart error: %v", err)
	}
	front := b.property(card.ID, SideFront)
	if front.Name != "Ace" || front.PartID != card.ID {
		t.Fatalf("front property = %+v", front)
	}
}

func TestAddPartRejectsInvalidGeometry(t *testing.T) {
	b := NewBoard("pv-1")
	_, err := b.AddPart(Part{Width: 0, Height: 10, Variant: TokenVariant{}}, nil, time.Now())
	if !errors.Is(err, ErrInvalidPart) {
		t.Fatalf("err = %v, want ErrInvalidPart", err)
	}
	if len(b.Parts) != 0 {
		t.Fatalf("rejected part was stored")
	}
}

func TestDuplicateOrderCollisionIsResolved(t *testing.T) {
	b := NewBoard("pv-1")
	src := mustAdd(t, b, newCard(5))
	first := mustAdd(t, b, newCard(src.Order+DuplicateOrderOffset))

	dup := mustAdd(t, b, newCard(src.Order+DuplicateOrderOffset))
	if !(dup.Order > first.Order) {
		t.Fatalf("duplicate order = %v, want above the colliding part", dup.Order)
	}
	assertDistinctOrders(t, b)
}

func TestAddPartRebalancesWhenGapExhausted(t *testing.T) {
	b := NewBoard("pv-1")
	mustAdd(t, b, newCard(1))
	mustAdd(t, b, newCard(1+MinOrderGap/2))
	added := mustAdd(t, b, newCard(1))

	assertDistinctOrders(t, b)
	sorted := b.Sorted()
	if sorted[1].ID != added.ID {
		t.Fatalf("new part should sit just above the colliding part, got order %v", sorted)
	}
}

func TestChangeOrder(t *testing.T) {
	tests := []struct {
		name    string
		change  OrderChange
		target  int64
		wantIDs []int64
		changed bool
	}{
		{name: "front swaps with next", change: OrderFront, target: 1, wantIDs: []int64{2, 1, 3}, changed: true},
		{name: "back swaps with previous", change: OrderBack, target: 3, wantIDs: []int64{1, 3, 2}, changed: true},
		{name: "frontmost", change: OrderFrontmost, target: 1, wantIDs: []int64{2, 3, 1}, changed: true},
		{name: "backmost", change: OrderBackmost, target: 3, wantIDs: []int64{3, 1, 2}, changed: true},
		{name: "front of top is no-op", change: OrderFront, target: 3, wantIDs: []int64{1, 2, 3}},
		{name: "backmost of bottom is no-op", change: OrderBackmost, target: 1, wantIDs: []int64{1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBoard("pv-1")
			for i := 1; i <= 3; i++ {
				mustAdd(t, b, newCard(float64(i)))
			}
			changed, err := b.ChangeOrder(tt.target, tt.change)
			if err != nil {
				t.Fatalf("ChangeOrder error: %v", err)
			}
			if changed != tt.changed {
				t.Fatalf("changed = %v, want %v", changed, tt.changed)
			}
			for i, p := range b.Sorted() {
				if p.ID != tt.wantIDs[i] {
					t.Fatalf("order after %s = %v, want ids %v", tt.change, b.Sorted(), tt.wantIDs)
				}
			}
			assertDistinctOrders(t, b)
		})
	}
}

func TestChangeOrderSkipsEqualNeighbors(t *testing.T) {
	tests := []struct {
		name    string
		orders  []float64
		change  OrderChange
		target  int64
		wantIDs []int64
	}{
		{name: "front past tie", orders: []float64{0.5, 0.5, 0.7}, change: OrderFront, target: 1, wantIDs: []int64{2, 3, 1}},
		{name: "front over ties only", orders: []float64{0.5, 0.5}, change: OrderFront, target: 1, wantIDs: []int64{2, 1}},
		{name: "back past tie", orders: []float64{0.3, 0.5, 0.5}, change: OrderBack, target: 3, wantIDs: []int64{3, 1, 2}},
		{name: "back under ties only", orders: []float64{0.5, 0.5}, change: OrderBack, target: 2, wantIDs: []int64{2, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBoard("pv-1")
			for i, o := range tt.orders {
				b.Parts = append(b.Parts, Part{ID: int64(i + 1), Width: 10, Height: 10, Order: o, Variant: TokenVariant{}})
			}
			before, _ := b.Part(tt.target)
			was := before.Order

			changed, err := b.ChangeOrder(tt.target, tt.change)
			if err != nil {
				t.Fatalf("ChangeOrder error: %v", err)
			}
			after, _ := b.Part(tt.target)
			if !changed || after.Order == was {
				t.Fatalf("changed = %v, order %v -> %v; want a real move", changed, was, after.Order)
			}
			for i, p := range b.Sorted() {
				if p.ID != tt.wantIDs[i] {
					t.Fatalf("order after %s = %v, want ids %v", tt.change, b.Sorted(), tt.wantIDs)
				}
			}
		})
	}
}

func TestChangeOrderRejectsUnknownDirective(t *testing.T) {
	b := NewBoard("pv-1")
	mustAdd(t, b, newCard(1))
	if _, err := b.ChangeOrder(1, "sideways"); !errors.Is(err, ErrUnknownOrderChange) {
		t.Fatalf("err = %v, want ErrUnknownOrderChange", err)
	}
}

func TestUpdatePartPatchesVariantAndProperties(t *testing.T) {
	b := NewBoard("pv-1")
	hand := mustAdd(t, b, Part{Width: 400, Height: 200, Order: 1, Variant: HandVariant{}, ConfigurableTypeAsChild: []PartType{PartTypeCard}})
	card := mustAdd(t, b, newCard(2))

	name := "Queen"
	err := b.UpdatePart(card.ID, PartPatch{
		Position: &Point{X: 10, Y: 20},
		ParentID: SetInt64(hand.ID),
	}, []PropertyPatch{{Side: SideBack, Name: &name}})
	if err != nil {
		t.Fatalf("UpdatePart error: %v", err)
	}
	got, _ := b.Part(card.ID)
	if got.Position != (Point{X: 10, Y: 20}) || got.ParentID == nil || *got.ParentID != hand.ID {
		t.Fatalf("card after update = %+v", got)
	}
	if b.property(card.ID, SideBack).Name != "Queen" {
		t.Fatalf("back property not updated")
	}

	if err := b.UpdatePart(card.ID, PartPatch{ParentID: NullInt64()}, nil); err != nil {
		t.Fatalf("clear parent error: %v", err)
	}
	got, _ = b.Part(card.ID)
	if got.ParentID != nil {
		t.Fatalf("parent should be cleared")
	}
}

func TestUpdatePartRejectsForeignVariantFields(t *testing.T) {
	b := NewBoard("pv-1")
	token := mustAdd(t, b, Part{Width: 10, Height: 10, Order: 1, Variant: TokenVariant{}})
	rev := true
	err := b.UpdatePart(token.ID, PartPatch{IsReversible: &rev}, nil)
	if !errors.Is(err, ErrInvalidPatch) {
		t.Fatalf("err = %v, want ErrInvalidPatch", err)
	}

	name := "x"
	err = b.UpdatePart(token.ID, PartPatch{}, []PropertyPatch{{Side: SideBack, Name: &name}})
	if !errors.Is(err, ErrInvalidPatch) {
		t.Fatalf("err = %v, want ErrInvalidPatch for back side of token", err)
	}
}

func TestUpdatePartKeepsIrreversibleCardsFaceUp(t *testing.T) {
	b := NewBoard("pv-1")
	card := mustAdd(t, b, Part{Width: 60, Height: 90, Order: 1, Variant: CardVariant{FrontSide: SideFront}})

	back := SideBack
	if err := b.UpdatePart(card.ID, PartPatch{FrontSide: &back}, nil); !errors.Is(err, ErrNotReversible) {
		t.Fatalf("err = %v, want ErrNotReversible", err)
	}

	flipped := mustAdd(t, b, newCard(2))
	if err := b.FlipCard(flipped.ID, true); err != nil {
		t.Fatalf("FlipCard error: %v", err)
	}
	off := false
	if err := b.UpdatePart(flipped.ID, PartPatch{IsReversible: &off}, nil); err != nil {
		t.Fatalf("UpdatePart error: %v", err)
	}
	got, _ := b.Part(flipped.ID)
	if c, _ := got.Card(); c.IsReversible || c.FrontSide != SideFront {
		t.Fatalf("card after turning irreversible = %+v, want face-up", c)
	}
}

func TestUpdatePartOrderCollision(t *testing.T) {
	b := NewBoard("pv-1")
	a := mustAdd(t, b, newCard(1))
	c := mustAdd(t, b, newCard(2))
	order := a.Order
	if err := b.UpdatePart(c.ID, PartPatch{Order: &order}, nil); err != nil {
		t.Fatalf("UpdatePart error: %v", err)
	}
	assertDistinctOrders(t, b)
}

func TestDeletePartClearsChildren(t *testing.T) {
	b := NewBoard("pv-1")
	deck := mustAdd(t, b, Part{Width: 80, Height: 120, Order: 1, Variant: DeckVariant{}})
	child := newCard(2)
	child.ParentID = &deck.ID
	card := mustAdd(t, b, child)

	if err := b.DeletePart(deck.ID); err != nil {
		t.Fatalf("DeletePart error: %v", err)
	}
	got, _ := b.Part(card.ID)
	if got.ParentID != nil {
		t.Fatalf("child parent should be cleared")
	}
	for _, prop := range b.Properties {
		if prop.PartID == deck.ID {
			t.Fatalf("deck property survived deletion")
		}
	}
	if err := b.DeletePart(deck.ID); !errors.Is(err, ErrPartNotFound) {
		t.Fatalf("second delete err = %v, want ErrPartNotFound", err)
	}
}

func TestFlipCard(t *testing.T) {
	b := NewBoard("pv-1")
	card := mustAdd(t, b, newCard(1))
	fixed := mustAdd(t, b, Part{Width: 60, Height: 90, Order: 2, Variant: CardVariant{FrontSide: SideFront}})
	token := mustAdd(t, b, Part{Width: 10, Height: 10, Order: 3, Variant: TokenVariant{}})

	if err := b.FlipCard(card.ID, true); err != nil {
		t.Fatalf("FlipCard error: %v", err)
	}
	got, _ := b.Part(card.ID)
	if c, _ := got.Card(); c.FrontSide != SideBack {
		t.Fatalf("front side = %s, want back", c.FrontSide)
	}
	if err := b.FlipCard(fixed.ID, true); !errors.Is(err, ErrNotReversible) {
		t.Fatalf("err = %v, want ErrNotReversible", err)
	}
	if err := b.FlipCard(fixed.ID, false); err != nil {
		t.Fatalf("turning face-up must always be allowed: %v", err)
	}
	if err := b.FlipCard(token.ID, true); !errors.Is(err, ErrNotCard) {
		t.Fatalf("err = %v, want ErrNotCard", err)
	}
}

func TestShuffleDeckKeepsOrderSet(t *testing.T) {
	b := NewBoard("pv-1")
	deck := mustAdd(t, b, Part{Width: 80, Height: 120, Order: 10, Variant: DeckVariant{}})
	outside := mustAdd(t, b, newCard(0.5))
	for i := 1; i <= 5; i++ {
		c := newCard(10 + float64(i))
		c.ParentID = &deck.ID
		mustAdd(t, b, c)
	}

	if err := b.ShuffleDeck(deck.ID, rand.New(rand.NewSource(3))); err != nil {
		t.Fatalf("ShuffleDeck error: %v", err)
	}
	children := b.Children(deck.ID)
	for i, c := range children {
		if c.Order != 11+float64(i) {
			t.Fatalf("child orders = %v, want 11..15", children)
		}
	}
	got, _ := b.Part(outside.ID)
	if got.Order != 0.5 {
		t.Fatalf("part outside the deck moved")
	}
	if err := b.ShuffleDeck(outside.ID, rand.New(rand.NewSource(1))); !errors.Is(err, ErrNotDeck) {
		t.Fatalf("err = %v, want ErrNotDeck", err)
	}
}

func TestUpdatePlayerUser(t *testing.T) {
	b := NewBoard("pv-1")
	b.Players = append(b.Players, Player{ID: "p1", Name: "Player 1"})
	uid := "user-1"
	if err := b.UpdatePlayerUser("p1", &uid); err != nil {
		t.Fatalf("UpdatePlayerUser error: %v", err)
	}
	if b.Players[0].UserID == nil || *b.Players[0].UserID != uid {
		t.Fatalf("player not bound")
	}
	if err := b.UpdatePlayerUser("p1", nil); err != nil || b.Players[0].UserID != nil {
		t.Fatalf("player not unbound: %v", err)
	}
	if err := b.UpdatePlayerUser("missing", nil); !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("err = %v, want ErrPlayerNotFound", err)
	}
}

func TestPartJSONRoundTripKeepsVariant(t *testing.T) {
	owner := "player-1"
	in := Part{ID: 4, Width: 400, Height: 200, Order: 1, Variant: HandVariant{OwnerID: &owner}, ConfigurableTypeAsChild: []PartType{PartTypeCard}}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	var out Part
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	h, ok := out.Hand()
	if !ok || h.OwnerID == nil || *h.OwnerID != owner {
		t.Fatalf("hand variant lost: %+v", out)
	}

	// Fields of other variants are dropped.
	var token Part
	if err := json.Unmarshal([]byte(`{"type":"token","width":1,"height":1,"isReversible":true}`), &token); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if _, ok := token.Variant.(TokenVariant); !ok {
		t.Fatalf("variant = %T, want TokenVariant", token.Variant)
	}

	if err := json.Unmarshal([]byte(`{"type":"dice"}`), &token); !errors.Is(err, ErrUnknownPartType) {
		t.Fatalf("err = %v, want ErrUnknownPartType", err)
	}
}

func TestPartPatchJSONDistinguishesNull(t *testing.T) {
	var patch PartPatch
	if err := json.Unmarshal([]byte(`{"parentId":null}`), &patch); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if !patch.ParentID.Set || patch.ParentID.Value != nil {
		t.Fatalf("explicit null not recorded: %+v", patch.ParentID)
	}

	data, err := json.Marshal(PartPatch{Width: new(float64)})
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	if string(data) != `{"width":0}` {
		t.Fatalf("unset nullable fields must be omitted, got %s", data)
	}
}
