package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// PartType classifies a placeable part. The set is closed.
type PartType string

const (
	PartTypeToken PartType = "token"
	PartTypeCard  PartType = "card"
	PartTypeHand  PartType = "hand"
	PartTypeDeck  PartType = "deck"
	PartTypeArea  PartType = "area"
)

// Valid reports whether t is one of the known part types.
func (t PartType) Valid() bool {
	switch t {
	case PartTypeToken, PartTypeCard, PartTypeHand, PartTypeDeck, PartTypeArea:
		return true
	}
	return false
}

// Side identifies one face of a part.
type Side string

const (
	SideFront Side = "front"
	SideBack  Side = "back"
)

// Valid reports whether s is front or back.
func (s Side) Valid() bool {
	return s == SideFront || s == SideBack
}

// Point is a board coordinate; the origin is the top-left corner of the canvas.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Variant carries the fields that only exist for one part type.
// Implementations are sealed to this package.
type Variant interface {
	Type() PartType
	sealed()
}

// TokenVariant is a plain single-sided token.
type TokenVariant struct{}

// CardVariant is a double-sided card.
type CardVariant struct {
	IsReversible bool
	FrontSide    Side // side currently facing up
}

// HandVariant is a player's hand; OwnerID references a Player.
type HandVariant struct {
	OwnerID *string
}

// DeckVariant is a card pile. Cards entering a deck with CanReverseCardOnDeck
// turn face-down, and turn face-up again when they leave it.
type DeckVariant struct {
	CanReverseCardOnDeck bool
}

// AreaVariant is a free-form region that can hold other parts.
type AreaVariant struct{}

func (TokenVariant) Type() PartType { return PartTypeToken }
func (CardVariant) Type() PartType  { return PartTypeCard }
func (HandVariant) Type() PartType  { return PartTypeHand }
func (DeckVariant) Type() PartType  { return PartTypeDeck }
func (AreaVariant) Type() PartType  { return PartTypeArea }

func (TokenVariant) sealed() {}
func (CardVariant) sealed()  {}
func (HandVariant) sealed()  {}
func (DeckVariant) sealed()  {}
func (AreaVariant) sealed()  {}

// NewVariant returns the zero variant for a part type.
func NewVariant(t PartType) (Variant, error) {
	switch t {
	case PartTypeToken:
		return TokenVariant{}, nil
	case PartTypeCard:
		return CardVariant{FrontSide: SideFront}, nil
	case PartTypeHand:
		return HandVariant{}, nil
	case PartTypeDeck:
		return DeckVariant{}, nil
	case PartTypeArea:
		return AreaVariant{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownPartType, t)
}

// Part is a placeable entity on the board.
type Part struct {
	ID                      int64
	PrototypeVersionID      string
	Position                Point
	Width                   float64
	Height                  float64
	Order                   float64
	ParentID                *int64
	ConfigurableTypeAsChild []PartType
	CreatedAt               time.Time
	Variant                 Variant
}

// Type returns the discriminant of the part's variant.
func (p Part) Type() PartType {
	if p.Variant == nil {
		return ""
	}
	return p.Variant.Type()
}

// Card returns the card variant and true when p is a card.
func (p Part) Card() (CardVariant, bool) {
	c, ok := p.Variant.(CardVariant)
	return c, ok
}

// Deck returns the deck variant and true when p is a deck.
func (p Part) Deck() (DeckVariant, bool) {
	d, ok := p.Variant.(DeckVariant)
	return d, ok
}

// Hand returns the hand variant and true when p is a hand.
func (p Part) Hand() (HandVariant, bool) {
	h, ok := p.Variant.(HandVariant)
	return h, ok
}

// AcceptsChild reports whether a part of type t may be parented to p.
func (p Part) AcceptsChild(t PartType) bool {
	for _, ct := range p.ConfigurableTypeAsChild {
		if ct == t {
			return true
		}
	}
	return false
}

// Center returns the midpoint of the part's rectangle.
func (p Part) Center() Point {
	return Point{X: p.Position.X + p.Width/2, Y: p.Position.Y + p.Height/2}
}

// Clone returns a deep copy of p.
func (p Part) Clone() Part {
	out := p
	if p.ParentID != nil {
		id := *p.ParentID
		out.ParentID = &id
	}
	out.ConfigurableTypeAsChild = append([]PartType(nil), p.ConfigurableTypeAsChild...)
	if h, ok := p.Variant.(HandVariant); ok && h.OwnerID != nil {
		owner := *h.OwnerID
		out.Variant = HandVariant{OwnerID: &owner}
	}
	return out
}

// Validate checks the structural invariants of a part.
func (p Part) Validate() error {
	if p.Variant == nil || !p.Type().Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownPartType, p.Type())
	}
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("%w: width and height must be positive", ErrInvalidPart)
	}
	for _, ct := range p.ConfigurableTypeAsChild {
		if !ct.Valid() {
			return fmt.Errorf("%w: child type %q", ErrUnknownPartType, ct)
		}
	}
	if c, ok := p.Card(); ok && !c.FrontSide.Valid() {
		return fmt.Errorf("%w: front side %q", ErrInvalidPart, c.FrontSide)
	}
	return nil
}

// partJSON is the flat wire shape of a part.
type partJSON struct {
	ID                      int64      `json:"id"`
	PrototypeVersionID      string     `json:"prototypeVersionId,omitempty"`
	Type                    PartType   `json:"type"`
	Position                Point      `json:"position"`
	Width                   float64    `json:"width"`
	Height                  float64    `json:"height"`
	Order                   float64    `json:"order"`
	ParentID                *int64     `json:"parentId"`
	ConfigurableTypeAsChild []PartType `json:"configurableTypeAsChild"`
	CreatedAt               time.Time  `json:"createdAt"`

	IsReversible         *bool   `json:"isReversible,omitempty"`
	FrontSide            *Side   `json:"frontSide,omitempty"`
	OwnerID              *string `json:"ownerId,omitempty"`
	CanReverseCardOnDeck *bool   `json:"canReverseCardOnDeck,omitempty"`
}

// MarshalJSON flattens the variant into the part object.
func (p Part) MarshalJSON() ([]byte, error) {
	w := partJSON{
		ID:                      p.ID,
		PrototypeVersionID:      p.PrototypeVersionID,
		Type:                    p.Type(),
		Position:                p.Position,
		Width:                   p.Width,
		Height:                  p.Height,
		Order:                   p.Order,
		ParentID:                p.ParentID,
		ConfigurableTypeAsChild: p.ConfigurableTypeAsChild,
		CreatedAt:               p.CreatedAt,
	}
	if w.ConfigurableTypeAsChild == nil {
		w.ConfigurableTypeAsChild = []PartType{}
	}
	switch v := p.Variant.(type) {
	case CardVariant:
		w.IsReversible = &v.IsReversible
		w.FrontSide = &v.FrontSide
	case HandVariant:
		w.OwnerID = v.OwnerID
	case DeckVariant:
		w.CanReverseCardOnDeck = &v.CanReverseCardOnDeck
	}
	return json.Marshal(w)
}

// UnmarshalJSON builds the variant from the type discriminant, ignoring
// fields that do not belong to it.
func (p *Part) UnmarshalJSON(data []byte) error {
	var w partJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	v, err := NewVariant(w.Type)
	if err != nil {
		return err
	}
	switch v.(type) {
	case CardVariant:
		c := CardVariant{FrontSide: SideFront}
		if w.IsReversible != nil {
			c.IsReversible = *w.IsReversible
		}
		if w.FrontSide != nil {
			c.FrontSide = *w.FrontSide
		}
		v = c
	case HandVariant:
		v = HandVariant{OwnerID: w.OwnerID}
	case DeckVariant:
		d := DeckVariant{}
		if w.CanReverseCardOnDeck != nil {
			d.CanReverseCardOnDeck = *w.CanReverseCardOnDeck
		}
		v = d
	}
	*p = Part{
		ID:                      w.ID,
		PrototypeVersionID:      w.PrototypeVersionID,
		Position:                w.Position,
		Width:                   w.Width,
		Height:                  w.Height,
		Order:                   w.Order,
		ParentID:                w.ParentID,
		ConfigurableTypeAsChild: w.ConfigurableTypeAsChild,
		CreatedAt:               w.CreatedAt,
		Variant:                 v,
	}
	return nil
}

// PartProperty holds the presentation of one side of a part.
type PartProperty struct {
	PartID      int64   `json:"partId"`
	Side        Side    `json:"side"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Color       string  `json:"color"`
	ImageID     *string `json:"imageId"`
}

// Player is a seat in a prototype version, optionally bound to a user.
type Player struct {
	ID                 string  `json:"id"`
	PrototypeVersionID string  `json:"prototypeVersionId"`
	Name               string  `json:"playerName"`
	UserID             *string `json:"userId"`
}
