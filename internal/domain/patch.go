package domain

import "fmt"

// OrderChange is the qualitative reordering directive of CHANGE_ORDER.
type OrderChange string

const (
	OrderFront     OrderChange = "front"
	OrderBack      OrderChange = "back"
	OrderFrontmost OrderChange = "frontmost"
	OrderBackmost  OrderChange = "backmost"
)

// Valid reports whether c is a known directive.
func (c OrderChange) Valid() bool {
	switch c {
	case OrderFront, OrderBack, OrderFrontmost, OrderBackmost:
		return true
	}
	return false
}

// PartPatch is a partial update of a part. Nil pointers and unset nullable
// fields leave the current value in place.
type PartPatch struct {
	Position                *Point        `json:"position,omitempty"`
	Width                   *float64      `json:"width,omitempty"`
	Height                  *float64      `json:"height,omitempty"`
	Order                   *float64      `json:"order,omitempty"`
	ParentID                NullableInt64 `json:"parentId,omitzero"`
	ConfigurableTypeAsChild []PartType    `json:"configurableTypeAsChild,omitempty"`

	IsReversible         *bool          `json:"isReversible,omitempty"`
	FrontSide            *Side          `json:"frontSide,omitempty"`
	OwnerID              NullableString `json:"ownerId,omitzero"`
	CanReverseCardOnDeck *bool          `json:"canReverseCardOnDeck,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (pp PartPatch) IsEmpty() bool {
	return pp.Position == nil && pp.Width == nil && pp.Height == nil && pp.Order == nil &&
		!pp.ParentID.Set && pp.ConfigurableTypeAsChild == nil && pp.IsReversible == nil &&
		pp.FrontSide == nil && !pp.OwnerID.Set && pp.CanReverseCardOnDeck == nil
}

// TouchesReversible reports whether the patch sets isReversible.
func (pp PartPatch) TouchesReversible() bool {
	return pp.IsReversible != nil
}

// PropertyPatch is a partial update of one side's property.
type PropertyPatch struct {
	Side        Side           `json:"side"`
	Name        *string        `json:"name,omitempty"`
	Description *string        `json:"description,omitempty"`
	Color       *string        `json:"color,omitempty"`
	ImageID     NullableString `json:"imageId,omitzero"`
}

// applyTo writes the patch over p without touching the order or parent,
// which the board resolves separately.
func (pp PartPatch) applyTo(p *Part) error {
	if pp.Position != nil {
		p.Position = *pp.Position
	}
	if pp.Width != nil {
		p.Width = *pp.Width
	}
	if pp.Height != nil {
		p.Height = *pp.Height
	}
	if pp.ConfigurableTypeAsChild != nil {
		p.ConfigurableTypeAsChild = append([]PartType(nil), pp.ConfigurableTypeAsChild...)
	}

	switch v := p.Variant.(type) {
	case CardVariant:
		if pp.OwnerID.Set || pp.CanReverseCardOnDeck != nil {
			return fmt.Errorf("%w: field does not apply to %s", ErrInvalidPatch, p.Type())
		}
		if pp.IsReversible != nil {
			v.IsReversible = *pp.IsReversible
		}
		if pp.FrontSide != nil {
			if *pp.FrontSide == SideBack && !v.IsReversible {
				return fmt.Errorf("%w: %d", ErrNotReversible, p.ID)
			}
			v.FrontSide = *pp.FrontSide
		} else if !v.IsReversible {
			v.FrontSide = SideFront
		}
		p.Variant = v
	case HandVariant:
		if pp.IsReversible != nil || pp.FrontSide != nil || pp.CanReverseCardOnDeck != nil {
			return fmt.Errorf("%w: field does not apply to %s", ErrInvalidPatch, p.Type())
		}
		if pp.OwnerID.Set {
			v.OwnerID = pp.OwnerID.Value
		}
		p.Variant = v
	case DeckVariant:
		if pp.IsReversible != nil || pp.FrontSide != nil || pp.OwnerID.Set {
			return fmt.Errorf("%w: field does not apply to %s", ErrInvalidPatch, p.Type())
		}
		if pp.CanReverseCardOnDeck != nil {
			v.CanReverseCardOnDeck = *pp.CanReverseCardOnDeck
		}
		p.Variant = v
	default:
		if pp.IsReversible != nil || pp.FrontSide != nil || pp.OwnerID.Set || pp.CanReverseCardOnDeck != nil {
			return fmt.Errorf("%w: field does not apply to %s", ErrInvalidPatch, p.Type())
		}
	}
	return p.Validate()
}

func (pp PropertyPatch) applyTo(prop *PartProperty) {
	if pp.Name != nil {
		prop.Name = *pp.Name
	}
	if pp.Description != nil {
		prop.Description = *pp.Description
	}
	if pp.Color != nil {
		prop.Color = *pp.Color
	}
	if pp.ImageID.Set {
		prop.ImageID = pp.ImageID.Value
	}
}

// Sides returns the property sides a part of type t carries.
func Sides(t PartType) []Side {
	if t == PartTypeCard {
		return []Side{SideFront, SideBack}
	}
	return []Side{SideFront}
}
