package postgres

import (
	"testing"
	"time"

	"kibako/internal/domain"
)

func TestPartRowRoundTripKeepsVariant(t *testing.T) {
	parent := int64(3)
	owner := "player-1"
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		part domain.Part
	}{
		{
			name: "card",
			part: domain.Part{ID: 7, Order: 0.5, ParentID: &parent, CreatedAt: created,
				Variant: domain.CardVariant{IsReversible: true, FrontSide: domain.SideBack}},
		},
		{
			name: "hand",
			part: domain.Part{ID: 8, Order: 0.25, CreatedAt: created,
				ConfigurableTypeAsChild: []domain.PartType{domain.PartTypeCard},
				Variant:                 domain.HandVariant{OwnerID: &owner}},
		},
		{
			name: "deck",
			part: domain.Part{ID: 9, Order: 0.75, CreatedAt: created,
				Variant: domain.DeckVariant{CanReverseCardOnDeck: true}},
		},
		{
			name: "token",
			part: domain.Part{ID: 10, Position: domain.Point{X: 4, Y: 5}, CreatedAt: created,
				Variant: domain.TokenVariant{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := toPartRow(tt.part, "pv-1")
			got, err := row.toDomain()
			if err != nil {
				t.Fatalf("toDomain error: %v", err)
			}
			if got.Type() != tt.part.Type() || got.Position != tt.part.Position || got.Order != tt.part.Order {
				t.Fatalf("got %+v, want %+v", got, tt.part)
			}
			if got.PrototypeVersionID != "pv-1" {
				t.Fatalf("version id = %q", got.PrototypeVersionID)
			}
			if (got.ParentID == nil) != (tt.part.ParentID == nil) {
				t.Fatalf("parent mismatch: %v vs %v", got.ParentID, tt.part.ParentID)
			}
			switch want := tt.part.Variant.(type) {
			case domain.CardVariant:
				if got.Variant != want {
					t.Fatalf("card variant = %+v, want %+v", got.Variant, want)
				}
			case domain.HandVariant:
				h, ok := got.Hand()
				if !ok || h.OwnerID == nil || *h.OwnerID != *want.OwnerID {
					t.Fatalf("hand variant = %+v", got.Variant)
				}
				if len(got.ConfigurableTypeAsChild) != 1 {
					t.Fatalf("child types = %v", got.ConfigurableTypeAsChild)
				}
			case domain.DeckVariant:
				if got.Variant != want {
					t.Fatalf("deck variant = %+v, want %+v", got.Variant, want)
				}
			}
		})
	}
}

func TestPartRowVariantColumnsAreNullForOtherTypes(t *testing.T) {
	row := toPartRow(domain.Part{ID: 1, Variant: domain.TokenVariant{}}, "pv-1")
	if row.IsReversible.Valid || row.FrontSide.Valid || row.OwnerID.Valid || row.CanReverseCardOnDeck.Valid {
		t.Fatalf("token row carries variant columns: %+v", row)
	}
	if row.ParentID.Valid {
		t.Fatalf("parent must be NULL")
	}
}

func TestPartRowRejectsUnknownType(t *testing.T) {
	if _, err := (partRow{ID: 1, Type: "meeple"}).toDomain(); err == nil {
		t.Fatalf("expected unknown type error")
	}
}

func TestPropertyAndPlayerRows(t *testing.T) {
	img := "img-1"
	prop := domain.PartProperty{PartID: 2, Side: domain.SideBack, Name: "Ace", Color: "#fff", ImageID: &img}
	if got := toPropertyRow(prop, "pv-1").toDomain(); got.ImageID == nil || *got.ImageID != img || got.Side != domain.SideBack {
		t.Fatalf("property = %+v", got)
	}

	player := domain.Player{ID: "p1", Name: "Player 1"}
	got := toPlayerRow(player, "pv-1").toDomain()
	if got.UserID != nil || got.PrototypeVersionID != "pv-1" {
		t.Fatalf("player = %+v", got)
	}
}
