package postgres

import (
	"database/sql"
	"fmt"
	"time"

	"kibako/internal/domain"

	"github.com/lib/pq"
)

type boardRow struct {
	VersionID  string `db:"prototype_version_id"`
	NextPartID int64  `db:"next_part_id"`
}

// partRow is one kibako_parts row. Variant columns are NULL for part types
// that do not carry them.
type partRow struct {
	ID                      int64          `db:"id"`
	VersionID               string         `db:"prototype_version_id"`
	Type                    string         `db:"type"`
	PositionX               float64        `db:"position_x"`
	PositionY               float64        `db:"position_y"`
	Width                   float64        `db:"width"`
	Height                  float64        `db:"height"`
	Order                   float64        `db:"sort_order"`
	ParentID                sql.NullInt64  `db:"parent_id"`
	ConfigurableTypeAsChild pq.StringArray `db:"configurable_type_as_child"`
	CreatedAt               time.Time      `db:"created_at"`
	IsReversible            sql.NullBool   `db:"is_reversible"`
	FrontSide               sql.NullString `db:"front_side"`
	OwnerID                 sql.NullString `db:"owner_id"`
	CanReverseCardOnDeck    sql.NullBool   `db:"can_reverse_card_on_deck"`
}

type propertyRow struct {
	VersionID   string         `db:"prototype_version_id"`
	PartID      int64          `db:"part_id"`
	Side        string         `db:"side"`
	Name        string         `db:"name"`
	Description string         `db:"description"`
	Color       string         `db:"color"`
	ImageID     sql.NullString `db:"image_id"`
}

type playerRow struct {
	ID        string         `db:"id"`
	VersionID string         `db:"prototype_version_id"`
	Name      string         `db:"player_name"`
	UserID    sql.NullString `db:"user_id"`
}

func toPartRow(p domain.Part, versionID string) partRow {
	row := partRow{
		ID:        p.ID,
		VersionID: versionID,
		Type:      string(p.Type()),
		PositionX: p.Position.X,
		PositionY: p.Position.Y,
		Width:     p.Width,
		Height:    p.Height,
		Order:     p.Order,
		CreatedAt: p.CreatedAt,
	}
	if p.ParentID != nil {
		row.ParentID = sql.NullInt64{Int64: *p.ParentID, Valid: true}
	}
	row.ConfigurableTypeAsChild = make(pq.StringArray, 0, len(p.ConfigurableTypeAsChild))
	for _, t := range p.ConfigurableTypeAsChild {
		row.ConfigurableTypeAsChild = append(row.ConfigurableTypeAsChild, string(t))
	}
	switch v := p.Variant.(type) {
	case domain.CardVariant:
		row.IsReversible = sql.NullBool{Bool: v.IsReversible, Valid: true}
		row.FrontSide = sql.NullString{String: string(v.FrontSide), Valid: true}
	case domain.HandVariant:
		row.OwnerID = nullString(v.OwnerID)
	case domain.DeckVariant:
		row.CanReverseCardOnDeck = sql.NullBool{Bool: v.CanReverseCardOnDeck, Valid: true}
	}
	return row
}

func (r partRow) toDomain() (domain.Part, error) {
	variant, err := domain.NewVariant(domain.PartType(r.Type))
	if err != nil {
		return domain.Part{}, fmt.Errorf("part %d: %w", r.ID, err)
	}
	switch variant.(type) {
	case domain.CardVariant:
		c := domain.CardVariant{IsReversible: r.IsReversible.Bool, FrontSide: domain.SideFront}
		if r.FrontSide.Valid {
			c.FrontSide = domain.Side(r.FrontSide.String)
		}
		variant = c
	case domain.HandVariant:
		variant = domain.HandVariant{OwnerID: stringPtr(r.OwnerID)}
	case domain.DeckVariant:
		variant = domain.DeckVariant{CanReverseCardOnDeck: r.CanReverseCardOnDeck.Bool}
	}

	p := domain.Part{
		ID:                 r.ID,
		PrototypeVersionID: r.VersionID,
		Position:           domain.Point{X: r.PositionX, Y: r.PositionY},
		Width:              r.Width,
		Height:             r.Height,
		Order:              r.Order,
		CreatedAt:          r.CreatedAt,
		Variant:            variant,
	}
	if r.ParentID.Valid {
		id := r.ParentID.Int64
		p.ParentID = &id
	}
	for _, t := range r.ConfigurableTypeAsChild {
		p.ConfigurableTypeAsChild = append(p.ConfigurableTypeAsChild, domain.PartType(t))
	}
	return p, nil
}

func toPropertyRow(p domain.PartProperty, versionID string) propertyRow {
	return propertyRow{
		VersionID:   versionID,
		PartID:      p.PartID,
		Side:        string(p.Side),
		Name:        p.Name,
		Description: p.Description,
		Color:       p.Color,
		ImageID:     nullString(p.ImageID),
	}
}

func (r propertyRow) toDomain() domain.PartProperty {
	return domain.PartProperty{
		PartID:      r.PartID,
		Side:        domain.Side(r.Side),
		Name:        r.Name,
		Description: r.Description,
		Color:       r.Color,
		ImageID:     stringPtr(r.ImageID),
	}
}

func toPlayerRow(p domain.Player, versionID string) playerRow {
	return playerRow{ID: p.ID, VersionID: versionID, Name: p.Name, UserID: nullString(p.UserID)}
}

func (r playerRow) toDomain() domain.Player {
	return domain.Player{ID: r.ID, PrototypeVersionID: r.VersionID, Name: r.Name, UserID: stringPtr(r.UserID)}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
