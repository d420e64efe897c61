// Package postgres stores boards in Postgres through the database handle the
// Nakama runtime hands to the plugin. The tables are expected to exist.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"kibako/internal/domain"
	"kibako/internal/ports"

	"github.com/jmoiron/sqlx"
)

// BoardStore implements ports.BoardStore over the kibako_* tables.
type BoardStore struct {
	DB *sqlx.DB
}

func NewBoardStore(db *sqlx.DB) *BoardStore {
	return &BoardStore{DB: db}
}

// Load reads a board and all of its rows.
func (s *BoardStore) Load(ctx context.Context, versionID string) (*domain.Board, error) {
	var br boardRow
	q := `SELECT prototype_version_id, next_part_id FROM kibako_boards WHERE prototype_version_id = $1;`
	if err := s.DB.GetContext(ctx, &br, q, versionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ports.ErrBoardNotFound
		}
		return nil, fmt.Errorf("failed to get board: %w", err)
	}

	var parts []partRow
	qParts := `SELECT * FROM kibako_parts WHERE prototype_version_id = $1 ORDER BY sort_order, id;`
	if err := s.DB.SelectContext(ctx, &parts, qParts, versionID); err != nil {
		return nil, fmt.Errorf("failed to select parts: %w", err)
	}

	var props []propertyRow
	qProps := `SELECT * FROM kibako_part_properties WHERE prototype_version_id = $1 ORDER BY part_id, side;`
	if err := s.DB.SelectContext(ctx, &props, qProps, versionID); err != nil {
		return nil, fmt.Errorf("failed to select part properties: %w", err)
	}

	var players []playerRow
	qPlayers := `SELECT * FROM kibako_players WHERE prototype_version_id = $1 ORDER BY player_name;`
	if err := s.DB.SelectContext(ctx, &players, qPlayers, versionID); err != nil {
		return nil, fmt.Errorf("failed to select players: %w", err)
	}

	board := domain.NewBoard(versionID)
	board.NextPartID = br.NextPartID
	for _, r := range parts {
		p, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		board.Parts = append(board.Parts, p)
	}
	for _, r := range props {
		board.Properties = append(board.Properties, r.toDomain())
	}
	for _, r := range players {
		board.Players = append(board.Players, r.toDomain())
	}
	return board, nil
}

// Save replaces every row of the board in one transaction.
func (s *BoardStore) Save(ctx context.Context, board *domain.Board) error {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not start transaction: %w", err)
	}
	defer tx.Rollback()

	versionID := board.VersionID
	qBoard := `INSERT INTO kibako_boards (prototype_version_id, next_part_id) VALUES ($1, $2)
		ON CONFLICT (prototype_version_id) DO UPDATE SET next_part_id = EXCLUDED.next_part_id;`
	if _, err := tx.ExecContext(ctx, qBoard, versionID, board.NextPartID); err != nil {
		return fmt.Errorf("failed to upsert board: %w", err)
	}

	for _, table := range []string{"kibako_part_properties", "kibako_parts", "kibako_players"} {
		q := `DELETE FROM ` + table + ` WHERE prototype_version_id = $1;`
		if _, err := tx.ExecContext(ctx, q, versionID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if len(board.Parts) > 0 {
		rows := make([]partRow, 0, len(board.Parts))
		for _, p := range board.Parts {
			rows = append(rows, toPartRow(p, versionID))
		}
		q := `INSERT INTO kibako_parts (id, prototype_version_id, type, position_x, position_y, width, height,
			sort_order, parent_id, configurable_type_as_child, created_at, is_reversible, front_side, owner_id,
			can_reverse_card_on_deck)
			VALUES (:id, :prototype_version_id, :type, :position_x, :position_y, :width, :height,
			:sort_order, :parent_id, :configurable_type_as_child, :created_at, :is_reversible, :front_side, :owner_id,
			:can_reverse_card_on_deck);`
		if _, err := tx.NamedExecContext(ctx, q, rows); err != nil {
			return fmt.Errorf("failed to insert parts: %w", err)
		}
	}

	if len(board.Properties) > 0 {
		rows := make([]propertyRow, 0, len(board.Properties))
		for _, p := range board.Properties {
			rows = append(rows, toPropertyRow(p, versionID))
		}
		q := `INSERT INTO kibako_part_properties (prototype_version_id, part_id, side, name, description, color, image_id)
			VALUES (:prototype_version_id, :part_id, :side, :name, :description, :color, :image_id);`
		if _, err := tx.NamedExecContext(ctx, q, rows); err != nil {
			return fmt.Errorf("failed to insert part properties: %w", err)
		}
	}

	if len(board.Players) > 0 {
		rows := make([]playerRow, 0, len(board.Players))
		for _, p := range board.Players {
			rows = append(rows, toPlayerRow(p, versionID))
		}
		q := `INSERT INTO kibako_players (id, prototype_version_id, player_name, user_id)
			VALUES (:id, :prototype_version_id, :player_name, :user_id);`
		if _, err := tx.NamedExecContext(ctx, q, rows); err != nil {
			return fmt.Errorf("failed to insert players: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("transaction commit failed: %w", err)
	}
	return nil
}

var _ ports.BoardStore = (*BoardStore)(nil)
