package ports

import (
	"context"
	"errors"

	"kibako/internal/domain"
)

// ErrBoardNotFound is returned by Load when no board was saved for a version.
var ErrBoardNotFound = errors.New("board not found")

// BoardStore persists the authoritative board of a prototype version.
type BoardStore interface {
	// Load returns the saved board of versionID or ErrBoardNotFound.
	Load(ctx context.Context, versionID string) (*domain.Board, error)

	// Save replaces the stored board of its version atomically.
	Save(ctx context.Context, board *domain.Board) error
}
