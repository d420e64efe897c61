package ports

import (
	"context"
	"sync"

	"kibako/internal/domain"
)

// MemoryBoardStore keeps boards in process memory. Rooms on one node share it.
type MemoryBoardStore struct {
	mu     sync.RWMutex
	boards map[string]*domain.Board
}

// NewMemoryBoardStore returns an empty store.
func NewMemoryBoardStore() *MemoryBoardStore {
	return &MemoryBoardStore{boards: make(map[string]*domain.Board)}
}

func (s *MemoryBoardStore) Load(ctx context.Context, versionID string) (*domain.Board, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.boards[versionID]
	if !ok {
		return nil, ErrBoardNotFound
	}
	return b.Clone(), nil
}

func (s *MemoryBoardStore) Save(ctx context.Context, board *domain.Board) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boards[board.VersionID] = board.Clone()
	return nil
}

var _ BoardStore = (*MemoryBoardStore)(nil)
