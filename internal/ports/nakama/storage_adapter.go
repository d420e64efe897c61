package nakama

import (
	"context"
	"encoding/json"
	"fmt"

	"kibako/internal/domain"
	"kibako/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

// NakamaBoardStore implements ports.BoardStore with system-owned Nakama
// storage objects, one per prototype version.
type NakamaBoardStore struct {
	nk         runtime.NakamaModule
	collection string
}

// NewNakamaBoardStore creates a store writing into collection.
func NewNakamaBoardStore(nk runtime.NakamaModule, collection string) *NakamaBoardStore {
	return &NakamaBoardStore{nk: nk, collection: collection}
}

// Load reads the board stored under the version id.
func (s *NakamaBoardStore) Load(ctx context.Context, versionID string) (*domain.Board, error) {
	objects, err := s.nk.StorageRead(ctx, []*runtime.StorageRead{
		{Collection: s.collection, Key: versionID},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read board %s: %w", versionID, err)
	}
	if len(objects) == 0 {
		return nil, ports.ErrBoardNotFound
	}

	board := domain.NewBoard(versionID)
	if err := json.Unmarshal([]byte(objects[0].Value), board); err != nil {
		return nil, fmt.Errorf("failed to unmarshal board %s: %w", versionID, err)
	}
	board.VersionID = versionID
	return board, nil
}

// Save writes the whole board in one storage write.
func (s *NakamaBoardStore) Save(ctx context.Context, board *domain.Board) error {
	value, err := json.Marshal(board)
	if err != nil {
		return fmt.Errorf("failed to marshal board %s: %w", board.VersionID, err)
	}

	_, err = s.nk.StorageWrite(ctx, []*runtime.StorageWrite{
		{
			Collection:      s.collection,
			Key:             board.VersionID,
			Value:           string(value),
			PermissionRead:  runtime.STORAGE_PERMISSION_NO_READ,
			PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to write board %s: %w", board.VersionID, err)
	}
	return nil
}

var _ ports.BoardStore = (*NakamaBoardStore)(nil)
