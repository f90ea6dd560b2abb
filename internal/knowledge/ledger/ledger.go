package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jasonroberts79/cyberpunk-looter/internal/knowledge"
	"github.com/jasonroberts79/cyberpunk-looter/internal/platform/gcs"
	"github.com/jasonroberts79/cyberpunk-looter/internal/platform/logger"
)

// DefaultObjectKey matches the tracking blob the earlier deployments of
// this system wrote, so an upgrade keeps its incremental state.
const DefaultObjectKey = "knowledge_base_tracking.json"

// Store persists the path -> FileRecord ledger as one JSON object. It is a
// passed-in handle, not package state, so multiple corpora can run
// side by side without cross-talk.
type Store struct {
	log  *logger.Logger
	blob gcs.BlobStore
	key  string
}

func NewStore(log *logger.Logger, blob gcs.BlobStore, objectKey string) *Store {
	if objectKey == "" {
		objectKey = DefaultObjectKey
	}
	return &Store{
		log:  log.With("component", "Ledger"),
		blob: blob,
		key:  objectKey,
	}
}

// Load reads the persisted index state. A missing object is first run:
// empty state, everything classifies as new.
func (s *Store) Load(ctx context.Context) (knowledge.IndexState, error) {
	data, err := s.blob.Read(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("ledger: load: %w", err)
	}
	if len(data) == 0 {
		return knowledge.IndexState{}, nil
	}
	state := knowledge.IndexState{}
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("ledger: decode %s: %w", s.key, err)
	}
	return state, nil
}

func (s *Store) Save(ctx context.Context, state knowledge.IndexState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("ledger: encode: %w", err)
	}
	if err := s.blob.Write(ctx, s.key, data); err != nil {
		return fmt.Errorf("ledger: save: %w", err)
	}
	s.log.Debug("Ledger saved", "files", len(state))
	return nil
}
