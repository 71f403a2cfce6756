package repository

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-grade-workflow/internal/models"
)

// decodeSnapshot turns a persisted blob into a store. A missing or unreadable blob yields the empty
// seed store so the service can always start; the corruption is logged, never returned.
func decodeSnapshot(raw []byte, logger *zap.Logger, source string) *models.WorkflowStore {
	store := models.NewWorkflowStore()
	if len(raw) == 0 {
		return store
	}
	if err := json.Unmarshal(raw, store); err != nil {
		logger.Warn("workflow snapshot unreadable, starting from empty store",
			zap.String("source", source),
			zap.Int("bytes", len(raw)),
			zap.Error(err))
		return models.NewWorkflowStore()
	}
	store.Normalize()
	return store
}

func encodeSnapshot(store *models.WorkflowStore) ([]byte, error) {
	if store == nil {
		store = models.NewWorkflowStore()
	}
	store.Normalize()
	raw, err := json.Marshal(store)
	if err != nil {
		return nil, fmt.Errorf("encode workflow snapshot: %w", err)
	}
	return raw, nil
}
