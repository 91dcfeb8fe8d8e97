package interfaces

import (
	"context"

	"github.com/m-mizutani/policyfetch/pkg/domain/model"
)

// SyncUseCase defines the policy bundle synchronization
type SyncUseCase interface {
	// Sync fetches the latest bundle of every accessible project and extracts it into the policy directory
	Sync(ctx context.Context) (*model.SyncReport, error)
}
