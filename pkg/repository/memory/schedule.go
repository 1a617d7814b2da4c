package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/inkwell-lab/inkwell/pkg/domain/interfaces"
	"github.com/inkwell-lab/inkwell/pkg/domain/model"
	"github.com/inkwell-lab/inkwell/pkg/domain/types"
)

type scheduleKey struct {
	userID  types.UserID
	blockID types.ScheduleID
}

type scheduleRepository struct {
	mu     sync.RWMutex
	blocks map[scheduleKey]*model.ScheduleBlock
}

func newScheduleRepository() *scheduleRepository {
	return &scheduleRepository{
		blocks: make(map[scheduleKey]*model.ScheduleBlock),
	}
}

func copyBlock(b *model.ScheduleBlock) *model.ScheduleBlock {
	var receipts map[string]string
	if b.Receipts != nil {
		receipts = make(map[string]string, len(b.Receipts))
		for k, v := range b.Receipts {
			receipts[k] = v
		}
	}

	return &model.ScheduleBlock{
		ID:        b.ID,
		UserID:    b.UserID,
		Intent:    b.Intent,
		StartAt:   b.StartAt,
		EndAt:     b.EndAt,
		GoalID:    b.GoalID,
		Summary:   b.Summary,
		Receipts:  receipts,
		CreatedAt: b.CreatedAt,
	}
}

func (r *scheduleRepository) Create(ctx context.Context, userID types.UserID, block *model.ScheduleBlock) (*model.ScheduleBlock, error) {
	if err := block.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid schedule block")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	created := copyBlock(block)
	if created.ID == "" {
		created.ID = types.NewScheduleID()
	}
	created.UserID = userID
	created.CreatedAt = time.Now().UTC()

	r.blocks[scheduleKey{userID: userID, blockID: created.ID}] = created
	return copyBlock(created), nil
}

func (r *scheduleRepository) Get(ctx context.Context, userID types.UserID, blockID types.ScheduleID) (*model.ScheduleBlock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	block, exists := r.blocks[scheduleKey{userID: userID, blockID: blockID}]
	if !exists {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "schedule block not found", goerr.V("blockID", blockID))
	}

	return copyBlock(block), nil
}

func (r *scheduleRepository) ListUpcoming(ctx context.Context, userID types.UserID, until time.Time, limit int) ([]*model.ScheduleBlock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	blocks := make([]*model.ScheduleBlock, 0)
	for key, block := range r.blocks {
		if key.userID != userID {
			continue
		}
		if !until.IsZero() && block.StartAt.After(until) {
			continue
		}
		blocks = append(blocks, copyBlock(block))
	}

	sort.Slice(blocks, func(i, j int) bool {
		return blocks[i].StartAt.Before(blocks[j].StartAt)
	})

	if limit > 0 && len(blocks) > limit {
		blocks = blocks[:limit]
	}
	return blocks, nil
}
