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

type goalKey struct {
	userID types.UserID
	goalID types.GoalID
}

type goalRepository struct {
	mu    sync.RWMutex
	goals map[goalKey]*model.Goal
}

func newGoalRepository() *goalRepository {
	return &goalRepository{
		goals: make(map[goalKey]*model.Goal),
	}
}

func copyGoal(g *model.Goal) *model.Goal {
	steps := make([]model.MicroStep, len(g.MicroSteps))
	copy(steps, g.MicroSteps)

	return &model.Goal{
		ID:            g.ID,
		UserID:        g.UserID,
		Title:         g.Title,
		Description:   g.Description,
		Status:        g.Status,
		CurrentStep:   g.CurrentStep,
		MicroSteps:    steps,
		SourceEntryID: g.SourceEntryID,
		CreatedAt:     g.CreatedAt,
		UpdatedAt:     g.UpdatedAt,
	}
}

func (r *goalRepository) countActiveLocked(userID types.UserID) int {
	count := 0
	for key, goal := range r.goals {
		if key.userID != userID {
			continue
		}
		if goal.Status.Normalize() == types.GoalStatusActive {
			count++
		}
	}
	return count
}

func (r *goalRepository) Create(ctx context.Context, userID types.UserID, goal *model.Goal) (*model.Goal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Cap check and insert happen under the same lock so two concurrent
	// creates cannot both pass the check.
	if r.countActiveLocked(userID) >= model.ActiveGoalCap {
		return nil, goerr.Wrap(interfaces.ErrGoalLimit, "goal not created",
			goerr.V("userID", userID), goerr.V("cap", model.ActiveGoalCap))
	}

	now := time.Now().UTC()
	created := copyGoal(goal)
	if created.ID == "" {
		created.ID = types.NewGoalID()
	}
	created.UserID = userID
	created.Status = created.Status.Normalize()
	created.CreatedAt = now
	created.UpdatedAt = now

	r.goals[goalKey{userID: userID, goalID: created.ID}] = created
	return copyGoal(created), nil
}

func (r *goalRepository) Get(ctx context.Context, userID types.UserID, goalID types.GoalID) (*model.Goal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	goal, exists := r.goals[goalKey{userID: userID, goalID: goalID}]
	if !exists {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "goal not found", goerr.V("goalID", goalID))
	}

	return copyGoal(goal), nil
}

func (r *goalRepository) ListActive(ctx context.Context, userID types.UserID, limit int) ([]*model.Goal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	goals := make([]*model.Goal, 0)
	for key, goal := range r.goals {
		if key.userID != userID {
			continue
		}
		if goal.Status.Normalize() != types.GoalStatusActive {
			continue
		}
		goals = append(goals, copyGoal(goal))
	}

	sort.Slice(goals, func(i, j int) bool {
		return goals[i].UpdatedAt.After(goals[j].UpdatedAt)
	})

	if limit > 0 && len(goals) > limit {
		goals = goals[:limit]
	}
	return goals, nil
}

func (r *goalRepository) CountActive(ctx context.Context, userID types.UserID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.countActiveLocked(userID), nil
}

func (r *goalRepository) Update(ctx context.Context, userID types.UserID, goal *model.Goal) (*model.Goal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := goalKey{userID: userID, goalID: goal.ID}
	existing, exists := r.goals[key]
	if !exists {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "goal not found", goerr.V("goalID", goal.ID))
	}

	updated := copyGoal(goal)
	updated.UserID = userID
	updated.Status = updated.Status.Normalize()
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()

	r.goals[key] = updated
	return copyGoal(updated), nil
}
