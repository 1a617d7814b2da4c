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

type entryKey struct {
	userID  types.UserID
	entryID types.EntryID
}

type entryRepository struct {
	mu      sync.RWMutex
	entries map[entryKey]*model.Entry
}

func newEntryRepository() *entryRepository {
	return &entryRepository{
		entries: make(map[entryKey]*model.Entry),
	}
}

func copyEntry(e *model.Entry) *model.Entry {
	tags := make([]string, len(e.Tags))
	copy(tags, e.Tags)

	var intent *model.IntentMeta
	if e.Intent != nil {
		cloned := *e.Intent
		intent = &cloned
	}

	return &model.Entry{
		ID:        e.ID,
		UserID:    e.UserID,
		Content:   e.Content,
		Summary:   e.Summary,
		Tags:      tags,
		Intent:    intent,
		GoalID:    e.GoalID,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

func (r *entryRepository) Create(ctx context.Context, userID types.UserID, entry *model.Entry) (*model.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	created := copyEntry(entry)
	if created.ID == "" {
		created.ID = types.NewEntryID()
	}
	created.UserID = userID
	created.CreatedAt = now
	created.UpdatedAt = now

	r.entries[entryKey{userID: userID, entryID: created.ID}] = created
	return copyEntry(created), nil
}

func (r *entryRepository) Append(ctx context.Context, userID types.UserID, entryID types.EntryID, content string) (*model.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.entries[entryKey{userID: userID, entryID: entryID}]
	if !exists {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "entry not found", goerr.V("entryID", entryID))
	}

	entry.Append(content)
	entry.UpdatedAt = time.Now().UTC()
	return copyEntry(entry), nil
}

func (r *entryRepository) Get(ctx context.Context, userID types.UserID, entryID types.EntryID) (*model.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.entries[entryKey{userID: userID, entryID: entryID}]
	if !exists {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "entry not found", goerr.V("entryID", entryID))
	}

	return copyEntry(entry), nil
}

func (r *entryRepository) ListRecent(ctx context.Context, userID types.UserID, limit int) ([]*model.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]*model.Entry, 0)
	for key, entry := range r.entries {
		if key.userID != userID {
			continue
		}
		entries = append(entries, copyEntry(entry))
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (r *entryRepository) SetGoalID(ctx context.Context, userID types.UserID, entryID types.EntryID, goalID types.GoalID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.entries[entryKey{userID: userID, entryID: entryID}]
	if !exists {
		return goerr.Wrap(interfaces.ErrNotFound, "entry not found", goerr.V("entryID", entryID))
	}

	entry.GoalID = goalID
	entry.UpdatedAt = time.Now().UTC()
	return nil
}
