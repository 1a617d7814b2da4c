package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/inkwell-lab/inkwell/pkg/domain/interfaces"
	"github.com/inkwell-lab/inkwell/pkg/domain/model"
	"github.com/inkwell-lab/inkwell/pkg/domain/types"
)

type goalRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newGoalRepository(client *firestore.Client) *goalRepository {
	return &goalRepository{
		client:           client,
		collectionPrefix: "",
	}
}

func (r *goalRepository) collection() string {
	if r.collectionPrefix != "" {
		return r.collectionPrefix + "_goals"
	}
	return "goals"
}

func (r *goalRepository) activeQuery(userID types.UserID) firestore.Query {
	return r.client.Collection(r.collection()).
		Where("UserID", "==", string(userID)).
		Where("Status", "==", string(types.GoalStatusActive))
}

func (r *goalRepository) Create(ctx context.Context, userID types.UserID, goal *model.Goal) (*model.Goal, error) {
	now := time.Now().UTC()
	created := *goal
	if created.ID == "" {
		created.ID = types.NewGoalID()
	}
	created.UserID = userID
	created.Status = created.Status.Normalize()
	created.CreatedAt = now
	created.UpdatedAt = now

	docRef := r.client.Collection(r.collection()).Doc(string(created.ID))

	// Cap check and insert share one transaction so concurrent creates
	// cannot both pass the check.
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		iter := tx.Documents(r.activeQuery(userID))
		defer iter.Stop()

		count := 0
		for {
			_, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				return goerr.Wrap(err, "failed to count active goals")
			}
			count++
		}

		if count >= model.ActiveGoalCap {
			return goerr.Wrap(interfaces.ErrGoalLimit, "goal not created",
				goerr.V("userID", userID), goerr.V("cap", model.ActiveGoalCap))
		}

		return tx.Set(docRef, &created)
	})
	if err != nil {
		return nil, err
	}

	return &created, nil
}

func (r *goalRepository) Get(ctx context.Context, userID types.UserID, goalID types.GoalID) (*model.Goal, error) {
	docSnap, err := r.client.Collection(r.collection()).Doc(string(goalID)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(interfaces.ErrNotFound, "goal not found", goerr.V("goalID", goalID))
		}
		return nil, goerr.Wrap(err, "failed to get goal", goerr.V("goalID", goalID))
	}

	var goal model.Goal
	if err := docSnap.DataTo(&goal); err != nil {
		return nil, goerr.Wrap(err, "failed to decode goal", goerr.V("goalID", goalID))
	}
	if goal.UserID != userID {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "goal not found", goerr.V("goalID", goalID))
	}

	return &goal, nil
}

func (r *goalRepository) ListActive(ctx context.Context, userID types.UserID, limit int) ([]*model.Goal, error) {
	query := r.activeQuery(userID).OrderBy("UpdatedAt", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var goals []*model.Goal
	for {
		docSnap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate goals")
		}

		var goal model.Goal
		if err := docSnap.DataTo(&goal); err != nil {
			return nil, goerr.Wrap(err, "failed to decode goal", goerr.V("doc_id", docSnap.Ref.ID))
		}

		goals = append(goals, &goal)
	}

	return goals, nil
}

func (r *goalRepository) CountActive(ctx context.Context, userID types.UserID) (int, error) {
	iter := r.activeQuery(userID).Documents(ctx)
	defer iter.Stop()

	count := 0
	for {
		_, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return 0, goerr.Wrap(err, "failed to count active goals")
		}
		count++
	}

	return count, nil
}

func (r *goalRepository) Update(ctx context.Context, userID types.UserID, goal *model.Goal) (*model.Goal, error) {
	docRef := r.client.Collection(r.collection()).Doc(string(goal.ID))

	var updated model.Goal
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docSnap, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(interfaces.ErrNotFound, "goal not found", goerr.V("goalID", goal.ID))
			}
			return goerr.Wrap(err, "failed to get goal")
		}

		var existing model.Goal
		if err := docSnap.DataTo(&existing); err != nil {
			return goerr.Wrap(err, "failed to decode goal", goerr.V("goalID", goal.ID))
		}
		if existing.UserID != userID {
			return goerr.Wrap(interfaces.ErrNotFound, "goal not found", goerr.V("goalID", goal.ID))
		}

		updated = *goal
		updated.UserID = userID
		updated.Status = updated.Status.Normalize()
		updated.CreatedAt = existing.CreatedAt
		updated.UpdatedAt = time.Now().UTC()
		return tx.Set(docRef, &updated)
	})
	if err != nil {
		return nil, err
	}

	return &updated, nil
}
