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

type entryRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newEntryRepository(client *firestore.Client) *entryRepository {
	return &entryRepository{
		client:           client,
		collectionPrefix: "",
	}
}

func (r *entryRepository) collection() string {
	if r.collectionPrefix != "" {
		return r.collectionPrefix + "_entries"
	}
	return "entries"
}

func (r *entryRepository) Create(ctx context.Context, userID types.UserID, entry *model.Entry) (*model.Entry, error) {
	now := time.Now().UTC()
	created := *entry
	if created.ID == "" {
		created.ID = types.NewEntryID()
	}
	created.UserID = userID
	created.CreatedAt = now
	created.UpdatedAt = now

	_, err := r.client.Collection(r.collection()).Doc(string(created.ID)).Set(ctx, &created)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create entry", goerr.V("entryID", created.ID))
	}

	return &created, nil
}

func (r *entryRepository) Append(ctx context.Context, userID types.UserID, entryID types.EntryID, content string) (*model.Entry, error) {
	docRef := r.client.Collection(r.collection()).Doc(string(entryID))

	var updated model.Entry
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docSnap, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(interfaces.ErrNotFound, "entry not found", goerr.V("entryID", entryID))
			}
			return goerr.Wrap(err, "failed to get entry")
		}

		var entry model.Entry
		if err := docSnap.DataTo(&entry); err != nil {
			return goerr.Wrap(err, "failed to decode entry", goerr.V("entryID", entryID))
		}
		if entry.UserID != userID {
			return goerr.Wrap(interfaces.ErrNotFound, "entry not found", goerr.V("entryID", entryID))
		}

		entry.Append(content)
		entry.UpdatedAt = time.Now().UTC()
		updated = entry
		return tx.Set(docRef, &entry)
	})
	if err != nil {
		return nil, err
	}

	return &updated, nil
}

func (r *entryRepository) Get(ctx context.Context, userID types.UserID, entryID types.EntryID) (*model.Entry, error) {
	docSnap, err := r.client.Collection(r.collection()).Doc(string(entryID)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(interfaces.ErrNotFound, "entry not found", goerr.V("entryID", entryID))
		}
		return nil, goerr.Wrap(err, "failed to get entry", goerr.V("entryID", entryID))
	}

	var entry model.Entry
	if err := docSnap.DataTo(&entry); err != nil {
		return nil, goerr.Wrap(err, "failed to decode entry", goerr.V("entryID", entryID))
	}
	if entry.UserID != userID {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "entry not found", goerr.V("entryID", entryID))
	}

	return &entry, nil
}

func (r *entryRepository) ListRecent(ctx context.Context, userID types.UserID, limit int) ([]*model.Entry, error) {
	query := r.client.Collection(r.collection()).
		Where("UserID", "==", string(userID)).
		OrderBy("CreatedAt", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var entries []*model.Entry
	for {
		docSnap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate entries")
		}

		var entry model.Entry
		if err := docSnap.DataTo(&entry); err != nil {
			return nil, goerr.Wrap(err, "failed to decode entry", goerr.V("doc_id", docSnap.Ref.ID))
		}

		entries = append(entries, &entry)
	}

	return entries, nil
}

func (r *entryRepository) SetGoalID(ctx context.Context, userID types.UserID, entryID types.EntryID, goalID types.GoalID) error {
	docRef := r.client.Collection(r.collection()).Doc(string(entryID))

	return r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docSnap, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(interfaces.ErrNotFound, "entry not found", goerr.V("entryID", entryID))
			}
			return goerr.Wrap(err, "failed to get entry")
		}

		var entry model.Entry
		if err := docSnap.DataTo(&entry); err != nil {
			return goerr.Wrap(err, "failed to decode entry", goerr.V("entryID", entryID))
		}
		if entry.UserID != userID {
			return goerr.Wrap(interfaces.ErrNotFound, "entry not found", goerr.V("entryID", entryID))
		}

		return tx.Update(docRef, []firestore.Update{
			{Path: "GoalID", Value: string(goalID)},
			{Path: "UpdatedAt", Value: time.Now().UTC()},
		})
	})
}
