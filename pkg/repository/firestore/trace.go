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

type traceRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newTraceRepository(client *firestore.Client) *traceRepository {
	return &traceRepository{
		client:           client,
		collectionPrefix: "",
	}
}

func (r *traceRepository) collection() string {
	if r.collectionPrefix != "" {
		return r.collectionPrefix + "_traces"
	}
	return "traces"
}

func (r *traceRepository) Record(ctx context.Context, userID types.UserID, ev *model.TraceEvent) (*model.TraceEvent, error) {
	created := *ev
	if created.ID == "" {
		created.ID = types.NewTraceID()
	}
	created.UserID = userID
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}

	_, err := r.client.Collection(r.collection()).Doc(string(created.ID)).Set(ctx, &created)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to record trace", goerr.V("traceID", created.ID))
	}

	if err := r.evictOld(ctx, userID); err != nil {
		return nil, err
	}

	return &created, nil
}

// evictOld removes events beyond the retention cap, oldest first.
func (r *traceRepository) evictOld(ctx context.Context, userID types.UserID) error {
	iter := r.client.Collection(r.collection()).
		Where("UserID", "==", string(userID)).
		OrderBy("CreatedAt", firestore.Desc).
		Offset(model.MaxTraces).
		Documents(ctx)
	defer iter.Stop()

	for {
		docSnap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return goerr.Wrap(err, "failed to iterate traces for eviction")
		}
		if _, err := docSnap.Ref.Delete(ctx); err != nil {
			return goerr.Wrap(err, "failed to evict trace", goerr.V("doc_id", docSnap.Ref.ID))
		}
	}

	return nil
}

func (r *traceRepository) Patch(ctx context.Context, userID types.UserID, traceID types.TraceID, patch *model.TracePatch) error {
	docRef := r.client.Collection(r.collection()).Doc(string(traceID))

	return r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docSnap, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(interfaces.ErrNotFound, "trace not found", goerr.V("traceID", traceID))
			}
			return goerr.Wrap(err, "failed to get trace")
		}

		var ev model.TraceEvent
		if err := docSnap.DataTo(&ev); err != nil {
			return goerr.Wrap(err, "failed to decode trace", goerr.V("traceID", traceID))
		}
		if ev.UserID != userID {
			return goerr.Wrap(interfaces.ErrNotFound, "trace not found", goerr.V("traceID", traceID))
		}

		patch.Apply(&ev)
		return tx.Set(docRef, &ev)
	})
}

func (r *traceRepository) List(ctx context.Context, userID types.UserID, limit int) ([]*model.TraceEvent, error) {
	query := r.client.Collection(r.collection()).
		Where("UserID", "==", string(userID)).
		OrderBy("CreatedAt", firestore.Desc)
	if limit <= 0 || limit > model.MaxTraces {
		limit = model.MaxTraces
	}
	query = query.Limit(limit)

	iter := query.Documents(ctx)
	defer iter.Stop()

	var events []*model.TraceEvent
	for {
		docSnap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate traces")
		}

		var ev model.TraceEvent
		if err := docSnap.DataTo(&ev); err != nil {
			return nil, goerr.Wrap(err, "failed to decode trace", goerr.V("doc_id", docSnap.Ref.ID))
		}

		events = append(events, &ev)
	}

	return events, nil
}
