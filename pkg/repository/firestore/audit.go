package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"

	"github.com/inkwell-lab/inkwell/pkg/domain/model"
	"github.com/inkwell-lab/inkwell/pkg/domain/types"
)

type auditRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newAuditRepository(client *firestore.Client) *auditRepository {
	return &auditRepository{
		client:           client,
		collectionPrefix: "",
	}
}

func (r *auditRepository) collection() string {
	if r.collectionPrefix != "" {
		return r.collectionPrefix + "_audit_events"
	}
	return "audit_events"
}

func (r *auditRepository) Insert(ctx context.Context, userID types.UserID, ev *model.AuditEvent) error {
	created := *ev
	if created.ID == "" {
		created.ID = types.NewAuditID()
	}
	created.UserID = userID
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}

	_, err := r.client.Collection(r.collection()).Doc(string(created.ID)).Set(ctx, &created)
	if err != nil {
		return goerr.Wrap(err, "failed to insert audit event", goerr.V("auditID", created.ID))
	}

	return nil
}

func (r *auditRepository) List(ctx context.Context, userID types.UserID, limit int) ([]*model.AuditEvent, error) {
	query := r.client.Collection(r.collection()).
		Where("UserID", "==", string(userID)).
		OrderBy("CreatedAt", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var events []*model.AuditEvent
	for {
		docSnap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate audit events")
		}

		var ev model.AuditEvent
		if err := docSnap.DataTo(&ev); err != nil {
			return nil, goerr.Wrap(err, "failed to decode audit event", goerr.V("doc_id", docSnap.Ref.ID))
		}

		events = append(events, &ev)
	}

	return events, nil
}
