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

type scheduleRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newScheduleRepository(client *firestore.Client) *scheduleRepository {
	return &scheduleRepository{
		client:           client,
		collectionPrefix: "",
	}
}

func (r *scheduleRepository) collection() string {
	if r.collectionPrefix != "" {
		return r.collectionPrefix + "_schedule_blocks"
	}
	return "schedule_blocks"
}

func (r *scheduleRepository) Create(ctx context.Context, userID types.UserID, block *model.ScheduleBlock) (*model.ScheduleBlock, error) {
	if err := block.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid schedule block")
	}

	created := *block
	if created.ID == "" {
		created.ID = types.NewScheduleID()
	}
	created.UserID = userID
	created.CreatedAt = time.Now().UTC()

	_, err := r.client.Collection(r.collection()).Doc(string(created.ID)).Set(ctx, &created)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create schedule block", goerr.V("blockID", created.ID))
	}

	return &created, nil
}

func (r *scheduleRepository) Get(ctx context.Context, userID types.UserID, blockID types.ScheduleID) (*model.ScheduleBlock, error) {
	docSnap, err := r.client.Collection(r.collection()).Doc(string(blockID)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(interfaces.ErrNotFound, "schedule block not found", goerr.V("blockID", blockID))
		}
		return nil, goerr.Wrap(err, "failed to get schedule block", goerr.V("blockID", blockID))
	}

	var block model.ScheduleBlock
	if err := docSnap.DataTo(&block); err != nil {
		return nil, goerr.Wrap(err, "failed to decode schedule block", goerr.V("blockID", blockID))
	}
	if block.UserID != userID {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "schedule block not found", goerr.V("blockID", blockID))
	}

	return &block, nil
}

func (r *scheduleRepository) ListUpcoming(ctx context.Context, userID types.UserID, until time.Time, limit int) ([]*model.ScheduleBlock, error) {
	query := r.client.Collection(r.collection()).
		Where("UserID", "==", string(userID)).
		OrderBy("StartAt", firestore.Asc)
	if !until.IsZero() {
		query = query.Where("StartAt", "<=", until)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var blocks []*model.ScheduleBlock
	for {
		docSnap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate schedule blocks")
		}

		var block model.ScheduleBlock
		if err := docSnap.DataTo(&block); err != nil {
			return nil, goerr.Wrap(err, "failed to decode schedule block", goerr.V("doc_id", docSnap.Ref.ID))
		}

		blocks = append(blocks, &block)
	}

	return blocks, nil
}
