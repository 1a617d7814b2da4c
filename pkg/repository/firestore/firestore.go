package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"

	"github.com/inkwell-lab/inkwell/pkg/domain/interfaces"
)

type Firestore struct {
	client   *firestore.Client
	entry    *entryRepository
	goal     *goalRepository
	schedule *scheduleRepository
	trace    *traceRepository
	audit    *auditRepository
}

var _ interfaces.Repository = &Firestore{}

type Option func(*Firestore)

func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.entry.collectionPrefix = prefix
		f.goal.collectionPrefix = prefix
		f.schedule.collectionPrefix = prefix
		f.trace.collectionPrefix = prefix
		f.audit.collectionPrefix = prefix
	}
}

func New(ctx context.Context, projectID string, opts ...Option) (*Firestore, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client", goerr.V("projectID", projectID))
	}

	f := &Firestore{
		client:   client,
		entry:    newEntryRepository(client),
		goal:     newGoalRepository(client),
		schedule: newScheduleRepository(client),
		trace:    newTraceRepository(client),
		audit:    newAuditRepository(client),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

func (f *Firestore) Entry() interfaces.EntryRepository {
	return f.entry
}

func (f *Firestore) Goal() interfaces.GoalRepository {
	return f.goal
}

func (f *Firestore) Schedule() interfaces.ScheduleRepository {
	return f.schedule
}

func (f *Firestore) Trace() interfaces.TraceRepository {
	return f.trace
}

func (f *Firestore) Audit() interfaces.AuditRepository {
	return f.audit
}

func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}
