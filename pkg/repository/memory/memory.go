package memory

import (
	"github.com/inkwell-lab/inkwell/pkg/domain/interfaces"
)

// Memory is the in-memory repository backend used for development and tests.
type Memory struct {
	entry    *entryRepository
	goal     *goalRepository
	schedule *scheduleRepository
	trace    *traceRepository
	audit    *auditRepository
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		entry:    newEntryRepository(),
		goal:     newGoalRepository(),
		schedule: newScheduleRepository(),
		trace:    newTraceRepository(),
		audit:    newAuditRepository(),
	}
}

func (m *Memory) Entry() interfaces.EntryRepository {
	return m.entry
}

func (m *Memory) Goal() interfaces.GoalRepository {
	return m.goal
}

func (m *Memory) Schedule() interfaces.ScheduleRepository {
	return m.schedule
}

func (m *Memory) Trace() interfaces.TraceRepository {
	return m.trace
}

func (m *Memory) Audit() interfaces.AuditRepository {
	return m.audit
}

func (m *Memory) Close() error {
	return nil
}
