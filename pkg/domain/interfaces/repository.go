package interfaces

import (
	"github.com/m-mizutani/goerr/v2"
)

// Repository defines the interface for data persistence
type Repository interface {
	Entry() EntryRepository
	Goal() GoalRepository
	Schedule() ScheduleRepository
	Trace() TraceRepository
	Audit() AuditRepository

	Close() error
}

// Sentinel errors shared by all repository backends.
var (
	// ErrNotFound marks a missing record.
	ErrNotFound = goerr.New("record not found")

	// ErrGoalLimit is returned by GoalRepository.Create when the user already
	// has the maximum number of active goals. It is a distinguishable "limit"
	// status, not a generic error: callers surface it as a normal outcome.
	ErrGoalLimit = goerr.New("active goal limit reached")
)
