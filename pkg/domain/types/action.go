package types

import "fmt"

// ActionType is the single durable action a planner decision may request.
type ActionType string

const (
	ActionNone           ActionType = "none"
	ActionEntryCreate    ActionType = "entry.create"
	ActionEntryAppend    ActionType = "entry.append"
	ActionGoalCreate     ActionType = "goal.create"
	ActionScheduleCreate ActionType = "schedule.create"
)

// AllActionTypes returns all valid action types
func AllActionTypes() []ActionType {
	return []ActionType{
		ActionNone,
		ActionEntryCreate,
		ActionEntryAppend,
		ActionGoalCreate,
		ActionScheduleCreate,
	}
}

// IsValid checks if the action type is valid
func (a ActionType) IsValid() bool {
	switch a {
	case ActionNone,
		ActionEntryCreate,
		ActionEntryAppend,
		ActionGoalCreate,
		ActionScheduleCreate:
		return true
	default:
		return false
	}
}

// String returns the string representation of the action type
func (a ActionType) String() string {
	return string(a)
}

// ParseActionType parses a string into an ActionType
func ParseActionType(s string) (ActionType, error) {
	action := ActionType(s)
	if !action.IsValid() {
		return "", fmt.Errorf("invalid action type: %s", s)
	}
	return action, nil
}

// GoalStatus represents the lifecycle status of a goal
type GoalStatus string

const (
	GoalStatusActive    GoalStatus = "active"
	GoalStatusPaused    GoalStatus = "paused"
	GoalStatusCompleted GoalStatus = "completed"
	GoalStatusArchived  GoalStatus = "archived"
)

// IsValid checks if the goal status is valid
func (s GoalStatus) IsValid() bool {
	switch s {
	case GoalStatusActive, GoalStatusPaused, GoalStatusCompleted, GoalStatusArchived:
		return true
	default:
		return false
	}
}

// Normalize returns the status, treating empty as GoalStatusActive.
func (s GoalStatus) Normalize() GoalStatus {
	if s == "" {
		return GoalStatusActive
	}
	return s
}

// String returns the string representation of the goal status
func (s GoalStatus) String() string {
	return string(s)
}
