package usecase

// User-facing messages for turn outcomes. Shown verbatim in the
// conversation, so wording changes are user-visible changes.
const (
	MsgUnableToProcess = "I wasn't able to process that message. Please try again."
	MsgTimedOut        = "That took too long to process. Please try again."
	MsgGoalCapReached  = "You already have 3 active goals. Complete or pause one before starting another."
	MsgEntryNotSaved   = "Your reflection above is safe, but saving the entry failed. Tap retry to save it."
)
