package types

import "github.com/m-mizutani/goerr/v2"

// Error taxonomy for turn processing. The orchestrator maps raw transport
// errors onto one of these before anything reaches the user.
var (
	// ErrClassificationFailed is fatal to the turn; no intent is fabricated.
	ErrClassificationFailed = goerr.New("intent classification failed")

	// ErrCallTimeout marks an external call that exceeded its deadline. It is
	// distinguishable from a server-rejected error so the user sees a
	// "timed out" message instead of a generic failure.
	ErrCallTimeout = goerr.New("external call timed out")

	// ErrSynthesisFailed means both streaming and non-streaming synthesis
	// failed; fatal to the turn.
	ErrSynthesisFailed = goerr.New("synthesis failed")

	// ErrPersistenceFailed marks a failed durable write. The entry message is
	// marked failed, but a reply already shown to the user is not retracted.
	ErrPersistenceFailed = goerr.New("persistence failed")

	// ErrEmptyUtterance rejects blank submissions before any stage runs.
	ErrEmptyUtterance = goerr.New("utterance text is empty")
)
