package reconcile

import "fmt"

// Fetch stage names used in StageError.
const (
	StageRollups  = "rollups"
	StageReplies  = "replies"
	StageMeetings = "meetings"
	StageStatuses = "statuses"
)

// StageError reports a failed fetch stage. Any stage failure is terminal for
// the whole reconciliation run: no partial aggregate set is ever returned.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("fetch stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
