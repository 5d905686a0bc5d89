package sync

import "time"

// Phase identifies where a progress event sits in an operation's lifetime.
type Phase string

const (
	PhaseStarted       Phase = "started"
	PhaseSlotStarted   Phase = "slot_started"
	PhaseSlotSkipped   Phase = "slot_skipped"
	PhaseSlotCompleted Phase = "slot_completed"
	PhaseSlotFailed    Phase = "slot_failed"
	PhaseSlotConflict  Phase = "slot_conflict"
	PhaseCompleted     Phase = "completed"
	PhaseCancelled     Phase = "cancelled"
)

// Event is one progress update. Slot is -1 for whole-operation events. For
// batch operations Percent advances proportionally as slots complete.
type Event struct {
	Slot      int       `json:"slot"`
	Phase     Phase     `json:"phase"`
	Percent   int       `json:"percent"`
	Message   string    `json:"message"`
	Err       error     `json:"-"`
	Timestamp time.Time `json:"timestamp"`
}

// BatchResult aggregates a quickSync/fullSync run. Per-slot failures are
// collected here rather than aborting sibling slots.
type BatchResult struct {
	Total     int           `json:"total"`
	Completed []int         `json:"completed"`
	Skipped   []int         `json:"skipped"`
	Conflicts []int         `json:"conflicts"`
	Failures  map[int]error `json:"-"`
	Cancelled bool          `json:"cancelled"`
}

// Ok reports whether the batch finished with no failures.
func (r *BatchResult) Ok() bool {
	return !r.Cancelled && len(r.Failures) == 0
}
