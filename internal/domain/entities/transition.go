package entities

import "time"

// Transitions captures how a task changed across one persisted write.
// Effect dispatch is driven entirely by these flags plus the saved
// snapshot, so classification happens once per save.
type Transitions struct {
	CompletionChanged bool
	DeletionChanged   bool
	JustCompleted     bool
	JustDeleted       bool
	DueDateChanged    bool
	DueInFuture       bool
	SnoozeActive      bool
}

// Classify compares the snapshot before a write with the snapshot after
// it. previous is nil when the task did not exist before the write; every
// field of the missing row is then treated as absent. next must not be
// nil.
//
// JustCompleted and JustDeleted fire only on the pending-to-done edge.
// Clearing a completion or deletion flips the Changed flag but not the
// Just flag, so completion-driven effects never run on reopen.
func Classify(previous, next *Task, now time.Time) Transitions {
	var prevCompleted, prevDeleted, prevDue *time.Time
	if previous != nil {
		prevCompleted = previous.CompletedAt
		prevDeleted = previous.DeletedAt
		prevDue = previous.DueDate
	}

	tr := Transitions{
		CompletionChanged: !timePtrEqual(prevCompleted, next.CompletedAt),
		DeletionChanged:   !timePtrEqual(prevDeleted, next.DeletedAt),
		DueDateChanged:    !timePtrEqual(prevDue, next.DueDate),
	}
	tr.JustCompleted = tr.CompletionChanged && next.IsCompleted()
	tr.JustDeleted = tr.DeletionChanged && next.IsDeleted()
	tr.DueInFuture = tr.DueDateChanged && next.HasDueDate() && next.DueDate.After(now)
	tr.SnoozeActive = next.IsSnoozed(now)
	return tr
}
