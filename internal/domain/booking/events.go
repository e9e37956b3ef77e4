package booking

import (
	"time"

	"github.com/google/uuid"
)

// AttemptRecord describes one finished booking attempt.
type AttemptRecord struct {
	PlanID   uuid.UUID
	Cycle    int
	Activity string
	Target   time.Time
	Number   int
	Outcome  string
	Error    string
	At       time.Time
}

// OutcomeEvent is emitted once per plan when it resolves.
type OutcomeEvent struct {
	PlanID     uuid.UUID `json:"plan_id"`
	Cycle      int       `json:"cycle"`
	Activity   string    `json:"activity"`
	Target     time.Time `json:"target"`
	ExecuteAt  time.Time `json:"execute_at"`
	Weekly     bool      `json:"weekly"`
	Status     Status    `json:"status"`
	Attempts   int       `json:"attempts"`
	Reason     string    `json:"reason,omitempty"`
	SlotID     string    `json:"slot_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
