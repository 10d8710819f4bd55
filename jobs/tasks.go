package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrityCheck recomputes the ledger invariants.
	TaskLedgerIntegrityCheck = "ledger:integrity_check"
)

// IntegrityCheckPayload selects the as-of date. Empty means today (UTC).
type IntegrityCheckPayload struct {
	AsOf string `json:"as_of,omitempty"`
}

// NewIntegrityCheckTask constructs an Asynq task. A zero asOf checks today.
func NewIntegrityCheckTask(asOf time.Time) (*asynq.Task, error) {
	payload := IntegrityCheckPayload{}
	if !asOf.IsZero() {
		payload.AsOf = asOf.Format("2006-01-02")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrityCheck, data, asynq.Queue(QueueDefault)), nil
}

func (p IntegrityCheckPayload) date(now time.Time) (time.Time, error) {
	if p.AsOf == "" {
		return now, nil
	}
	t, err := time.Parse("2006-01-02", p.AsOf)
	if err != nil {
		return time.Time{}, fmt.Errorf("integrity check: invalid as_of %q: %w", p.AsOf, err)
	}
	return t, nil
}
