package domain

import "time"

// JobOutcome classifies a finished job run.
type JobOutcome string

const (
	OutcomeSuccess JobOutcome = "success"
	OutcomePartial JobOutcome = "partial"
	OutcomeFailed  JobOutcome = "failed"
)

// JobReport is what a job function hands back to the scheduler: per-item
// tallies plus human-readable detail for each failed item. The scheduler
// wraps it with timing and identity into a JobRun.
type JobReport struct {
	Attempted int
	Succeeded int
	Failed    int
	Errors    []string
}

// Outcome derives the run classification: failed only when every attempted
// item failed, partial when failures and successes coexist.
func (r JobReport) Outcome() JobOutcome {
	switch {
	case r.Failed == 0:
		return OutcomeSuccess
	case r.Succeeded == 0 && r.Attempted > 0:
		return OutcomeFailed
	default:
		return OutcomePartial
	}
}

// JobRun records one execution attempt of a named periodic job. It is used
// for overlap prevention and surfaced as run history for health reporting.
// NextEligibleAt is when the job's interval next permits a scheduled run,
// measured from completion.
type JobRun struct {
	ID             string
	Job            string
	StartedAt      time.Time
	FinishedAt     time.Time
	NextEligibleAt time.Time
	Outcome        JobOutcome
	Attempted      int
	Succeeded      int
	Failed         int
	Errors         []string
}
