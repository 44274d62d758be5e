package application

import (
	"time"

	"github.com/bnema/itcsync/internal/domain"
)

const (
	SkipDisabled      = "disabled"
	SkipNotConfigured = "not_configured"
)

// RunReport summarizes one discovery run of one project.
type RunReport struct {
	Project domain.ProjectID
	RunID   string
	Phase   domain.SyncPhase

	SkipReason        string
	AwaitingTwoFactor bool
	SessionDiscarded  bool
	BudgetExhausted   bool

	AppsScanned   int
	BuildsSeen    int
	AlreadySynced int
	Dispatched    int
	Unavailable   int
	Failed        int

	StartedAt  time.Time
	FinishedAt time.Time
}

func (r RunReport) Skipped() bool {
	return r.SkipReason != ""
}

func (r RunReport) Duration() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Result is the label recorded for the run in metrics and logs.
func (r RunReport) Result(err error) string {
	switch {
	case r.SessionDiscarded:
		return "session_discarded"
	case err != nil:
		return "error"
	case r.AwaitingTwoFactor:
		return "awaiting_two_factor"
	case r.Skipped():
		return "skipped"
	default:
		return "ok"
	}
}
