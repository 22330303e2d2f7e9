package domain

import "time"

// JobStatus is a snapshot of a batch job's run history.
type JobStatus struct {
	Job         string    `json:"job"`
	Runs        int       `json:"runs"`
	Failures    int       `json:"failures"`
	LastRun     time.Time `json:"last_run,omitzero"`
	LastSuccess time.Time `json:"last_success,omitzero"`
	LastError   string    `json:"last_error,omitempty"`
}
