package entity

import "time"

// JobStatus is the lifecycle state of a delayed digest job.
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// DigestJob is a durable request to run the digest pipeline for a user at or
// after ExecuteAt.
type DigestJob struct {
	ID        int64
	UserID    string
	Mode      DigestMode
	ExecuteAt time.Time
	Status    JobStatus
	Attempts  int
	LastError string
	// DigestID is set once a run has stored its digest but failed to send
	// it, so a retry re-sends that digest instead of building a new one.
	DigestID  int64
	CreatedAt time.Time
	UpdatedAt time.Time
}
