package model

import (
	"strings"
	"time"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// DefaultMaxRetries is the number of requeues a failing job gets before it is
// finalized as failed.
const DefaultMaxRetries = 3

// Job is one row of the shared queue. BotToken partitions the queue between
// bots that share the same table.
type Job struct {
	ID        int64
	Status    JobStatus
	BotToken  string
	Type      string
	Payload   []byte
	Retries   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// JobType returns the normalized type tag; producers sometimes prefix it with "tgms_".
func (j *Job) JobType() JobType {
	return NormalizeJobType(j.Type)
}

// NextStatus applies the retry policy to a finished attempt and returns the
// status and retry count to persist.
func (j *Job) NextStatus(success bool, maxRetries int) (JobStatus, int) {
	if success {
		return JobStatusCompleted, j.Retries
	}
	if j.Retries < maxRetries {
		return JobStatusPending, j.Retries + 1
	}
	return JobStatusFailed, j.Retries + 1
}

type JobType string

const (
	JobTypeProcessJoinRequest  JobType = "process_join_request"
	JobTypeRegisterGroup       JobType = "register_group"
	JobTypeSendToGroups        JobType = "send_to_groups"
	JobTypeUpdateMemberCounts  JobType = "update_member_counts"
	JobTypeKickInactiveMembers JobType = "kick_inactive_members"
	JobTypeProcessUpdate       JobType = "process_update"
)

const jobTypePrefix = "tgms_"

func NormalizeJobType(raw string) JobType {
	return JobType(strings.TrimPrefix(strings.TrimSpace(raw), jobTypePrefix))
}
