package domain

import "github.com/google/uuid"

// JobType is the scheduler-level classification of a JobData row — this is
// distinct from JobClass (extra[0]), which identifies which higher-level
// component (trigger/schedule/fetch/notification-send) owns the row.
type JobType int

const (
	JobTypeCron JobType = iota
	JobTypeOneShot
	JobTypeRepeated
)

// JobClass is the first byte of JobData.Extra. Decided encoding (spec.md §9
// open question): a single leading class byte, remaining bytes are a
// class-specific sub-tag. Applied identically on write and read.
type JobClass byte

const (
	JobClassTrigger      JobClass = 0x01
	JobClassSchedule     JobClass = 0x02
	JobClassFetch        JobClass = 0x03
	JobClassNotifySend   JobClass = 0x04
)

// ExtraForTrigger builds the JobData.Extra tag for a trigger job: class byte followed
// by the tracker kind byte.
func ExtraForTrigger(kind TrackerKind) []byte {
	return []byte{byte(JobClassTrigger), byte(kind)}
}

// ExtraForClass builds a bare class tag with no sub-tag, used by the
// singleton schedule/fetch/notification-send jobs.
func ExtraForClass(c JobClass) []byte {
	return []byte{byte(c)}
}

// ParseExtra splits a JobData.Extra tag into its class and sub-tag bytes.
// Returns ok=false for an empty/malformed tag.
func ParseExtra(extra []byte) (class JobClass, subTag []byte, ok bool) {
	if len(extra) == 0 {
		return 0, nil, false
	}
	return JobClass(extra[0]), extra[1:], true
}

// JobData is the scheduler's persisted row. Stopped is deliberately
// repurposed (spec.md §9 design note) as a "pending processing" flag for
// trigger jobs rather than "terminated" — new implementations should
// introduce a distinct `pending` column; this one keeps the overload to
// match the spec being implemented.
type JobData struct {
	ID          uuid.UUID `json:"id"`
	JobType     JobType   `json:"job_type"`
	Schedule    string    `json:"schedule,omitempty"`
	NextTick    uint64    `json:"next_tick"`
	LastTick    *uint64   `json:"last_tick,omitempty"`
	Count       uint32    `json:"count"`
	Ran         bool      `json:"ran"`
	Stopped     bool      `json:"stopped"`
	Extra       []byte    `json:"extra"`
	LastUpdated *uint64   `json:"last_updated,omitempty"`
}

// Class returns the job's class tag, or ok=false if Extra is malformed.
func (j JobData) Class() (JobClass, []byte, bool) {
	return ParseExtra(j.Extra)
}
