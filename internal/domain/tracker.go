package domain

import (
	"time"

	"github.com/google/uuid"
)

// TrackerKind distinguishes the three tracker tags sharing the same
// persistence/scheduling machinery (design note: sum type + per-kind
// function table, not inheritance).
type TrackerKind int

const (
	TrackerKindResources TrackerKind = iota + 1
	TrackerKindContent
	TrackerKindPage
)

func (k TrackerKind) String() string {
	switch k {
	case TrackerKindResources:
		return "resources"
	case TrackerKindContent:
		return "content"
	case TrackerKindPage:
		return "page"
	default:
		return "unknown"
	}
}

// TrackerSettings controls fetch behavior and revision retention.
type TrackerSettings struct {
	Revisions uint32            `json:"revisions"`
	DelayMs   uint32            `json:"delay_ms"`
	Scripts   map[string]string `json:"scripts,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
}

// RetryStrategyKind is the closed set of backoff shapes a job_config may
// request; the fetcher (out of scope) MAY consult these when retrying.
type RetryStrategyKind int

const (
	RetryConstant RetryStrategyKind = iota
	RetryExponential
	RetryLinear
)

// RetryStrategy is a sum type over the three backoff shapes. Only the
// fields relevant to Kind are meaningful.
type RetryStrategy struct {
	Kind        RetryStrategyKind
	Initial     time.Duration
	Increment   time.Duration // Linear
	Multiplier  float64       // Exponential
	Max         time.Duration
	MaxAttempts uint32
}

// NextDelay computes the delay before the attempt-th retry (attempt is
// 1-based). Pure function, grounded on the teacher's ESP health/backoff
// bookkeeping (internal/worker/esp_distributor.go) generalized into a
// stateless formula.
func (r RetryStrategy) NextDelay(attempt uint32) time.Duration {
	if attempt == 0 {
		attempt = 1
	}
	var d time.Duration
	switch r.Kind {
	case RetryConstant:
		d = r.Initial
	case RetryLinear:
		d = r.Initial + time.Duration(attempt-1)*r.Increment
	case RetryExponential:
		mult := r.Multiplier
		if mult <= 0 {
			mult = 2
		}
		d = r.Initial
		for i := uint32(1); i < attempt; i++ {
			d = time.Duration(float64(d) * mult)
			if r.Max > 0 && d >= r.Max {
				d = r.Max
				break
			}
		}
	}
	if r.Max > 0 && d > r.Max {
		d = r.Max
	}
	return d
}

// JobConfig is present on a tracker once the user has opted into periodic
// fetching. Its absence (or Revisions == 0) means the tracker must not
// carry a JobID (spec invariant).
type JobConfig struct {
	Schedule      string         `json:"schedule"`
	RetryStrategy *RetryStrategy `json:"retry_strategy,omitempty"`
	Notifications bool           `json:"notifications"`
}

// Tracker is generic over TrackerKind; Meta is kind-specific free-form
// metadata (e.g. selectors for Page trackers).
type Tracker struct {
	ID        uuid.UUID        `json:"id"`
	UserID    uuid.UUID        `json:"user_id"`
	Kind      TrackerKind      `json:"kind"`
	Name      string           `json:"name"`
	URL       string           `json:"url"`
	Settings  TrackerSettings  `json:"settings"`
	JobID     *uuid.UUID       `json:"job_id,omitempty"`
	JobConfig *JobConfig       `json:"job_config,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	Meta      map[string]any   `json:"meta,omitempty"`
}

// IsSchedulable reports whether the tracker is eligible to be assigned a
// trigger job (spec.md §4.5 precondition).
func (t Tracker) IsSchedulable() bool {
	return t.Settings.Revisions > 0 && t.JobConfig != nil
}

// RevisionPayloadKind tags which concrete payload shape a revision carries.
type RevisionPayloadKind int

const (
	PayloadResourcesList RevisionPayloadKind = iota
	PayloadContentDigest
	PayloadPageJSON
)

// Resource is one discovered resource (script/stylesheet/etc) for a
// Resources-kind tracker.
type Resource struct {
	URL        string `json:"url"`
	DiffStatus string `json:"diff_status,omitempty"`
}

// RevisionPayload is a closed sum type over the three tracker kinds'
// observation shapes (supplemented from original_source's
// raw_web_page_tracker.rs per-kind payload handling).
type RevisionPayload struct {
	Kind      RevisionPayloadKind `json:"kind"`
	Resources []Resource          `json:"resources,omitempty"`
	DigestHex string              `json:"digest_hex,omitempty"`
	PageJSON  []byte              `json:"page_json,omitempty"`
}

// TrackerRevision is one timestamped observation. Per-tracker storage keeps
// a bounded deque of size Settings.Revisions (see store.InsertRevision).
type TrackerRevision struct {
	TrackerID uuid.UUID       `json:"tracker_id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   RevisionPayload `json:"payload"`
}
