// Package config models the recognized configuration options of spec.md
// §6. TOML/CLI parsing is out of scope for the core (spec.md §1); this
// package only defines the struct tree and its defaults, in the shape of
// the teacher's internal/config/config.go (one aggregating Config struct
// over per-subsystem sub-structs, yaml-tagged for whatever outer loader
// wants to decode into it).
package config

import "time"

// WebhookURLType selects how auto-responder webhooks are addressed.
type WebhookURLType string

const (
	WebhookURLPath      WebhookURLType = "path"
	WebhookURLSubdomain WebhookURLType = "subdomain"
)

// SMTPConfig carries the outbound mail identity used by the Notification
// Sender (C8) to build From/Reply-To headers.
type SMTPConfig struct {
	Username          string `yaml:"username"`
	Host              string `yaml:"host"`
	CatchAllRecipient string `yaml:"catch_all_recipient,omitempty"`
}

// SecurityConfig carries operator/JWT settings consumed at the (out of
// scope) HTTP boundary; kept here because spec.md §6 lists them as
// recognized options.
type SecurityConfig struct {
	Operators []string `yaml:"operators,omitempty"`
	JWTSecret string   `yaml:"jwt_secret,omitempty"`
}

// SchedulerConfig carries the per-job-class cron schedules spec.md §6
// names explicitly.
type SchedulerConfig struct {
	TrackersSchedule   string `yaml:"trackers_schedule"`
	TrackersFetch      string `yaml:"trackers_fetch"`
	NotificationsSend  string `yaml:"notifications_send"`
}

// Config aggregates every recognized option. Unknown keys are rejected by
// whatever outer TOML/YAML loader constructs this (out of scope here).
type Config struct {
	WebhookURLType    WebhookURLType  `yaml:"webhook_url_type"`
	DiffContextRadius int             `yaml:"diff_context_radius"`
	Scheduler         SchedulerConfig `yaml:"scheduler"`
	SMTP              SMTPConfig      `yaml:"smtp"`
	Security          SecurityConfig  `yaml:"security"`
}

// WithDefaults returns cfg with every zero-valued recognized option
// replaced by its documented default (spec.md §6: "all options have
// defaults").
func (cfg Config) WithDefaults() Config {
	if cfg.WebhookURLType == "" {
		cfg.WebhookURLType = WebhookURLPath
	}
	if cfg.DiffContextRadius == 0 {
		cfg.DiffContextRadius = 3
	}
	if cfg.Scheduler.TrackersSchedule == "" {
		cfg.Scheduler.TrackersSchedule = "0 * * * * *" // every minute
	}
	if cfg.Scheduler.TrackersFetch == "" {
		cfg.Scheduler.TrackersFetch = "0 * * * * *"
	}
	if cfg.Scheduler.NotificationsSend == "" {
		cfg.Scheduler.NotificationsSend = "0 * * * * *"
	}
	return cfg
}

// NotificationSendPageSize is the hard cap on send_pending's per-call page
// size regardless of the caller's requested limit (spec.md §4.7).
const NotificationSendPageSize = 100

// DefaultNotificationBatchTimeout bounds a single send_pending invocation's
// Store round-trips, matching the teacher's per-loop context timeout
// convention (campaign_scheduler.go uses 30s per tick).
const DefaultNotificationBatchTimeout = 30 * time.Second
