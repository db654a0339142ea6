// Command core is the thin process-wiring entrypoint for the tracker/
// notification/search core (spec.md §1), analogous to the teacher's
// cmd/worker/main.go: it constructs C1-C8, registers every scheduler.Handler
// and wires graceful shutdown via context cancellation + signal handling.
// TOML/CLI config parsing, the HTTP/webhook surface and clustering are all
// out of scope (spec.md §1/§5) — this binary only starts the background
// subsystems spec.md's invariants depend on.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/secutils/core/internal/config"
	"github.com/secutils/core/internal/domain"
	"github.com/secutils/core/internal/notifications"
	"github.com/secutils/core/internal/scheduler"
	"github.com/secutils/core/internal/search"
	"github.com/secutils/core/internal/store"
	"github.com/secutils/core/internal/trackers"
)

func main() {
	log.Println("starting secutils core")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatalf("load AWS config: %v", err)
	}
	table := os.Getenv("SECUTILS_TABLE")
	if table == "" {
		table = "secutils-core"
	}
	st := store.New(dynamodb.NewFromConfig(awsCfg), table)
	log.Printf("store bound to table %q", table)

	idx, err := search.Open(os.Getenv("SECUTILS_SEARCH_INDEX_PATH"))
	if err != nil {
		log.Fatalf("open search index: %v", err)
	}
	defer idx.Close()
	log.Println("search index ready")

	cfg := config.Config{
		SMTP: config.SMTPConfig{
			Username:          os.Getenv("SECUTILS_SMTP_USERNAME"),
			Host:              os.Getenv("SECUTILS_SMTP_HOST"),
			CatchAllRecipient: os.Getenv("SECUTILS_SMTP_CATCH_ALL"),
		},
	}.WithDefaults()

	transport := newSMTPTransport(cfg.SMTP.Host, cfg.SMTP.Username, os.Getenv("SECUTILS_SMTP_PASSWORD"))
	users := notifications.NewStoreUserResolver(st)
	sender := notifications.NewSender(cfg.SMTP, transport, users, nil)
	notifQueue := notifications.New(st, sender)

	sch := scheduler.New(st)
	fetcher := newHTTPFetcher()

	sch.RegisterHandler(domain.JobClassTrigger, trackers.TriggerJobHandler(st))
	sch.RegisterResumeHook(domain.JobClassTrigger, trackers.TriggerResumeHook(st))

	sch.RegisterHandler(domain.JobClassSchedule, trackers.ScheduleSweepHandler(st, sch))
	sch.RegisterResumeHook(domain.JobClassSchedule, scheduler.FixedScheduleResumeHook(cfg.Scheduler.TrackersSchedule))

	sch.RegisterHandler(domain.JobClassFetch, trackers.FetchSweepHandler(st, fetcher, notifQueue))
	sch.RegisterResumeHook(domain.JobClassFetch, scheduler.FixedScheduleResumeHook(cfg.Scheduler.TrackersFetch))

	sch.RegisterHandler(domain.JobClassNotifySend, notifications.SendPendingHandler(notifQueue))
	sch.RegisterResumeHook(domain.JobClassNotifySend, scheduler.FixedScheduleResumeHook(cfg.Scheduler.NotificationsSend))

	if err := sch.Start(ctx); err != nil {
		log.Fatalf("start scheduler: %v", err)
	}
	log.Println("scheduler started, resuming persisted jobs")

	startCtx, startCancel := context.WithTimeout(ctx, 30*time.Second)
	defer startCancel()
	if err := sch.EnsureSingleton(startCtx, "schedule-sweep", domain.JobClassSchedule, cfg.Scheduler.TrackersSchedule); err != nil {
		log.Fatalf("ensure schedule sweep job: %v", err)
	}
	if err := sch.EnsureSingleton(startCtx, "fetch-sweep", domain.JobClassFetch, cfg.Scheduler.TrackersFetch); err != nil {
		log.Fatalf("ensure fetch sweep job: %v", err)
	}
	if err := sch.EnsureSingleton(startCtx, "notifications-send", domain.JobClassNotifySend, cfg.Scheduler.NotificationsSend); err != nil {
		log.Fatalf("ensure notifications send job: %v", err)
	}
	log.Println("singleton sweep jobs armed")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down")
	sch.Stop()
	cancel()
	log.Println("stopped")
}
