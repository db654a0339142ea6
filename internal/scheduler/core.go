// Package scheduler implements C3: a cron-based dispatcher over JobData
// rows, shared by the trigger/schedule/fetch sweeps of internal/trackers
// and the notification-send job of internal/notifications. Grounded on the
// teacher's internal/worker/campaign_scheduler.go (CampaignScheduler) for
// the ctx/cancel/WaitGroup start-stop shape and per-job bookkeeping style;
// the poll-on-a-fixed-interval loop is replaced by github.com/robfig/cron/v3
// (spec.md §4.3 requires real cron expressions, which the teacher never
// parses).
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/secutils/core/internal/domain"
	"github.com/secutils/core/internal/pkg/apperr"
	"github.com/secutils/core/internal/pkg/logger"
	"github.com/secutils/core/internal/store"
)

// Handler runs one tick of a job's body. It receives the job id rather than
// a snapshot, since the handler itself is responsible for atomically
// reloading the row (spec.md §4.4 step 1).
type Handler func(ctx context.Context, jobID uuid.UUID) error

// ResumeHook lets a job class participate in the resume routine (spec.md
// §4.3): it re-derives the schedule a fresh job of this class would have
// today, and whether the stored row should be kept at all.
type ResumeHook func(ctx context.Context, job domain.JobData) (schedule string, keep bool, err error)

const resumePageSize = 100

// Scheduler is the C3 dispatcher. One Scheduler instance manages every
// class of job; C4/C5/C6/C7 register a Handler (and usually a ResumeHook)
// per domain.JobClass.
type Scheduler struct {
	store *store.Store
	cron  *cron.Cron

	mu       sync.Mutex
	handlers map[domain.JobClass]Handler
	hooks    map[domain.JobClass]ResumeHook
	entries  map[uuid.UUID]cron.EntryID

	jobLocksMu sync.Mutex
	jobLocks   map[uuid.UUID]*sync.Mutex

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// New creates a Scheduler bound to st. Register handlers before Start.
func New(st *store.Store) *Scheduler {
	return &Scheduler{
		store:    st,
		cron:     cron.New(cron.WithSeconds()),
		handlers: make(map[domain.JobClass]Handler),
		hooks:    make(map[domain.JobClass]ResumeHook),
		entries:  make(map[uuid.UUID]cron.EntryID),
		jobLocks: make(map[uuid.UUID]*sync.Mutex),
	}
}

// RegisterHandler binds a job class to its tick handler.
func (s *Scheduler) RegisterHandler(class domain.JobClass, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[class] = h
}

// RegisterResumeHook binds a job class to its resume-time schedule check.
// A class with no registered hook is always kept as-is on resume.
func (s *Scheduler) RegisterResumeHook(class domain.JobClass, h ResumeHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks[class] = h
}

// Start runs the resume routine over every persisted job, schedules the
// ones that survive, and starts the cron dispatcher.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return apperr.System("scheduler already running", nil)
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	if err := s.resume(s.ctx); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop cooperatively shuts the scheduler down: cron stops dispatching new
// ticks, then we wait for any in-flight handler to finish (spec.md §4.3:
// "Cancellation at process shutdown is cooperative").
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	stopCtx := s.cron.Stop()
	s.cancel()
	<-stopCtx.Done()
	s.wg.Wait()
}

// resume implements spec.md §4.3's resume routine over every stored job.
func (s *Scheduler) resume(ctx context.Context) error {
	for job := range s.store.SchedulerJobs(ctx, resumePageSize) {
		class, _, ok := job.Class()
		if !ok {
			logger.Error("scheduler: job has malformed extra tag, dropping", "job_id", job.ID.String())
			_ = s.store.RemoveSchedulerJob(ctx, job.ID)
			continue
		}

		s.mu.Lock()
		hook := s.hooks[class]
		s.mu.Unlock()

		schedule := job.Schedule
		keep := true
		if hook != nil {
			var err error
			schedule, keep, err = hook(ctx, job)
			if err != nil {
				logger.Error("scheduler: resume hook failed", "job_id", job.ID.String(), "error", err.Error())
				continue
			}
		}
		if !keep {
			logger.Info("scheduler: dropping job on resume", "job_id", job.ID.String())
			_ = s.store.RemoveSchedulerJob(ctx, job.ID)
			continue
		}
		if schedule != job.Schedule {
			logger.Info("scheduler: job schedule changed, dropping for re-creation", "job_id", job.ID.String())
			_ = s.store.RemoveSchedulerJob(ctx, job.ID)
			continue
		}

		if err := s.addCronEntry(job); err != nil {
			logger.Error("scheduler: failed to re-arm resumed job", "job_id", job.ID.String(), "error", err.Error())
		}
	}
	return nil
}

// ScheduleJob persists a new job and arms it on the cron dispatcher. Used
// by C5 (schedule sweep) to create trigger jobs and by process start-up to
// create the singleton schedule/fetch/notification-send jobs.
func (s *Scheduler) ScheduleJob(ctx context.Context, j domain.JobData) error {
	if err := s.store.UpsertSchedulerJob(ctx, j); err != nil {
		return err
	}
	return s.addCronEntry(j)
}

// SingletonJobID derives a deterministic job id for a fixed singleton job
// (the schedule sweep, fetch sweep and notifications-send jobs each have
// exactly one row, unlike the per-tracker trigger jobs of
// internal/trackers), so the same row is found and kept across restarts
// instead of being recreated under a fresh random id every start.
func SingletonJobID(name string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("secutils-singleton-job:"+name))
}

// EnsureSingleton idempotently creates the fixed-schedule singleton job
// identified by name if it doesn't already have a row; a pre-existing row
// is left alone for resume() to pick up and reconcile against schedule.
func (s *Scheduler) EnsureSingleton(ctx context.Context, name string, class domain.JobClass, schedule string) error {
	id := SingletonJobID(name)
	existing, err := s.store.GetSchedulerJob(ctx, id)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	return s.ScheduleJob(ctx, domain.JobData{
		ID:       id,
		JobType:  domain.JobTypeCron,
		Schedule: schedule,
		Extra:    domain.ExtraForClass(class),
	})
}

// FixedScheduleResumeHook returns a ResumeHook for a singleton job whose
// schedule comes from configuration rather than being re-derived per-row
// (unlike the per-tracker TriggerResumeHook in internal/trackers).
func FixedScheduleResumeHook(schedule string) ResumeHook {
	return func(ctx context.Context, job domain.JobData) (string, bool, error) {
		return schedule, true, nil
	}
}

// RemoveJob disarms and deletes a job.
func (s *Scheduler) RemoveJob(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	if entryID, ok := s.entries[id]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}
	s.mu.Unlock()
	return s.store.RemoveSchedulerJob(ctx, id)
}

func (s *Scheduler) addCronEntry(j domain.JobData) error {
	entryID, err := s.cron.AddFunc(j.Schedule, func() { s.runJob(j.ID) })
	if err != nil {
		return apperr.Client("invalid cron schedule", j.Schedule)
	}
	s.mu.Lock()
	s.entries[j.ID] = entryID
	s.mu.Unlock()
	return nil
}

// runJob enforces same-job serialization (spec.md §4.3: "two handlers of
// the SAME job never overlap") via a per-job mutex, dispatches to the
// registered handler for the job's class, and persists tick bookkeeping.
func (s *Scheduler) runJob(id uuid.UUID) {
	lock := s.jobLock(id)
	if !lock.TryLock() {
		logger.Debug("scheduler: previous tick still running, skipping", "job_id", id.String())
		return
	}
	defer lock.Unlock()

	s.wg.Add(1)
	defer s.wg.Done()

	ctx := s.ctx
	job, err := s.store.GetSchedulerJob(ctx, id)
	if err != nil || job == nil {
		return
	}
	class, _, ok := job.Class()
	if !ok {
		logger.Error("scheduler: malformed extra tag at tick", "job_id", id.String())
		return
	}

	s.mu.Lock()
	handler := s.handlers[class]
	entryID, hasEntry := s.entries[id]
	s.mu.Unlock()
	if handler == nil {
		logger.Error("scheduler: no handler registered for job class", "job_id", id.String())
		return
	}

	runErr := handler(ctx, id)
	if runErr != nil {
		logger.Error("scheduler: job tick failed", "job_id", id.String(), "error", runErr.Error())
	} else {
		logger.Debug("scheduler: job tick succeeded", "job_id", id.String())
	}

	fresh, err := s.store.GetSchedulerJob(ctx, id)
	if err != nil || fresh == nil {
		return
	}
	now := uint64(time.Now().UnixNano())
	fresh.LastTick = &now
	fresh.Count++
	fresh.Ran = runErr == nil
	fresh.LastUpdated = &now
	if hasEntry {
		if next := s.cron.Entry(entryID).Next; !next.IsZero() {
			fresh.NextTick = uint64(next.UnixNano())
		}
	}
	if err := s.store.UpsertSchedulerJob(ctx, *fresh); err != nil {
		logger.Error("scheduler: failed to persist tick bookkeeping", "job_id", id.String(), "error", err.Error())
	}
}

func (s *Scheduler) jobLock(id uuid.UUID) *sync.Mutex {
	s.jobLocksMu.Lock()
	defer s.jobLocksMu.Unlock()
	l, ok := s.jobLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.jobLocks[id] = l
	}
	return l
}
