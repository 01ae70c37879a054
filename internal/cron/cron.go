package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	cronv3 "github.com/robfig/cron/v3"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"

	"github.com/cadrius/mailpipe/config"
	"github.com/cadrius/mailpipe/interfaces"
	mperrors "github.com/cadrius/mailpipe/internal/errors"
	"github.com/cadrius/mailpipe/internal/locks"
	"github.com/cadrius/mailpipe/internal/logger"
	"github.com/cadrius/mailpipe/internal/models"
	"github.com/cadrius/mailpipe/internal/tracing"
	"github.com/cadrius/mailpipe/internal/utils"
)

// CONSTANTS
const (
	// LeaseDuration is how long a lease lasts before needing renewal
	LeaseDuration = 15 * time.Second
	// RenewDeadline is how long a leader has to renew its lease
	RenewDeadline = 10 * time.Second
	// RetryPeriod is how long to wait between leadership attempts
	RetryPeriod = 2 * time.Second

	DefaultFetchInterval = 5 * time.Minute
	defaultFetchLockTTL  = 4 * time.Minute

	jobHeartbeat     = "heartbeat"
	jobSyncMailboxes = "sync_mailboxes"

	// app source stamped on events published by scheduled jobs
	AppSourceCron = "mailpipe-cron"
)

type CronManager struct {
	cfg       *config.Config
	log       logger.Logger
	cron      *cronv3.Cron
	k8s       kubernetes.Interface
	stopCh    chan struct{}
	stopOnce  sync.Once
	fetcher   interfaces.Fetcher
	mailboxes interfaces.MailboxRepository
	locker    locks.Locker
	interval  time.Duration
	lockTTL   time.Duration

	mu          sync.Mutex
	started     bool
	jobIDs      map[string]cronv3.EntryID
	mailboxJobs map[string]cronv3.EntryID
}

var _ interfaces.MailboxScheduler = (*CronManager)(nil)

func NewCronManager(cfg *config.Config, log logger.Logger, k8s kubernetes.Interface, fetcher interfaces.Fetcher, mailboxes interfaces.MailboxRepository, locker locks.Locker) *CronManager {
	if locker == nil {
		locker = locks.NewLocalLocker()
	}
	cm := &CronManager{
		cfg:         cfg,
		log:         log,
		k8s:         k8s,
		stopCh:      make(chan struct{}),
		fetcher:     fetcher,
		mailboxes:   mailboxes,
		locker:      locker,
		interval:    fetchInterval(cfg, log),
		lockTTL:     fetchLockTTL(cfg),
		jobIDs:      make(map[string]cronv3.EntryID),
		mailboxJobs: make(map[string]cronv3.EntryID),
	}
	cm.cron = newCron()
	return cm
}

func newCron() *cronv3.Cron {
	// Create a new cron with seconds field enabled and panic recovery
	return cronv3.New(
		cronv3.WithSeconds(),
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger), // Skip if still running
			cronv3.Recover(cronv3.DefaultLogger),            // Default recovery as backup
		),
	)
}

func fetchInterval(cfg *config.Config, log logger.Logger) time.Duration {
	if cfg == nil || cfg.AppConfig == nil || cfg.AppConfig.FetchInterval == "" {
		return DefaultFetchInterval
	}
	interval, err := time.ParseDuration(cfg.AppConfig.FetchInterval)
	if err != nil || interval <= 0 {
		log.Warnf("Invalid FETCH_INTERVAL %q, using %s", cfg.AppConfig.FetchInterval, DefaultFetchInterval)
		return DefaultFetchInterval
	}
	return interval
}

func fetchLockTTL(cfg *config.Config) time.Duration {
	if cfg == nil || cfg.CronConfig == nil || cfg.CronConfig.FetchLockTTLSeconds <= 0 {
		return defaultFetchLockTTL
	}
	return time.Duration(cfg.CronConfig.FetchLockTTLSeconds) * time.Second
}

// Start initializes and starts the cron manager with leader election
// If k8s is nil, it will start in local mode without leader election
func (cm *CronManager) Start(podName, namespace string) error {
	if cm.k8s == nil || podName == "" || namespace == "" || (cm.cfg != nil && cm.cfg.CronConfig != nil && cm.cfg.CronConfig.LocalDev) {
		cm.log.Info("Starting cron manager in local mode")
		cm.StartCron()
		return nil
	}

	// Create the leader election lock
	lock := &resourcelock.LeaseLock{
		LeaseMeta: metav1.ObjectMeta{
			Name:      "mailpipe-cron-leader",
			Namespace: namespace,
		},
		Client: cm.k8s.CoordinationV1(),
		LockConfig: resourcelock.ResourceLockConfig{
			Identity: podName,
		},
	}

	// Channel to track leader election errors
	errCh := make(chan error, 1)

	go func() {
		le, err := leaderelection.NewLeaderElector(leaderelection.LeaderElectionConfig{
			Lock:            lock,
			ReleaseOnCancel: true,
			LeaseDuration:   LeaseDuration,
			RenewDeadline:   RenewDeadline,
			RetryPeriod:     RetryPeriod,
			Callbacks: leaderelection.LeaderCallbacks{
				OnStartedLeading: func(ctx context.Context) {
					cm.StartCron()
				},
				OnStoppedLeading: func() {
					cm.log.Info("Leader lost - stopping crons")
					cm.Stop()
				},
				OnNewLeader: func(identity string) {
					cm.log.Infof("New leader elected: %s", identity)
				},
			},
		})
		if err != nil {
			errCh <- err
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			<-cm.stopCh
			cancel()
		}()
		le.Run(ctx)
	}()

	// Wait briefly to see if leader election fails immediately
	select {
	case err := <-errCh:
		cm.log.Warnf("Leader election failed, falling back to local mode: %v", err)
		cm.StartCron()
	case <-time.After(5 * time.Second):
		// Leader election seems to be working, continue normally
	}

	return nil
}

// Stop gracefully stops the cron manager
func (cm *CronManager) Stop() {
	cm.stopOnce.Do(func() {
		cm.mu.Lock()
		c := cm.cron
		cm.mu.Unlock()
		if c != nil {
			cm.log.Info("Stopping cron manager")
			ctx := c.Stop()
			// Wait for jobs to finish
			<-ctx.Done()
		}
		close(cm.stopCh)
	})
}

// StartCron registers the fixed jobs and every active mailbox, then starts the scheduler.
func (cm *CronManager) StartCron() {
	cm.mu.Lock()
	if cm.started {
		cm.mu.Unlock()
		return
	}
	cm.started = true
	cm.mu.Unlock()

	cm.log.Info("Starting cron manager")
	cm.registerJobs()
	cm.syncMailboxes()
	cm.cron.Start()
}

// registerJobs adds the fixed cron jobs to the scheduler
func (cm *CronManager) registerJobs() {
	cronConfig := cm.cfg.CronConfig

	// Register heartbeat job
	if cronConfig.CronScheduleHeartbeat != "" {
		podName := cronConfig.PodName
		if podName == "" {
			podName = "local"
		}
		id, err := cm.cron.AddFunc(cronConfig.CronScheduleHeartbeat, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			cm.log.Infof("Cron heartbeat from pod: %s, mailboxes scheduled: %d", podName, cm.scheduledCount())
		})
		if err != nil {
			cm.log.Fatalf("Could not add heartbeat cron job: %v", err)
		}
		cm.setJobID(jobHeartbeat, id)
		cm.log.Infof("Registered heartbeat job with schedule: %s", cronConfig.CronScheduleHeartbeat)
	}

	if cronConfig.CronScheduleSyncMailboxes != "" {
		id, err := cm.cron.AddFunc(cronConfig.CronScheduleSyncMailboxes, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			cm.syncMailboxes()
		})
		if err != nil {
			cm.log.Fatalf("Could not add mailbox sync cron job: %v", err)
		}
		cm.setJobID(jobSyncMailboxes, id)
		cm.log.Infof("Registered mailbox sync job with schedule: %s", cronConfig.CronScheduleSyncMailboxes)
	}
}

// ScheduleMailbox registers the recurring fetch of a mailbox, replacing any previous entry.
// Inactive mailboxes are unscheduled instead.
func (cm *CronManager) ScheduleMailbox(mailbox *models.Mailbox) error {
	if !mailbox.IsActive {
		cm.UnscheduleMailbox(mailbox.ID)
		return nil
	}

	mailboxID := mailbox.ID
	spec := fmt.Sprintf("@every %s", cm.interval)

	cm.mu.Lock()
	defer cm.mu.Unlock()

	if previous, ok := cm.mailboxJobs[mailboxID]; ok {
		cm.cron.Remove(previous)
	}
	id, err := cm.cron.AddFunc(spec, func() {
		defer tracing.RecoverAndLogToJaeger(cm.log)
		cm.fetchMailbox(mailboxID)
	})
	if err != nil {
		delete(cm.mailboxJobs, mailboxID)
		return err
	}
	cm.mailboxJobs[mailboxID] = id
	cm.log.Infof("Scheduled fetch of mailbox %s (%s) %s", mailboxID, mailbox.Name, spec)
	return nil
}

func (cm *CronManager) UnscheduleMailbox(mailboxID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if id, ok := cm.mailboxJobs[mailboxID]; ok {
		cm.cron.Remove(id)
		delete(cm.mailboxJobs, mailboxID)
		cm.log.Infof("Unscheduled fetch of mailbox %s", mailboxID)
	}
}

// syncMailboxes aligns the scheduled jobs with the active mailboxes in the database.
func (cm *CronManager) syncMailboxes() {
	span, ctx := tracing.StartTracerSpan(utils.SetAppSourceInContext(context.Background(), AppSourceCron), "CronManager.syncMailboxes")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	mailboxes, err := cm.mailboxes.GetActiveMailboxes(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Failed to load active mailboxes: %v", err)
		return
	}

	active := make(map[string]bool, len(mailboxes))
	for _, mailbox := range mailboxes {
		active[mailbox.ID] = true
		if cm.isScheduled(mailbox.ID) {
			continue
		}
		if err := cm.ScheduleMailbox(mailbox); err != nil {
			tracing.TraceErr(span, err)
			cm.log.Errorf("Failed to schedule mailbox %s: %v", mailbox.ID, err)
		}
	}

	for _, mailboxID := range cm.scheduledIDs() {
		if !active[mailboxID] {
			cm.UnscheduleMailbox(mailboxID)
		}
	}
	span.LogKV("mailboxes.active", len(mailboxes))
}

func (cm *CronManager) fetchMailbox(mailboxID string) {
	span, ctx := tracing.StartTracerSpan(utils.SetAppSourceInContext(context.Background(), AppSourceCron), "CronManager.fetchMailbox")
	defer span.Finish()
	tracing.TagComponentCronJob(span)
	tracing.TagMailbox(span, mailboxID)

	count, err := cm.FetchNow(ctx, mailboxID)
	switch {
	case errors.Is(err, mperrors.ErrFetchInProgress):
		cm.log.Debugf("Fetch of mailbox %s already running elsewhere, skipping", mailboxID)
	case err != nil:
		tracing.TraceErr(span, err)
		cm.log.Errorf("Scheduled fetch of mailbox %s failed (trace %s): %v", mailboxID, tracing.GetTraceId(span), err)
	case count > 0:
		cm.log.Infof("Fetched %d new messages from mailbox %s", count, mailboxID)
	}
}

// FetchNow runs one fetch while holding the mailbox lock, so two replicas
// never poll the same mailbox at once.
func (cm *CronManager) FetchNow(ctx context.Context, mailboxID string) (int, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "CronManager.FetchNow")
	defer span.Finish()
	tracing.TagComponentCronJob(span)
	tracing.TagMailbox(span, mailboxID)

	release, acquired, err := cm.locker.Acquire(ctx, "fetch:"+mailboxID, cm.lockTTL)
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, err
	}
	if !acquired {
		span.LogKV("skipped", "locked")
		return 0, errors.Wrapf(mperrors.ErrFetchInProgress, "mailbox %s", mailboxID)
	}
	defer release()

	count := cm.fetcher.Fetch(ctx, mailboxID)
	span.LogKV("messages.new", count)
	return count, nil
}

func (cm *CronManager) setJobID(name string, id cronv3.EntryID) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.jobIDs[name] = id
}

func (cm *CronManager) isScheduled(mailboxID string) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	_, ok := cm.mailboxJobs[mailboxID]
	return ok
}

func (cm *CronManager) scheduledIDs() []string {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	ids := make([]string, 0, len(cm.mailboxJobs))
	for id := range cm.mailboxJobs {
		ids = append(ids, id)
	}
	return ids
}

func (cm *CronManager) scheduledCount() int {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return len(cm.mailboxJobs)
}
