package cron_config

type Config struct {
	// Heartbeat check, every minute
	CronScheduleHeartbeat string `env:"CRON_SCHEDULE_HEARTBEAT" envDefault:"0 * * * * *"`
	// Picks up mailboxes created or deactivated through another replica
	CronScheduleSyncMailboxes string `env:"CRON_SCHEDULE_SYNC_MAILBOXES" envDefault:"30 * * * * *"`
	// Lock TTL for a single mailbox fetch, in seconds
	FetchLockTTLSeconds int    `env:"CRON_FETCH_LOCK_TTL_SECONDS" envDefault:"240"`
	PodName             string `env:"POD_NAME"`
	PodNamespace        string `env:"POD_NAMESPACE"`
	LocalDev            bool   `env:"LOCAL_DEV" envDefault:"false"`
}
