package interfaces

import (
	"context"

	"github.com/cadrius/mailpipe/internal/models"
)

// Fetcher polls one mailbox and returns the number of newly stored messages.
// It never returns an error: failures are logged and alerted.
type Fetcher interface {
	Fetch(ctx context.Context, mailboxID string) int
}

// Processor runs the extraction pipeline for one stored message.
type Processor interface {
	Process(ctx context.Context, emailMessageID string)
}

// ProcessQueue schedules a message for the Processor.
type ProcessQueue interface {
	EnqueueProcessEmail(ctx context.Context, emailMessageID string) error
}

// Notifier delivers to the services configured on the message's mailbox.
type Notifier interface {
	Notify(ctx context.Context, message *models.EmailMessage, text string) (string, error)
	CreateTrackingCard(ctx context.Context, message *models.EmailMessage, document map[string]any) (string, error)
}

// OperatorAlerter reaches the people running the service. It never fails.
type OperatorAlerter interface {
	Alert(ctx context.Context, text string)
}

// MailboxScheduler keeps the recurring fetch jobs in sync with stored mailboxes.
type MailboxScheduler interface {
	ScheduleMailbox(mailbox *models.Mailbox) error
	UnscheduleMailbox(mailboxID string)
	// FetchNow runs one fetch under the mailbox lock.
	FetchNow(ctx context.Context, mailboxID string) (int, error)
}
