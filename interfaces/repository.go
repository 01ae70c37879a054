package interfaces

import (
	"context"
	"time"

	"github.com/cadrius/mailpipe/internal/enum"
	"github.com/cadrius/mailpipe/internal/models"
)

// Getters return (nil, nil) when the record does not exist.

type MailboxRepository interface {
	GetMailboxes(ctx context.Context) ([]*models.Mailbox, error)
	GetActiveMailboxes(ctx context.Context) ([]*models.Mailbox, error)
	GetMailbox(ctx context.Context, id string) (*models.Mailbox, error)
	CreateMailbox(ctx context.Context, mailbox *models.Mailbox) error
	UpdateCheckpoint(ctx context.Context, id string, lastUID uint32, fetchedAt time.Time) error
	DeleteMailbox(ctx context.Context, id string) error
}

// EmailMessageFilter narrows List. Query matches subject or sender, ignoring case.
type EmailMessageFilter struct {
	Status enum.MessageStatus
	Query  string
}

type EmailMessageRepository interface {
	Create(ctx context.Context, message *models.EmailMessage) error
	ExistsByMessageID(ctx context.Context, mailboxID, messageID string) (bool, error)
	GetByID(ctx context.Context, id string) (*models.EmailMessage, error)
	List(ctx context.Context, filter EmailMessageFilter) ([]*models.EmailMessage, error)
	CountByMailbox(ctx context.Context, mailboxID string) (int64, error)
	CountByStatus(ctx context.Context, status enum.MessageStatus) (int64, error)
	CountReceivedSince(ctx context.Context, since time.Time) (int64, error)
	ClaimForProcessing(ctx context.Context, id string) (bool, error)
	UpdateStatus(ctx context.Context, id string, status enum.MessageStatus) error
	SaveExtractedData(ctx context.Context, id string, data models.JSONMap) error
	MarkIntegrated(ctx context.Context, id string, processedAt time.Time) error
	RequeueForReprocessing(ctx context.Context, id string) (*models.EmailMessage, error)
}

type AutomationRuleRepository interface {
	Create(ctx context.Context, rule *models.AutomationRule) error
	List(ctx context.Context) ([]*models.AutomationRule, error)
	GetActiveByMailbox(ctx context.Context, mailboxID string) ([]*models.AutomationRule, error)
	CountActive(ctx context.Context) (int64, error)
}

type ExtractionProfileRepository interface {
	Create(ctx context.Context, profile *models.ExtractionProfile) error
	List(ctx context.Context) ([]*models.ExtractionProfile, error)
	GetByID(ctx context.Context, id string) (*models.ExtractionProfile, error)
}

type IntegrationConfigRepository interface {
	Create(ctx context.Context, config *models.IntegrationConfig) error
	List(ctx context.Context) ([]*models.IntegrationConfig, error)
	GetByID(ctx context.Context, id string) (*models.IntegrationConfig, error)
}

type IntegrationLogRepository interface {
	Create(ctx context.Context, log *models.IntegrationLog) error
	MarkSuccess(ctx context.Context, id string, responseCode int, responseBody models.JSONMap) error
	MarkFailed(ctx context.Context, id string, responseCode int, responseBody models.JSONMap) error
	ListByMessage(ctx context.Context, emailMessageID string) ([]*models.IntegrationLog, error)
}
