package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/cadrius/mailpipe/internal/enum"
	"github.com/cadrius/mailpipe/internal/utils"
)

// EmailMessage is one ingested message and its processing state.
type EmailMessage struct {
	ID        string   `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	MailboxID string   `gorm:"column:mailbox_id;type:varchar(50);not null;uniqueIndex:uq_email_messages_mailbox_message,priority:1" json:"mailboxId"`
	Mailbox   *Mailbox `gorm:"foreignKey:MailboxID;constraint:OnDelete:RESTRICT" json:"-"`
	MessageID string   `gorm:"column:message_id;type:varchar(255);not null;uniqueIndex:uq_email_messages_mailbox_message,priority:2" json:"messageId"`
	ImapUID   uint32   `gorm:"column:imap_uid" json:"imapUid"`

	// Core email metadata
	Subject    string    `gorm:"column:subject;type:varchar(1000)" json:"subject"`
	Sender     string    `gorm:"column:sender;type:varchar(500)" json:"sender"`
	ReceivedAt time.Time `gorm:"column:received_at;type:timestamp;index:idx_email_messages_status_received,priority:2" json:"receivedAt"`
	BodyText   string    `gorm:"column:body_text;type:text" json:"bodyText"`

	// Processing
	Status             enum.MessageStatus `gorm:"column:status;type:varchar(20);not null;default:'PENDING';index:idx_email_messages_status_received,priority:1" json:"status"`
	ExtractedData      JSONMap            `gorm:"column:extracted_data;type:jsonb" json:"extractedData"`
	ProcessingAttempts int                `gorm:"column:processing_attempts;not null;default:0" json:"processingAttempts"`
	LastProcessedAt    *time.Time         `gorm:"column:last_processed_at;type:timestamp" json:"lastProcessedAt"`

	// Standard timestamps
	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (EmailMessage) TableName() string {
	return "email_messages"
}

func (e *EmailMessage) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = utils.GenerateNanoIDWithPrefix("emsg", 24)
	}
	if e.Status == "" {
		e.Status = enum.MessageStatusPending
	}
	e.CreatedAt = utils.Now()
	return nil
}
