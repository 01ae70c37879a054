package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/cadrius/mailpipe/internal/utils"
)

type Mailbox struct {
	ID     string `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	UserID string `gorm:"column:user_id;type:varchar(50);index" json:"userId"`
	Name   string `gorm:"column:name;type:varchar(100);uniqueIndex;not null" json:"name"`
	// IMAP Configuration
	ImapHost string `gorm:"column:imap_host;type:varchar(255);not null" json:"imapHost"`
	ImapPort int    `gorm:"column:imap_port;not null;default:993" json:"imapPort"`
	ImapTLS  bool   `gorm:"column:imap_tls;not null" json:"imapTls"`
	Username string `gorm:"column:username;type:varchar(255);not null" json:"username"`
	Password string `gorm:"column:password;type:varchar(255);not null" json:"-"`
	Folder   string `gorm:"column:folder;type:varchar(100);not null;default:'INBOX'" json:"folder"`
	// Checkpoint
	LastUID     *uint32    `gorm:"column:last_uid" json:"lastUid"`
	LastFetchAt *time.Time `gorm:"column:last_fetch_at;type:timestamp" json:"lastFetchAt"`
	IsActive    bool       `gorm:"column:is_active;not null" json:"isActive"`
	// Routing
	IntegrationConfigID *string            `gorm:"column:integration_config_id;type:varchar(50)" json:"integrationConfigId"`
	IntegrationConfig   *IntegrationConfig `gorm:"foreignKey:IntegrationConfigID;constraint:OnDelete:SET NULL" json:"-"`
	ExtractionProfileID *string            `gorm:"column:extraction_profile_id;type:varchar(50)" json:"extractionProfileId"`
	// Standard timestamps
	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (Mailbox) TableName() string {
	return "mailboxes"
}

func (m *Mailbox) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = utils.GenerateNanoIDWithPrefix("mbox", 16)
	}
	if m.Folder == "" {
		m.Folder = "INBOX"
	}
	return nil
}

// Cursor returns the last processed UID, 0 when the mailbox was never fetched.
func (m *Mailbox) Cursor() uint32 {
	return utils.GetOrDefault(m.LastUID, 0)
}
