package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/cadrius/mailpipe/internal/utils"
)

const ActionCreateTrackingCard = "create_tracking_card"

type AutomationRule struct {
	ID                  string             `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	UserID              string             `gorm:"column:user_id;type:varchar(50);index" json:"userId"`
	MailboxID           string             `gorm:"column:mailbox_id;type:varchar(50);not null;uniqueIndex:uq_automation_rules_mailbox_name,priority:1" json:"mailboxId"`
	Name                string             `gorm:"column:name;type:varchar(100);not null;uniqueIndex:uq_automation_rules_mailbox_name,priority:2" json:"name"`
	Priority            int                `gorm:"column:priority;not null;default:10" json:"priority"`
	IsActive            bool               `gorm:"column:is_active;not null" json:"isActive"`
	SubjectContains     string             `gorm:"column:subject_contains;type:varchar(255)" json:"subjectContains"`
	SenderContains      string             `gorm:"column:sender_contains;type:varchar(255)" json:"senderContains"`
	ExtractionProfileID *string            `gorm:"column:extraction_profile_id;type:varchar(50)" json:"extractionProfileId"`
	ExtractionProfile   *ExtractionProfile `gorm:"foreignKey:ExtractionProfileID;constraint:OnDelete:SET NULL" json:"-"`
	ActionConfig        JSONMap            `gorm:"column:action_config;type:jsonb" json:"actionConfig"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (AutomationRule) TableName() string {
	return "automation_rules"
}

func (r *AutomationRule) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = utils.GenerateNanoIDWithPrefix("rule", 16)
	}
	return nil
}

// WantsTrackingCard reports whether the rule asks for a board card after the chat notification.
func (r *AutomationRule) WantsTrackingCard() bool {
	enabled, ok := r.ActionConfig[ActionCreateTrackingCard].(bool)
	return ok && enabled
}
