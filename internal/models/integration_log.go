package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cadrius/mailpipe/internal/enum"
	"github.com/cadrius/mailpipe/internal/utils"
)

// IntegrationLog is the audit record of one delivery attempt. Only Status and the
// response columns change after creation.
type IntegrationLog struct {
	ID             string                  `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	EmailMessageID string                  `gorm:"column:email_message_id;type:varchar(50);not null;index:idx_integration_logs_message_service_status,priority:1" json:"emailMessageId"`
	Service        enum.IntegrationService `gorm:"column:service;type:varchar(20);not null;index:idx_integration_logs_message_service_status,priority:2" json:"service"`
	Status         enum.IntegrationStatus  `gorm:"column:status;type:varchar(20);not null;index:idx_integration_logs_message_service_status,priority:3" json:"status"`
	RequestData    JSONMap                 `gorm:"column:request_data;type:jsonb" json:"requestData"`
	ResponseCode   *int                    `gorm:"column:response_code" json:"responseCode"`
	ResponseBody   JSONMap                 `gorm:"column:response_body;type:jsonb" json:"responseBody"`
	AttemptedAt    time.Time               `gorm:"column:attempted_at;type:timestamp;not null" json:"attemptedAt"`
}

func (IntegrationLog) TableName() string {
	return "integration_logs"
}

func (l *IntegrationLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.AttemptedAt.IsZero() {
		l.AttemptedAt = utils.Now()
	}
	if l.Status == "" {
		l.Status = enum.IntegrationStatusPending
	}
	return nil
}
