package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/cadrius/mailpipe/internal/utils"
)

type IntegrationConfig struct {
	ID     string `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	UserID string `gorm:"column:user_id;type:varchar(50);index" json:"userId"`
	Name   string `gorm:"column:name;type:varchar(100);uniqueIndex;not null" json:"name"`
	// Trello
	TrelloApiKey string `gorm:"column:trello_api_key;type:varchar(255)" json:"-"`
	TrelloToken  string `gorm:"column:trello_token;type:varchar(255)" json:"-"`
	TrelloListID string `gorm:"column:trello_list_id;type:varchar(100)" json:"trelloListId"`
	// Telegram
	TelegramBotToken string `gorm:"column:telegram_bot_token;type:varchar(255)" json:"-"`
	TelegramChatID   string `gorm:"column:telegram_chat_id;type:varchar(100)" json:"telegramChatId"`

	IsActive  bool      `gorm:"column:is_active;not null" json:"isActive"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (IntegrationConfig) TableName() string {
	return "integration_configs"
}

func (c *IntegrationConfig) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = utils.GenerateNanoIDWithPrefix("intg", 16)
	}
	return nil
}

func (c *IntegrationConfig) HasTelegram() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != ""
}

func (c *IntegrationConfig) HasTrello() bool {
	return c.TrelloApiKey != "" && c.TrelloToken != "" && c.TrelloListID != ""
}
