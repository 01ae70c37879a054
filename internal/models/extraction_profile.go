package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/cadrius/mailpipe/internal/utils"
)

// ExtractionProfile pairs a prompt template with the schema the AI must fill.
// The template may contain {current_date}.
type ExtractionProfile struct {
	ID                   string    `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	UserID               string    `gorm:"column:user_id;type:varchar(50);index" json:"userId"`
	Name                 string    `gorm:"column:name;type:varchar(100);uniqueIndex;not null" json:"name"`
	SystemPromptTemplate string    `gorm:"column:system_prompt_template;type:text;not null" json:"systemPromptTemplate"`
	SchemaName           string    `gorm:"column:schema_name;type:varchar(100);not null" json:"schemaName"`
	CreatedAt            time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt            time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (ExtractionProfile) TableName() string {
	return "extraction_profiles"
}

func (p *ExtractionProfile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = utils.GenerateNanoIDWithPrefix("prof", 16)
	}
	return nil
}
