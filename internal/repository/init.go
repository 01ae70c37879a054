package repository

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/cadrius/mailpipe/interfaces"
	"github.com/cadrius/mailpipe/internal/database"
	"github.com/cadrius/mailpipe/internal/models"
	"github.com/cadrius/mailpipe/internal/tracing"
)

type Repositories struct {
	db *gorm.DB

	MailboxRepository           interfaces.MailboxRepository
	EmailMessageRepository      interfaces.EmailMessageRepository
	AutomationRuleRepository    interfaces.AutomationRuleRepository
	ExtractionProfileRepository interfaces.ExtractionProfileRepository
	IntegrationConfigRepository interfaces.IntegrationConfigRepository
	IntegrationLogRepository    interfaces.IntegrationLogRepository
}

func InitRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:                          db,
		MailboxRepository:           NewMailboxRepository(db),
		EmailMessageRepository:      NewEmailMessageRepository(db),
		AutomationRuleRepository:    NewAutomationRuleRepository(db),
		ExtractionProfileRepository: NewExtractionProfileRepository(db),
		IntegrationConfigRepository: NewIntegrationConfigRepository(db),
		IntegrationLogRepository:    NewIntegrationLogRepository(db),
	}
}

// Ping checks the database connection.
func (r *Repositories) Ping(ctx context.Context) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Repositories.Ping")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	sqlDB, err := r.db.DB()
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func MigrateMailpipeDB(dbConfig *database.DatabaseConfig, mailpipeDB *gorm.DB) error {
	db, err := mailpipeDB.DB()
	if err != nil {
		return err
	}

	db.SetMaxOpenConns(5)

	err = mailpipeDB.AutoMigrate(models.AllModels()...)

	db.SetMaxIdleConns(dbConfig.MaxIdleConn)
	db.SetMaxOpenConns(dbConfig.MaxConn)
	db.SetConnMaxLifetime(time.Duration(dbConfig.ConnMaxLifetime) * time.Minute)

	return err
}
