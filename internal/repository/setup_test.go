package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cadrius/mailpipe/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	return db
}

func createTestMailbox(t *testing.T, repos *Repositories, name string) *models.Mailbox {
	t.Helper()
	mailbox := &models.Mailbox{
		Name:     name,
		ImapHost: "imap.example.com",
		ImapPort: 993,
		ImapTLS:  true,
		Username: "ops@example.com",
		Password: "secret",
		IsActive: true,
	}
	require.NoError(t, repos.MailboxRepository.CreateMailbox(context.Background(), mailbox))
	return mailbox
}
