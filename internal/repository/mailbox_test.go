package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mperrors "github.com/cadrius/mailpipe/internal/errors"
	"github.com/cadrius/mailpipe/internal/models"
)

func TestMailboxRepository_GetMailboxNotFound(t *testing.T) {
	repos := InitRepositories(setupTestDB(t))

	mailbox, err := repos.MailboxRepository.GetMailbox(context.Background(), "mbox_missing")
	require.NoError(t, err)
	assert.Nil(t, mailbox)
}

func TestMailboxRepository_CreateDefaults(t *testing.T) {
	repos := InitRepositories(setupTestDB(t))
	mailbox := createTestMailbox(t, repos, "support")

	stored, err := repos.MailboxRepository.GetMailbox(context.Background(), mailbox.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Contains(t, stored.ID, "mbox_")
	assert.Equal(t, "INBOX", stored.Folder)
	assert.Nil(t, stored.LastUID)
	assert.Nil(t, stored.LastFetchAt)
}

func TestMailboxRepository_DuplicateName(t *testing.T) {
	repos := InitRepositories(setupTestDB(t))
	createTestMailbox(t, repos, "support")

	err := repos.MailboxRepository.CreateMailbox(context.Background(), &models.Mailbox{
		Name: "support", ImapHost: "h", Username: "u", Password: "p",
	})
	assert.ErrorIs(t, err, mperrors.ErrMailboxExists)
}

func TestMailboxRepository_GetActiveMailboxes(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repos := InitRepositories(db)
	createTestMailbox(t, repos, "active")
	inactive := createTestMailbox(t, repos, "inactive")
	require.NoError(t, db.Model(&models.Mailbox{}).Where("id = ?", inactive.ID).Update("is_active", false).Error)

	mailboxes, err := repos.MailboxRepository.GetActiveMailboxes(ctx)
	require.NoError(t, err)
	require.Len(t, mailboxes, 1)
	assert.Equal(t, "active", mailboxes[0].Name)

	all, err := repos.MailboxRepository.GetMailboxes(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestMailboxRepository_UpdateCheckpointIsMonotonic(t *testing.T) {
	ctx := context.Background()
	repos := InitRepositories(setupTestDB(t))
	mailbox := createTestMailbox(t, repos, "support")

	first := time.Now().UTC().Add(-time.Minute).Truncate(time.Second)
	require.NoError(t, repos.MailboxRepository.UpdateCheckpoint(ctx, mailbox.ID, 0, first))
	stored, err := repos.MailboxRepository.GetMailbox(ctx, mailbox.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.LastUID)
	require.NotNil(t, stored.LastFetchAt)

	require.NoError(t, repos.MailboxRepository.UpdateCheckpoint(ctx, mailbox.ID, 120, time.Now().UTC()))
	require.NoError(t, repos.MailboxRepository.UpdateCheckpoint(ctx, mailbox.ID, 90, time.Now().UTC()))

	stored, err = repos.MailboxRepository.GetMailbox(ctx, mailbox.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastUID)
	assert.Equal(t, uint32(120), *stored.LastUID)
	assert.True(t, stored.LastFetchAt.After(first))
}

func TestMailboxRepository_UpdateCheckpointUnknownMailbox(t *testing.T) {
	repos := InitRepositories(setupTestDB(t))

	err := repos.MailboxRepository.UpdateCheckpoint(context.Background(), "mbox_missing", 1, time.Now())
	assert.ErrorIs(t, err, mperrors.ErrMailboxNotFound)
}

func TestMailboxRepository_DeleteProtectedWhileMessagesExist(t *testing.T) {
	ctx := context.Background()
	repos := InitRepositories(setupTestDB(t))
	mailbox := createTestMailbox(t, repos, "support")
	require.NoError(t, repos.EmailMessageRepository.Create(ctx, &models.EmailMessage{
		MailboxID: mailbox.ID, MessageID: "<a@example.com>", ReceivedAt: time.Now(),
	}))

	err := repos.MailboxRepository.DeleteMailbox(ctx, mailbox.ID)
	assert.ErrorIs(t, err, mperrors.ErrMailboxInUse)

	empty := createTestMailbox(t, repos, "empty")
	require.NoError(t, repos.MailboxRepository.DeleteMailbox(ctx, empty.ID))
	gone, err := repos.MailboxRepository.GetMailbox(ctx, empty.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	assert.ErrorIs(t, repos.MailboxRepository.DeleteMailbox(ctx, empty.ID), mperrors.ErrMailboxNotFound)
}
