package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadrius/mailpipe/internal/enum"
	"github.com/cadrius/mailpipe/internal/models"
)

func TestIntegrationLogRepository_PendingThenFinal(t *testing.T) {
	ctx := context.Background()
	repos := InitRepositories(setupTestDB(t))

	log := &models.IntegrationLog{
		EmailMessageID: "emsg_1",
		Service:        enum.IntegrationServiceTelegram,
		RequestData:    models.JSONMap{"chat_id": "42"},
	}
	require.NoError(t, repos.IntegrationLogRepository.Create(ctx, log))
	assert.Len(t, log.ID, 36)
	assert.Equal(t, enum.IntegrationStatusPending, log.Status)

	require.NoError(t, repos.IntegrationLogRepository.MarkSuccess(ctx, log.ID, 200, models.JSONMap{"ok": true}))
	// a final log cannot transition again
	assert.Error(t, repos.IntegrationLogRepository.MarkFailed(ctx, log.ID, 500, nil))

	logs, err := repos.IntegrationLogRepository.ListByMessage(ctx, "emsg_1")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, enum.IntegrationStatusSuccess, logs[0].Status)
	require.NotNil(t, logs[0].ResponseCode)
	assert.Equal(t, 200, *logs[0].ResponseCode)
	assert.Equal(t, true, logs[0].ResponseBody["ok"])
	assert.Equal(t, "42", logs[0].RequestData["chat_id"])
}

func TestIntegrationConfigAndProfileRepositories(t *testing.T) {
	ctx := context.Background()
	repos := InitRepositories(setupTestDB(t))

	config := &models.IntegrationConfig{Name: "ops", TelegramBotToken: "t", TelegramChatID: "c", IsActive: true}
	require.NoError(t, repos.IntegrationConfigRepository.Create(ctx, config))
	stored, err := repos.IntegrationConfigRepository.GetByID(ctx, config.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.HasTelegram())
	assert.False(t, stored.HasTrello())

	missing, err := repos.IntegrationConfigRepository.GetByID(ctx, "intg_missing")
	require.NoError(t, err)
	assert.Nil(t, missing)

	profile := &models.ExtractionProfile{Name: "support", SystemPromptTemplate: "p", SchemaName: "SupportRequestSchema"}
	require.NoError(t, repos.ExtractionProfileRepository.Create(ctx, profile))
	profiles, err := repos.ExtractionProfileRepository.List(ctx)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Contains(t, profiles[0].ID, "prof_")
}
