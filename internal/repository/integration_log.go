package repository

import (
	"context"

	"github.com/opentracing/opentracing-go"
	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/cadrius/mailpipe/interfaces"
	"github.com/cadrius/mailpipe/internal/enum"
	"github.com/cadrius/mailpipe/internal/models"
	"github.com/cadrius/mailpipe/internal/tracing"
)

type integrationLogRepository struct {
	db *gorm.DB
}

func NewIntegrationLogRepository(db *gorm.DB) interfaces.IntegrationLogRepository {
	return &integrationLogRepository{db: db}
}

func (r *integrationLogRepository) Create(ctx context.Context, log *models.IntegrationLog) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "integrationLogRepository.Create")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEntity(span, log.EmailMessageID)
	span.SetTag("service", log.Service)

	if err := r.db.WithContext(ctx).Create(log).Error; err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *integrationLogRepository) MarkSuccess(ctx context.Context, id string, responseCode int, responseBody models.JSONMap) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "integrationLogRepository.MarkSuccess")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	return r.finish(ctx, span, id, enum.IntegrationStatusSuccess, responseCode, responseBody)
}

func (r *integrationLogRepository) MarkFailed(ctx context.Context, id string, responseCode int, responseBody models.JSONMap) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "integrationLogRepository.MarkFailed")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	return r.finish(ctx, span, id, enum.IntegrationStatusFailed, responseCode, responseBody)
}

// finish is the only transition allowed on a log: PENDING to a final status.
func (r *integrationLogRepository) finish(ctx context.Context, span opentracing.Span, id string, status enum.IntegrationStatus, responseCode int, responseBody models.JSONMap) error {
	span.LogKV("status", status, "responseCode", responseCode)

	result := r.db.WithContext(ctx).Model(&models.IntegrationLog{}).
		Where("id = ? AND status = ?", id, enum.IntegrationStatusPending).
		Updates(map[string]interface{}{
			"status":        status,
			"response_code": responseCode,
			"response_body": responseBody,
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return pkgerrors.Wrap(result.Error, "failed to update integration log")
	}
	if result.RowsAffected == 0 {
		err := pkgerrors.Errorf("integration log %s not found or already final", id)
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *integrationLogRepository) ListByMessage(ctx context.Context, emailMessageID string) ([]*models.IntegrationLog, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "integrationLogRepository.ListByMessage")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEntity(span, emailMessageID)

	var logs []*models.IntegrationLog
	err := r.db.WithContext(ctx).Where("email_message_id = ?", emailMessageID).Order("attempted_at ASC").Find(&logs).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return logs, nil
}
