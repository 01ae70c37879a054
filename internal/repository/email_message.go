package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/cadrius/mailpipe/interfaces"
	"github.com/cadrius/mailpipe/internal/enum"
	mperrors "github.com/cadrius/mailpipe/internal/errors"
	"github.com/cadrius/mailpipe/internal/models"
	"github.com/cadrius/mailpipe/internal/tracing"
	"github.com/cadrius/mailpipe/internal/utils"
)

type emailMessageRepository struct {
	db *gorm.DB
}

func NewEmailMessageRepository(db *gorm.DB) interfaces.EmailMessageRepository {
	return &emailMessageRepository{
		db: db,
	}
}

// Create inserts a new message. A (mailbox_id, message_id) collision is reported as ErrDuplicateMessage.
func (r *emailMessageRepository) Create(ctx context.Context, message *models.EmailMessage) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailMessageRepository.Create")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	if message == nil {
		return nil
	}
	tracing.TagMailbox(span, message.MailboxID)

	err := r.db.WithContext(ctx).Create(message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			span.SetTag("duplicate", true)
			return pkgerrors.Wrap(mperrors.ErrDuplicateMessage, message.MessageID)
		}
		tracing.TraceErr(span, err)
		return err
	}
	tracing.TagEntity(span, message.ID)
	return nil
}

func (r *emailMessageRepository) ExistsByMessageID(ctx context.Context, mailboxID, messageID string) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailMessageRepository.ExistsByMessageID")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagMailbox(span, mailboxID)

	var count int64
	err := r.db.WithContext(ctx).Model(&models.EmailMessage{}).
		Where("mailbox_id = ? AND message_id = ?", mailboxID, messageID).
		Count(&count).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return false, err
	}
	return count > 0, nil
}

// GetByID retrieves a message by its ID
func (r *emailMessageRepository) GetByID(ctx context.Context, id string) (*models.EmailMessage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailMessageRepository.GetByID")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEntity(span, id)

	var message models.EmailMessage
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&message).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &message, nil
}

// List returns the newest messages first. An empty status means all.
func (r *emailMessageRepository) List(ctx context.Context, filter interfaces.EmailMessageFilter) ([]*models.EmailMessage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailMessageRepository.List")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	span.LogKV("status", filter.Status, "query", filter.Query)

	query := r.db.WithContext(ctx).Model(&models.EmailMessage{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		// LOWER + LIKE works on both postgres and sqlite
		pattern := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(subject) LIKE ? OR LOWER(sender) LIKE ?", pattern, pattern)
	}

	var messages []*models.EmailMessage
	if err := query.Order("received_at DESC").Find(&messages).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return messages, nil
}

func (r *emailMessageRepository) CountByStatus(ctx context.Context, status enum.MessageStatus) (int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailMessageRepository.CountByStatus")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	span.LogKV("status", status)

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.EmailMessage{}).Where("status = ?", status).Count(&count).Error; err != nil {
		tracing.TraceErr(span, err)
		return 0, err
	}
	return count, nil
}

func (r *emailMessageRepository) CountReceivedSince(ctx context.Context, since time.Time) (int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailMessageRepository.CountReceivedSince")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.EmailMessage{}).Where("received_at >= ?", since).Count(&count).Error; err != nil {
		tracing.TraceErr(span, err)
		return 0, err
	}
	return count, nil
}

func (r *emailMessageRepository) CountByMailbox(ctx context.Context, mailboxID string) (int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailMessageRepository.CountByMailbox")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagMailbox(span, mailboxID)

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.EmailMessage{}).Where("mailbox_id = ?", mailboxID).Count(&count).Error; err != nil {
		tracing.TraceErr(span, err)
		return 0, err
	}
	return count, nil
}

// ClaimForProcessing moves a PENDING message to PROCESSING and counts the attempt.
// It returns false when another worker already holds the message or it is not pending.
func (r *emailMessageRepository) ClaimForProcessing(ctx context.Context, id string) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailMessageRepository.ClaimForProcessing")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEntity(span, id)

	result := r.db.WithContext(ctx).Model(&models.EmailMessage{}).
		Where("id = ? AND status = ?", id, enum.MessageStatusPending).
		Updates(map[string]interface{}{
			"status":              enum.MessageStatusProcessing,
			"processing_attempts": gorm.Expr("processing_attempts + ?", 1),
			"updated_at":          utils.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return false, result.Error
	}
	span.LogKV("claimed", result.RowsAffected == 1)
	return result.RowsAffected == 1, nil
}

func (r *emailMessageRepository) UpdateStatus(ctx context.Context, id string, status enum.MessageStatus) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailMessageRepository.UpdateStatus")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEntity(span, id)
	span.SetTag("status", status)

	return r.updateColumns(ctx, span, id, map[string]interface{}{
		"status":     status,
		"updated_at": utils.Now(),
	})
}

// SaveExtractedData stores the structured document and marks the message EXTRACTED.
func (r *emailMessageRepository) SaveExtractedData(ctx context.Context, id string, data models.JSONMap) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailMessageRepository.SaveExtractedData")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEntity(span, id)

	return r.updateColumns(ctx, span, id, map[string]interface{}{
		"extracted_data": data,
		"status":         enum.MessageStatusExtracted,
		"updated_at":     utils.Now(),
	})
}

func (r *emailMessageRepository) MarkIntegrated(ctx context.Context, id string, processedAt time.Time) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailMessageRepository.MarkIntegrated")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEntity(span, id)

	return r.updateColumns(ctx, span, id, map[string]interface{}{
		"status":            enum.MessageStatusIntegrated,
		"last_processed_at": processedAt,
		"updated_at":        utils.Now(),
	})
}

// RequeueForReprocessing resets any message to PENDING and counts the manual attempt.
func (r *emailMessageRepository) RequeueForReprocessing(ctx context.Context, id string) (*models.EmailMessage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailMessageRepository.RequeueForReprocessing")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEntity(span, id)

	err := r.updateColumns(ctx, span, id, map[string]interface{}{
		"status":              enum.MessageStatusPending,
		"processing_attempts": gorm.Expr("processing_attempts + ?", 1),
		"updated_at":          utils.Now(),
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *emailMessageRepository) updateColumns(ctx context.Context, span opentracing.Span, id string, columns map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.EmailMessage{}).Where("id = ?", id).Updates(columns)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return pkgerrors.Wrap(result.Error, "failed to update email message")
	}
	if result.RowsAffected == 0 {
		tracing.TraceErr(span, mperrors.ErrMessageNotFound)
		return mperrors.ErrMessageNotFound
	}
	return nil
}
