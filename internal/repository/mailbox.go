package repository

import (
	"context"
	"errors"
	"time"

	"github.com/opentracing/opentracing-go"
	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/cadrius/mailpipe/interfaces"
	mperrors "github.com/cadrius/mailpipe/internal/errors"
	"github.com/cadrius/mailpipe/internal/models"
	"github.com/cadrius/mailpipe/internal/tracing"
	"github.com/cadrius/mailpipe/internal/utils"
)

type mailboxRepository struct {
	db *gorm.DB
}

func NewMailboxRepository(db *gorm.DB) interfaces.MailboxRepository {
	return &mailboxRepository{db: db}
}

func (r *mailboxRepository) GetMailboxes(ctx context.Context) ([]*models.Mailbox, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxRepository.GetMailboxes")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	var mailboxes []*models.Mailbox
	result := r.db.WithContext(ctx).Order("name ASC").Find(&mailboxes)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return nil, result.Error
	}
	return mailboxes, nil
}

func (r *mailboxRepository) GetActiveMailboxes(ctx context.Context) ([]*models.Mailbox, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxRepository.GetActiveMailboxes")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	var mailboxes []*models.Mailbox
	result := r.db.WithContext(ctx).Where("is_active = ?", true).Order("name ASC").Find(&mailboxes)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return nil, result.Error
	}
	span.LogKV("result.count", len(mailboxes))
	return mailboxes, nil
}

func (r *mailboxRepository) GetMailbox(ctx context.Context, id string) (*models.Mailbox, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxRepository.GetMailbox")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagMailbox(span, id)

	var mailbox models.Mailbox
	err := r.db.WithContext(ctx).First(&mailbox, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &mailbox, nil
}

func (r *mailboxRepository) CreateMailbox(ctx context.Context, mailbox *models.Mailbox) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxRepository.CreateMailbox")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	err := r.db.WithContext(ctx).Create(mailbox).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			err = pkgerrors.Wrap(mperrors.ErrMailboxExists, mailbox.Name)
		}
		tracing.TraceErr(span, err)
		return err
	}
	tracing.TagMailbox(span, mailbox.ID)
	return nil
}

// UpdateCheckpoint stamps last_fetch_at and moves last_uid forward, never backwards.
// A zero lastUID leaves the cursor untouched.
func (r *mailboxRepository) UpdateCheckpoint(ctx context.Context, id string, lastUID uint32, fetchedAt time.Time) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxRepository.UpdateCheckpoint")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagMailbox(span, id)
	span.LogKV("lastUID", lastUID)

	updates := map[string]interface{}{
		"last_fetch_at": fetchedAt,
		"updated_at":    utils.Now(),
	}
	if lastUID > 0 {
		updates["last_uid"] = gorm.Expr("CASE WHEN last_uid IS NULL OR last_uid < ? THEN ? ELSE last_uid END", lastUID, lastUID)
	}

	result := r.db.WithContext(ctx).Model(&models.Mailbox{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return pkgerrors.Wrap(result.Error, "failed to update mailbox checkpoint")
	}
	if result.RowsAffected == 0 {
		tracing.TraceErr(span, mperrors.ErrMailboxNotFound)
		return mperrors.ErrMailboxNotFound
	}
	return nil
}

// DeleteMailbox refuses while messages still reference the mailbox.
func (r *mailboxRepository) DeleteMailbox(ctx context.Context, id string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxRepository.DeleteMailbox")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagMailbox(span, id)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.EmailMessage{}).Where("mailbox_id = ?", id).Count(&count).Error; err != nil {
			tracing.TraceErr(span, err)
			return err
		}
		if count > 0 {
			tracing.TraceErr(span, mperrors.ErrMailboxInUse)
			return mperrors.ErrMailboxInUse
		}

		result := tx.Delete(&models.Mailbox{}, "id = ?", id)
		if result.Error != nil {
			tracing.TraceErr(span, result.Error)
			return result.Error
		}
		if result.RowsAffected == 0 {
			return mperrors.ErrMailboxNotFound
		}
		return nil
	})
}
