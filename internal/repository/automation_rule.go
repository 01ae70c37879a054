package repository

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/cadrius/mailpipe/interfaces"
	"github.com/cadrius/mailpipe/internal/models"
	"github.com/cadrius/mailpipe/internal/tracing"
)

type automationRuleRepository struct {
	db *gorm.DB
}

func NewAutomationRuleRepository(db *gorm.DB) interfaces.AutomationRuleRepository {
	return &automationRuleRepository{db: db}
}

func (r *automationRuleRepository) Create(ctx context.Context, rule *models.AutomationRule) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "automationRuleRepository.Create")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagMailbox(span, rule.MailboxID)

	if err := r.db.WithContext(ctx).Create(rule).Error; err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *automationRuleRepository) List(ctx context.Context) ([]*models.AutomationRule, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "automationRuleRepository.List")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	var rules []*models.AutomationRule
	if err := r.db.WithContext(ctx).Order("mailbox_id ASC, priority ASC, name ASC").Find(&rules).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return rules, nil
}

func (r *automationRuleRepository) CountActive(ctx context.Context) (int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "automationRuleRepository.CountActive")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.AutomationRule{}).Where("is_active = ?", true).Count(&count).Error; err != nil {
		tracing.TraceErr(span, err)
		return 0, err
	}
	return count, nil
}

// GetActiveByMailbox returns the active rules of a mailbox in evaluation order
// (priority, then name) with their extraction profile loaded.
func (r *automationRuleRepository) GetActiveByMailbox(ctx context.Context, mailboxID string) ([]*models.AutomationRule, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "automationRuleRepository.GetActiveByMailbox")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagMailbox(span, mailboxID)

	var rules []*models.AutomationRule
	err := r.db.WithContext(ctx).
		Preload("ExtractionProfile").
		Where("mailbox_id = ? AND is_active = ?", mailboxID, true).
		Order("priority ASC, name ASC").
		Find(&rules).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	span.LogKV("result.count", len(rules))
	return rules, nil
}
