package repository

import (
	"context"
	"errors"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/cadrius/mailpipe/interfaces"
	"github.com/cadrius/mailpipe/internal/models"
	"github.com/cadrius/mailpipe/internal/tracing"
)

type integrationConfigRepository struct {
	db *gorm.DB
}

func NewIntegrationConfigRepository(db *gorm.DB) interfaces.IntegrationConfigRepository {
	return &integrationConfigRepository{db: db}
}

func (r *integrationConfigRepository) Create(ctx context.Context, config *models.IntegrationConfig) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "integrationConfigRepository.Create")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	if err := r.db.WithContext(ctx).Create(config).Error; err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *integrationConfigRepository) List(ctx context.Context) ([]*models.IntegrationConfig, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "integrationConfigRepository.List")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	var configs []*models.IntegrationConfig
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&configs).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return configs, nil
}

func (r *integrationConfigRepository) GetByID(ctx context.Context, id string) (*models.IntegrationConfig, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "integrationConfigRepository.GetByID")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEntity(span, id)

	var config models.IntegrationConfig
	if err := r.db.WithContext(ctx).First(&config, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &config, nil
}
