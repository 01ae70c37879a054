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

type extractionProfileRepository struct {
	db *gorm.DB
}

func NewExtractionProfileRepository(db *gorm.DB) interfaces.ExtractionProfileRepository {
	return &extractionProfileRepository{db: db}
}

func (r *extractionProfileRepository) Create(ctx context.Context, profile *models.ExtractionProfile) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "extractionProfileRepository.Create")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	if err := r.db.WithContext(ctx).Create(profile).Error; err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *extractionProfileRepository) List(ctx context.Context) ([]*models.ExtractionProfile, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "extractionProfileRepository.List")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	var profiles []*models.ExtractionProfile
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&profiles).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return profiles, nil
}

func (r *extractionProfileRepository) GetByID(ctx context.Context, id string) (*models.ExtractionProfile, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "extractionProfileRepository.GetByID")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEntity(span, id)

	var profile models.ExtractionProfile
	if err := r.db.WithContext(ctx).First(&profile, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &profile, nil
}
