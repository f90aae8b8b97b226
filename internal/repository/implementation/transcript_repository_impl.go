package implementation

import (
	"context"

	"shyra-hub-be/internal/entity"
	"shyra-hub-be/internal/mapper"
	"shyra-hub-be/internal/model"
	"shyra-hub-be/internal/repository/contract"
	"shyra-hub-be/internal/repository/specification"

	"gorm.io/gorm"
)

type TranscriptRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.TranscriptMapper
}

func NewTranscriptRepository(db *gorm.DB) contract.TranscriptRepository {
	return &TranscriptRepositoryImpl{
		db:     db,
		mapper: mapper.NewTranscriptMapper(),
	}
}

func (r *TranscriptRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *TranscriptRepositoryImpl) CreateBulk(ctx context.Context, lines []*entity.Transcript) error {
	if len(lines) == 0 {
		return nil
	}
	models := make([]*model.ChatTranscript, len(lines))
	for i, l := range lines {
		models[i] = r.mapper.ToModel(l)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&models).Error
	})
}

func (r *TranscriptRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Transcript, error) {
	var models []*model.ChatTranscript
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *TranscriptRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.ChatTranscript{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
