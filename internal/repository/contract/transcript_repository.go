package contract

import (
	"context"

	"shyra-hub-be/internal/entity"
	"shyra-hub-be/internal/repository/specification"
)

type TranscriptRepository interface {
	CreateBulk(ctx context.Context, lines []*entity.Transcript) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Transcript, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
