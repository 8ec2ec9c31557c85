package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/studyloop/studyloop-backend/internal/domain/study"
	"github.com/studyloop/studyloop-backend/internal/pkg/logger"
)

// UserStateRepo persists one serialized UserState row per user. Load returns
// nil when the user has no row yet; Save upserts write-through.
type UserStateRepo interface {
	Load(ctx context.Context, userID uuid.UUID) ([]byte, error)
	Save(ctx context.Context, userID uuid.UUID, payload []byte) error
}

type userStateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserStateRepo(db *gorm.DB, baseLog *logger.Logger) UserStateRepo {
	return &userStateRepo{db: db, log: baseLog.With("repo", "UserStateRepo")}
}

func (r *userStateRepo) Load(ctx context.Context, userID uuid.UUID) ([]byte, error) {
	var record study.UserStateRecord
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(record.State), nil
}

func (r *userStateRepo) Save(ctx context.Context, userID uuid.UUID, payload []byte) error {
	record := study.UserStateRecord{
		UserID:    userID,
		State:     datatypes.JSON(payload),
		UpdatedAt: time.Now().UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"state", "updated_at"}),
		}).
		Create(&record).Error
}
