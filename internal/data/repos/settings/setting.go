package settings

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/dubforge-backend/internal/domain"
	"github.com/yungbote/dubforge-backend/internal/platform/dbctx"
	"github.com/yungbote/dubforge-backend/internal/platform/logger"
)

type SettingRepo interface {
	Get(dbc dbctx.Context, key string) (*domain.Setting, error)
	Upsert(dbc dbctx.Context, key, value string) error
	Delete(dbc dbctx.Context, key string) error
}

type settingRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSettingRepo(db *gorm.DB, baseLog *logger.Logger) SettingRepo {
	return &settingRepo{
		db:  db,
		log: baseLog.With("repo", "SettingRepo"),
	}
}

func (r *settingRepo) handle(dbc dbctx.Context) *gorm.DB {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx)
}

func (r *settingRepo) Get(dbc dbctx.Context, key string) (*domain.Setting, error) {
	if key == "" {
		return nil, nil
	}
	var s domain.Setting
	err := r.handle(dbc).Where("key = ?", key).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *settingRepo) Upsert(dbc dbctx.Context, key, value string) error {
	if key == "" {
		return nil
	}
	s := domain.Setting{Key: key, Value: value, UpdatedAt: time.Now()}
	return r.handle(dbc).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&s).Error
}

func (r *settingRepo) Delete(dbc dbctx.Context, key string) error {
	if key == "" {
		return nil
	}
	return r.handle(dbc).Where("key = ?", key).Delete(&domain.Setting{}).Error
}
