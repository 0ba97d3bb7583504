package db

import (
	"gorm.io/gorm"

	"github.com/yungbote/dubforge-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.Job{},
		&domain.Narration{},
		&domain.Setting{},
	)
}
