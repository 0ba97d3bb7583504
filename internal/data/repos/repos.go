package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/dubforge-backend/internal/data/repos/jobs"
	"github.com/yungbote/dubforge-backend/internal/data/repos/narrations"
	"github.com/yungbote/dubforge-backend/internal/data/repos/settings"
	"github.com/yungbote/dubforge-backend/internal/data/repos/users"
	"github.com/yungbote/dubforge-backend/internal/platform/logger"
)

type UserRepo = users.UserRepo
type JobRepo = jobs.JobRepo
type NarrationRepo = narrations.NarrationRepo
type SettingRepo = settings.SettingRepo

// Set bundles every repo behind one constructor so wiring stays in one
// place.
type Set struct {
	Users      UserRepo
	Jobs       JobRepo
	Narrations NarrationRepo
	Settings   SettingRepo
}

func NewSet(db *gorm.DB, log *logger.Logger) *Set {
	return &Set{
		Users:      users.NewUserRepo(db, log),
		Jobs:       jobs.NewJobRepo(db, log),
		Narrations: narrations.NewNarrationRepo(db, log),
		Settings:   settings.NewSettingRepo(db, log),
	}
}
