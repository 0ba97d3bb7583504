package jobs

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/dubforge-backend/internal/domain"
	"github.com/yungbote/dubforge-backend/internal/platform/dbctx"
	"github.com/yungbote/dubforge-backend/internal/platform/logger"
)

type JobRepo interface {
	Create(dbc dbctx.Context, job *domain.Job) (*domain.Job, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Job, error)
	GetByIDForUser(dbc dbctx.Context, id, userID uuid.UUID) (*domain.Job, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID, statuses []domain.JobStatus, limit, offset int) ([]*domain.Job, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowed []domain.JobStatus, updates map[string]interface{}) (bool, error)
	Delete(dbc dbctx.Context, id uuid.UUID) error
}

type jobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRepo(db *gorm.DB, baseLog *logger.Logger) JobRepo {
	return &jobRepo{
		db:  db,
		log: baseLog.With("repo", "JobRepo"),
	}
}

func (r *jobRepo) handle(dbc dbctx.Context) *gorm.DB {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx)
}

func (r *jobRepo) Create(dbc dbctx.Context, job *domain.Job) (*domain.Job, error) {
	if job == nil {
		return nil, nil
	}
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if err := r.handle(dbc).Create(job).Error; err != nil {
		return nil, err
	}
	return job, nil
}

func (r *jobRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Job, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var job domain.Job
	err := r.handle(dbc).
		Preload("Narration").
		Where("id = ?", id).
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepo) GetByIDForUser(dbc dbctx.Context, id, userID uuid.UUID) (*domain.Job, error) {
	if id == uuid.Nil || userID == uuid.Nil {
		return nil, nil
	}
	var job domain.Job
	err := r.handle(dbc).
		Preload("Narration").
		Where("id = ? AND user_id = ?", id, userID).
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID, statuses []domain.JobStatus, limit, offset int) ([]*domain.Job, error) {
	var out []*domain.Job
	if userID == uuid.Nil {
		return out, nil
	}
	q := r.handle(dbc).
		Preload("Narration").
		Where("user_id = ?", userID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *jobRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return r.handle(dbc).
		Model(&domain.Job{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// UpdateFieldsUnlessStatus applies updates only while the job is not in
// one of the disallowed statuses. Stage handlers use it so a cancel that
// landed mid-flight is never overwritten; the bool reports whether the
// row was touched.
func (r *jobRepo) UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowed []domain.JobStatus, updates map[string]interface{}) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}

	q := r.handle(dbc).
		Model(&domain.Job{}).
		Where("id = ?", id)
	if len(disallowed) == 1 {
		q = q.Where("status <> ?", disallowed[0])
	} else if len(disallowed) > 1 {
		q = q.Where("status NOT IN ?", disallowed)
	}

	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *jobRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	return r.handle(dbc).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("job_id = ?", id).Delete(&domain.Narration{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&domain.Job{}).Error
	})
}
