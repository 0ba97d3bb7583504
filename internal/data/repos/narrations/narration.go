package narrations

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/dubforge-backend/internal/domain"
	"github.com/yungbote/dubforge-backend/internal/platform/dbctx"
	"github.com/yungbote/dubforge-backend/internal/platform/logger"
)

type NarrationRepo interface {
	Create(dbc dbctx.Context, n *domain.Narration) (*domain.Narration, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Narration, error)
	GetByIDForUser(dbc dbctx.Context, id, userID uuid.UUID) (*domain.Narration, error)
	GetByJobID(dbc dbctx.Context, jobID uuid.UUID) (*domain.Narration, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID, limit, offset int) ([]*domain.Narration, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowed []domain.NarrationStatus, updates map[string]interface{}) (bool, error)
	UpdateFieldsUnlessMergeStatus(dbc dbctx.Context, id uuid.UUID, disallowed []domain.MergeStatus, updates map[string]interface{}) (bool, error)
	Delete(dbc dbctx.Context, id uuid.UUID) error
}

type narrationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewNarrationRepo(db *gorm.DB, baseLog *logger.Logger) NarrationRepo {
	return &narrationRepo{
		db:  db,
		log: baseLog.With("repo", "NarrationRepo"),
	}
}

func (r *narrationRepo) handle(dbc dbctx.Context) *gorm.DB {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx)
}

func (r *narrationRepo) Create(dbc dbctx.Context, n *domain.Narration) (*domain.Narration, error) {
	if n == nil {
		return nil, nil
	}
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if err := r.handle(dbc).Create(n).Error; err != nil {
		return nil, err
	}
	return n, nil
}

func (r *narrationRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Narration, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var n domain.Narration
	err := r.handle(dbc).Where("id = ?", id).First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *narrationRepo) GetByIDForUser(dbc dbctx.Context, id, userID uuid.UUID) (*domain.Narration, error) {
	if id == uuid.Nil || userID == uuid.Nil {
		return nil, nil
	}
	var n domain.Narration
	err := r.handle(dbc).Where("id = ? AND user_id = ?", id, userID).First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *narrationRepo) GetByJobID(dbc dbctx.Context, jobID uuid.UUID) (*domain.Narration, error) {
	if jobID == uuid.Nil {
		return nil, nil
	}
	var n domain.Narration
	err := r.handle(dbc).
		Where("job_id = ?", jobID).
		Order("created_at DESC").
		First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *narrationRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID, limit, offset int) ([]*domain.Narration, error) {
	var out []*domain.Narration
	if userID == uuid.Nil {
		return out, nil
	}
	q := r.handle(dbc).Where("user_id = ?", userID)
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

func (r *narrationRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return r.handle(dbc).
		Model(&domain.Narration{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *narrationRepo) UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowed []domain.NarrationStatus, updates map[string]interface{}) (bool, error) {
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
		Model(&domain.Narration{}).
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

// UpdateFieldsUnlessMergeStatus is the merge sub-state counterpart of
// UpdateFieldsUnlessStatus; the guard runs against merge_status so a
// canceled merge stays canceled even while the narration itself is fine.
func (r *narrationRepo) UpdateFieldsUnlessMergeStatus(dbc dbctx.Context, id uuid.UUID, disallowed []domain.MergeStatus, updates map[string]interface{}) (bool, error) {
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
		Model(&domain.Narration{}).
		Where("id = ?", id)
	if len(disallowed) == 1 {
		q = q.Where("merge_status <> ?", disallowed[0])
	} else if len(disallowed) > 1 {
		q = q.Where("merge_status NOT IN ?", disallowed)
	}

	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *narrationRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	return r.handle(dbc).Where("id = ?", id).Delete(&domain.Narration{}).Error
}
