package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"presensiku_backend/internals/features/school/subjects/model"
)

type SubjectRepository struct {
	DB *gorm.DB
}

func NewSubjectRepository(db *gorm.DB) *SubjectRepository {
	return &SubjectRepository{DB: db}
}

// FindByID mengembalikan gorm.ErrRecordNotFound bila subject tidak ada
// (atau sudah soft-delete).
func (r *SubjectRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.SubjectModel, error) {
	var s model.SubjectModel
	if err := r.DB.WithContext(ctx).
		Where("subjects_id = ?", id).
		Take(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// IsOwnedBy: cek kepemilikan tanpa load seluruh row.
func (r *SubjectRepository) IsOwnedBy(ctx context.Context, subjectID, teacherID uuid.UUID) (bool, error) {
	var n int64
	if err := r.DB.WithContext(ctx).
		Model(&model.SubjectModel{}).
		Where("subjects_id = ? AND subjects_teacher_id = ?", subjectID, teacherID).
		Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
