package repository

import (
	"classdoc-go/internal/model"

	"gorm.io/gorm"
)

// SubmissionRepository 接口定义了学生作业记录的持久化操作。
type SubmissionRepository interface {
	Create(record *model.StudentSubmission) error
	UpdateStatus(classID, fileName, status string) error
	Delete(classID, fileName string) error
	DeleteByClass(classID string) error
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository 创建一个新的 SubmissionRepository 实例。
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

// Create 插入一条学生作业记录，(class_id, file_name) 唯一。
func (r *submissionRepository) Create(record *model.StudentSubmission) error {
	return r.db.Create(record).Error
}

// UpdateStatus 更新作业记录的状态。
func (r *submissionRepository) UpdateStatus(classID, fileName, status string) error {
	return r.db.Model(&model.StudentSubmission{}).
		Where("class_id = ? AND file_name = ?", classID, fileName).
		Update("status", status).Error
}

// Delete 删除单条作业记录。
func (r *submissionRepository) Delete(classID, fileName string) error {
	return r.db.Where("class_id = ? AND file_name = ?", classID, fileName).Delete(&model.StudentSubmission{}).Error
}

// DeleteByClass 删除班级下的所有作业记录。
func (r *submissionRepository) DeleteByClass(classID string) error {
	return r.db.Where("class_id = ?", classID).Delete(&model.StudentSubmission{}).Error
}
