package repository

import (
	"fmt"

	"classdoc-go/internal/model"

	"gorm.io/gorm"
)

// EvaluationRepository 定义了对 evaluation_results 表的数据操作接口。
type EvaluationRepository interface {
	ReplaceRun(classID, referenceFile, questionHash string, records []*model.EvaluationRecord) error
	FindByReference(classID, referenceFile string) ([]model.EvaluationRecord, error)
	DeleteByClass(classID string) error
}

type evaluationRepository struct {
	db *gorm.DB
}

// NewEvaluationRepository 创建一个新的 EvaluationRepository 实例。
func NewEvaluationRepository(db *gorm.DB) EvaluationRepository {
	return &evaluationRepository{db: db}
}

// ReplaceRun 在一个事务内删除同一 参考文件+问题 的旧结果并写入新结果。
func (r *evaluationRepository) ReplaceRun(classID, referenceFile, questionHash string, records []*model.EvaluationRecord) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("class_id = ? AND reference_file = ? AND question_hash = ?", classID, referenceFile, questionHash).
			Delete(&model.EvaluationRecord{}).Error
		if err != nil {
			return fmt.Errorf("failed to delete previous evaluation run: %w", err)
		}
		if len(records) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(records, 100).Error; err != nil {
			return fmt.Errorf("failed to insert evaluation run: %w", err)
		}
		return nil
	})
}

// FindByReference 查找某份参考资料下的全部评分记录。
func (r *evaluationRepository) FindByReference(classID, referenceFile string) ([]model.EvaluationRecord, error) {
	var records []model.EvaluationRecord
	err := r.db.Where("class_id = ? AND reference_file = ?", classID, referenceFile).
		Order("evaluated_at desc, submission_file asc").
		Find(&records).Error
	return records, err
}

// DeleteByClass 删除班级下的所有评分记录。
func (r *evaluationRepository) DeleteByClass(classID string) error {
	return r.db.Where("class_id = ?", classID).Delete(&model.EvaluationRecord{}).Error
}
