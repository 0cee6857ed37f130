package model

import (
	"strconv"
	"time"
)

// 学生作业记录的状态。
const (
	SubmissionUploaded         = "uploaded"
	SubmissionPendingEmbedding = "pending_embedding"
	SubmissionIndexed          = "indexed"
)

// StudentSubmission 定义了 student_submissions 表的 ORM 模型。
// 学生桶中的每个对象都对应一条记录，由上传流程保证。
type StudentSubmission struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ClassID   string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_class_file" json:"classId"`
	FileName  string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_class_file" json:"fileName"`
	FilePath  string    `gorm:"type:varchar(512);not null" json:"filePath"`
	Status    string    `gorm:"type:varchar(32);not null;default:'uploaded'" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (StudentSubmission) TableName() string {
	return "student_submissions"
}

// ClassScope 将班级 ID 转换为对象键前缀。
func ClassScope(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
