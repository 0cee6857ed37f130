// Package repository 定义了与目录库、Redis 进行数据交换的接口和实现。
package repository

import (
	"classdoc-go/internal/model"

	"gorm.io/gorm"
)

// ClassRepository 接口定义了班级数据的持久化操作。
type ClassRepository interface {
	Create(class *model.Class) error
	FindAll() ([]model.Class, error)
	FindByID(classID uint) (*model.Class, error)
	Delete(classID uint) error
}

// classRepository 是 ClassRepository 接口的 GORM 实现。
type classRepository struct {
	db *gorm.DB
}

// NewClassRepository 创建一个新的 ClassRepository 实例。
func NewClassRepository(db *gorm.DB) ClassRepository {
	return &classRepository{db: db}
}

// Create 在数据库中创建一个新的班级记录。
func (r *classRepository) Create(class *model.Class) error {
	return r.db.Create(class).Error
}

// FindAll 按创建时间倒序检索所有班级。
func (r *classRepository) FindAll() ([]model.Class, error) {
	var classes []model.Class
	err := r.db.Order("created_at desc").Find(&classes).Error
	return classes, err
}

// FindByID 根据班级 ID 查找一个班级，不存在时返回 gorm.ErrRecordNotFound。
func (r *classRepository) FindByID(classID uint) (*model.Class, error) {
	var class model.Class
	if err := r.db.First(&class, classID).Error; err != nil {
		return nil, err
	}
	return &class, nil
}

// Delete 删除班级记录。
func (r *classRepository) Delete(classID uint) error {
	return r.db.Delete(&model.Class{}, classID).Error
}
