package model

import "time"

// Class 对应于数据库中的 'classes' 表。
// 一个班级拥有教师资料与学生作业两组文档，分别存放在两个桶中。
type Class struct {
	// ID 是班级的自增主键，同时作为对象键的前缀。
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`
	// Name 是班级的显示名称。
	Name string `gorm:"type:varchar(255);not null" json:"name"`
	// Term 是学期，例如 "1/2567"。
	Term string `gorm:"type:varchar(50);not null" json:"term"`
	// Subject 是科目名称。
	Subject   string    `gorm:"type:varchar(255);not null" json:"subject"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Class) TableName() string {
	return "classes"
}

// Scope 返回该班级在桶内的对象键前缀。
func (c Class) Scope() string {
	return ClassScope(c.ID)
}
