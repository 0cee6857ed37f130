package model

import "time"

// Session 是调用方持有的界面相关状态，存放在 Redis 中。
// 编排服务只读取它，是否清空由调用方根据返回值决定。
type Session struct {
	ID              string    `json:"id"`
	SelectedTeacher *Document `json:"selectedTeacher,omitempty"`
	SelectedStudent *Document `json:"selectedStudent,omitempty"`
	Question        string    `json:"question,omitempty"`
	Answer          string    `json:"answer,omitempty"`
	Comparison      string    `json:"comparison,omitempty"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Selects 判断文档是否为当前会话选中的文档之一。
func (s Session) Selects(doc Document) bool {
	if s.SelectedTeacher != nil && s.SelectedTeacher.Same(doc) {
		return true
	}
	return s.SelectedStudent != nil && s.SelectedStudent.Same(doc)
}

// ClearSelection 清空选中的文档以及依赖它的问题、回答与对比结果。
func (s *Session) ClearSelection() {
	s.SelectedTeacher = nil
	s.SelectedStudent = nil
	s.Question = ""
	s.Answer = ""
	s.Comparison = ""
}

// Select 记录新选中的文档，替换同角色的旧选择，派生状态一并失效。
func (s *Session) Select(doc Document) {
	d := doc
	if doc.Role == RoleTeacher {
		s.SelectedTeacher = &d
	} else {
		s.SelectedStudent = &d
	}
	s.Answer = ""
	s.Comparison = ""
}
