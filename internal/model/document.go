// Package model 定义了领域对象与数据库表对应的 Go 结构体。
package model

import (
	"fmt"
	"strings"
	"time"
)

// Role 决定文档所在的桶以及后续的处理路径。
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// ParseRole 解析请求中的角色字符串。
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleTeacher:
		return RoleTeacher, nil
	case RoleStudent:
		return RoleStudent, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// IndexState 是文档在外部索引服务中的状态。
// 它不会被持久化，每次需要时都通过状态查询重新计算。
type IndexState string

const (
	IndexUnindexed IndexState = "unindexed"
	IndexIndexing  IndexState = "indexing"
	IndexIndexed   IndexState = "indexed"
	IndexFailed    IndexState = "index_failed"
)

// Document 表示一个上传的 PDF，由 (OwnerScope, Name) 唯一标识。
// OwnerScope 通常是班级 ID，为空时对象键就是文件名。
type Document struct {
	OwnerScope   string    `json:"classId"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	Size         int64     `json:"size"`
	LastModified LocalTime `json:"lastModified"`
	URL          string    `json:"url,omitempty"`
}

// Key 返回文档在桶内的对象键。
func (d Document) Key() string {
	if d.OwnerScope == "" {
		return d.Name
	}
	return d.OwnerScope + "/" + d.Name
}

// ID 是文档在索引服务与评分服务中的标识，这两个服务都按文件名寻址。
func (d Document) ID() string {
	return d.Name
}

// Same 判断两个引用是否指向同一个文档。
func (d Document) Same(other Document) bool {
	return d.Role == other.Role && d.Key() == other.Key()
}

// IsZero 判断文档引用是否为空。
func (d Document) IsZero() bool {
	return d.Name == ""
}

// DocumentFromKey 将对象键还原为文档引用。
func DocumentFromKey(role Role, key string, size int64, modified time.Time) Document {
	scope, name := "", key
	if i := strings.LastIndex(key, "/"); i >= 0 {
		scope, name = key[:i], key[i+1:]
	}
	return Document{
		OwnerScope:   scope,
		Name:         name,
		Role:         role,
		Size:         size,
		LastModified: LocalTime(modified),
	}
}
