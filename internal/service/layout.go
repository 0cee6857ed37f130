// Package service 包含了文档生命周期与评分编排的业务逻辑层。
package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"classdoc-go/internal/apperr"
	"classdoc-go/internal/config"
	"classdoc-go/internal/model"
	"classdoc-go/pkg/storage"
)

// Layout 描述文档在对象存储中的布局：每个角色一个桶，键为 {classId}/{fileName}。
type Layout struct {
	TeacherBucket string
	StudentBucket string
	PresignExpiry time.Duration
}

// NewLayout 从 MinIO 配置构造 Layout。
func NewLayout(cfg config.MinIOConfig) Layout {
	return Layout{
		TeacherBucket: cfg.TeacherBucket,
		StudentBucket: cfg.StudentBucket,
		PresignExpiry: cfg.PresignExpiry,
	}
}

// Bucket 返回角色对应的桶。
func (l Layout) Bucket(role model.Role) string {
	if role == model.RoleTeacher {
		return l.TeacherBucket
	}
	return l.StudentBucket
}

// listDocuments 列出某个班级在某个桶下的全部文档，按文件名排序。
func listDocuments(ctx context.Context, blobs storage.BlobStore, layout Layout, role model.Role, classID string) ([]model.Document, error) {
	objects, err := blobs.List(ctx, layout.Bucket(role), classID+"/")
	if err != nil {
		return nil, apperr.Wrap(apperr.KindBlobRead, "List", err, "读取文件列表失败")
	}
	docs := make([]model.Document, 0, len(objects))
	for _, obj := range objects {
		// 占位对象（如 .emptyFolderPlaceholder）不算文档
		if strings.HasSuffix(obj.Key, "/") || strings.HasPrefix(obj.Key[strings.LastIndex(obj.Key, "/")+1:], ".") {
			continue
		}
		docs = append(docs, model.DocumentFromKey(role, obj.Key, obj.Size, obj.LastModified))
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	return docs, nil
}
