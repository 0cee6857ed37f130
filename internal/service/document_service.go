package service

import (
	"context"
	"errors"
	"fmt"

	"classdoc-go/internal/apperr"
	"classdoc-go/internal/model"
	"classdoc-go/internal/repository"
	"classdoc-go/pkg/indexing"
	"classdoc-go/pkg/log"
	"classdoc-go/pkg/storage"
)

// DeleteResult 描述一次删除的结果。
// ClearSelection 为 true 时，调用方应清空会话中的选择及其派生状态。
type DeleteResult struct {
	Document       model.Document   `json:"document"`
	ClearSelection bool             `json:"clearSelection"`
	IndexRemoved   bool             `json:"indexRemoved"`
	Warnings       []string         `json:"warnings,omitempty"`
	Listing        []model.Document `json:"listing"`
}

// DocumentService 接口定义了文档管理相关的业务操作。
type DocumentService interface {
	List(ctx context.Context, classID string, role model.Role) ([]model.Document, error)
	URL(ctx context.Context, doc model.Document) (string, error)
	Delete(ctx context.Context, doc model.Document, session model.Session) (*DeleteResult, error)
}

type documentService struct {
	blobs       storage.BlobStore
	indexer     indexing.Client
	submissions repository.SubmissionRepository
	layout      Layout
}

// NewDocumentService 创建一个新的 DocumentService 实例。
func NewDocumentService(blobs storage.BlobStore, indexer indexing.Client, submissions repository.SubmissionRepository, layout Layout) DocumentService {
	return &documentService{
		blobs:       blobs,
		indexer:     indexer,
		submissions: submissions,
		layout:      layout,
	}
}

// List 列出班级下某个角色的全部文档。
func (s *documentService) List(ctx context.Context, classID string, role model.Role) ([]model.Document, error) {
	if classID == "" {
		return nil, apperr.Validation("List", "班级 ID 不能为空")
	}
	return listDocuments(ctx, s.blobs, s.layout, role, classID)
}

// URL 生成文档的临时访问链接。
func (s *documentService) URL(ctx context.Context, doc model.Document) (string, error) {
	if doc.IsZero() {
		return "", apperr.Validation("URL", "未选择文档")
	}
	url, err := s.blobs.PresignedURL(ctx, s.layout.Bucket(doc.Role), doc.Key(), s.layout.PresignExpiry)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return "", apperr.Wrap(apperr.KindNotFound, "URL", err, "文件不存在: "+doc.Name)
	}
	if err != nil {
		return "", apperr.Wrap(apperr.KindBlobRead, "URL", err, "生成访问链接失败")
	}
	return url, nil
}

// Delete 删除文档对象，并尽力清理索引与作业记录。
// 只有对象删除失败才算删除失败，其余副作用失败只作为警告返回。
func (s *documentService) Delete(ctx context.Context, doc model.Document, session model.Session) (*DeleteResult, error) {
	const op = "Delete"
	if doc.IsZero() {
		return nil, apperr.Validation(op, "未选择文档")
	}

	bucket := s.layout.Bucket(doc.Role)
	if err := s.blobs.Remove(ctx, bucket, doc.Key()); err != nil {
		log.Errorf("[DocumentService] 删除文件失败, bucket: %s, key: %s, error: %v", bucket, doc.Key(), err)
		blobErr := apperr.Wrap(apperr.KindBlobDelete, op, err, "删除文件失败")
		return nil, apperr.Wrap(apperr.KindDelete, op, blobErr, "删除文件失败: "+doc.Name)
	}
	log.Infof("[DocumentService] 文件已删除, bucket: %s, key: %s", bucket, doc.Key())

	res := &DeleteResult{
		Document:       doc,
		ClearSelection: session.Selects(doc),
	}

	if doc.Role == model.RoleTeacher {
		if err := s.indexer.Delete(ctx, doc.ID()); err != nil {
			log.Warnf("[DocumentService] 删除索引失败（忽略）, doc: %s, error: %v", doc.ID(), err)
			res.Warnings = append(res.Warnings, fmt.Sprintf("索引删除失败: %s", indexing.Detail(err)))
		} else {
			res.IndexRemoved = true
		}
	}
	if doc.Role == model.RoleStudent && s.submissions != nil {
		if err := s.submissions.Delete(doc.OwnerScope, doc.Name); err != nil {
			log.Warnf("[DocumentService] 删除作业记录失败（忽略）, doc: %s, error: %v", doc.Key(), err)
			res.Warnings = append(res.Warnings, "作业记录删除失败")
		}
	}

	listing, err := listDocuments(ctx, s.blobs, s.layout, doc.Role, doc.OwnerScope)
	if err != nil {
		log.Warnf("[DocumentService] 刷新文件列表失败, class: %s, error: %v", doc.OwnerScope, err)
		res.Warnings = append(res.Warnings, "文件列表刷新失败")
		listing = []model.Document{}
	}
	res.Listing = listing
	return res, nil
}
