package service

import (
	"context"

	"classdoc-go/internal/apperr"
	"classdoc-go/internal/model"
	"classdoc-go/internal/repository"
	"classdoc-go/pkg/indexing"
	"classdoc-go/pkg/log"
	"classdoc-go/pkg/storage"
)

// ProcessingService 是问答、对比、评分之前的惰性处理闸门。
type ProcessingService interface {
	// CheckStatus 每次都向索引服务查询，不做任何缓存。
	CheckStatus(ctx context.Context, name string) (model.IndexState, error)
	// EnsureIndexed 保证文档已被索引；已索引时只做一次状态查询。
	EnsureIndexed(ctx context.Context, doc model.Document) (model.IndexState, error)
}

type processingService struct {
	blobs       storage.BlobStore
	indexer     indexing.Client
	submissions repository.SubmissionRepository
	layout      Layout
}

// NewProcessingService 创建一个新的 ProcessingService 实例。
func NewProcessingService(blobs storage.BlobStore, indexer indexing.Client, submissions repository.SubmissionRepository, layout Layout) ProcessingService {
	return &processingService{
		blobs:       blobs,
		indexer:     indexer,
		submissions: submissions,
		layout:      layout,
	}
}

// CheckStatus 将索引服务的 is_processed 映射为 IndexState。
func (s *processingService) CheckStatus(ctx context.Context, name string) (model.IndexState, error) {
	status, err := s.indexer.Status(ctx, name)
	if err != nil {
		return "", apperr.Wrap(apperr.KindIndexing, "CheckStatus", err, indexing.Detail(err))
	}
	if status.IsProcessed {
		return model.IndexIndexed, nil
	}
	return model.IndexUnindexed, nil
}

// EnsureIndexed 的状态机：Unindexed -> Indexing -> Indexed | IndexFailed。
// 失败时调用方应清空当前选择，之后可再次调用重试。
func (s *processingService) EnsureIndexed(ctx context.Context, doc model.Document) (model.IndexState, error) {
	const op = "EnsureIndexed"
	if doc.IsZero() {
		return "", apperr.Validation(op, "未选择文档")
	}

	state, err := s.CheckStatus(ctx, doc.ID())
	if err != nil {
		log.Warnf("[ProcessingService] 查询处理状态失败, doc: %s, error: %v", doc.Key(), err)
		return model.IndexFailed, apperr.Wrap(apperr.KindProcessing, op, err, "无法查询文档处理状态: "+apperr.Message(err))
	}
	if state == model.IndexIndexed {
		return state, nil
	}

	log.Infow("[ProcessingService] 文档尚未处理，开始提交索引", "doc", doc.Key(), "role", doc.Role, "from", model.IndexUnindexed, "to", model.IndexIndexing)
	bucket := s.layout.Bucket(doc.Role)
	content, err := s.blobs.Get(ctx, bucket, doc.Key())
	if err != nil {
		log.Errorf("[ProcessingService] 下载文件失败, bucket: %s, key: %s, error: %v", bucket, doc.Key(), err)
		readErr := apperr.Wrap(apperr.KindBlobRead, op, err, "下载文件失败")
		return model.IndexFailed, apperr.Wrap(apperr.KindProcessing, op, readErr, "下载文件失败，无法处理文档")
	}

	err = s.indexer.Submit(ctx, indexing.SubmitRequest{
		FileName:  doc.Name,
		Content:   content,
		IsTeacher: doc.Role == model.RoleTeacher,
		ClassID:   doc.OwnerScope,
	})
	if err != nil {
		log.Warnw("[ProcessingService] 文档处理失败", "doc", doc.Key(), "from", model.IndexIndexing, "to", model.IndexFailed, "error", err)
		return model.IndexFailed, apperr.Wrap(apperr.KindProcessing, op, err, indexing.Detail(err))
	}

	if doc.Role == model.RoleStudent && s.submissions != nil {
		if err := s.submissions.UpdateStatus(doc.OwnerScope, doc.Name, model.SubmissionIndexed); err != nil {
			log.Warnf("[ProcessingService] 更新作业记录状态失败, doc: %s, error: %v", doc.Key(), err)
		}
	}
	log.Infow("[ProcessingService] 文档处理完成", "doc", doc.Key(), "from", model.IndexIndexing, "to", model.IndexIndexed)
	return model.IndexIndexed, nil
}
