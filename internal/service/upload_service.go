package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"classdoc-go/internal/apperr"
	"classdoc-go/internal/config"
	"classdoc-go/internal/model"
	"classdoc-go/internal/repository"
	"classdoc-go/internal/saga"
	"classdoc-go/pkg/indexing"
	"classdoc-go/pkg/log"
	"classdoc-go/pkg/storage"
)

// 上传 saga 的步骤名。
const (
	StepWriteBlob        = "write-blob"
	StepIndex            = "index"
	StepRecordSubmission = "record-submission"
)

const lockPollInterval = 100 * time.Millisecond

// UploadInput 是一次上传请求。Size 为调用方声明的大小，<=0 表示未知。
type UploadInput struct {
	ClassID     string
	Role        model.Role
	FileName    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// UploadResult 是上传成功后的文档及刷新后的同角色列表。
type UploadResult struct {
	Document model.Document   `json:"document"`
	Indexed  bool             `json:"indexed"`
	Listing  []model.Document `json:"listing"`
}

// UploadService 接口定义了文件上传相关的业务操作。
type UploadService interface {
	Upload(ctx context.Context, in UploadInput) (*UploadResult, error)
}

type uploadService struct {
	blobs       storage.BlobStore
	indexer     indexing.Client
	submissions repository.SubmissionRepository
	locks       repository.LockRepository
	layout      Layout
	cfg         config.UploadConfig
}

// NewUploadService 创建一个新的 UploadService 实例。
func NewUploadService(blobs storage.BlobStore, indexer indexing.Client, submissions repository.SubmissionRepository, locks repository.LockRepository, layout Layout, cfg config.UploadConfig) UploadService {
	return &uploadService{
		blobs:       blobs,
		indexer:     indexer,
		submissions: submissions,
		locks:       locks,
		layout:      layout,
		cfg:         cfg,
	}
}

// Upload 校验输入后以 saga 的形式写入对象存储、提交索引、写入作业记录。
// 任何一步失败时，已写入的对象会被删除，调用方看到的是失败步骤的错误。
func (s *uploadService) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	const op = "Upload"
	content, err := s.validate(in)
	if err != nil {
		log.Warnf("[UploadService] 上传参数校验失败, class: %s, file: %s, error: %v", in.ClassID, in.FileName, err)
		return nil, err
	}

	doc := model.Document{
		OwnerScope:   in.ClassID,
		Name:         in.FileName,
		Role:         in.Role,
		Size:         int64(len(content)),
		LastModified: model.LocalTime(time.Now()),
	}
	bucket := s.layout.Bucket(in.Role)
	lockKey := bucket + "/" + doc.Key()

	token, err := s.acquire(ctx, lockKey)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := s.locks.Release(context.WithoutCancel(ctx), lockKey, token); err != nil {
			log.Warnf("[UploadService] 释放上传锁失败, key: %s, error: %v", lockKey, err)
		}
	}()

	log.Infof("[UploadService] 开始上传, bucket: %s, key: %s, size: %d", bucket, doc.Key(), doc.Size)
	indexed := false
	submitted := false
	shouldIndex := in.Role == model.RoleTeacher || s.cfg.IndexStudentUploads

	sg := saga.New("Upload").
		Add(saga.Step{
			Name: StepWriteBlob,
			Do: func(ctx context.Context) error {
				err := s.blobs.Put(ctx, bucket, doc.Key(), bytes.NewReader(content), doc.Size, "application/pdf")
				if errors.Is(err, storage.ErrObjectExists) {
					return apperr.Wrap(apperr.KindBlobWrite, op, err, "同名文件已存在: "+doc.Name)
				}
				if err != nil {
					return apperr.Wrap(apperr.KindBlobWrite, op, err, "文件写入失败")
				}
				return nil
			},
			Compensate: func(ctx context.Context) error {
				return s.blobs.Remove(ctx, bucket, doc.Key())
			},
		}).
		Add(saga.Step{
			Name: StepIndex,
			When: func() bool { return shouldIndex },
			Do: func(ctx context.Context) error {
				status, err := s.indexer.Status(ctx, doc.ID())
				if err != nil {
					return apperr.Wrap(apperr.KindIndexing, op, err, "无法查询文档处理状态: "+indexing.Detail(err))
				}
				if status.IsProcessed {
					log.Infof("[UploadService] 文档已处理，跳过提交索引, key: %s", doc.Key())
					indexed = true
					return nil
				}
				err = s.indexer.Submit(ctx, indexing.SubmitRequest{
					FileName:  doc.Name,
					Content:   content,
					IsTeacher: doc.Role == model.RoleTeacher,
					ClassID:   doc.OwnerScope,
				})
				if err != nil {
					return apperr.Wrap(apperr.KindIndexing, op, err, indexing.Detail(err))
				}
				indexed = true
				submitted = true
				return nil
			},
			// 只撤销本次提交的索引，之前已存在的索引条目保持不变
			Compensate: func(ctx context.Context) error {
				if !submitted {
					return nil
				}
				return s.indexer.Delete(ctx, doc.ID())
			},
		}).
		Add(saga.Step{
			Name: StepRecordSubmission,
			When: func() bool { return in.Role == model.RoleStudent && s.submissions != nil },
			Do: func(ctx context.Context) error {
				status := model.SubmissionUploaded
				if indexed {
					status = model.SubmissionIndexed
				}
				err := s.submissions.Create(&model.StudentSubmission{
					ClassID:  doc.OwnerScope,
					FileName: doc.Name,
					FilePath: doc.Key(),
					Status:   status,
				})
				if err != nil {
					return apperr.Wrap(apperr.KindCatalog, op, err, "写入作业记录失败")
				}
				return nil
			},
		})

	res := sg.Run(ctx)
	if !res.OK() {
		log.Errorw("[UploadService] 上传失败", "key", doc.Key(), "step", res.FailedStep, "compensated", res.Compensated, "error", res.Err)
		return nil, res.Err
	}

	listing, err := listDocuments(ctx, s.blobs, s.layout, in.Role, in.ClassID)
	if err != nil {
		// 上传本身已成功，列表刷新失败不回滚
		log.Warnf("[UploadService] 刷新文件列表失败, class: %s, error: %v", in.ClassID, err)
		listing = []model.Document{doc}
	}
	for _, d := range listing {
		if d.Same(doc) {
			doc = d
			break
		}
	}
	log.Infow("[UploadService] 上传完成", "key", doc.Key(), "role", doc.Role, "indexed", indexed)
	return &UploadResult{Document: doc, Indexed: indexed, Listing: listing}, nil
}

// validate 在任何写入之前完成全部校验，并把内容读入内存。
func (s *uploadService) validate(in UploadInput) ([]byte, error) {
	const op = "Upload"
	if strings.TrimSpace(in.ClassID) == "" {
		return nil, apperr.Validation(op, "班级 ID 不能为空")
	}
	if in.Role != model.RoleTeacher && in.Role != model.RoleStudent {
		return nil, apperr.Validation(op, "未知的文档角色: %s", in.Role)
	}
	if err := validateFileName(in.FileName); err != nil {
		return nil, err
	}
	if !s.allowedType(in.ContentType) {
		return nil, apperr.Validation(op, "仅支持 PDF 文件，收到: %s", in.ContentType)
	}
	if in.Size > s.cfg.MaxFileSize {
		return nil, apperr.Validation(op, "文件大小超过限制: %d > %d", in.Size, s.cfg.MaxFileSize)
	}
	if in.Content == nil {
		return nil, apperr.Validation(op, "文件内容为空")
	}

	content, err := io.ReadAll(io.LimitReader(in.Content, s.cfg.MaxFileSize+1))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, op, err, "读取上传内容失败")
	}
	if int64(len(content)) > s.cfg.MaxFileSize {
		return nil, apperr.Validation(op, "文件大小超过限制: %d 字节", s.cfg.MaxFileSize)
	}
	if len(content) == 0 {
		return nil, apperr.Validation(op, "文件内容为空")
	}
	if http.DetectContentType(content) != "application/pdf" {
		return nil, apperr.Validation(op, "文件内容不是有效的 PDF")
	}
	return content, nil
}

func (s *uploadService) allowedType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	for _, t := range s.cfg.AllowedTypes {
		if strings.EqualFold(t, mediaType) {
			return true
		}
	}
	return false
}

// acquire 在 LockWait 内轮询获取按对象键的上传锁。
func (s *uploadService) acquire(ctx context.Context, key string) (string, error) {
	const op = "Upload"
	deadline := time.Now().Add(s.cfg.LockWait)
	for {
		token, ok, err := s.locks.TryAcquire(ctx, key, s.cfg.LockTTL)
		if err != nil {
			log.Errorf("[UploadService] 获取上传锁失败, key: %s, error: %v", key, err)
			return "", apperr.Wrap(apperr.KindUpload, op, err, "获取上传锁失败")
		}
		if ok {
			return token, nil
		}
		if !time.Now().Before(deadline) {
			log.Warnf("[UploadService] 同名文件正在上传, key: %s", key)
			return "", apperr.New(apperr.KindUpload, op, "同名文件正在上传，请稍后重试")
		}
		select {
		case <-ctx.Done():
			return "", apperr.Wrap(apperr.KindUpload, op, ctx.Err(), "上传已取消")
		case <-time.After(lockPollInterval):
		}
	}
}

// validateFileName 拒绝空名、路径分隔符与隐藏文件名，保证对象键只有一层。
func validateFileName(name string) error {
	const op = "Upload"
	switch {
	case strings.TrimSpace(name) == "":
		return apperr.Validation(op, "文件名不能为空")
	case strings.ContainsAny(name, `/\`):
		return apperr.Validation(op, "文件名不能包含路径分隔符: %s", name)
	case strings.HasPrefix(name, "."):
		return apperr.Validation(op, "文件名不合法: %s", name)
	case len(name) > 255:
		return apperr.Validation(op, "文件名过长")
	}
	return nil
}
