package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"classdoc-go/internal/apperr"
	"classdoc-go/internal/model"
	"classdoc-go/internal/repository"
	"classdoc-go/pkg/indexing"
	"classdoc-go/pkg/log"
	"classdoc-go/pkg/storage"

	"gorm.io/gorm"
)

// ClassDeleteResult 汇总一次班级级联删除的结果。
type ClassDeleteResult struct {
	Class        model.Class `json:"class"`
	RemovedBlobs int         `json:"removedBlobs"`
	FailedBlobs  []string    `json:"failedBlobs,omitempty"`
	Warnings     []string    `json:"warnings,omitempty"`
}

// ClassService 接口定义了班级管理相关的业务操作。
type ClassService interface {
	Create(name, term, subject string) (*model.Class, error)
	List() ([]model.Class, error)
	Get(classID uint) (*model.Class, error)
	Delete(ctx context.Context, classID uint) (*ClassDeleteResult, error)
}

type classService struct {
	classes     repository.ClassRepository
	submissions repository.SubmissionRepository
	evaluations repository.EvaluationRepository
	blobs       storage.BlobStore
	indexer     indexing.Client
	layout      Layout
}

// NewClassService 创建一个新的 ClassService 实例。
func NewClassService(classes repository.ClassRepository, submissions repository.SubmissionRepository, evaluations repository.EvaluationRepository, blobs storage.BlobStore, indexer indexing.Client, layout Layout) ClassService {
	return &classService{
		classes:     classes,
		submissions: submissions,
		evaluations: evaluations,
		blobs:       blobs,
		indexer:     indexer,
		layout:      layout,
	}
}

// Create 创建一个新班级。
func (s *classService) Create(name, term, subject string) (*model.Class, error) {
	name, term, subject = strings.TrimSpace(name), strings.TrimSpace(term), strings.TrimSpace(subject)
	if name == "" || term == "" || subject == "" {
		return nil, apperr.Validation("CreateClass", "班级名称、学期和科目都不能为空")
	}
	class := &model.Class{Name: name, Term: term, Subject: subject}
	if err := s.classes.Create(class); err != nil {
		log.Errorf("[ClassService] 创建班级失败, name: %s, error: %v", name, err)
		return nil, apperr.Wrap(apperr.KindCatalog, "CreateClass", err, "创建班级失败")
	}
	log.Infof("[ClassService] 班级已创建, id: %d, name: %s", class.ID, class.Name)
	return class, nil
}

// List 返回所有班级。
func (s *classService) List() ([]model.Class, error) {
	classes, err := s.classes.FindAll()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindCatalog, "ListClasses", err, "查询班级列表失败")
	}
	return classes, nil
}

// Get 按 ID 查找班级。
func (s *classService) Get(classID uint) (*model.Class, error) {
	class, err := s.classes.FindByID(classID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "GetClass", fmt.Sprintf("班级不存在: %d", classID))
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindCatalog, "GetClass", err, "查询班级失败")
	}
	return class, nil
}

// Delete 级联删除班级：先删两个桶中的对象，再删目录库中的记录。
// 对象删除部分失败时班级记录仍会删除，不回滚，失败的键通过 DeleteError 返回。
func (s *classService) Delete(ctx context.Context, classID uint) (*ClassDeleteResult, error) {
	const op = "DeleteClass"
	class, err := s.Get(classID)
	if err != nil {
		return nil, err
	}
	scope := class.Scope()
	res := &ClassDeleteResult{Class: *class}
	var blobErrs []error

	for _, role := range []model.Role{model.RoleTeacher, model.RoleStudent} {
		bucket := s.layout.Bucket(role)
		objects, err := s.blobs.List(ctx, bucket, scope+"/")
		if err != nil {
			log.Errorf("[ClassService] 列举班级文件失败, bucket: %s, class: %s, error: %v", bucket, scope, err)
			blobErrs = append(blobErrs, fmt.Errorf("list %s: %w", bucket, err))
			res.Warnings = append(res.Warnings, fmt.Sprintf("无法列举 %s 中的文件", bucket))
			continue
		}
		keys := make([]string, 0, len(objects))
		for _, obj := range objects {
			keys = append(keys, obj.Key)
		}

		failed := s.blobs.RemoveMany(ctx, bucket, keys)
		for _, key := range keys {
			if ferr, ok := failed[key]; ok && ferr != nil {
				res.FailedBlobs = append(res.FailedBlobs, bucket+"/"+key)
				blobErrs = append(blobErrs, fmt.Errorf("%s/%s: %w", bucket, key, ferr))
				continue
			}
			res.RemovedBlobs++
			if role == model.RoleTeacher {
				doc := model.DocumentFromKey(role, key, 0, class.CreatedAt)
				if err := s.indexer.Delete(ctx, doc.ID()); err != nil {
					log.Warnf("[ClassService] 删除索引失败（忽略）, doc: %s, error: %v", doc.ID(), err)
					res.Warnings = append(res.Warnings, "索引删除失败: "+doc.Name)
				}
			}
		}
	}

	if err := s.submissions.DeleteByClass(scope); err != nil {
		log.Warnf("[ClassService] 删除作业记录失败, class: %s, error: %v", scope, err)
		res.Warnings = append(res.Warnings, "作业记录删除失败")
	}
	if err := s.evaluations.DeleteByClass(scope); err != nil {
		log.Warnf("[ClassService] 删除评分记录失败, class: %s, error: %v", scope, err)
		res.Warnings = append(res.Warnings, "评分记录删除失败")
	}
	if err := s.classes.Delete(classID); err != nil {
		log.Errorf("[ClassService] 删除班级记录失败, class: %s, error: %v", scope, err)
		return res, apperr.Wrap(apperr.KindCatalog, op, err, "删除班级记录失败")
	}

	sort.Strings(res.FailedBlobs)
	if len(blobErrs) > 0 {
		log.Errorf("[ClassService] 班级已删除，但部分文件删除失败, class: %s, failed: %d", scope, len(res.FailedBlobs))
		blobErr := apperr.Wrap(apperr.KindBlobDelete, op, errors.Join(blobErrs...), "部分文件删除失败")
		return res, apperr.Wrap(apperr.KindDelete, op, blobErr, "班级已删除，但部分文件删除失败")
	}
	log.Infof("[ClassService] 班级已删除, class: %s, removed blobs: %d", scope, res.RemovedBlobs)
	return res, nil
}
