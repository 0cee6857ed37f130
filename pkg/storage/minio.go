// Package storage 提供了与对象存储服务（MinIO）交互的功能。
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"classdoc-go/internal/config"
	"classdoc-go/pkg/log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrObjectExists 表示目标键已经存在，上传不会覆盖已有对象。
var ErrObjectExists = errors.New("object already exists")

// ErrObjectNotFound 表示目标键不存在。
var ErrObjectNotFound = errors.New("object not found")

// Object 是列举桶时返回的对象信息。
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// BlobStore 定义了编排层使用的对象存储操作。
type BlobStore interface {
	Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	List(ctx context.Context, bucket, prefix string) ([]Object, error)
	Remove(ctx context.Context, bucket, key string) error
	// RemoveMany 批量删除，返回删除失败的键及原因。
	RemoveMany(ctx context.Context, bucket string, keys []string) map[string]error
	PresignedURL(ctx context.Context, bucket, key string, expiry time.Duration) (string, error)
}

// MinioClient 是一个全局的 MinIO 客户端实例。
var MinioClient *minio.Client

// InitMinIO 初始化 MinIO 客户端并确保教师、学生两个存储桶都存在。
func InitMinIO(cfg config.MinIOConfig) {
	var err error

	// 1. 初始化 MinIO 客户端
	MinioClient, err = minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		log.Fatal("初始化 MinIO 客户端失败", err)
	}
	log.Info("MinIO 客户端初始化成功")

	// 2. 检查存储桶是否存在，如果不存在则创建
	ctx := context.Background()
	for _, bucketName := range []string{cfg.TeacherBucket, cfg.StudentBucket} {
		if err := ensureBucket(ctx, MinioClient, bucketName); err != nil {
			log.Fatal("初始化 MinIO 存储桶失败", err)
		}
	}
}

func ensureBucket(ctx context.Context, client *minio.Client, bucketName string) error {
	exists, err := client.BucketExists(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucketName, err)
	}
	if exists {
		log.Infof("存储桶 '%s' 已存在", bucketName)
		return nil
	}
	log.Infof("存储桶 '%s' 不存在，正在创建...", bucketName)
	if err := client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("make bucket %s: %w", bucketName, err)
	}
	log.Infof("存储桶 '%s' 创建成功", bucketName)
	return nil
}

type minioBlobStore struct {
	client *minio.Client
}

// NewBlobStore 基于 MinIO 客户端创建 BlobStore。
func NewBlobStore(client *minio.Client) BlobStore {
	return &minioBlobStore{client: client}
}

// Put 写入对象。目标键已存在时返回 ErrObjectExists，不覆盖。
func (s *minioBlobStore) Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error {
	exists, err := s.exists(ctx, bucket, key)
	if err != nil {
		return fmt.Errorf("failed to stat object %s/%s: %w", bucket, key, err)
	}
	if exists {
		return fmt.Errorf("%s/%s: %w", bucket, key, ErrObjectExists)
	}

	_, err = s.client.PutObject(ctx, bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to put object %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Get 读取整个对象到内存，PDF 大小受上传限制约束。
func (s *minioBlobStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	object, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s/%s: %w", bucket, key, err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, fmt.Errorf("%s/%s: %w", bucket, key, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("failed to read object %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// List 递归列举前缀下的所有对象。
func (s *minioBlobStore) List(ctx context.Context, bucket, prefix string) ([]Object, error) {
	var objects []Object
	for obj := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list %s/%s: %w", bucket, prefix, obj.Err)
		}
		objects = append(objects, Object{Key: obj.Key, Size: obj.Size, LastModified: obj.LastModified})
	}
	return objects, nil
}

// Remove 删除单个对象。
func (s *minioBlobStore) Remove(ctx context.Context, bucket, key string) error {
	if err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove object %s/%s: %w", bucket, key, err)
	}
	return nil
}

// RemoveMany 使用 RemoveObjects 批量删除。
func (s *minioBlobStore) RemoveMany(ctx context.Context, bucket string, keys []string) map[string]error {
	failed := make(map[string]error)
	if len(keys) == 0 {
		return failed
	}

	objectsCh := make(chan minio.ObjectInfo, len(keys))
	for _, key := range keys {
		objectsCh <- minio.ObjectInfo{Key: key}
	}
	close(objectsCh)

	for rErr := range s.client.RemoveObjects(ctx, bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		failed[rErr.ObjectName] = rErr.Err
	}
	return failed
}

// PresignedURL 生成临时访问链接，用于前端直接查看 PDF。对象不存在时返回 ErrObjectNotFound。
func (s *minioBlobStore) PresignedURL(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
	exists, err := s.exists(ctx, bucket, key)
	if err != nil {
		return "", fmt.Errorf("failed to stat object %s/%s: %w", bucket, key, err)
	}
	if !exists {
		return "", fmt.Errorf("%s/%s: %w", bucket, key, ErrObjectNotFound)
	}
	presignedURL, err := s.client.PresignedGetObject(ctx, bucket, key, expiry, nil)
	if err != nil {
		log.Errorf("Error generating presigned URL: %s", err)
		return "", err
	}
	return presignedURL.String(), nil
}

func (s *minioBlobStore) exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
