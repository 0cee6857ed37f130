// Package main 是应用程序的入口点。
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"classdoc-go/internal/apperr"
	"classdoc-go/internal/config"
	"classdoc-go/internal/handler"
	"classdoc-go/internal/middleware"
	"classdoc-go/internal/model"
	"classdoc-go/internal/pipeline"
	"classdoc-go/internal/repository"
	"classdoc-go/internal/service"
	"classdoc-go/pkg/database"
	"classdoc-go/pkg/evaluation"
	"classdoc-go/pkg/indexing"
	"classdoc-go/pkg/kafka"
	"classdoc-go/pkg/log"
	"classdoc-go/pkg/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 初始化目录库、Redis、对象存储与 Kafka
	database.InitMySQL(cfg.Database.MySQL)
	database.InitRedis(cfg.Database.Redis)
	storage.InitMinIO(cfg.MinIO)
	kafka.InitProducer(cfg.Kafka)
	defer kafka.CloseProducer()

	// 4. 初始化 Repository
	classRepo := repository.NewClassRepository(database.DB)
	submissionRepo := repository.NewSubmissionRepository(database.DB)
	evaluationRepo := repository.NewEvaluationRepository(database.DB)
	sessionRepo := repository.NewSessionRepository(database.RDB, cfg.Session.TTL)
	lockRepo := repository.NewLockRepository(database.RDB)

	// 5. 初始化外部服务客户端
	blobs := storage.NewBlobStore(storage.MinioClient)
	indexer := indexing.NewClient(cfg.Indexing)
	evaluator := evaluation.NewClient(cfg.Evaluation)
	layout := service.NewLayout(cfg.MinIO)

	// 6. 初始化 Service (依赖注入)
	processingService := service.NewProcessingService(blobs, indexer, submissionRepo, layout)
	uploadService := service.NewUploadService(blobs, indexer, submissionRepo, lockRepo, layout, cfg.Upload)
	documentService := service.NewDocumentService(blobs, indexer, submissionRepo, layout)
	classService := service.NewClassService(classRepo, submissionRepo, evaluationRepo, blobs, indexer, layout)
	queryService := service.NewQueryService(indexer, processingService)
	evaluationService := service.NewEvaluationService(evaluator, processingService, evaluationRepo, kafka.Publisher{}, model.Rubric(cfg.Rubric))
	sessionService := service.NewSessionService(sessionRepo, processingService)

	// 7. 启动后台 Kafka 消费者，评分结果异步落库
	consumerCtx, cancelConsumer := context.WithCancel(context.Background())
	defer cancelConsumer()
	processor := pipeline.NewProcessor(evaluationRepo)
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		kafka.StartConsumer(consumerCtx, cfg.Kafka, processor)
	}()

	// 7.1 导入 initfile/{classId}/ 下的参考资料，已存在则跳过
	go initSeedFiles(consumerCtx, "initfile", classService, uploadService)

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 9. 注册路由
	handler.RegisterRoutes(r, &handler.Handlers{
		Class:    handler.NewClassHandler(classService),
		Document: handler.NewDocumentHandler(classService, documentService, uploadService, processingService, sessionService),
		Query:    handler.NewQueryHandler(queryService, evaluationService, documentService, sessionService),
		Session:  handler.NewSessionHandler(sessionService),
	}, cfg.Session.Header)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}

	cancelConsumer()
	select {
	case <-consumerDone:
	case <-ctx.Done():
		log.Warnf("等待 Kafka 消费者退出超时")
	}
	log.Info("服务已优雅关闭")
}

// initSeedFiles 扫描 dir/{classId}/*.pdf，通过标准上传流程导入为参考资料（幂等）。
func initSeedFiles(ctx context.Context, dir string, classSvc service.ClassService, uploadSvc service.UploadService) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		log.Infof("initSeedFiles: 目录 '%s' 不存在或不可用，跳过初始化导入", dir)
		return
	}

	walkErr := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !strings.EqualFold(filepath.Ext(path), ".pdf") {
			return nil
		}

		classDir := filepath.Base(filepath.Dir(path))
		classID, err := strconv.ParseUint(classDir, 10, 64)
		if err != nil {
			log.Warnf("initSeedFiles: 目录名不是班级 ID，跳过: %s", path)
			return nil
		}
		if _, err := classSvc.Get(uint(classID)); err != nil {
			log.Warnf("initSeedFiles: 班级不存在，跳过: %s, err=%v", path, err)
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			log.Warnf("initSeedFiles: 打开文件失败: %s, err=%v", path, err)
			return nil
		}
		defer f.Close()

		_, err = uploadSvc.Upload(ctx, service.UploadInput{
			ClassID:     model.ClassScope(uint(classID)),
			Role:        model.RoleTeacher,
			FileName:    info.Name(),
			ContentType: "application/pdf",
			Size:        info.Size(),
			Content:     f,
		})
		switch {
		case errors.Is(err, storage.ErrObjectExists):
			log.Infof("initSeedFiles: 已存在，跳过: %s", path)
		case errors.Is(err, apperr.ErrValidation):
			log.Warnf("initSeedFiles: 文件不合法，跳过: %s, err=%v", path, err)
		case err != nil:
			log.Warnf("initSeedFiles: 导入失败: %s, err=%v", path, err)
		default:
			log.Infof("initSeedFiles: 导入完成: %s", path)
		}
		return nil
	})
	if walkErr != nil && !errors.Is(walkErr, context.Canceled) {
		log.Warnf("initSeedFiles: 遍历目录发生错误: %v", walkErr)
	}
}
