// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"classdoc-go/internal/config"
	"classdoc-go/pkg/database"
	"classdoc-go/pkg/log"
	"classdoc-go/pkg/tasks"

	"github.com/segmentio/kafka-go"
)

// TaskProcessor defines the interface for any service that can process a task.
// This decouples the Kafka consumer from the concrete pipeline implementation.
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.EvaluationRecordTask) error
}

var producer *kafka.Writer

// InitProducer 初始化 Kafka 生产者。
func InitProducer(cfg config.KafkaConfig) {
	producer = &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.Hash{},
	}
	log.Info("Kafka 生产者初始化成功")
}

// CloseProducer 关闭生产者并刷新缓冲的消息。
func CloseProducer() {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		log.Errorf("关闭 Kafka 生产者失败: %v", err)
	}
}

// ProduceEvaluationTask 发送一次评分结果到 Kafka。
// 以 参考文件+问题 作为消息键，同一组结果落在同一分区，保证按顺序整体替换。
func ProduceEvaluationTask(ctx context.Context, task tasks.EvaluationRecordTask) error {
	if producer == nil {
		return errors.New("kafka producer not initialized")
	}
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return producer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.ClassID + "/" + task.ReferenceFile + "|" + task.Question),
		Value: taskBytes,
	})
}

// Publisher 将 ProduceEvaluationTask 适配为服务层可注入的接口实现。
type Publisher struct{}

// PublishEvaluationRecord implements service.EvaluationPublisher.
func (Publisher) PublishEvaluationRecord(ctx context.Context, task tasks.EvaluationRecordTask) error {
	return ProduceEvaluationTask(ctx, task)
}

// StartConsumer 启动一个 Kafka 消费者来处理评分记录任务，ctx 取消时退出。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, processor TaskProcessor) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	counter := NewRedisAttemptCounter(database.RDB, 24*time.Hour)

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Error("从 Kafka 读取消息失败", err)
			}
			break
		}

		var task tasks.EvaluationRecordTask
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
			// 消息格式错误，直接提交，避免阻塞队列
			if err := r.CommitMessages(ctx, m); err != nil {
				log.Errorf("提交错误消息失败: %v", err)
			}
			continue
		}

		log.Infof("开始处理评分记录任务: RunID=%s, Reference=%s, Results=%d", task.RunID, task.ReferenceFile, len(task.Results))
		if err := ProcessWithRetry(ctx, processor, counter, task, cfg.MaxAttempts, cfg.RetryBackoff); err != nil {
			if ctx.Err() != nil {
				// 未提交的消息会在下次启动时从已提交的 offset 重新消费
				break
			}
			log.Errorf("评分记录任务多次失败，提交 offset 放弃该任务: RunID=%s, Error: %v", task.RunID, err)
		} else {
			log.Infof("评分记录任务处理成功: RunID=%s", task.RunID)
		}
		if err := r.CommitMessages(ctx, m); err != nil {
			log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
		}
	}

	if err := r.Close(); err != nil {
		log.Errorf("关闭 Kafka 消费者失败: %v", err)
	}
}
