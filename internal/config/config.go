// Package config 负责加载和管理应用程序的配置。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server     ServerConfig       `mapstructure:"server"`
	Database   DatabaseConfig     `mapstructure:"database"`
	Log        LogConfig          `mapstructure:"log"`
	Kafka      KafkaConfig        `mapstructure:"kafka"`
	MinIO      MinIOConfig        `mapstructure:"minio"`
	Indexing   IndexingConfig     `mapstructure:"indexing"`
	Evaluation EvaluationConfig   `mapstructure:"evaluation"`
	Upload     UploadConfig       `mapstructure:"upload"`
	Session    SessionConfig      `mapstructure:"session"`
	Rubric     map[string]float64 `mapstructure:"rubric"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL（目录库）的配置。
type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Brokers      string        `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	GroupID      string        `mapstructure:"group_id"`
	MaxAttempts  int64         `mapstructure:"max_attempts"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
// 教师资料与学生作业分别存放在两个桶中，对象键为 {classId}/{fileName}。
type MinIOConfig struct {
	Endpoint        string        `mapstructure:"endpoint"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	UseSSL          bool          `mapstructure:"use_ssl"`
	TeacherBucket   string        `mapstructure:"teacher_bucket"`
	StudentBucket   string        `mapstructure:"student_bucket"`
	PresignExpiry   time.Duration `mapstructure:"presign_expiry"`
}

// IndexingConfig 存储外部文档索引/分析服务的配置。
// TeacherEndpoint / StudentEndpoint 为空时统一走 ProcessEndpoint。
type IndexingConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	StatusEndpoint  string        `mapstructure:"status_endpoint"`
	ProcessEndpoint string        `mapstructure:"process_endpoint"`
	TeacherEndpoint string        `mapstructure:"teacher_endpoint"`
	StudentEndpoint string        `mapstructure:"student_endpoint"`
	QueryEndpoint   string        `mapstructure:"query_endpoint"`
	CompareEndpoint string        `mapstructure:"compare_endpoint"`
	DeleteEndpoint  string        `mapstructure:"delete_endpoint"`
}

// EvaluationConfig 存储自动评分服务的配置。
type EvaluationConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	EvaluateEndpoint string        `mapstructure:"evaluate_endpoint"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// UploadConfig 存储上传校验与并发控制的配置。
type UploadConfig struct {
	MaxFileSize         int64         `mapstructure:"max_file_size"`
	AllowedTypes        []string      `mapstructure:"allowed_types"`
	LockTTL             time.Duration `mapstructure:"lock_ttl"`
	LockWait            time.Duration `mapstructure:"lock_wait"`
	IndexStudentUploads bool          `mapstructure:"index_student_uploads"`
}

// SessionConfig 存储会话（当前选中文档、问题、回答）的配置。
type SessionConfig struct {
	Header string        `mapstructure:"header"`
	TTL    time.Duration `mapstructure:"ttl"`
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
// 配置文件不存在时使用默认值，环境变量可覆盖任意键（如 MINIO_ENDPOINT）。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = *cfg
}

// Load 读取配置文件并返回解析后的配置，不修改全局变量。
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout", "5s")

	// 所有键都需要默认值，AutomaticEnv 才能在 Unmarshal 时覆盖它们
	v.SetDefault("database.mysql.dsn", "")
	v.SetDefault("database.mysql.max_idle_conns", 10)
	v.SetDefault("database.mysql.max_open_conns", 100)
	v.SetDefault("database.mysql.conn_max_lifetime", "1h")
	v.SetDefault("database.mysql.auto_migrate", true)
	v.SetDefault("database.redis.addr", "localhost:6379")
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "")

	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "evaluation-records")
	v.SetDefault("kafka.group_id", "classdoc-go-consumer")
	v.SetDefault("kafka.max_attempts", 3)
	v.SetDefault("kafka.retry_backoff", time.Second)

	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.access_key_id", "")
	v.SetDefault("minio.secret_access_key", "")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.teacher_bucket", "teacher-resources")
	v.SetDefault("minio.student_bucket", "student-submissions")
	v.SetDefault("minio.presign_expiry", "1h")

	v.SetDefault("indexing.base_url", "http://localhost:8000")
	v.SetDefault("indexing.timeout", "120s")
	v.SetDefault("indexing.status_endpoint", "/status")
	v.SetDefault("indexing.process_endpoint", "/process-pdf")
	v.SetDefault("indexing.teacher_endpoint", "")
	v.SetDefault("indexing.student_endpoint", "")
	v.SetDefault("indexing.query_endpoint", "/query")
	v.SetDefault("indexing.compare_endpoint", "/compare-pdfs")
	v.SetDefault("indexing.delete_endpoint", "/delete")

	v.SetDefault("evaluation.base_url", "http://localhost:5000")
	v.SetDefault("evaluation.evaluate_endpoint", "/evaluation/evaluate-answer")
	v.SetDefault("evaluation.timeout", "180s")

	v.SetDefault("upload.max_file_size", 5*1024*1024)
	v.SetDefault("upload.allowed_types", []string{"application/pdf"})
	v.SetDefault("upload.lock_ttl", "2m")
	v.SetDefault("upload.lock_wait", "5s")
	v.SetDefault("upload.index_student_uploads", false)

	v.SetDefault("session.header", "X-Session-ID")
	v.SetDefault("session.ttl", "168h")

	v.SetDefault("rubric", map[string]float64{
		"content_accuracy": 40,
		"completeness":     30,
		"key_concepts":     20,
		"organization":     10,
	})
}
