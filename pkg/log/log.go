// Package log 封装了全局的 zap SugaredLogger，业务代码只依赖这里的包级函数。
package log

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Init 之前使用 no-op logger，单元测试无需初始化。
var sugar = zap.NewNop().Sugar()

// Init 按级别、编码与输出文件构建 logger。format 为 console 时输出彩色文本，否则输出 JSON。
// outputPath 为日志文件路径，为空时只写 stdout。
func Init(level, format, outputPath string) {
	atom := zap.NewAtomicLevelAt(zap.InfoLevel)
	_ = atom.UnmarshalText([]byte(level))

	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = atom

	cfg.OutputPaths = []string{"stdout"}
	if outputPath != "" {
		if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err == nil {
			cfg.OutputPaths = append(cfg.OutputPaths, outputPath)
		}
	}

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		panic(err)
	}
	sugar = logger.Sugar()
}

func Info(msg string) { sugar.Info(msg) }

func Infof(template string, args ...interface{}) { sugar.Infof(template, args...) }

// Infow 记录带键值对的 info 日志。
func Infow(msg string, keysAndValues ...interface{}) { sugar.Infow(msg, keysAndValues...) }

func Warnf(template string, args ...interface{}) { sugar.Warnf(template, args...) }

// Warnw 记录带键值对的 warn 日志。
func Warnw(msg string, keysAndValues ...interface{}) { sugar.Warnw(msg, keysAndValues...) }

// Error 记录 error 日志，err 放在 "error" 字段。
func Error(msg string, err error) { sugar.Errorw(msg, "error", err) }

func Errorf(template string, args ...interface{}) { sugar.Errorf(template, args...) }

// Errorw 记录带键值对的 error 日志。
func Errorw(msg string, keysAndValues ...interface{}) { sugar.Errorw(msg, keysAndValues...) }

// Fatal 记录日志后退出进程。
func Fatal(msg string, err error) { sugar.Fatalw(msg, "error", err) }

func Fatalf(template string, args ...interface{}) { sugar.Fatalf(template, args...) }

// Sync 刷新缓冲，进程退出前调用。
func Sync() { _ = sugar.Sync() }
