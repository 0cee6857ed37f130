// Package database 负责初始化目录库（MySQL）与 Redis 连接。
package database

import (
	"classdoc-go/internal/config"
	"classdoc-go/internal/model"
	"classdoc-go/pkg/log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitMySQL 初始化 MySQL 数据库连接，并按配置同步表结构。
func InitMySQL(cfg config.MySQLConfig) {
	var err error
	DB, err = gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatal("failed to connect database", err)
	}

	// 配置连接池
	sqlDB, err := DB.DB()
	if err != nil {
		log.Fatal("failed to get sql.DB", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if cfg.AutoMigrate {
		if err := AutoMigrate(DB); err != nil {
			log.Fatal("failed to migrate catalog tables", err)
		}
	}

	log.Info("MySQL database connected successfully")
}

// AutoMigrate 创建或更新目录库中的表。
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.Class{}, &model.StudentSubmission{}, &model.EvaluationRecord{})
}
