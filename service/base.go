package service

import (
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Service 基础服务，持有数据库与配置
type Service struct {
	DB          *gorm.DB
	RDB         *redis.Client
	TablePrefix string
}
