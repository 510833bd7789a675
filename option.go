package relay_sdk

import (
	"time"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// DefaultAdminEmail 固定管理员身份，管理 token 的 email 声明与其比对
const DefaultAdminEmail = "admin@admin.admin"

// 默认违禁词表（服务端路由时实际执行的那份，可用 WithForbiddenWords 覆盖）
var defaultForbiddenWords = []string{"违禁词", "敏感词", "不良内容"}

type Config struct {
	DB          *gorm.DB
	RDB         *redis.Client
	TablePrefix string

	// AdminEmail 管理端唯一放行的身份
	AdminEmail string

	// SeenTimeout 静默连接回收阈值
	SeenTimeout time.Duration

	// KeyRotateInterval 房间密钥轮换周期
	KeyRotateInterval time.Duration

	// ForbiddenWords 路由时扫描的违禁词表
	ForbiddenWords []string

	// TokenTTL 登录签发 token 的有效期（Redis 配置时生效）
	TokenTTL time.Duration

	Debug bool
}

type Option func(*Config)

func WithDB(db *gorm.DB) Option {
	return func(c *Config) {
		c.DB = db
	}
}

func WithRDB(rdb *redis.Client) Option {
	return func(c *Config) {
		c.RDB = rdb
	}
}

func WithTablePrefix(prefix string) Option {
	return func(c *Config) {
		c.TablePrefix = prefix
	}
}

func WithAdminEmail(email string) Option {
	return func(c *Config) {
		c.AdminEmail = email
	}
}

func WithSeenTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.SeenTimeout = d
	}
}

func WithKeyRotateInterval(d time.Duration) Option {
	return func(c *Config) {
		c.KeyRotateInterval = d
	}
}

// WithForbiddenWords 覆盖默认违禁词表
func WithForbiddenWords(words []string) Option {
	return func(c *Config) {
		c.ForbiddenWords = words
	}
}

func WithTokenTTL(d time.Duration) Option {
	return func(c *Config) {
		c.TokenTTL = d
	}
}

func WithDebug(debug bool) Option {
	return func(c *Config) {
		c.Debug = debug
	}
}
