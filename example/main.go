package main

import (
	"os"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	relay_sdk "github.com/cydxin/relay-sdk"
)

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	// .env 不存在也没关系，直接用环境变量/默认值
	_ = godotenv.Load()

	// 1. 初始化数据库连接（密钥持久化 + 登录凭据表）
	dsn := env("MYSQL_DSN",
		"root:password@tcp(127.0.0.1:3306)/relay_db?charset=utf8mb4&parseTime=True&loc=Local")
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		logrus.Fatal("数据库连接失败: ", err)
	}

	// 2. Redis（可选：配置后登录签发的 token 支持注销）
	var rdb *redis.Client
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr})
	}

	// 3. 初始化 Relay Engine（单例模式，全局只需调用一次）
	engine := relay_sdk.NewEngine(
		relay_sdk.WithDB(db),
		relay_sdk.WithRDB(rdb),
		relay_sdk.WithAdminEmail(env("ADMIN_EMAIL", relay_sdk.DefaultAdminEmail)),
		relay_sdk.WithDebug(os.Getenv("RELAY_DEBUG") == "1"),
	)

	// 4. 创建 Gin 路由
	r := gin.Default()

	relay_sdk.RegisterSwagger(r, "/swagger/*any")

	// WebSocket 连接路由
	// 客户端连接：wss://host/ws?room=chat-room
	r.GET("/ws", func(c *gin.Context) {
		engine.ServeWS(c.Writer, c.Request, c.Query("room"))
	})

	// 登录（外部凭据存储）
	r.POST("/api/login", engine.GinHandleLogin)

	// 管理端接口
	admin := r.Group("/api/admin")
	admin.Use(engine.GinAdminAuthMiddleware(nil))
	{
		admin.GET("/channels", engine.GinHandleListChannels)
		admin.DELETE("/channels/:id", engine.GinHandleDeleteChannel)
		admin.GET("/channels/:id/messages", engine.GinHandleListMessages)
		admin.DELETE("/channels/:id/messages/:mid", engine.GinHandleDeleteMessage)
		admin.DELETE("/channels/:id/messages", engine.GinHandleClearMessages)
		admin.POST("/announcements", engine.GinHandleCreateAnnouncement)
		admin.GET("/violations", engine.GinHandleListViolations)
		admin.PUT("/violations/:id", engine.GinHandleProcessViolation)
	}

	if err := r.Run(env("LISTEN_ADDR", ":8080")); err != nil {
		logrus.Fatal(err)
	}
}
