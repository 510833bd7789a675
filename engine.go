package relay_sdk

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/cydxin/relay-sdk/middleware"
	model "github.com/cydxin/relay-sdk/models"
	"github.com/cydxin/relay-sdk/service"
)

// DefaultRoomName 未显式指定房间时使用的房间名（与既有部署保持一致）
const DefaultRoomName = "chat-room"

// RelayEngine 中继引擎：按名字懒加载房间 actor，房间之间互不共享状态。
type RelayEngine struct {
	config *Config

	KeyService  *service.KeyService
	UserService *service.UserService
	AuthService *service.AuthService

	mu    sync.Mutex
	rooms map[string]*RoomActor
}

var (
	Instance *RelayEngine
	once     sync.Once
)

// NewEngine 创建实例
// 使用选项模式传入配置，Option回调
func NewEngine(opts ...Option) *RelayEngine {
	once.Do(func() {
		c := &Config{
			TablePrefix:       "relay_", // Default
			AdminEmail:        DefaultAdminEmail,
			SeenTimeout:       60 * time.Second,
			KeyRotateInterval: service.DefaultRotateInterval,
			ForbiddenWords:    defaultForbiddenWords,
		}
		for _, opt := range opts {
			opt(c)
		}

		if c.Debug {
			logrus.SetLevel(logrus.DebugLevel)
		}

		Instance = &RelayEngine{
			config: c,
			rooms:  make(map[string]*RoomActor),
		}

		base := &service.Service{
			DB:          c.DB,
			RDB:         c.RDB,
			TablePrefix: c.TablePrefix,
		}
		Instance.KeyService = service.NewKeyService(base, c.KeyRotateInterval)
		Instance.UserService = service.NewUserService(base)
		Instance.AuthService = service.NewAuthService(c.RDB, c.AdminEmail)

		// 迁移表
		if err := Instance.AutoMigrate(); err != nil {
			logrus.Errorf("AutoMigrate failed: %v", err)
		}
	})

	return Instance
}

func (e *RelayEngine) AutoMigrate() error {
	db := e.config.DB
	if db == nil {
		return fmt.Errorf("database not configured")
	}
	logrus.Info("AutoMigrate...")
	return db.AutoMigrate(
		&model.RoomKey{},
		&model.User{},
		&model.Announcement{},
	)
}

// Room 取（或创建）一个房间 actor。
// 首次访问时加载/生成房间密钥对——失败即房间不可用（密钥是服务连接的前提）。
func (e *RelayEngine) Room(name string) (*RoomActor, error) {
	if name == "" {
		name = DefaultRoomName
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if room, ok := e.rooms[name]; ok {
		return room, nil
	}

	kp, err := e.KeyService.Ensure(context.Background(), name)
	if err != nil {
		return nil, fmt.Errorf("init room %q: %w", name, err)
	}

	room := newRoomActor(name, e.config, e.KeyService, kp)
	e.rooms[name] = room
	go room.run()
	return room, nil
}

// ServeWS 处理 WebSocket 请求，升级后把连接交给对应房间。
func (e *RelayEngine) ServeWS(w http.ResponseWriter, r *http.Request, roomName string) {
	room, err := e.Room(roomName)
	if err != nil {
		logrus.Errorf("room unavailable: %v", err)
		http.Error(w, "room unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Errorf("upgrade: %v", err)
		return
	}

	client := &Client{
		room: room,
		conn: conn,
		send: make(chan []byte, 256),
	}
	room.accept(client)
}

// GinAdminAuthMiddleware 返回配置好的管理端鉴权中间件。
//
// 使用示例:
//
//	engine := relay_sdk.NewEngine(...)
//	admin := r.Group("/api/admin")
//	admin.Use(engine.GinAdminAuthMiddleware(nil))
func (e *RelayEngine) GinAdminAuthMiddleware(opt *middleware.AuthOptions) gin.HandlerFunc {
	return middleware.GinAdminAuthMiddleware(e.AuthService, opt)
}
