package relay_sdk

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// Time 写入超时时间
	writeWait = 10 * time.Second

	// Send ping 间隔（保活 NAT/代理，存活判定另由 reaper 负责）
	pingPeriod = 54 * time.Second

	// Maximum 握手后允许的信封帧大小，超出的帧静默丢弃
	maxFrameSize = 8 * 1024 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for SDK
	},
}

// Client 代表一条具体 websocket 连接。
// 会话状态（seen/会话密钥/频道）归属房间 actor，这里只有连接本身和发送缓冲。
type Client struct {
	room *RoomActor

	// 🔗链接
	conn *websocket.Conn

	// 消息缓冲区
	send chan []byte

	// ID 连接标识，注册时生成
	ID string

	closeOnce sync.Once
	sendOnce  sync.Once

	// sendClosed 只在房间 goroutine 上读写（enqueue/closeSend 都从房间循环进入）
	sendClosed bool
}

// enqueue 非阻塞投递一帧；缓冲满则丢弃，避免慢连接拖住房间循环。
// 缓冲已关（连接在收尾）时同样丢弃。
func (c *Client) enqueue(msg string) {
	if c.sendClosed {
		return
	}
	select {
	case c.send <- []byte(msg):
	default:
		logrus.WithField("client", c.ID).Debug("send buffer full, frame dropped")
	}
}

// close 关闭底层连接（幂等；测试里 conn 可以为 nil）
func (c *Client) close() {
	c.closeOnce.Do(func() {
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// closeSend 关闭发送缓冲，让 writePump 排空后退出（幂等）
func (c *Client) closeSend() {
	c.sendOnce.Do(func() {
		c.sendClosed = true
		close(c.send)
	})
}

// readPump 将消息从 client (websocket 连接) 交给房间 actor。
func (c *Client) readPump() {
	defer func() {
		c.room.unregister <- c
		c.close()
	}()
	// 读上限给信封上限留 4KiB 余量：余量内的超限帧由路由层按长度静默丢弃，
	// 再大的帧读取直接出错、连接关闭（不为无界输入保留缓冲）
	c.conn.SetReadLimit(maxFrameSize + 4096)
	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithField("client", c.ID).Debugf("readPump error: %v", err)
			}
			break
		}
		if mt != websocket.TextMessage {
			continue
		}
		c.room.inbound <- inboundFrame{client: c, data: string(data)}
	}
}

// writePump 将房间写给该连接的帧落到 websocket 上。
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
