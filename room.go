package relay_sdk

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cydxin/relay-sdk/message"
	"github.com/cydxin/relay-sdk/service"
)

// 违禁记录状态（一次性流转：unprocessed -> processed）
const (
	ViolationUnprocessed = "unprocessed"
	ViolationProcessed   = "processed"
)

// Message 频道消息台账条目（仅为审查保留，随频道删除而销毁）
type Message struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
}

// Violation 违禁记录
type Violation struct {
	ID            string    `json:"id"`
	ChatName      string    `json:"chatName"`
	User          string    `json:"user"`
	Content       string    `json:"content"`
	ForbiddenWord string    `json:"forbiddenWord"`
	Timestamp     time.Time `json:"timestamp"`
	Status        string    `json:"status"`
}

// Announcement 公告记录（广播只在创建时发生，不回放给后加入的成员）
type Announcement struct {
	ID        string             `json:"id"`
	Target    AnnouncementTarget `json:"target"`
	Content   string             `json:"content"`
	CreatedAt time.Time          `json:"createdAt"`
}

// AnnouncementTarget 公告目标："all" 或显式频道列表。
type AnnouncementTarget struct {
	All      bool
	Channels []string
}

func (t AnnouncementTarget) MarshalJSON() ([]byte, error) {
	if t.All {
		return json.Marshal("all")
	}
	return json.Marshal(t.Channels)
}

func (t *AnnouncementTarget) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "all" {
			return fmt.Errorf("target must be \"all\" or a channel list")
		}
		t.All = true
		t.Channels = nil
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("target must be \"all\" or a channel list")
	}
	t.All = false
	t.Channels = list
	return nil
}

// ChannelInfo 管理端频道列表条目
type ChannelInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Members    int       `json:"members"`
	LastActive time.Time `json:"lastActive"`
}

// session 一条连接在房间里的会话状态。
// CONNECTED（shared 为空）-> KEYED（shared 就绪）-> JOINED（channel 非空），
// 断开或被回收即终态。
type session struct {
	client  *Client
	seen    time.Time
	shared  []byte
	channel string
}

type inboundFrame struct {
	client *Client
	data   string
}

type handshakeEvent struct {
	clientID string
	result   *handshakeResult
	err      error
}

// RoomActor 一个房间的全部状态与事件循环。
// 所有注册表/频道/台账只被本房间的 run goroutine 触碰，房间之间互不共享。
type RoomActor struct {
	name string
	cfg  *Config
	keys *service.KeyService

	keyPair *service.RoomKeyPair

	clients  map[string]*session
	channels map[string][]string // 频道名 -> 有序成员连接 ID

	chatMessages  map[string][]Message
	violations    []Violation
	announcements []Announcement
	lastActive    map[string]time.Time

	register      chan *Client
	unregister    chan *Client
	inbound       chan inboundFrame
	handshakeDone chan handshakeEvent
	calls         chan func()
	done          chan struct{}
}

func newRoomActor(name string, cfg *Config, keys *service.KeyService, kp *service.RoomKeyPair) *RoomActor {
	return &RoomActor{
		name:          name,
		cfg:           cfg,
		keys:          keys,
		keyPair:       kp,
		clients:       make(map[string]*session),
		channels:      make(map[string][]string),
		chatMessages:  make(map[string][]Message),
		lastActive:    make(map[string]time.Time),
		register:      make(chan *Client, 8),
		unregister:    make(chan *Client, 8),
		inbound:       make(chan inboundFrame, 256),
		handshakeDone: make(chan handshakeEvent, 8),
		calls:         make(chan func(), 16),
		done:          make(chan struct{}),
	}
}

func (r *RoomActor) run() {
	ticker := time.NewTicker(r.cfg.SeenTimeout)
	defer ticker.Stop()

	for {
		select {
		case client := <-r.register:
			r.reap()
			r.addClient(client)

		case client := <-r.unregister:
			r.removeClient(client.ID)

		case frame := <-r.inbound:
			r.handleFrame(frame)

		case ev := <-r.handshakeDone:
			r.completeHandshake(ev)

		case fn := <-r.calls:
			fn()

		case <-ticker.C:
			r.reap()
			r.checkRotation()

		case <-r.done:
			return
		}
	}
}

func (r *RoomActor) stop() {
	close(r.done)
}

// call 在房间循环内同步执行 fn（管理端请求路径）。
func (r *RoomActor) call(fn func()) {
	done := make(chan struct{})
	r.calls <- func() {
		fn()
		close(done)
	}
	<-done
}

// accept 接住一条升级完成的连接：分配 ID、注册、启动读写泵。
func (r *RoomActor) accept(c *Client) {
	c.ID = uuid.NewString()
	r.register <- c
	go c.writePump()
	go c.readPump()
}

type serverHello struct {
	Type string `json:"type"`
	Key  string `json:"key"`
}

func (r *RoomActor) addClient(c *Client) {
	// ID 缺失或撞号的连接不注册，直接关闭
	if c.ID == "" || r.clients[c.ID] != nil {
		c.close()
		c.closeSend()
		return
	}

	logrus.WithFields(logrus.Fields{"room": r.name, "client": c.ID}).Debug("connection")

	r.clients[c.ID] = &session{client: c, seen: time.Now()}

	hello, err := json.Marshal(serverHello{
		Type: "server-key",
		Key:  base64.StdEncoding.EncodeToString(r.keyPair.PublicDER),
	})
	if err != nil {
		logrus.WithField("client", c.ID).Errorf("sending-public-key: %v", err)
		return
	}
	c.enqueue(string(hello))
}

func (r *RoomActor) removeClient(id string) {
	sess := r.clients[id]
	if sess == nil {
		return
	}
	logrus.WithFields(logrus.Fields{"room": r.name, "client": id}).Debug("close")

	channel := sess.channel
	delete(r.clients, id)
	sess.client.close()
	sess.client.closeSend()

	if channel != "" {
		r.leaveChannel(channel, id)
	}
}

// leaveChannel 把连接移出频道；频道空了就删（没人可通知），
// 否则把更新后的成员列表广播给剩下的成员。
func (r *RoomActor) leaveChannel(channel, id string) {
	members, ok := r.channels[channel]
	if !ok {
		return
	}
	for i, member := range members {
		if member == id {
			r.channels[channel] = append(members[:i], members[i+1:]...)
			break
		}
	}
	if len(r.channels[channel]) == 0 {
		delete(r.channels, channel)
		delete(r.lastActive, channel)
		return
	}
	r.broadcastMemberList(channel)
}

func (r *RoomActor) handleFrame(f inboundFrame) {
	sess := r.clients[f.client.ID]
	if sess == nil {
		return
	}
	sess.seen = time.Now()

	if f.data == "ping" {
		f.client.enqueue("pong")
		return
	}

	if r.cfg.Debug {
		logrus.WithFields(logrus.Fields{"room": r.name, "client": f.client.ID, "len": len(f.data)}).Debug("message")
	}

	// 密钥交换：会话尚无密钥时的首个小帧
	if sess.shared == nil {
		if len(f.data) < maxHandshakeFrame {
			r.startHandshake(f.client.ID, f.data)
		}
		return
	}

	if len(f.data) <= maxFrameSize {
		r.route(f.client.ID, sess, f.data)
	}
}

// startHandshake 把耗时的密钥交换放到独立 goroutine，完成后回投事件。
// 回投时会重新校验会话状态（挂起期间房间还在继续处理事件）。
func (r *RoomActor) startHandshake(clientID, frame string) {
	priv := r.keyPair.Private
	go func() {
		res, err := performHandshake(frame, priv)
		r.handshakeDone <- handshakeEvent{clientID: clientID, result: res, err: err}
	}()
}

func (r *RoomActor) completeHandshake(ev handshakeEvent) {
	sess := r.clients[ev.clientID]
	if sess == nil {
		return
	}
	if sess.shared != nil {
		// 挂起期间另一次交换已经完成
		return
	}
	if ev.err != nil {
		logrus.WithField("client", ev.clientID).Errorf("message-key: %v", ev.err)
		r.removeClient(ev.clientID)
		return
	}
	sess.shared = ev.result.shared
	sess.client.enqueue(ev.result.response)
}

// isInChannel 成员资格判定：连接在、密钥在、频道名完全相等。
func isInChannel(sess *session, channel string) bool {
	return sess != nil &&
		sess.client != nil &&
		sess.shared != nil &&
		sess.channel != "" &&
		sess.channel == channel
}

// broadcastMemberList 给频道每个成员发成员列表（各自排除自己）。
func (r *RoomActor) broadcastMemberList(channel string) {
	members := r.channels[channel]

	for _, member := range members {
		sess := r.clients[member]
		if !isInChannel(sess, channel) {
			continue
		}

		others := make([]string, 0, len(members)-1)
		for _, m := range members {
			if m != member {
				others = append(others, m)
			}
		}

		frame, err := sealEnvelope(message.MemberList(others), sess.shared)
		if err != nil {
			logrus.WithField("client", member).Errorf("broadcast-member-list: %v", err)
			continue
		}
		sess.client.enqueue(frame)
	}
}

// reap 两段式回收静默连接：先收集再移除，避免边扫边改注册表。
// 房间彻底清空后消费挂起的密钥轮换。
func (r *RoomActor) reap() {
	threshold := time.Now().Add(-r.cfg.SeenTimeout)

	var stale []string
	for id, sess := range r.clients {
		if sess.seen.Before(threshold) {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		logrus.WithFields(logrus.Fields{"room": r.name, "client": id}).Debug("connection-seen")
		r.removeClient(id)
	}

	if len(r.clients) == 0 && len(r.channels) == 0 {
		go r.consumePendingRotation()
	}
}

func (r *RoomActor) consumePendingRotation() {
	kp, err := r.keys.ConsumePendingRotation(context.Background(), r.name)
	if err != nil {
		logrus.WithField("room", r.name).Errorf("pending key rotation: %v", err)
		return
	}
	if kp == nil {
		return
	}
	r.calls <- func() {
		// 轮换期间有新连接进来就放弃本次结果，密钥对不能在有会话时更换
		if len(r.clients) == 0 {
			r.keyPair = kp
		}
	}
}

// checkRotation 周期性检查密钥年龄（24h 超龄：空房立刻轮换，否则挂起）。
func (r *RoomActor) checkRotation() {
	active := len(r.clients)
	go func() {
		kp, err := r.keys.CheckRotation(context.Background(), r.name, active)
		if err != nil {
			logrus.WithField("room", r.name).Errorf("key rotation check: %v", err)
			return
		}
		if kp == nil {
			return
		}
		r.calls <- func() {
			if len(r.clients) == 0 {
				r.keyPair = kp
			}
		}
	}()
}

// ---------------- 管理端操作（经 call 进入房间循环） ----------------

// ListChannels 频道列表
func (r *RoomActor) ListChannels() []ChannelInfo {
	var out []ChannelInfo
	r.call(func() {
		out = make([]ChannelInfo, 0, len(r.channels))
		for name, members := range r.channels {
			out = append(out, ChannelInfo{
				ID:         name,
				Name:       name,
				Members:    len(members),
				LastActive: r.lastActive[name],
			})
		}
	})
	return out
}

// DeleteChannel 删除频道：逐个通知成员（尽力而为）、断开连接、移除频道。
func (r *RoomActor) DeleteChannel(id string) bool {
	var ok bool
	r.call(func() {
		members, exists := r.channels[id]
		if !exists {
			return
		}
		ok = true

		notice := message.System(message.ActionChannelDeleted,
			fmt.Sprintf("频道 %q 已被管理员删除", id))

		for _, member := range members {
			sess := r.clients[member]
			if !isInChannel(sess, id) {
				continue
			}
			if frame, err := sealEnvelope(notice, sess.shared); err != nil {
				logrus.WithField("client", member).Errorf("channel-delete-notify: %v", err)
			} else {
				sess.client.enqueue(frame)
			}
			// 置空频道，连接关闭触发的注销不再广播成员列表
			sess.channel = ""
			// 只关发送缓冲：writePump 排空缓冲（含上面的通知）后写关闭帧并断连，
			// 直接 close 会在通知发出前掐断连接
			sess.client.closeSend()
		}

		delete(r.channels, id)
		delete(r.chatMessages, id)
		delete(r.lastActive, id)
	})
	return ok
}

// Messages 频道消息台账（频道从未有过消息时返回空列表）
func (r *RoomActor) Messages(id string) []Message {
	var out []Message
	r.call(func() {
		out = append([]Message(nil), r.chatMessages[id]...)
	})
	if out == nil {
		out = []Message{}
	}
	return out
}

// DeleteMessage 删除频道里的单条消息；频道无台账返回 false。
func (r *RoomActor) DeleteMessage(id, messageID string) bool {
	var ok bool
	r.call(func() {
		msgs, exists := r.chatMessages[id]
		if !exists {
			return
		}
		ok = true
		kept := msgs[:0]
		for _, m := range msgs {
			if m.ID != messageID {
				kept = append(kept, m)
			}
		}
		r.chatMessages[id] = kept
	})
	return ok
}

// ClearMessages 清空频道消息台账；频道无台账返回 false。
func (r *RoomActor) ClearMessages(id string) bool {
	var ok bool
	r.call(func() {
		if _, exists := r.chatMessages[id]; !exists {
			return
		}
		ok = true
		r.chatMessages[id] = []Message{}
	})
	return ok
}

// Announce 创建公告并同步广播给目标频道当前已加入的成员。
// 没有成员的目标频道不会有人收到（无持久化回放）。
func (r *RoomActor) Announce(target AnnouncementTarget, content string) Announcement {
	var ann Announcement
	r.call(func() {
		ann = Announcement{
			ID:        uuid.NewString(),
			Target:    target,
			Content:   content,
			CreatedAt: time.Now(),
		}
		r.announcements = append(r.announcements, ann)

		targets := target.Channels
		if target.All {
			targets = make([]string, 0, len(r.channels))
			for name := range r.channels {
				targets = append(targets, name)
			}
		}

		notice := message.System(message.ActionAnnouncement, content)
		for _, channel := range targets {
			for _, member := range r.channels[channel] {
				sess := r.clients[member]
				if !isInChannel(sess, channel) {
					continue
				}
				frame, err := sealEnvelope(notice, sess.shared)
				if err != nil {
					// 单个成员失败不影响其余投递
					logrus.WithField("client", member).Errorf("announcement-notify: %v", err)
					continue
				}
				sess.client.enqueue(frame)
			}
		}
	})
	return ann
}

// Violations 违禁记录列表
func (r *RoomActor) Violations() []Violation {
	var out []Violation
	r.call(func() {
		out = append([]Violation(nil), r.violations...)
	})
	if out == nil {
		out = []Violation{}
	}
	return out
}

// ProcessViolation 把违禁记录标记为已处理（重复调用幂等）。
func (r *RoomActor) ProcessViolation(id string) (Violation, bool) {
	var (
		out   Violation
		found bool
	)
	r.call(func() {
		for i := range r.violations {
			if r.violations[i].ID == id {
				r.violations[i].Status = ViolationProcessed
				out = r.violations[i]
				found = true
				return
			}
		}
	})
	return out, found
}
