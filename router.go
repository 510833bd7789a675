package relay_sdk

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cydxin/relay-sdk/message"
)

// route 解密会话帧并按动作标签分发。
// 解密失败、格式不符都只记日志丢帧，连接保持。
func (r *RoomActor) route(clientID string, sess *session, frame string) {
	plain, err := openEnvelopeRaw(frame, sess.shared)
	if err != nil {
		logrus.WithField("client", clientID).Errorf("process-encrypted-message: %v", err)
		return
	}

	decoded, err := message.Decode(plain)
	if err != nil {
		logrus.WithField("client", clientID).Debugf("envelope rejected: %v", err)
		return
	}

	switch m := decoded.(type) {
	case *message.Join:
		r.handleJoin(clientID, sess, m)
	case *message.Client:
		r.handleDirect(clientID, sess, m)
	case *message.Channel:
		r.handleFanout(clientID, sess, m)
	}
}

// handleJoin 加入频道。每条会话一生只能加入一个频道，重复请求是空操作。
func (r *RoomActor) handleJoin(clientID string, sess *session, m *message.Join) {
	if m.Channel == "" || sess.channel != "" {
		return
	}

	sess.channel = m.Channel
	r.channels[m.Channel] = append(r.channels[m.Channel], clientID)
	r.lastActive[m.Channel] = time.Now()

	r.broadcastMemberList(m.Channel)
}

// handleDirect 点对点转发：目标必须与发送者同频道，
// 按目标自己的会话密钥重新加密，并带上发送者连接 ID。
func (r *RoomActor) handleDirect(clientID string, sess *session, m *message.Client) {
	if sess.channel == "" {
		return
	}

	target := r.clients[m.Target]
	if !isInChannel(target, sess.channel) {
		return
	}

	out := message.Deliver(m.Body, clientID)
	frame, err := sealEnvelope(out, target.shared)
	// 发送后不保留明文引用
	out.P = nil
	m.Body = ""
	if err != nil {
		logrus.WithField("client", clientID).Errorf("message-client: %v", err)
		return
	}
	target.client.enqueue(frame)
}

// handleFanout 频道扇出：载荷是 目标连接 ID -> 内容。
// 只处理当前与发送者同频道的目标；每个有效目标依次记台账、扫违禁词、转发。
func (r *RoomActor) handleFanout(clientID string, sess *session, m *message.Channel) {
	if sess.channel == "" {
		return
	}
	channel := sess.channel

	var valid []string
	for member := range m.Bodies {
		if isInChannel(r.clients[member], channel) {
			valid = append(valid, member)
		}
	}
	if len(valid) == 0 {
		return
	}
	r.lastActive[channel] = time.Now()

	for _, member := range valid {
		content := m.Bodies[member]

		r.chatMessages[channel] = append(r.chatMessages[channel], Message{
			ID:        uuid.NewString(),
			UserID:    clientID,
			Content:   content,
			Timestamp: time.Now(),
			Type:      "channel",
		})

		if word := matchForbidden(content, r.cfg.ForbiddenWords); word != "" {
			r.violations = append(r.violations, Violation{
				ID:            uuid.NewString(),
				ChatName:      channel,
				User:          clientID,
				Content:       content,
				ForbiddenWord: word,
				Timestamp:     time.Now(),
				Status:        ViolationUnprocessed,
			})
		}
	}

	for _, member := range valid {
		target := r.clients[member]
		out := message.Deliver(m.Bodies[member], clientID)
		frame, err := sealEnvelope(out, target.shared)
		out.P = nil
		if err != nil {
			logrus.WithField("client", clientID).Errorf("message-channel: %v", err)
			continue
		}
		target.client.enqueue(frame)
	}
}

// matchForbidden 返回内容命中的第一个违禁词，没有命中返回空串。
func matchForbidden(content string, words []string) string {
	for _, word := range words {
		if word != "" && strings.Contains(content, word) {
			return word
		}
	}
	return ""
}
