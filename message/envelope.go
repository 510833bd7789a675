package message

import (
	"encoding/json"
	"fmt"
)

// 加密信封动作标签（与既有客户端的线上格式一致，不能改）
const (
	ActionJoin       = "j" // 加入频道
	ActionClient     = "c" // 点对点消息（上行=发送，下行=投递）
	ActionChannel    = "w" // 频道扇出消息
	ActionMemberList = "l" // 下行：成员列表

	// 系统下行动作（管理端触发）
	ActionChannelDeleted = "channel_deleted"
	ActionAnnouncement   = "announcement"
)

// Envelope 解密后的信封原始形态：a 为动作标签，p 为各动作自己的载荷。
// c 仅在点对点消息里出现（上行是目标连接 ID，下行是发送者连接 ID）。
type Envelope struct {
	A string          `json:"a"`
	P json.RawMessage `json:"p,omitempty"`
	C string          `json:"c,omitempty"`
}

// Join 加入频道请求，载荷是频道名。
type Join struct {
	Channel string
}

// Client 点对点消息，Body 已由发送端按目标的会话密钥之外再做端到端处理，
// 服务端只做转发，不解读内容。
type Client struct {
	Body   string
	Target string
}

// Channel 频道扇出消息：目标连接 ID -> 发给该目标的内容。
type Channel struct {
	Bodies map[string]string
}

// Decode 按动作标签把信封解成强类型载荷。
// 未知标签、缺失或类型不符的载荷一律返回错误，由调用方丢弃该帧。
func Decode(data []byte) (interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	if env.A == "" {
		return nil, fmt.Errorf("envelope missing action tag")
	}

	switch env.A {
	case ActionJoin:
		var channel string
		if err := json.Unmarshal(env.P, &channel); err != nil {
			return nil, fmt.Errorf("join payload: %w", err)
		}
		return &Join{Channel: channel}, nil

	case ActionClient:
		var body string
		if err := json.Unmarshal(env.P, &body); err != nil {
			return nil, fmt.Errorf("client payload: %w", err)
		}
		if env.C == "" {
			return nil, fmt.Errorf("client message missing target")
		}
		return &Client{Body: body, Target: env.C}, nil

	case ActionChannel:
		var bodies map[string]string
		if err := json.Unmarshal(env.P, &bodies); err != nil {
			return nil, fmt.Errorf("channel payload: %w", err)
		}
		return &Channel{Bodies: bodies}, nil
	}

	return nil, fmt.Errorf("unknown action %q", env.A)
}

// Deliver 构造下行点对点信封（c 携带发送者连接 ID）。
func Deliver(body, senderID string) *Envelope {
	p, _ := json.Marshal(body)
	return &Envelope{A: ActionClient, P: p, C: senderID}
}

// MemberList 构造下行成员列表信封。
func MemberList(members []string) *Envelope {
	p, _ := json.Marshal(members)
	return &Envelope{A: ActionMemberList, P: p}
}

// System 构造系统下行信封（channel_deleted / announcement）。
func System(action, content string) *Envelope {
	p, _ := json.Marshal(content)
	return &Envelope{A: action, P: p}
}
