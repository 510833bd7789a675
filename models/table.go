package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	prefix = "relay_"
)

// RoomKey 房间签名密钥表。
// 一个房间同一时间只允许一条记录（room 唯一索引），轮换即删除重建。
type RoomKey struct {
	ID uint64 `gorm:"primarykey"`

	Room string `gorm:"size:100;uniqueIndex;not null"` // 房间名

	// RSA-2048 签名密钥对：公钥 SPKI DER，私钥 PKCS#8 DER。
	// 公钥原样下发给客户端（server-key 帧），私钥仅服务端持有。
	PublicDER  []byte `gorm:"type:blob;not null"`
	PrivateDER []byte `gorm:"type:blob;not null"`

	// RotationPending 密钥超龄但尚有客户端在线时置位，房间清空后消费
	RotationPending bool `gorm:"default:false"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (RoomKey) TableName() string {
	return prefix + "room_key"
}

// 用户状态
const (
	UserStatusNormal = 0
	UserStatusBanned = 1
)

// User 登录凭据表（兼容 cloud-mail 的 user 表结构）。
// 历史数据使用 salt + SHA-256，Salt 为空的行按 bcrypt 校验。
type User struct {
	UserID   uint64 `gorm:"column:user_id;primarykey"`
	Email    string `gorm:"size:100;uniqueIndex;not null"` // 登录邮箱
	Password string `gorm:"size:255;not null"`             // 密码散列
	Salt     string `gorm:"size:64"`                       // 历史散列盐，新用户为空
	Status   uint8  `gorm:"type:tinyint;default:0"`        // 状态: 0-正常 1-封禁
	IsDel    uint8  `gorm:"column:is_del;type:tinyint;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (User) TableName() string {
	return prefix + "user"
}

// Announcement 公告审计表。
// 广播本身是一次性的（不回放），这里只留存记录供管理端追溯。
type Announcement struct {
	ID        string         `gorm:"primarykey;size:36"`
	Target    datatypes.JSON `gorm:"not null"` // "all" 或频道 ID 数组
	Content   string         `gorm:"size:2000;not null"`
	CreatedAt time.Time
}

func (Announcement) TableName() string {
	return prefix + "announcement"
}
