package service

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/cydxin/relay-sdk/models"
)

const (
	rsaKeyBits = 2048

	// DefaultRotateInterval 密钥默认轮换周期
	DefaultRotateInterval = 24 * time.Hour
)

// RoomKeyPair 房间密钥对的内存形态。
// PublicDER 原样用于 server-key 帧，Private 用于握手签名。
type RoomKeyPair struct {
	Private         *rsa.PrivateKey
	PublicDER       []byte
	CreatedAt       time.Time
	RotationPending bool
}

// KeyService 房间签名密钥的生成、持久化与轮换。
// 持久化失败视为致命：没有密钥对的房间不能服务任何连接。
type KeyService struct {
	*Service

	// RotateInterval 超过该周期的密钥在房间清空后轮换
	RotateInterval time.Duration
}

func NewKeyService(base *Service, rotateInterval time.Duration) *KeyService {
	if rotateInterval <= 0 {
		rotateInterval = DefaultRotateInterval
	}
	return &KeyService{Service: base, RotateInterval: rotateInterval}
}

func (s *KeyService) ensure() error {
	if s == nil || s.DB == nil {
		return fmt.Errorf("key service requires a database")
	}
	return nil
}

// Ensure 返回房间的密钥对，不存在则生成并落库。幂等。
// 生成是一次较长的挂起点：落库前会再查一次，防止并发初始化重复生成。
func (s *KeyService) Ensure(ctx context.Context, room string) (*RoomKeyPair, error) {
	if err := s.ensure(); err != nil {
		return nil, err
	}

	if kp, err := s.load(ctx, room); err == nil {
		return kp, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	logrus.WithField("room", room).Info("generating room RSA keypair")
	priv, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, fmt.Errorf("generate rsa key: %w", err)
	}

	// 生成期间可能已有别的调用方写入，以库里的为准
	if kp, err := s.load(ctx, room); err == nil {
		return kp, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("marshal private key: %w", err)
	}

	row := models.RoomKey{
		Room:       room,
		PublicDER:  pubDER,
		PrivateDER: privDER,
	}
	if err := s.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("persist room key: %w", err)
	}

	return &RoomKeyPair{Private: priv, PublicDER: pubDER, CreatedAt: row.CreatedAt}, nil
}

// CheckRotation 密钥超龄时轮换：无活跃会话立即重建并返回新密钥对，
// 否则只置 RotationPending，返回 nil。
func (s *KeyService) CheckRotation(ctx context.Context, room string, activeSessions int) (*RoomKeyPair, error) {
	if err := s.ensure(); err != nil {
		return nil, err
	}

	var row models.RoomKey
	if err := s.DB.WithContext(ctx).Where("room = ?", room).First(&row).Error; err != nil {
		return nil, err
	}
	if time.Since(row.CreatedAt) <= s.RotateInterval {
		return nil, nil
	}

	if activeSessions == 0 {
		logrus.WithField("room", room).Info("room key expired, rotating")
		return s.regenerate(ctx, room)
	}

	if !row.RotationPending {
		if err := s.DB.WithContext(ctx).Model(&models.RoomKey{}).
			Where("room = ?", room).
			Update("rotation_pending", true).Error; err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// ConsumePendingRotation 房间完全清空后调用；有挂起轮换则重建并返回新密钥对，
// 没有挂起轮换返回 nil。
func (s *KeyService) ConsumePendingRotation(ctx context.Context, room string) (*RoomKeyPair, error) {
	if err := s.ensure(); err != nil {
		return nil, err
	}

	var row models.RoomKey
	if err := s.DB.WithContext(ctx).Where("room = ?", room).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !row.RotationPending {
		return nil, nil
	}

	logrus.WithField("room", room).Info("room empty, consuming pending key rotation")
	return s.regenerate(ctx, room)
}

func (s *KeyService) regenerate(ctx context.Context, room string) (*RoomKeyPair, error) {
	if err := s.DB.WithContext(ctx).Where("room = ?", room).Delete(&models.RoomKey{}).Error; err != nil {
		return nil, err
	}
	return s.Ensure(ctx, room)
}

func (s *KeyService) load(ctx context.Context, room string) (*RoomKeyPair, error) {
	var row models.RoomKey
	if err := s.DB.WithContext(ctx).Where("room = ?", room).First(&row).Error; err != nil {
		return nil, err
	}

	key, err := x509.ParsePKCS8PrivateKey(row.PrivateDER)
	if err != nil {
		return nil, fmt.Errorf("parse stored private key: %w", err)
	}
	priv, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("stored key for room %q is not RSA", room)
	}

	return &RoomKeyPair{
		Private:         priv,
		PublicDER:       row.PublicDER,
		CreatedAt:       row.CreatedAt,
		RotationPending: row.RotationPending,
	}, nil
}
