package relay_sdk

import (
	"crypto"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// 握手帧大小上限：客户端首帧是 hex 编码的 P-384 公钥点
const maxHandshakeFrame = 2048

// sharedSecretWindow 会话密钥取 48 字节 ECDH 共享密钥的 [8,40) 区间。
// 这不是 KDF，是沿用既有协议的截断方式；改动会破坏与现网客户端的互通。
const (
	sharedSecretOffset = 8
	sessionKeySize     = 32
)

// handshakeResult 握手成功后的产物
type handshakeResult struct {
	// shared 32 字节会话密钥
	shared []byte
	// response 回给客户端的帧："hex(服务端临时公钥) | base64(RSA 签名)"
	response string
}

// performHandshake 执行一次 ECDH 密钥交换：
//  1. 生成 P-384 临时密钥对
//  2. 用房间 RSA 私钥对临时公钥（raw 点编码）做 PKCS#1 v1.5 / SHA-256 签名
//  3. 解析客户端 hex 公钥，派生 48 字节共享密钥，截取 [8,40) 作会话密钥
//
// 任何一步失败都返回错误，调用方应当直接断开连接。
func performHandshake(frame string, roomKey *rsa.PrivateKey) (*handshakeResult, error) {
	curve := ecdh.P384()

	eph, err := curve.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ephemeral key: %w", err)
	}
	ephPub := eph.PublicKey().Bytes()

	digest := sha256.Sum256(ephPub)
	sig, err := rsa.SignPKCS1v15(rand.Reader, roomKey, crypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("sign ephemeral key: %w", err)
	}

	clientRaw, err := hex.DecodeString(frame)
	if err != nil {
		return nil, fmt.Errorf("client key not hex: %w", err)
	}
	clientPub, err := curve.NewPublicKey(clientRaw)
	if err != nil {
		return nil, fmt.Errorf("import client key: %w", err)
	}

	secret, err := eph.ECDH(clientPub)
	if err != nil {
		return nil, fmt.Errorf("derive shared secret: %w", err)
	}
	if len(secret) < sharedSecretOffset+sessionKeySize {
		return nil, fmt.Errorf("shared secret too short: %d bytes", len(secret))
	}

	shared := make([]byte, sessionKeySize)
	copy(shared, secret[sharedSecretOffset:sharedSecretOffset+sessionKeySize])

	return &handshakeResult{
		shared:   shared,
		response: hex.EncodeToString(ephPub) + "|" + base64.StdEncoding.EncodeToString(sig),
	}, nil
}
