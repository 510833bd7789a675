package relay_sdk

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// 信封帧格式：base64(nonce ‖ ciphertext ‖ tag)，AES-256-GCM，96 位随机 nonce。
// 密钥是握手得到的 32 字节会话密钥，按连接各自独立。

const gcmNonceSize = 12

// sealEnvelope 用会话密钥加密一个 JSON 对象，返回文本帧。
func sealEnvelope(v interface{}, key []byte) (string, error) {
	plain, err := json.Marshal(v)
	if err != nil {
		return "", err
	}

	aead, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcmNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	sealed := aead.Seal(nonce, nonce, plain, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// openEnvelope 解密文本帧并反序列化到 v。认证失败、格式非法都返回错误。
func openEnvelope(frame string, key []byte, v interface{}) error {
	raw, err := base64.StdEncoding.DecodeString(frame)
	if err != nil {
		return fmt.Errorf("envelope not base64: %w", err)
	}
	if len(raw) < gcmNonceSize {
		return fmt.Errorf("envelope too short")
	}

	aead, err := newGCM(key)
	if err != nil {
		return err
	}

	plain, err := aead.Open(nil, raw[:gcmNonceSize], raw[gcmNonceSize:], nil)
	if err != nil {
		return fmt.Errorf("envelope decrypt: %w", err)
	}
	return json.Unmarshal(plain, v)
}

// openEnvelopeRaw 同 openEnvelope，但返回明文字节（路由层自己解码动作标签）。
func openEnvelopeRaw(frame string, key []byte) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(frame)
	if err != nil {
		return nil, fmt.Errorf("envelope not base64: %w", err)
	}
	if len(raw) < gcmNonceSize {
		return nil, fmt.Errorf("envelope too short")
	}

	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, raw[:gcmNonceSize], raw[gcmNonceSize:], nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("session key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
