package relay_sdk

import (
	"crypto"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"sync"
	"testing"
)

var (
	testRSAKey  *rsa.PrivateKey
	testRSAOnce sync.Once
)

func roomRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	testRSAOnce.Do(func() {
		var err error
		testRSAKey, err = rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
	})
	return testRSAKey
}

func TestPerformHandshake_SessionKeyDerivation(t *testing.T) {
	roomKey := roomRSAKey(t)

	clientPriv, err := ecdh.P384().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("client key: %v", err)
	}
	frame := hex.EncodeToString(clientPriv.PublicKey().Bytes())

	res, err := performHandshake(frame, roomKey)
	if err != nil {
		t.Fatalf("performHandshake: %v", err)
	}

	parts := strings.SplitN(res.response, "|", 2)
	if len(parts) != 2 {
		t.Fatalf("response not in hex|signature form: %q", res.response)
	}

	serverRaw, err := hex.DecodeString(parts[0])
	if err != nil {
		t.Fatalf("server pubkey not hex: %v", err)
	}
	serverPub, err := ecdh.P384().NewPublicKey(serverRaw)
	if err != nil {
		t.Fatalf("import server pubkey: %v", err)
	}

	// 客户端侧推导同一共享密钥，会话密钥必须是 [8,40) 截断
	secret, err := clientPriv.ECDH(serverPub)
	if err != nil {
		t.Fatalf("client ECDH: %v", err)
	}
	if len(secret) != 48 {
		t.Fatalf("expected 48-byte shared secret, got %d", len(secret))
	}
	want := secret[8:40]
	if len(res.shared) != 32 {
		t.Fatalf("expected 32-byte session key, got %d", len(res.shared))
	}
	for i := range want {
		if res.shared[i] != want[i] {
			t.Fatalf("session key mismatch at byte %d", i)
		}
	}

	// 签名必须能用房间公钥验证
	sig, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("signature not base64: %v", err)
	}
	digest := sha256.Sum256(serverRaw)
	if err := rsa.VerifyPKCS1v15(&roomKey.PublicKey, crypto.SHA256, digest[:], sig); err != nil {
		t.Fatalf("signature verification failed: %v", err)
	}
}

func TestPerformHandshake_MalformedClientKey(t *testing.T) {
	roomKey := roomRSAKey(t)

	if _, err := performHandshake("not-hex!!", roomKey); err == nil {
		t.Fatalf("expected error for non-hex frame")
	}
	// hex 合法但不是合法的 P-384 点
	if _, err := performHandshake(hex.EncodeToString([]byte{1, 2, 3}), roomKey); err == nil {
		t.Fatalf("expected error for invalid curve point")
	}
}

func TestPerformHandshake_PublicKeyExportable(t *testing.T) {
	roomKey := roomRSAKey(t)

	der, err := x509.MarshalPKIXPublicKey(&roomKey.PublicKey)
	if err != nil {
		t.Fatalf("marshal SPKI: %v", err)
	}
	if _, err := x509.ParsePKIXPublicKey(der); err != nil {
		t.Fatalf("SPKI roundtrip: %v", err)
	}
}
