package crypto_util

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/scrypt"

	"wallet-custody/pkg/safe_random"
)

const (
	// DefaultScryptN 交互式解锁可接受的成本
	DefaultScryptN = 1 << 15
	scryptR        = 8
	scryptP        = 1
	scryptDKLen    = 32
	gcmNonceSize   = 12
)

var (
	ErrEmptyPassphrase = errors.New("口令不能为空")
	// ErrAuthFailed 口令错误或数据被篡改 (GCM tag 校验失败)
	ErrAuthFailed = errors.New("解密失败: 口令错误或数据损坏")
)

// EncryptedBlob 是持久化到安全存储中的密文结构。
// IV 同时作为 scrypt 的 salt，每个 blob 随机生成，互不相同。
type EncryptedBlob struct {
	CipherText string `json:"cipherText"` // base64
	IV         string `json:"iv"`         // base64
}

// String 序列化为 JSON，用于写入 keystore
func (b *EncryptedBlob) String() string {
	data, _ := json.Marshal(b)
	return string(data)
}

// ParseBlob 尝试把 keystore 中的值解析为 EncryptedBlob。
// 明文私钥 (hex) 不是 JSON，返回 false。
func ParseBlob(value string) (*EncryptedBlob, bool) {
	var b EncryptedBlob
	if err := json.Unmarshal([]byte(value), &b); err != nil {
		return nil, false
	}
	if b.CipherText == "" || b.IV == "" {
		return nil, false
	}
	if _, err := base64.StdEncoding.DecodeString(b.IV); err != nil {
		return nil, false
	}
	return &b, true
}

// PassphraseCipher 口令派生密钥 (scrypt) + AES-256-GCM
type PassphraseCipher struct {
	n int
}

// NewPassphraseCipher n 为 scrypt 成本参数，<=0 时使用默认值
func NewPassphraseCipher(n int) *PassphraseCipher {
	if n <= 0 {
		n = DefaultScryptN
	}
	return &PassphraseCipher{n: n}
}

// Encrypt 使用口令加密明文
func (c *PassphraseCipher) Encrypt(plaintext, passphrase string) (*EncryptedBlob, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}

	iv, err := safe_random.GenerateRandomBytes(gcmNonceSize)
	if err != nil {
		return nil, err
	}
	key, err := c.deriveKey(passphrase, iv)
	if err != nil {
		return nil, err
	}

	ciphertext, err := SealAESGCM(key, iv, []byte(plaintext))
	if err != nil {
		return nil, err
	}

	return &EncryptedBlob{
		CipherText: base64.StdEncoding.EncodeToString(ciphertext),
		IV:         base64.StdEncoding.EncodeToString(iv),
	}, nil
}

// Decrypt 使用口令解密，口令错误时返回 ErrAuthFailed
func (c *PassphraseCipher) Decrypt(blob *EncryptedBlob, passphrase string) (string, error) {
	if blob == nil {
		return "", errors.New("blob 为空")
	}
	if passphrase == "" {
		return "", ErrEmptyPassphrase
	}

	iv, err := base64.StdEncoding.DecodeString(blob.IV)
	if err != nil {
		return "", fmt.Errorf("invalid iv: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(blob.CipherText)
	if err != nil {
		return "", fmt.Errorf("invalid ciphertext: %w", err)
	}

	key, err := c.deriveKey(passphrase, iv)
	if err != nil {
		return "", err
	}

	plaintext, err := OpenAESGCM(key, iv, ciphertext)
	if err != nil {
		return "", ErrAuthFailed
	}
	return string(plaintext), nil
}

func (c *PassphraseCipher) deriveKey(passphrase string, salt []byte) ([]byte, error) {
	return scrypt.Key([]byte(passphrase), salt, c.n, scryptR, scryptP, scryptDKLen)
}
