package crypto_util

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
)

var errNonceSize = errors.New("nonce 长度无效")

// SealAESGCM AES-256-GCM 加密，nonce 由调用方生成并单独保存，不拼接到密文前
func SealAESGCM(key, nonce, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key, nonce)
	if err != nil {
		return nil, err
	}
	return gcm.Seal(nil, nonce, plaintext, nil), nil
}

// OpenAESGCM tag 校验失败 (密钥错误或密文被改) 时返回错误
func OpenAESGCM(key, nonce, ciphertext []byte) ([]byte, error) {
	gcm, err := newGCM(key, nonce)
	if err != nil {
		return nil, err
	}
	return gcm.Open(nil, nonce, ciphertext, nil)
}

func newGCM(key, nonce []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, errNonceSize
	}
	return gcm, nil
}
