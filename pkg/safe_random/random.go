// Package safe_random 所有密钥材料、IV 与 salt 的随机源
package safe_random

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

// Reader 测试中可替换为确定性来源
var Reader io.Reader = rand.Reader

// GenerateRandomBytes 读取失败时返回错误而不是回退到弱随机
func GenerateRandomBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(Reader, buf); err != nil {
		return nil, fmt.Errorf("safe_random: read %d bytes: %w", n, err)
	}
	return buf, nil
}

// GenerateRandomHexString n 字节 -> 2n 个 hex 字符
func GenerateRandomHexString(n int) (string, error) {
	buf, err := GenerateRandomBytes(n)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
